package mysql

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"command-center/internal/platform/sqldb"
)

func New(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), sqldb.GormConfig())
	if err != nil {
		return nil, fmt.Errorf("open mysql failed: %w", err)
	}
	if err := sqldb.Tune(ctx, db); err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	return db, nil
}
