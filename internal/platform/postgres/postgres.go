package postgres

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"command-center/internal/platform/sqldb"
)

func New(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), sqldb.GormConfig())
	if err != nil {
		return nil, fmt.Errorf("open postgres failed: %w", err)
	}
	if err := sqldb.Tune(ctx, db); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return db, nil
}
