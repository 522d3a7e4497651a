package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"command-center/internal/model"
)

func newTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "rag.sqlite")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	s, err := NewSQLStore(db)
	if err != nil {
		t.Fatalf("NewSQLStore failed: %v", err)
	}
	return s
}

func TestSQLStore(t *testing.T) {
	runBackendSuite(t, newTestSQLStore(t))
}

func TestSQLStore_VectorRoundTripsAsJSON(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()
	want := []float32{0.25, -1.5, 3}
	if err := s.Append(ctx, model.Chunk{ID: "c1", DocumentID: "d1", Text: "x", Vector: want}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	all, err := s.All(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("All = %v, %v", all, err)
	}
	for i := range want {
		if all[0].Vector[i] != want[i] {
			t.Fatalf("vector = %v, want %v", all[0].Vector, want)
		}
	}
}
