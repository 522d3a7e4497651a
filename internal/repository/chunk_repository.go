package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"command-center/internal/model"
)

const chunkInsertBatch = 100

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) CreateBatch(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&chunks, chunkInsertBatch).Error; err != nil {
		return fmt.Errorf("create chunks batch failed: %w", err)
	}
	return nil
}

// ListAll returns every chunk ordered by insertion.
func (r *ChunkRepository) ListAll(ctx context.Context) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.WithContext(ctx).Order("created_at").Order("document_id").Order("seq").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) DeleteByDocumentID(ctx context.Context, documentID string) (int, error) {
	res := r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.Chunk{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete chunks by document failed: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r *ChunkRepository) DeleteAll(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Chunk{}).Error; err != nil {
		return fmt.Errorf("delete all chunks failed: %w", err)
	}
	return nil
}
