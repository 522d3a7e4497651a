package store

import (
	"context"

	"gorm.io/gorm"

	"command-center/internal/model"
	"command-center/internal/repository"
)

// SQLStore backs both the vector store and the document catalog with gorm,
// so it works against MySQL and Postgres alike.
type SQLStore struct {
	docs   *repository.DocumentRepository
	chunks *repository.ChunkRepository
}

func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&model.Document{}, &model.Chunk{}); err != nil {
		return nil, err
	}
	return &SQLStore{
		docs:   repository.NewDocumentRepository(db),
		chunks: repository.NewChunkRepository(db),
	}, nil
}

func (s *SQLStore) Append(ctx context.Context, chunks ...model.Chunk) error {
	return s.chunks.CreateBatch(ctx, chunks)
}

func (s *SQLStore) All(ctx context.Context) ([]model.Chunk, error) {
	return s.chunks.ListAll(ctx)
}

func (s *SQLStore) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	return s.chunks.DeleteByDocumentID(ctx, documentID)
}

func (s *SQLStore) Clear(ctx context.Context) error {
	return s.chunks.DeleteAll(ctx)
}

func (s *SQLStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	return s.docs.Create(ctx, doc)
}

func (s *SQLStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	return s.docs.GetByID(ctx, id)
}

func (s *SQLStore) ListDocuments(ctx context.Context) ([]model.Document, error) {
	return s.docs.List(ctx)
}

func (s *SQLStore) DeleteDocument(ctx context.Context, id string) (bool, error) {
	return s.docs.DeleteByID(ctx, id)
}

func (s *SQLStore) DeleteAllDocuments(ctx context.Context) (int, error) {
	return s.docs.DeleteAll(ctx)
}
