package store

import (
	"context"
	"sort"
	"sync"

	"command-center/internal/model"
)

// MemoryStore keeps chunks and document metadata in process memory. Nothing
// survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []model.Chunk
	docs   map[string]model.Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]model.Document)}
}

func (s *MemoryStore) Append(_ context.Context, chunks ...model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
	return nil
}

// All returns a copy of every stored chunk in insertion order.
func (s *MemoryStore) All(_ context.Context) ([]model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out, nil
}

func (s *MemoryStore) DeleteByDocument(_ context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.chunks[:0]
	removed := 0
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	// Drop references held past the new length.
	for i := len(kept); i < len(s.chunks); i++ {
		s.chunks[i] = model.Chunk{}
	}
	s.chunks = kept
	return removed, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	return nil
}

func (s *MemoryStore) CreateDocument(_ context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = *doc
	return nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

// ListDocuments returns documents newest first.
func (s *MemoryStore) ListDocuments(_ context.Context) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]model.Document, 0, len(s.docs))
	for _, d := range s.docs {
		list = append(list, d)
	}
	sortNewestFirst(list)
	return list, nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return false, nil
	}
	delete(s.docs, id)
	return true, nil
}

func (s *MemoryStore) DeleteAllDocuments(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.docs)
	s.docs = make(map[string]model.Document)
	return n, nil
}

func sortNewestFirst(list []model.Document) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].UploadedAt.Equal(list[j].UploadedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})
}
