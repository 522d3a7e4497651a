package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"command-center/internal/model"
)

const qdrantScrollPage = 256

// QdrantStore keeps chunk vectors in a Qdrant collection. The collection is
// created on the first Append, sized to the first vector.
type QdrantStore struct {
	client     *qdrant.Client
	collection string

	mu    sync.Mutex
	ready bool
}

func NewQdrantStore(client *qdrant.Client, collection string) *QdrantStore {
	return &QdrantStore{client: client, collection: collection}
}

func (s *QdrantStore) ensureCollection(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check qdrant collection failed: %w", err)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("create qdrant collection failed: %w", err)
		}
	}
	s.ready = true
	return nil
}

func (s *QdrantStore) exists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if ready {
		return true, nil
	}
	ok, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, fmt.Errorf("check qdrant collection failed: %w", err)
	}
	return ok, nil
}

func (s *QdrantStore) Append(ctx context.Context, chunks ...model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(chunks[0].Vector)); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(c.ID),
			Vectors: qdrant.NewVectors(c.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id": c.DocumentID,
				"seq":         c.Seq,
				"text":        c.Text,
				"created_at":  c.CreatedAt.Unix(),
			}),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

// All pages through the whole collection.
func (s *QdrantStore) All(ctx context.Context) ([]model.Chunk, error) {
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return nil, err
	}

	points, err := scrollAll(ctx, qdrantScrollPage, func(ctx context.Context, offset *qdrant.PointId) ([]*qdrant.RetrievedPoint, error) {
		return s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(qdrantScrollPage)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]model.Chunk, 0, len(points))
	for _, p := range points {
		c := chunkFromPayload(p.GetId(), p.GetPayload())
		c.Vector = p.GetVectors().GetVector().GetData()
		chunks = append(chunks, c)
	}
	return chunks, nil
}

type scrollPage func(ctx context.Context, offset *qdrant.PointId) ([]*qdrant.RetrievedPoint, error)

// scrollAll follows scroll pages until a short one. Offsets are inclusive, so
// every page after the first drops its leading point.
func scrollAll(ctx context.Context, pageSize int, next scrollPage) ([]*qdrant.RetrievedPoint, error) {
	var out []*qdrant.RetrievedPoint
	var offset *qdrant.PointId
	for {
		points, err := next(ctx, offset)
		if err != nil {
			return nil, fmt.Errorf("qdrant scroll failed: %w", err)
		}
		page := points
		if offset != nil && len(page) > 0 {
			page = page[1:]
		}
		out = append(out, page...)
		if len(points) < pageSize {
			return out, nil
		}
		offset = points[len(points)-1].GetId()
	}
}

// Nearest delegates ranking to Qdrant's cosine index.
func (s *QdrantStore) Nearest(ctx context.Context, vector []float32, k int) ([]model.ScoredChunk, error) {
	ok, err := s.exists(ctx)
	if err != nil || !ok || k <= 0 {
		return nil, err
	}
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}
	out := make([]model.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, model.ScoredChunk{
			Chunk: chunkFromPayload(h.GetId(), h.GetPayload()),
			Score: h.GetScore(),
		})
	}
	return out, nil
}

func (s *QdrantStore) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return 0, err
	}
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count failed: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant delete failed: %w", err)
	}
	return int(n), nil
}

// Clear drops the collection; the next Append recreates it.
func (s *QdrantStore) Clear(ctx context.Context) error {
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return err
	}
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("qdrant drop collection failed: %w", err)
	}
	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()
	return nil
}

func chunkFromPayload(id *qdrant.PointId, payload map[string]*qdrant.Value) model.Chunk {
	return model.Chunk{
		ID:         id.GetUuid(),
		DocumentID: payload["document_id"].GetStringValue(),
		Seq:        int(payload["seq"].GetIntegerValue()),
		Text:       payload["text"].GetStringValue(),
		CreatedAt:  time.Unix(payload["created_at"].GetIntegerValue(), 0),
	}
}
