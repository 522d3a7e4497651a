package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"command-center/internal/model"
)

var (
	bucketDocuments = []byte("documents")
	bucketChunks    = []byte("chunks")
)

// BoltStore persists documents and chunks in a single bbolt file. Chunks are
// keyed by a monotonically increasing sequence so iteration follows
// insertion order.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bolt dir failed: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db failed: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocuments, bucketChunks} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s failed: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Append(_ context.Context, chunks ...model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		for i := range chunks {
			seq, err := b.NextSequence()
			if err != nil {
				return fmt.Errorf("next chunk sequence failed: %w", err)
			}
			data, err := json.Marshal(boltChunk{Chunk: chunks[i], Vector: chunks[i].Vector})
			if err != nil {
				return fmt.Errorf("marshal chunk failed: %w", err)
			}
			if err := b.Put(seqKey(seq), data); err != nil {
				return fmt.Errorf("put chunk failed: %w", err)
			}
		}
		return nil
	})
}

func (s *BoltStore) All(_ context.Context) ([]model.Chunk, error) {
	var chunks []model.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChunks).ForEach(func(_, v []byte) error {
			var bc boltChunk
			if err := json.Unmarshal(v, &bc); err != nil {
				return fmt.Errorf("unmarshal chunk failed: %w", err)
			}
			bc.Chunk.Vector = bc.Vector
			chunks = append(chunks, bc.Chunk)
			return nil
		})
	})
	return chunks, err
}

func (s *BoltStore) DeleteByDocument(_ context.Context, documentID string) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		var keys [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var ref struct {
				DocumentID string `json:"document_id"`
			}
			if err := json.Unmarshal(v, &ref); err != nil {
				return err
			}
			if ref.DocumentID == documentID {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(keys)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete chunks by document failed: %w", err)
	}
	return removed, nil
}

func (s *BoltStore) Clear(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return recreateBucket(tx, bucketChunks)
	})
}

func (s *BoltStore) CreateDocument(_ context.Context, doc *model.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document failed: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).Put([]byte(doc.ID), data)
	})
}

func (s *BoltStore) GetDocument(_ context.Context, id string) (*model.Document, error) {
	var doc *model.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocuments).Get([]byte(id))
		if data == nil {
			return nil
		}
		doc = &model.Document{}
		return json.Unmarshal(data, doc)
	})
	if err != nil {
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return doc, nil
}

func (s *BoltStore) ListDocuments(_ context.Context) ([]model.Document, error) {
	list := []model.Document{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(_, v []byte) error {
			var doc model.Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return err
			}
			list = append(list, doc)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	sortNewestFirst(list)
	return list, nil
}

func (s *BoltStore) DeleteDocument(_ context.Context, id string) (bool, error) {
	deleted := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		if b.Get([]byte(id)) == nil {
			return nil
		}
		deleted = true
		return b.Delete([]byte(id))
	})
	if err != nil {
		return false, fmt.Errorf("delete document failed: %w", err)
	}
	return deleted, nil
}

func (s *BoltStore) DeleteAllDocuments(_ context.Context) (int, error) {
	n := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketDocuments).ForEach(func(_, _ []byte) error {
			n++
			return nil
		}); err != nil {
			return err
		}
		return recreateBucket(tx, bucketDocuments)
	})
	if err != nil {
		return 0, fmt.Errorf("delete all documents failed: %w", err)
	}
	return n, nil
}

// boltChunk carries the vector, which model.Chunk hides from JSON.
type boltChunk struct {
	model.Chunk
	Vector []float32 `json:"vector"`
}

func recreateBucket(tx *bbolt.Tx, name []byte) error {
	if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
		return err
	}
	_, err := tx.CreateBucket(name)
	return err
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
