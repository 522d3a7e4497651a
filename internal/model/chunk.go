package model

import "time"

// Chunk is a fixed-size slice of a document's text paired with its embedding.
// Vector is persisted as a JSON array in SQL backends.
type Chunk struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	DocumentID string    `gorm:"size:36;not null;index" json:"document_id"`
	Seq        int       `gorm:"not null" json:"seq"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	Vector     []float32 `gorm:"type:text;serializer:json" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScoredChunk is a chunk with its similarity to a query vector.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}
