package model

import "time"

// IngestJob is the queue payload for asynchronous ingestion.
type IngestJob struct {
	DocumentID string    `json:"document_id"`
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
