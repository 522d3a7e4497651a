package app

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNoDocuments      = errors.New("no documents to search")
	ErrAsyncUnavailable = errors.New("async ingestion is not configured")
)
