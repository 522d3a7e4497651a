package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"command-center/internal/ai"
	"command-center/internal/metrics"
	"command-center/internal/model"
	"command-center/internal/pkg/chunker"
	"command-center/internal/store"
)

const (
	defaultTopK           = 5
	maxTopK               = 50
	defaultEmbedBatchSize = 10 // many OpenAI-compatible providers cap batch input
	defaultSystemPrompt   = "You are a helpful assistant. Answer the user's question based only on the following context. If the context does not contain enough information, say so. Do not make up facts."
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Completer interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

// VectorStore holds embedded chunks.
type VectorStore interface {
	Append(ctx context.Context, chunks ...model.Chunk) error
	All(ctx context.Context) ([]model.Chunk, error)
	DeleteByDocument(ctx context.Context, documentID string) (int, error)
	Clear(ctx context.Context) error
}

// NearestSearcher is implemented by vector stores that rank server-side.
type NearestSearcher interface {
	Nearest(ctx context.Context, vector []float32, k int) ([]model.ScoredChunk, error)
}

type DocumentCatalog interface {
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context) ([]model.Document, error)
	DeleteDocument(ctx context.Context, id string) (bool, error)
	DeleteAllDocuments(ctx context.Context) (int, error)
}

type SearchCache interface {
	// Get returns the key for a later Set; it is empty when no Set should follow.
	Get(ctx context.Context, query string, topK int) (*model.SearchResult, string, bool, error)
	Set(ctx context.Context, key string, result *model.SearchResult) error
	Invalidate(ctx context.Context) error
}

type IngestPublisher interface {
	Publish(ctx context.Context, job model.IngestJob) error
}

type RAGOptions struct {
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	EmbedBatchSize int
	SystemPrompt   string
}

type RAGService struct {
	vectors   VectorStore
	docs      DocumentCatalog
	embedder  Embedder
	completer Completer
	cache     SearchCache
	publisher IngestPublisher
	chunker   chunker.Chunker
	opts      RAGOptions
	log       *zap.SugaredLogger

	now   func() time.Time
	newID func() string
}

func NewRAGService(
	vectors VectorStore,
	docs DocumentCatalog,
	embedder Embedder,
	completer Completer,
	opts RAGOptions,
	log *zap.SugaredLogger,
) *RAGService {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = defaultEmbedBatchSize
	}
	if strings.TrimSpace(opts.SystemPrompt) == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &RAGService{
		vectors:   vectors,
		docs:      docs,
		embedder:  embedder,
		completer: completer,
		chunker:   chunker.New(opts.ChunkSize, opts.ChunkOverlap),
		opts:      opts,
		log:       log.With("component", "rag"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// WithCache enables the search result cache.
func (s *RAGService) WithCache(c SearchCache) *RAGService {
	s.cache = c
	return s
}

// WithPublisher enables asynchronous ingestion through Enqueue.
func (s *RAGService) WithPublisher(p IngestPublisher) *RAGService {
	s.publisher = p
	return s
}

type IngestInput struct {
	// DocumentID is preassigned for queued jobs; empty means generate one.
	DocumentID string
	Name       string
	Content    string
}

type IngestResult struct {
	Document model.Document `json:"document"`
	Chunks   int            `json:"chunks"`
}

// Ingest chunks and embeds content, then stores chunks and metadata. Chunks
// are only appended after every batch embedded, so a failed upstream call
// leaves nothing behind.
func (s *RAGService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Untitled"
	}
	docID := input.DocumentID
	if docID == "" {
		docID = s.newID()
	} else if existing, err := s.docs.GetDocument(ctx, docID); err != nil {
		return nil, err
	} else if existing != nil {
		// Redelivered job: already ingested.
		return &IngestResult{Document: *existing, Chunks: existing.ChunkCount}, nil
	}

	texts := s.splitNonBlank(input.Content)
	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	now := s.now()
	chunks := make([]model.Chunk, len(texts))
	for i := range texts {
		chunks[i] = model.Chunk{
			ID:         s.newID(),
			DocumentID: docID,
			Seq:        i,
			Text:       texts[i],
			Vector:     vectors[i],
			CreatedAt:  now,
		}
	}
	if err := s.vectors.Append(ctx, chunks...); err != nil {
		return nil, fmt.Errorf("store chunks failed: %w", err)
	}

	doc := &model.Document{
		ID:         docID,
		Name:       name,
		ChunkCount: len(chunks),
		UploadedAt: now,
	}
	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		if _, rbErr := s.vectors.DeleteByDocument(ctx, docID); rbErr != nil {
			s.log.Errorw("rollback chunks failed", "document_id", docID, "error", rbErr)
		}
		return nil, fmt.Errorf("store document failed: %w", err)
	}

	s.invalidate(ctx)
	metrics.AddIngested(len(chunks))
	s.log.Infow("document ingested", "document_id", docID, "name", name, "chunks", len(chunks))

	return &IngestResult{Document: *doc, Chunks: len(chunks)}, nil
}

// Enqueue hands the document to the ingest worker and returns its placeholder
// metadata immediately.
func (s *RAGService) Enqueue(ctx context.Context, input IngestInput) (*model.Document, error) {
	if s.publisher == nil {
		return nil, ErrAsyncUnavailable
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Untitled"
	}
	job := model.IngestJob{
		DocumentID: s.newID(),
		Name:       name,
		Content:    input.Content,
		EnqueuedAt: s.now(),
	}
	if err := s.publisher.Publish(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue ingest job failed: %w", err)
	}
	s.log.Infow("ingest job queued", "document_id", job.DocumentID, "name", name)
	return &model.Document{ID: job.DocumentID, Name: name, UploadedAt: job.EnqueuedAt}, nil
}

func (s *RAGService) splitNonBlank(content string) []string {
	parts := s.chunker.Split(content)
	texts := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			texts = append(texts, p)
		}
	}
	return texts
}

func (s *RAGService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += s.opts.EmbedBatchSize {
		end := i + s.opts.EmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.embedder.EmbedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks failed: %w", err)
		}
		if len(batch) != end-i {
			return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", end-i, len(batch))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

type SearchInput struct {
	Query string
	TopK  int
}

// Search embeds the query, retrieves the closest chunks and asks the
// completion model to answer from them. The answer is returned verbatim.
func (s *RAGService) Search(ctx context.Context, input SearchInput) (*model.SearchResult, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, ErrInvalidInput
	}
	topK := input.TopK
	if topK <= 0 {
		topK = s.opts.TopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	cached, cacheKey, ok := s.cachedResult(ctx, query, topK)
	if ok {
		return cached, nil
	}

	top, err := s.retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return nil, ErrNoDocuments
	}

	var contextBlock strings.Builder
	for _, sc := range top {
		contextBlock.WriteString("\n---\n")
		contextBlock.WriteString(sc.Chunk.Text)
	}
	contextBlock.WriteString("\n---")

	messages := []ai.ChatMessage{
		{Role: "system", Content: s.opts.SystemPrompt},
		{Role: "user", Content: "Context:" + contextBlock.String() + "\n\nQuestion: " + query + "\n\nAnswer:"},
	}
	answer, err := s.completer.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("complete answer failed: %w", err)
	}

	result := &model.SearchResult{
		Answer:  answer,
		Sources: s.sources(ctx, top),
	}
	if s.cache != nil && cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, result); err != nil {
			s.log.Warnw("cache search result failed", "error", err)
		}
	}
	return result, nil
}

func (s *RAGService) retrieve(ctx context.Context, query string, topK int) ([]model.ScoredChunk, error) {
	if nearest, ok := s.vectors.(NearestSearcher); ok {
		vec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query failed: %w", err)
		}
		top, err := nearest.Nearest(ctx, vec, topK)
		if err != nil {
			return nil, fmt.Errorf("nearest search failed: %w", err)
		}
		return top, nil
	}

	all, err := s.vectors.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chunks failed: %w", err)
	}
	if len(all) == 0 {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}
	return store.Rank(vec, all, topK), nil
}

func (s *RAGService) cachedResult(ctx context.Context, query string, topK int) (*model.SearchResult, string, bool) {
	if s.cache == nil {
		return nil, "", false
	}
	cached, key, ok, err := s.cache.Get(ctx, query, topK)
	switch {
	case err != nil:
		metrics.SearchCacheResult("error")
		s.log.Warnw("read search cache failed", "error", err)
		return nil, key, false
	case ok:
		metrics.SearchCacheResult("hit")
		return cached, key, true
	default:
		metrics.SearchCacheResult("miss")
		return nil, key, false
	}
}

func (s *RAGService) sources(ctx context.Context, top []model.ScoredChunk) []model.Source {
	names := make(map[string]string)
	out := make([]model.Source, len(top))
	for i, sc := range top {
		docID := sc.Chunk.DocumentID
		name, seen := names[docID]
		if !seen {
			if doc, err := s.docs.GetDocument(ctx, docID); err != nil {
				s.log.Warnw("lookup source document failed", "document_id", docID, "error", err)
			} else if doc != nil {
				name = doc.Name
			}
			names[docID] = name
		}
		out[i] = model.Source{
			DocumentID:   docID,
			DocumentName: name,
			Text:         sc.Chunk.Text,
			Score:        sc.Score,
		}
	}
	return out
}

func (s *RAGService) ListDocuments(ctx context.Context) ([]model.Document, error) {
	docs, err := s.docs.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []model.Document{}
	}
	return docs, nil
}

// DeleteDocument removes a document and its chunks. Deleting an unknown id
// succeeds with deleted=false.
func (s *RAGService) DeleteDocument(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, ErrInvalidInput
	}
	removed, err := s.vectors.DeleteByDocument(ctx, id)
	if err != nil {
		return false, err
	}
	deleted, err := s.docs.DeleteDocument(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted || removed > 0 {
		s.invalidate(ctx)
		s.log.Infow("document deleted", "document_id", id, "chunks", removed)
	}
	return deleted, nil
}

// DeleteAll wipes every chunk and document and returns the document count.
func (s *RAGService) DeleteAll(ctx context.Context) (int, error) {
	if err := s.vectors.Clear(ctx); err != nil {
		return 0, err
	}
	n, err := s.docs.DeleteAllDocuments(ctx)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx)
	s.log.Infow("all documents deleted", "documents", n)
	return n, nil
}

func (s *RAGService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warnw("invalidate search cache failed", "error", err)
	}
}
