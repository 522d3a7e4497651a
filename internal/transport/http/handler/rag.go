package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"command-center/internal/app"
	"command-center/internal/pkg/textextract"
	"command-center/internal/transport/http/middleware"
	"command-center/internal/transport/http/response"
)

const (
	StatusOK     = "ok"
	StatusQueued = "queued"
)

type RAGHandler struct {
	ragService     *app.RAGService
	maxUploadBytes int64
	log            *zap.SugaredLogger
}

type IngestRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Async   bool   `json:"async"`
}

type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

type IngestResponse struct {
	Status   string      `json:"status"`
	Chunks   int         `json:"chunks"`
	Document interface{} `json:"document"`
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type DeleteAllResponse struct {
	Deleted int `json:"deleted"`
}

func NewRAGHandler(ragService *app.RAGService, maxUploadBytes int64, log *zap.SugaredLogger) *RAGHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &RAGHandler{
		ragService:     ragService,
		maxUploadBytes: maxUploadBytes,
		log:            log.With("component", "rag_handler"),
	}
}

// Upload accepts a multipart form with "file" and optional "name" and "async",
// extracts its text and ingests it.
func (h *RAGHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeTooLarge, "file too large")
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing or invalid file")
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeTooLarge, "file too large")
		return
	}
	if !textextract.Supported(file.Filename) {
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedType, "unsupported file type")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to open file")
		return
	}
	defer f.Close()

	text, err := textextract.Extract(file.Filename, f)
	if err != nil {
		h.log.Warnw("extract text failed", "file", file.Filename, "error", err)
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to extract text from file")
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = file.Filename
	}
	async, _ := strconv.ParseBool(c.PostForm("async"))
	h.ingest(c, app.IngestInput{Name: name, Content: text}, async)
}

// Ingest takes raw text as JSON.
func (h *RAGHandler) Ingest(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeTooLarge, "payload too large")
			return
		}
		if !errors.Is(err, io.EOF) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
			return
		}
	}
	h.ingest(c, app.IngestInput{Name: req.Name, Content: req.Content}, req.Async)
}

func (h *RAGHandler) ingest(c *gin.Context, input app.IngestInput, async bool) {
	if async {
		doc, err := h.ragService.Enqueue(c.Request.Context(), input)
		if err != nil {
			h.fail(c, err, "ingest")
			return
		}
		response.OK(c, IngestResponse{Status: StatusQueued, Chunks: 0, Document: doc})
		return
	}

	result, err := h.ragService.Ingest(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err, "ingest")
		return
	}
	response.OK(c, IngestResponse{Status: StatusOK, Chunks: result.Chunks, Document: result.Document})
}

func (h *RAGHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	result, err := h.ragService.Search(c.Request.Context(), app.SearchInput{
		Query: req.Query,
		TopK:  req.TopK,
	})
	if err != nil {
		h.fail(c, err, "search")
		return
	}
	response.OK(c, result)
}

func (h *RAGHandler) List(c *gin.Context) {
	docs, err := h.ragService.ListDocuments(c.Request.Context())
	if err != nil {
		h.fail(c, err, "list documents")
		return
	}
	response.OK(c, docs)
}

func (h *RAGHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	deleted, err := h.ragService.DeleteDocument(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "delete document")
		return
	}
	response.OK(c, DeleteResponse{ID: id, Deleted: deleted})
}

func (h *RAGHandler) DeleteAll(c *gin.Context) {
	n, err := h.ragService.DeleteAll(c.Request.Context())
	if err != nil {
		h.fail(c, err, "delete documents")
		return
	}
	response.OK(c, DeleteAllResponse{Deleted: n})
}

// fail maps service errors onto the envelope. Anything unexpected is logged
// and hidden behind a generic message.
func (h *RAGHandler) fail(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrNoDocuments):
		response.Error(c, http.StatusBadRequest, response.CodeNoDocuments, err.Error())
	case errors.Is(err, textextract.ErrUnsupportedType):
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedType, "unsupported file type")
	case errors.Is(err, app.ErrAsyncUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, err.Error())
	default:
		h.log.Errorw(op+" failed", "error", err, "request_id", c.GetString(middleware.ContextRequestIDKey))
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, op+" failed")
	}
}
