package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"command-center/internal/ai"
	"command-center/internal/app"
	"command-center/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// letterEmbedder maps text to its letter histogram so identical texts score 1.
type letterEmbedder struct {
	err error
}

func (e *letterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vec := make([]float32, 27)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		} else {
			vec[26]++
		}
	}
	return vec, nil
}

func (e *letterEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type stubCompleter struct {
	answer string
	err    error
	calls  int
}

func (c *stubCompleter) Complete(_ context.Context, _ []ai.ChatMessage) (string, error) {
	c.calls++
	return c.answer, c.err
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router    *gin.Engine
	embedder  *letterEmbedder
	completer *stubCompleter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemoryStore()
	ts := &testServer{
		embedder:  &letterEmbedder{},
		completer: &stubCompleter{answer: "  the answer, verbatim \n"},
	}
	svc := app.NewRAGService(mem, mem, ts.embedder, ts.completer, app.RAGOptions{ChunkSize: 1000}, nil)
	h := NewRAGHandler(svc, 1<<20, nil)

	r := gin.New()
	g := r.Group("/api/rag")
	g.POST("/upload", h.Upload)
	g.POST("/ingest", h.Ingest)
	g.POST("/search", h.Search)
	g.GET("/list", h.List)
	g.DELETE("/delete/:id", h.Delete)
	g.DELETE("/delete_all", h.DeleteAll)
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return w.Code, env
}

func (ts *testServer) upload(t *testing.T, filename, content string) (int, envelope) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/rag/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return ts.do(t, req)
}

func (ts *testServer) jsonRequest(t *testing.T, method, path string, payload interface{}) (int, envelope) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	return ts.do(t, req)
}

type ingestData struct {
	Status   string `json:"status"`
	Chunks   int    `json:"chunks"`
	Document struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Chunks int    `json:"chunks"`
	} `json:"document"`
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode data %s: %v", raw, err)
	}
}

func TestUploadAndList(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.upload(t, "notes.txt", strings.Repeat("a", 2500))
	if code != http.StatusOK {
		t.Fatalf("upload status = %d (%s)", code, env.Message)
	}
	var data ingestData
	decode(t, env.Data, &data)
	if data.Status != StatusOK || data.Chunks != 3 {
		t.Fatalf("upload data = %+v, want status ok with 3 chunks", data)
	}
	if data.Document.Name != "notes.txt" || data.Document.ID == "" {
		t.Fatalf("document = %+v", data.Document)
	}

	code, env = ts.jsonRequest(t, http.MethodGet, "/api/rag/list", nil)
	if code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	var docs []struct {
		ID     string `json:"id"`
		Chunks int    `json:"chunks"`
	}
	decode(t, env.Data, &docs)
	if len(docs) != 1 || docs[0].ID != data.Document.ID || docs[0].Chunks != 3 {
		t.Fatalf("list = %+v", docs)
	}
}

func TestUploadEmptyFileHasZeroChunks(t *testing.T) {
	ts := newTestServer(t)
	code, env := ts.upload(t, "empty.txt", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d (%s)", code, env.Message)
	}
	var data ingestData
	decode(t, env.Data, &data)
	if data.Chunks != 0 {
		t.Fatalf("chunks = %d, want 0", data.Chunks)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	ts := newTestServer(t)
	code, _ := ts.upload(t, "binary.exe", "MZ")
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	ts := newTestServer(t)
	code, _ := ts.upload(t, "big.txt", strings.Repeat("x", 2<<20))
	if code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", code)
	}
}

func TestSearchRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	first := strings.Repeat("b", 1000)
	second := strings.Repeat("c", 1000)
	code, env := ts.jsonRequest(t, http.MethodPost, "/api/rag/ingest", gin.H{"name": "doc", "content": first + second})
	if code != http.StatusOK {
		t.Fatalf("ingest status = %d (%s)", code, env.Message)
	}

	code, env = ts.jsonRequest(t, http.MethodPost, "/api/rag/search", gin.H{"query": second})
	if code != http.StatusOK {
		t.Fatalf("search status = %d (%s)", code, env.Message)
	}
	var result struct {
		Answer  string `json:"answer"`
		Sources []struct {
			DocumentName string  `json:"document_name"`
			Text         string  `json:"text"`
			Score        float32 `json:"score"`
		} `json:"sources"`
	}
	decode(t, env.Data, &result)
	if result.Answer != ts.completer.answer {
		t.Errorf("answer = %q, want verbatim %q", result.Answer, ts.completer.answer)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(result.Sources))
	}
	if result.Sources[0].Text != second || result.Sources[0].DocumentName != "doc" {
		t.Errorf("top source = %+v, want exact chunk from doc", result.Sources[0])
	}
}

func TestSearchErrors(t *testing.T) {
	t.Run("blank query", func(t *testing.T) {
		ts := newTestServer(t)
		code, _ := ts.jsonRequest(t, http.MethodPost, "/api/rag/search", gin.H{"query": "   "})
		if code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", code)
		}
	})

	t.Run("empty store", func(t *testing.T) {
		ts := newTestServer(t)
		code, env := ts.jsonRequest(t, http.MethodPost, "/api/rag/search", gin.H{"query": "hello"})
		if code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", code)
		}
		if ts.completer.calls != 0 {
			t.Fatalf("completion called %d times on empty store", ts.completer.calls)
		}
		if env.Code == 0 {
			t.Fatal("expected non-zero envelope code")
		}
	})

	t.Run("upstream failure", func(t *testing.T) {
		ts := newTestServer(t)
		ts.jsonRequest(t, http.MethodPost, "/api/rag/ingest", gin.H{"name": "doc", "content": "hello world"})
		ts.completer.err = errors.New("status 401: secret upstream detail")

		code, env := ts.jsonRequest(t, http.MethodPost, "/api/rag/search", gin.H{"query": "hello"})
		if code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", code)
		}
		if strings.Contains(env.Message, "secret") {
			t.Fatalf("upstream detail leaked: %q", env.Message)
		}
	})
}

func TestIngestUpstreamFailureStoresNothing(t *testing.T) {
	ts := newTestServer(t)
	ts.embedder.err = errors.New("connection refused")

	code, _ := ts.jsonRequest(t, http.MethodPost, "/api/rag/ingest", gin.H{"name": "doc", "content": "hello"})
	if code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", code)
	}
	_, env := ts.jsonRequest(t, http.MethodGet, "/api/rag/list", nil)
	var docs []json.RawMessage
	decode(t, env.Data, &docs)
	if len(docs) != 0 {
		t.Fatalf("documents = %d, want 0", len(docs))
	}
}

func TestIngestAsyncWithoutBroker(t *testing.T) {
	ts := newTestServer(t)
	code, _ := ts.jsonRequest(t, http.MethodPost, "/api/rag/ingest", gin.H{"content": "x", "async": true})
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	_, env := ts.jsonRequest(t, http.MethodPost, "/api/rag/ingest", gin.H{"name": "doc", "content": "hello"})
	var data ingestData
	decode(t, env.Data, &data)

	for i, want := range []bool{true, false} {
		code, env := ts.jsonRequest(t, http.MethodDelete, "/api/rag/delete/"+data.Document.ID, nil)
		if code != http.StatusOK {
			t.Fatalf("delete #%d status = %d", i+1, code)
		}
		var res DeleteResponse
		decode(t, env.Data, &res)
		if res.ID != data.Document.ID || res.Deleted != want {
			t.Fatalf("delete #%d = %+v, want deleted=%v", i+1, res, want)
		}
	}
}

func TestDeleteAll(t *testing.T) {
	ts := newTestServer(t)
	for _, name := range []string{"a", "b"} {
		ts.jsonRequest(t, http.MethodPost, "/api/rag/ingest", gin.H{"name": name, "content": "text " + name})
	}

	code, env := ts.jsonRequest(t, http.MethodDelete, "/api/rag/delete_all", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var res DeleteAllResponse
	decode(t, env.Data, &res)
	if res.Deleted != 2 {
		t.Fatalf("deleted = %d, want 2", res.Deleted)
	}

	code, _ = ts.jsonRequest(t, http.MethodPost, "/api/rag/search", gin.H{"query": "text"})
	if code != http.StatusBadRequest {
		t.Fatalf("search after delete_all status = %d, want 400", code)
	}
}
