package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string, retryMax int) *OpenAICompatibleClient {
	return NewOpenAICompatibleClient(Options{
		BaseURL:        url,
		APIKey:         "test-key",
		ChatModel:      "chat-model",
		EmbeddingModel: "embed-model",
		Timeout:        5 * time.Second,
		RetryMax:       retryMax,
	})
}

func TestEmbedBatch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body.Model != "embed-model" || len(body.Input) != 2 {
			t.Errorf("unexpected body %+v", body)
		}
		// Out of order on purpose; the client must realign by index.
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	vectors, err := newTestClient(srv.URL, 0).EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Errorf("vectors not aligned with input: %v", vectors)
	}
}

func TestEmbed_RejectsBlankInput(t *testing.T) {
	if _, err := newTestClient("http://127.0.0.1:0", 0).Embed(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank input")
	}
}

func TestEmbed_ErrorStatusPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Embed(context.Background(), "hello")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d", statusErr.StatusCode)
	}
}

func TestServerErrorSurfacesAsStatusError(t *testing.T) {
	for _, retryMax := range []int{0, 1} {
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"overloaded"}`))
		}))

		client := newTestClient(srv.URL, retryMax)
		_, err := client.Embed(context.Background(), "hello")
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			srv.Close()
			t.Fatalf("retry_max=%d: expected StatusError, got %v", retryMax, err)
		}
		if statusErr.StatusCode != http.StatusServiceUnavailable || statusErr.Body != `{"error":"overloaded"}` {
			t.Errorf("retry_max=%d: got status %d body %q", retryMax, statusErr.StatusCode, statusErr.Body)
		}

		_, err = client.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
		if !errors.As(err, &statusErr) {
			t.Errorf("retry_max=%d: Complete expected StatusError, got %v", retryMax, err)
		}
		if got := atomic.LoadInt32(&hits); got != int32(2*(retryMax+1)) {
			t.Errorf("retry_max=%d: attempts = %d, want %d", retryMax, got, 2*(retryMax+1))
		}
		srv.Close()
	}
}

func TestEmbed_NoRetryByDefault(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL, 0).Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error on 502")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("expected exactly one attempt, got %d", got)
	}
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL, 0).EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Model    string        `json:"model"`
			Stream   bool          `json:"stream"`
			Messages []ChatMessage `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body.Model != "chat-model" || body.Stream || len(body.Messages) != 2 {
			t.Errorf("unexpected body %+v", body)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  the answer\n"}}]}`))
	}))
	defer srv.Close()

	answer, err := newTestClient(srv.URL, 0).Complete(context.Background(), []ChatMessage{
		{Role: "system", Content: "s"},
		{Role: "user", Content: "u"},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if answer != "  the answer\n" {
		t.Errorf("answer should be returned verbatim, got %q", answer)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL, 0).Complete(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
