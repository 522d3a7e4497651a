package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"

	"command-center/internal/model"
)

func newTestCache(t *testing.T) (*SearchCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSearchCache(client, time.Minute), mr
}

func TestSearchCache_Lifecycle(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	result := &model.SearchResult{
		Answer:  "forty-two",
		Sources: []model.Source{{DocumentID: "d1", Text: "the answer is 42", Score: 0.9}},
	}

	t.Run("Miss on empty cache", func(t *testing.T) {
		_, key, found, err := c.Get(ctx, "what is the answer", 5)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if found {
			t.Error("expected miss")
		}
		if key == "" {
			t.Error("expected a key for the following Set")
		}
	})

	t.Run("Set and Get roundtrip", func(t *testing.T) {
		_, key, _, _ := c.Get(ctx, "what is the answer", 5)
		if err := c.Set(ctx, key, result); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, _, found, err := c.Get(ctx, "  what is the answer ", 5)
		if err != nil || !found {
			t.Fatalf("expected hit, found=%v err=%v", found, err)
		}
		if got.Answer != "forty-two" || len(got.Sources) != 1 {
			t.Errorf("unexpected cached result %+v", got)
		}
	})

	t.Run("Different top_k is a different entry", func(t *testing.T) {
		_, _, found, _ := c.Get(ctx, "what is the answer", 3)
		if found {
			t.Error("expected miss for different top_k")
		}
	})

	t.Run("Invalidate hides old entries", func(t *testing.T) {
		if err := c.Invalidate(ctx); err != nil {
			t.Fatalf("Invalidate failed: %v", err)
		}
		_, _, found, _ := c.Get(ctx, "what is the answer", 5)
		if found {
			t.Error("expected miss after invalidation")
		}
		if v, _ := mr.Get(generationKey); v != "1" {
			t.Errorf("generation = %q, want 1", v)
		}
	})

	t.Run("Entries expire", func(t *testing.T) {
		_, key, _, _ := c.Get(ctx, "ttl", 5)
		if err := c.Set(ctx, key, result); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		mr.FastForward(2 * time.Minute)
		_, _, found, _ := c.Get(ctx, "ttl", 5)
		if found {
			t.Error("expected entry to expire")
		}
	})
}

func TestSearchCache_RedisDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()
	if _, _, _, err := c.Get(context.Background(), "q", 5); err == nil {
		t.Fatal("expected error when redis is unavailable")
	}
}

func TestSearchCache_SetAfterInvalidateIsNeverServed(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, key, found, err := c.Get(ctx, "alpha", 5)
	if err != nil || found {
		t.Fatalf("expected clean miss, found=%v err=%v", found, err)
	}

	// corpus changes while the answer is being computed
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if err := c.Set(ctx, key, &model.SearchResult{Answer: "from old corpus"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if got, _, found, _ := c.Get(ctx, "alpha", 5); found {
		t.Fatalf("stale result served after invalidation: %+v", got)
	}
}

func TestSearchCache_SetRejectsEmptyKey(t *testing.T) {
	c, _ := newTestCache(t)
	if err := c.Set(context.Background(), "", &model.SearchResult{}); err == nil {
		t.Fatal("expected error for empty key")
	}
}
