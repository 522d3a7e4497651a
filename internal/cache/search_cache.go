package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"command-center/internal/model"
)

const generationKey = "rag:search:generation"

// SearchCache memoizes search results in Redis. Every entry is scoped to a
// generation number; Invalidate bumps it so older entries are never read
// again and simply expire.
//
// Get returns the key it looked up and Set writes under that key, so a result
// computed while the generation was bumped lands in the dead generation.
type SearchCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewSearchCache(client *redisv9.Client, ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SearchCache{client: client, ttl: ttl}
}

func (c *SearchCache) Get(ctx context.Context, query string, topK int) (*model.SearchResult, string, bool, error) {
	key, err := c.resultKey(ctx, query, topK)
	if err != nil {
		return nil, "", false, err
	}
	raw, err := c.client.Get(ctx, key).Result()
	if err == redisv9.Nil {
		return nil, key, false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("redis get search result failed: %w", err)
	}

	var result model.SearchResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		// a corrupt entry is overwritten by the next Set
		return nil, key, false, fmt.Errorf("unmarshal cached search result failed: %w", err)
	}
	return &result, key, true, nil
}

// Set stores result under a key previously returned by Get.
func (c *SearchCache) Set(ctx context.Context, key string, result *model.SearchResult) error {
	if key == "" {
		return fmt.Errorf("empty search cache key")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal search result failed: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set search result failed: %w", err)
	}
	return nil
}

func (c *SearchCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("redis bump search generation failed: %w", err)
	}
	return nil
}

func (c *SearchCache) resultKey(ctx context.Context, query string, topK int) (string, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && err != redisv9.Nil {
		return "", fmt.Errorf("redis get search generation failed: %w", err)
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(query) + "|" + strconv.Itoa(topK)))
	return fmt.Sprintf("rag:search:%d:%s", gen, hex.EncodeToString(sum[:])), nil
}
