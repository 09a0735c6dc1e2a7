// Package cache implements a semantic response cache on Redis: answers are
// keyed by query embedding and matched by cosine similarity rather than
// exact key equality.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrUnavailable reports that the cache store could not be reached. Callers
// treat it as a forced miss, never as a request failure.
var ErrUnavailable = errors.New("semantic cache unavailable")

const (
	keyPrefix = "semcache:"
	indexKey  = "semcache:index"

	// maxCandidates bounds one lookup's scan. Entries are TTL-bounded so
	// the live set stays small; lookup is an exact linear scan, not ANN.
	maxCandidates = 512
)

type entry struct {
	Embedding []float32 `json:"embedding"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// Cache is a semantic cache backed by a shared Redis instance. Entries are
// append-only and expire by TTL; a set of live keys serves as the scan index.
type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Lookup returns the cached answer whose stored embedding is most similar to
// emb, provided the cosine similarity meets threshold. The boolean reports
// whether a hit occurred. Backend errors are returned as ErrUnavailable.
func (c *Cache) Lookup(ctx context.Context, emb []float32, threshold float32) (string, bool, error) {
	keys, err := c.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(keys) == 0 {
		return "", false, nil
	}
	if len(keys) > maxCandidates {
		keys = keys[:maxCandidates]
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	answer, hit, expired := match(keys, vals, emb, threshold)
	if len(expired) > 0 {
		if err := c.rdb.SRem(ctx, indexKey, toInterfaces(expired)...).Err(); err != nil {
			log.Printf("[Cache] Failed to prune %d expired keys: %v", len(expired), err)
		}
	}
	return answer, hit, nil
}

// match scans the fetched candidate values for the entry most similar to emb
// and applies the threshold gate: the single best candidate wins, and only
// if its similarity is at or above threshold. Keys whose values are gone
// (expired but still indexed) are returned for pruning; undecodable values
// are skipped.
func match(keys []string, vals []interface{}, emb []float32, threshold float32) (answer string, hit bool, expired []string) {
	var (
		bestScore  float32 = -1
		bestAnswer string
	)
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, keys[i])
			continue
		}
		var e entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		if score := Cosine(emb, e.Embedding); score > bestScore {
			bestScore = score
			bestAnswer = e.Answer
		}
	}
	if bestScore >= threshold {
		return bestAnswer, true, expired
	}
	return "", false, expired
}

// Store writes a new cache entry under a fresh key with the given TTL.
// Entries are never mutated after creation.
func (c *Cache) Store(ctx context.Context, emb []float32, answer string, ttl time.Duration) error {
	data, err := json.Marshal(entry{
		Embedding: emb,
		Answer:    answer,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	key := keyPrefix + uuid.NewString()
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := c.rdb.SAdd(ctx, indexKey, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping checks store connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Cosine computes cosine similarity between two vectors. Mismatched or
// zero-magnitude vectors score 0.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func toInterfaces(keys []string) []interface{} {
	out := make([]interface{}, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}
