package cache

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

func entryValue(t *testing.T, emb []float32, answer string) string {
	t.Helper()
	data, err := json.Marshal(entry{Embedding: emb, Answer: answer, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestMatchHitAtThreshold(t *testing.T) {
	keys := []string{"semcache:a"}
	vals := []interface{}{entryValue(t, []float32{1, 0}, "cached answer")}

	// An identical vector scores exactly 1; the gate is inclusive.
	answer, hit, _ := match(keys, vals, []float32{1, 0}, 1.0)
	if !hit {
		t.Fatal("expected a hit at exactly the threshold")
	}
	if answer != "cached answer" {
		t.Errorf("unexpected answer %q", answer)
	}
}

func TestMatchMissBelowThreshold(t *testing.T) {
	keys := []string{"semcache:a"}
	// cos(45°) ≈ 0.707, below a 0.92 threshold.
	vals := []interface{}{entryValue(t, []float32{1, 1}, "too far")}

	answer, hit, _ := match(keys, vals, []float32{1, 0}, 0.92)
	if hit {
		t.Fatalf("expected a miss below the threshold, got %q", answer)
	}
	if answer != "" {
		t.Errorf("miss must not leak an answer, got %q", answer)
	}
}

func TestMatchSelectsBestCandidate(t *testing.T) {
	keys := []string{"semcache:a", "semcache:b", "semcache:c"}
	vals := []interface{}{
		entryValue(t, []float32{1, 1}, "distant"),
		entryValue(t, []float32{1, 0}, "exact"),
		entryValue(t, []float32{0.9, 0.1}, "close"),
	}

	answer, hit, _ := match(keys, vals, []float32{1, 0}, 0.9)
	if !hit {
		t.Fatal("expected a hit")
	}
	if answer != "exact" {
		t.Errorf("expected the most similar candidate to win, got %q", answer)
	}
}

func TestMatchReportsExpiredKeys(t *testing.T) {
	keys := []string{"semcache:live", "semcache:gone", "semcache:gone2"}
	vals := []interface{}{
		entryValue(t, []float32{1, 0}, "live"),
		nil, // value expired, key still indexed
		nil,
	}

	answer, hit, expired := match(keys, vals, []float32{1, 0}, 0.9)
	if !hit || answer != "live" {
		t.Errorf("expired entries must not block a live hit, got hit=%v answer=%q", hit, answer)
	}
	if len(expired) != 2 || expired[0] != "semcache:gone" || expired[1] != "semcache:gone2" {
		t.Errorf("expected the two dangling keys flagged for pruning, got %v", expired)
	}
}

func TestMatchSkipsUndecodableValues(t *testing.T) {
	keys := []string{"semcache:bad", "semcache:good"}
	vals := []interface{}{
		"not json",
		entryValue(t, []float32{1, 0}, "good"),
	}

	answer, hit, expired := match(keys, vals, []float32{1, 0}, 0.9)
	if !hit || answer != "good" {
		t.Errorf("undecodable entries must not block a hit, got hit=%v answer=%q", hit, answer)
	}
	if len(expired) != 0 {
		t.Errorf("undecodable values are not expired, got %v", expired)
	}
}

func TestLookupUnreachableStore(t *testing.T) {
	// Nothing listens on this port; every command fails immediately.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()
	c := New(rdb)

	answer, hit, err := c.Lookup(context.Background(), []float32{1, 0}, 0.9)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if hit || answer != "" {
		t.Errorf("an unavailable store must not report a hit, got hit=%v answer=%q", hit, answer)
	}
}

func TestStoreUnreachableStore(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()
	c := New(rdb)

	err := c.Store(context.Background(), []float32{1, 0}, "answer", time.Hour)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCosineIdenticalVectors(t *testing.T) {
	v := []float32{0.3, 0.5, 0.2}
	if got := Cosine(v, v); math.Abs(float64(got)-1) > 1e-6 {
		t.Errorf("expected similarity 1, got %v", got)
	}
}

func TestCosineOrthogonalVectors(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}
	if got := Cosine(a, b); got != 0 {
		t.Errorf("expected similarity 0, got %v", got)
	}
}

func TestCosineOppositeVectors(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	if got := Cosine(a, b); math.Abs(float64(got)+1) > 1e-6 {
		t.Errorf("expected similarity -1, got %v", got)
	}
}

func TestCosineScaleInvariant(t *testing.T) {
	a := []float32{0.2, 0.7, 0.1}
	b := []float32{0.4, 1.4, 0.2}
	if got := Cosine(a, b); math.Abs(float64(got)-1) > 1e-6 {
		t.Errorf("expected similarity 1 for scaled vector, got %v", got)
	}
}

func TestCosineDegenerateInputs(t *testing.T) {
	if got := Cosine([]float32{1, 2}, []float32{1, 2, 3}); got != 0 {
		t.Errorf("mismatched lengths: expected 0, got %v", got)
	}
	if got := Cosine(nil, nil); got != 0 {
		t.Errorf("empty vectors: expected 0, got %v", got)
	}
	if got := Cosine([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Errorf("zero vector: expected 0, got %v", got)
	}
}
