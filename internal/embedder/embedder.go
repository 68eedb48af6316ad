package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Dimension is the vector length every provider produces
const Dimension = 384

// Common errors
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrProviderFailed      = errors.New("embedding provider failed")
	ErrUnsupportedProvider = errors.New("unsupported embedding provider")
	ErrBatchTooLarge       = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled   = errors.New("no embedding provider configured")
)

// Embedder turns text into fixed-length vectors
type Embedder interface {
	// Embed returns the vector for one text. Blank text yields a zero vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension for this provider
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// Cache provides in-memory LRU caching of vectors by content hash
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of the cached vector so callers cannot mutate the entry
func (c *Cache) Get(hash string) ([]float32, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a vector
func (c *Cache) Set(hash string, vector []float32) {
	c.cache.Add(hash, vector)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// computeFunc embeds texts that are all non-blank and uncached
type computeFunc func(ctx context.Context, texts []string) ([][]float32, error)

// embedWithCache fills blank slots with zero vectors, serves cached vectors,
// and sends only the remaining texts to compute. The result is aligned with
// texts.
func embedWithCache(ctx context.Context, cache *Cache, dim int, texts []string, compute computeFunc) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var (
		pending []string
		slots   []int
	)
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			out[i] = make([]float32, dim)
			continue
		}
		if cache != nil {
			if v, ok := cache.Get(ComputeHash(text)); ok {
				out[i] = v
				continue
			}
		}
		pending = append(pending, text)
		slots = append(slots, i)
	}

	if len(pending) == 0 {
		return out, nil
	}

	vectors, err := compute(ctx, pending)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(pending) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrProviderFailed, len(vectors), len(pending))
	}

	for j, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrProviderFailed, j, len(v), dim)
		}
		out[slots[j]] = v
		if cache != nil {
			stored := make([]float32, len(v))
			copy(stored, v)
			cache.Set(ComputeHash(pending[j]), stored)
		}
	}
	return out, nil
}

// embedOne runs a single text through EmbedBatch
func embedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
