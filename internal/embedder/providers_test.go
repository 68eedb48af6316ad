package embedder

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestLocalProvider(t *testing.T) {
	p, err := NewLocalProvider(NewCache(10))
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, Dimension, p.Dimension())
	assert.Equal(t, ProviderLocal, p.Provider())
	assert.Equal(t, DefaultLocalModel, p.Model())

	v1, err := p.Embed(ctx, "The tiramisu was excellent")
	require.NoError(t, err)
	require.Len(t, v1, Dimension)
	assert.InDelta(t, 1.0, norm(v1), 1e-5)

	v2, err := p.Embed(ctx, "the TIRAMISU was excellent!")
	require.NoError(t, err)
	assert.Equal(t, v1, v2, "case and punctuation do not change the vector")

	related, err := p.Embed(ctx, "excellent tiramisu dessert")
	require.NoError(t, err)
	unrelated, err := p.Embed(ctx, "parking garage closed on mondays")
	require.NoError(t, err)
	assert.Greater(t, dot(v1, related), dot(v1, unrelated))
}

func TestLocalProvider_BlankAndSymbols(t *testing.T) {
	p, _ := NewLocalProvider(nil)

	for _, text := range []string{"", "   ", "?!..."} {
		v, err := p.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Len(t, v, Dimension)
		assert.Zero(t, norm(v), "text %q", text)
	}
}

func TestLocalProvider_BatchAligned(t *testing.T) {
	p, _ := NewLocalProvider(nil)
	ctx := context.Background()

	texts := []string{"pasta", "", "pizza"}
	batch, err := p.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := p.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}

// embeddingServer answers OpenAI-style embedding requests with vectors whose
// first component is the input's position. Data is returned in reverse order
// to exercise index sorting.
func embeddingServer(t *testing.T, calls *atomic.Int32, status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"unavailable","type":"server_error"}}`))
			return
		}

		var req struct {
			Input      []string `json:"input"`
			Model      string   `json:"model"`
			Dimensions int      `json:"dimensions"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, Dimension, req.Dimensions)

		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			v := make([]float32, Dimension)
			v[0] = float32(i + 1)
			data = append(data, map[string]any{"object": "embedding", "index": i, "embedding": v})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
		})
	}))
}

func TestOpenAIProvider(t *testing.T) {
	var calls atomic.Int32
	server := embeddingServer(t, &calls, http.StatusOK)
	defer server.Close()

	p, err := NewOpenAIProvider(OpenAIOptions{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
		Cache:   NewCache(10),
	})
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, ProviderOpenAI, p.Provider())
	assert.Equal(t, DefaultOpenAIModel, p.Model())

	vectors, err := p.EmbedBatch(ctx, []string{"first", "", "third"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, make([]float32, Dimension), vectors[1])
	assert.Equal(t, float32(2), vectors[2][0])
	assert.Equal(t, int32(1), calls.Load())

	// cached text does not hit the server again
	v, err := p.Embed(ctx, "third")
	require.NoError(t, err)
	assert.Equal(t, float32(2), v[0])
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIProvider_Failure(t *testing.T) {
	var calls atomic.Int32
	server := embeddingServer(t, &calls, http.StatusServiceUnavailable)
	defer server.Close()

	p, err := NewOpenAIProvider(OpenAIOptions{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
		Retry:   fastRetry(2),
	})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAIProvider_BatchTooLarge(t *testing.T) {
	p, err := NewOpenAIProvider(OpenAIOptions{APIKey: "test-key"})
	require.NoError(t, err)

	_, err = p.EmbedBatch(context.Background(), make([]string, MaxBatchSize+1))
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	t.Setenv(EnvOpenAIAPIKey, "")
	_, err := NewOpenAIProvider(OpenAIOptions{})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}
