package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"sort"
	"strings"
	"unicode"

	openai "github.com/sashabaranov/go-openai"
)

// Provider configuration
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderLocal      = "local"

	// Default models
	DefaultOpenAIModel = string(openai.SmallEmbedding3)
	DefaultLocalModel  = "feature-hash-384"

	// OpenRouterBaseURL serves the OpenAI-compatible API on OpenRouter
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	// Batch limits
	MaxBatchSize = 100

	// Retry configuration
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// OpenAIProvider implements Embedder on any OpenAI-compatible embeddings
// endpoint. Vectors are requested at Dimension components.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	name   string
	retry  RetryConfig
	cache  *Cache
}

// OpenAIOptions configures NewOpenAIProvider
type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	// Name is reported by Provider(); defaults to "openai"
	Name  string
	Retry RetryConfig
	Cache *Cache
}

// NewOpenAIProvider creates an embedder backed by go-openai
func NewOpenAIProvider(opts OpenAIOptions) (*OpenAIProvider, error) {
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}
	if opts.Name == "" {
		opts.Name = ProviderOpenAI
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
		name:   opts.Name,
		retry:  opts.Retry,
		cache:  opts.Cache,
	}, nil
}

func (o *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, o, text)
}

func (o *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}
	return embedWithCache(ctx, o.cache, Dimension, texts, o.compute)
}

func (o *OpenAIProvider) compute(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := retryWithBackoff(ctx, o.retry, func() ([][]float32, error) {
		return o.callAPI(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	return vectors, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      texts,
		Model:      openai.EmbeddingModel(o.model),
		Dimensions: Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("api returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	// the API reports each vector's input position
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

func (o *OpenAIProvider) Dimension() int {
	return Dimension
}

func (o *OpenAIProvider) Provider() string {
	return o.name
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	return nil
}

// LocalProvider embeds text offline by hashing word unigrams and bigrams
// into Dimension signed buckets. Texts that share words land near each
// other, which is enough for development and tests without an API key.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates the offline embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{cache: cache}, nil
}

func (l *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, l, text)
}

func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedWithCache(ctx, l.cache, Dimension, texts, func(ctx context.Context, pending []string) ([][]float32, error) {
		vectors := make([][]float32, len(pending))
		for i, text := range pending {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			vectors[i] = hashEmbedding(text)
		}
		return vectors, nil
	})
}

func (l *LocalProvider) Dimension() int {
	return Dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return DefaultLocalModel
}

func (l *LocalProvider) Close() error {
	return nil
}

// hashEmbedding builds a unit vector from hashed features. Text without
// any letters or digits maps to the zero vector.
func hashEmbedding(text string) []float32 {
	vector := make([]float32, Dimension)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		addFeature(vector, w, 1.0)
		if i > 0 {
			addFeature(vector, words[i-1]+" "+w, 0.5)
		}
	}

	return NormalizeVector(vector)
}

func addFeature(vector []float32, feature string, weight float32) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum32()

	idx := int(sum % uint32(len(vector)))
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	vector[idx] += weight
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
