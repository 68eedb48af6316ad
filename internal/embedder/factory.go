package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by the factory
const (
	EnvProvider         = "BITERATE_EMBEDDING_PROVIDER"
	EnvOpenAIAPIKey     = "OPENAI_API_KEY"
	EnvOpenRouterAPIKey = "OPENROUTER_API_KEY"
)

// Config holds embedder configuration
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	CacheSize  int
	MaxRetries int
}

// New creates an embedder with explicit configuration. An empty provider
// is resolved with DetectProvider.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = DetectProvider()
	}

	switch provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(OpenAIOptions{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Retry:   retry,
			Cache:   cache,
		})
	case ProviderOpenRouter:
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv(EnvOpenRouterAPIKey)
		}
		if key == "" {
			return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenRouterAPIKey)
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = OpenRouterBaseURL
		}
		model := cfg.Model
		if model == "" {
			model = "openai/" + DefaultOpenAIModel
		}
		return NewOpenAIProvider(OpenAIOptions{
			APIKey:  key,
			BaseURL: baseURL,
			Model:   model,
			Name:    ProviderOpenRouter,
			Retry:   retry,
			Cache:   cache,
		})
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// NewFromEnv creates an embedder from environment variables alone
func NewFromEnv() (Embedder, error) {
	return New(Config{CacheSize: 10000})
}

// DetectProvider returns the provider that would be used based on current environment
// Priority:
// 1. BITERATE_EMBEDDING_PROVIDER (openai, openrouter, local)
// 2. Check for API keys: OPENAI_API_KEY, OPENROUTER_API_KEY
// 3. Default to local if no API keys found
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	if os.Getenv(EnvOpenRouterAPIKey) != "" {
		return ProviderOpenRouter
	}

	return ProviderLocal
}
