package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Providers
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"

	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is a free OpenRouter model
	DefaultModel       = "z-ai/glm-4.5-air:free"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500

	// replyMaxTokens bounds comment replies
	replyMaxTokens = 200
)

// OpenRouter attribution headers
const (
	openRouterReferer = "https://github.com/biterate/socialagent"
	openRouterTitle   = "BiteRate Social Media Agent"
)

var (
	// ErrMissingAPIKey is returned when no key is configured for the provider
	ErrMissingAPIKey = errors.New("llm: api key is required")
	// ErrUnsupportedProvider is returned for a provider other than openai or openrouter
	ErrUnsupportedProvider = errors.New("llm: unsupported provider")
	// ErrEmptyCompletion is returned when the model answers with no text
	ErrEmptyCompletion = errors.New("llm: empty completion")
)

// Config selects the chat provider and sampling settings
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
}

// Client drafts posts and replies through an OpenAI-compatible chat API
type Client struct {
	api         *openai.Client
	provider    string
	model       string
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a chat client. OpenRouter reads OPENROUTER_API_KEY and falls
// back to OPENAI_API_KEY; OpenAI reads OPENAI_API_KEY.
func New(cfg Config, opts ...Option) (*Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOpenRouter
	}

	apiKey := cfg.APIKey
	var clientCfg openai.ClientConfig
	switch provider {
	case ProviderOpenRouter:
		if apiKey == "" {
			apiKey = firstEnv("OPENROUTER_API_KEY", "OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("%w: set OPENROUTER_API_KEY or OPENAI_API_KEY", ErrMissingAPIKey)
		}
		clientCfg = openai.DefaultConfig(apiKey)
		clientCfg.BaseURL = OpenRouterBaseURL
		clientCfg.HTTPClient = &http.Client{Transport: &headerTransport{
			base: http.DefaultTransport,
			headers: map[string]string{
				"HTTP-Referer": openRouterReferer,
				"X-Title":      openRouterTitle,
			},
		}}
	case ProviderOpenAI:
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingAPIKey)
		}
		clientCfg = openai.DefaultConfig(apiKey)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	c := &Client{
		api:         openai.NewClientWithConfig(clientCfg),
		provider:    provider,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      slog.Default(),
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Provider returns the configured provider name
func (c *Client) Provider() string { return c.provider }

// Model returns the chat model name
func (c *Client) Model() string { return c.model }

// complete sends one system and one user message and returns the trimmed answer
func (c *Client) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	c.logger.Debug("chat completion", "model", c.model, "chars", len(text))
	return text, nil
}

// headerTransport adds fixed headers to every request
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
