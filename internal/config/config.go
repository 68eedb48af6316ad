package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/biterate/socialagent/internal/chunker"
)

// DefaultPath is used when no --config flag is given
const DefaultPath = "config.yaml"

// Config holds the application configuration
type Config struct {
	Database        DatabaseConfig        `yaml:"database"`
	Notion          NotionConfig          `yaml:"notion"`
	RAG             RAGConfig             `yaml:"rag"`
	Embedding       EmbeddingConfig       `yaml:"embedding"`
	LLM             LLMConfig             `yaml:"llm"`
	ImageGeneration ImageGenerationConfig `yaml:"image_generation"`
	PostGeneration  PostGenerationConfig  `yaml:"post_generation"`
	Mastodon        MastodonConfig        `yaml:"mastodon"`
	Telegram        TelegramConfig        `yaml:"telegram"`
	Listener        ListenerConfig        `yaml:"listener"`
	Watcher         WatcherConfig         `yaml:"watcher"`
	API             APIConfig             `yaml:"api"`
	Schedule        ScheduleConfig        `yaml:"schedule"`
	Log             LogConfig             `yaml:"log"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// NotionConfig lists the workspace content to read
type NotionConfig struct {
	PageIDs     []string `yaml:"page_ids"`
	DatabaseIDs []string `yaml:"database_ids"`
	MaxReviews  int      `yaml:"max_reviews"`
	// DocsGlob adds local markdown files to the knowledge base
	DocsGlob string `yaml:"docs_glob,omitempty"`
	// FetchWorkers bounds concurrent page fetches during sync
	FetchWorkers int `yaml:"fetch_workers,omitempty"`
}

// ChunkingConfig selects the chunking strategy and its sizes
type ChunkingConfig struct {
	Strategy          string `yaml:"strategy"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
}

// Params converts the section into chunker parameters
func (c ChunkingConfig) Params() chunker.Params {
	return chunker.Params{
		ChunkSize:         c.ChunkSize,
		ChunkOverlap:      c.ChunkOverlap,
		SentencesPerChunk: c.SentencesPerChunk,
	}
}

// RAGConfig holds retrieval settings
type RAGConfig struct {
	Chunking       ChunkingConfig `yaml:"chunking"`
	TopK           int            `yaml:"top_k"`
	KeywordWeight  float64        `yaml:"keyword_weight"`
	SemanticWeight float64        `yaml:"semantic_weight"`
}

// EmbeddingConfig holds embedding service configuration
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // "openai" | "openrouter" | "local"
	Model      string `yaml:"model,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	CacheSize  int    `yaml:"cache_size"`
	MaxRetries int    `yaml:"max_retries"`
}

// LLMConfig holds chat model configuration
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "openai" | "openrouter"
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// ImageGenerationConfig controls the optional post image
type ImageGenerationConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Model       string `yaml:"model"`
	TriggerWord string `yaml:"trigger_word"`
	Size        string `yaml:"size"`
}

// PostGenerationConfig shapes the drafted post
type PostGenerationConfig struct {
	Tone            string   `yaml:"tone"`
	MaxLength       int      `yaml:"max_length"`
	IncludeHashtags bool     `yaml:"include_hashtags"`
	Hashtags        []string `yaml:"hashtags"`
	Guidelines      string   `yaml:"guidelines,omitempty"`
}

// MastodonConfig holds publishing settings. Credentials come from the
// environment.
type MastodonConfig struct {
	Visibility string `yaml:"visibility"`
	DryRun     bool   `yaml:"dry_run"`
}

// TelegramConfig enables the human approval gate
type TelegramConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// ListenerConfig controls the reply loop
type ListenerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	RepliesPerMinute int           `yaml:"replies_per_minute"`
	MaxReplyLength   int           `yaml:"max_reply_length"`
	AutoReply        bool          `yaml:"auto_reply"`
}

// WatcherConfig controls the workspace page watcher
type WatcherConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
	AutoPost     bool          `yaml:"auto_post"`
}

// APIConfig holds the HTTP API listen address. The optional bearer token
// comes from the environment.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// ScheduleConfig holds the cron expression for scheduled runs
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// Secrets are read from the environment, never from the YAML file
type Secrets struct {
	NotionAPIKey        string
	OpenAIAPIKey        string
	OpenRouterAPIKey    string
	MastodonServer      string
	MastodonAccessToken string
	TelegramBotToken    string
	TelegramChatID      string
	APIToken            string
}

// Environment variable names for Secrets
const (
	EnvNotionAPIKey        = "NOTION_API_KEY"
	EnvOpenAIAPIKey        = "OPENAI_API_KEY"
	EnvOpenRouterAPIKey    = "OPENROUTER_API_KEY"
	EnvMastodonServer      = "MASTODON_API_BASE_URL"
	EnvMastodonAccessToken = "MASTODON_ACCESS_TOKEN"
	EnvTelegramBotToken    = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID      = "TELEGRAM_CHAT_ID"
	EnvAPIToken            = "BITERATE_API_TOKEN"
)

// Default returns the configuration used when the file is silent
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: filepath.Join("data", "biterate.db")},
		Notion: NotionConfig{
			MaxReviews:   10,
			FetchWorkers: 4,
		},
		RAG: RAGConfig{
			Chunking: ChunkingConfig{
				Strategy:          string(chunker.StrategyParagraph),
				ChunkSize:         chunker.DefaultChunkSize,
				ChunkOverlap:      chunker.DefaultChunkOverlap,
				SentencesPerChunk: chunker.DefaultSentencesPerChunk,
			},
			TopK:           5,
			KeywordWeight:  0.5,
			SemanticWeight: 0.5,
		},
		Embedding: EmbeddingConfig{
			CacheSize: 10000,
		},
		LLM: LLMConfig{
			Provider:    "openrouter",
			Model:       "z-ai/glm-4.5-air:free",
			Temperature: 0.7,
			MaxTokens:   500,
		},
		ImageGeneration: ImageGenerationConfig{
			Model:       "dall-e-3",
			TriggerWord: "P3@NUT",
			Size:        "1024x1024",
		},
		PostGeneration: PostGenerationConfig{
			Tone:            "friendly and engaging",
			MaxLength:       500,
			IncludeHashtags: true,
			Hashtags:        []string{"#BiteRate", "#FoodReview", "#Foodie"},
		},
		Mastodon: MastodonConfig{
			Visibility: "public",
			DryRun:     true,
		},
		Telegram: TelegramConfig{
			Timeout: 5 * time.Minute,
		},
		Listener: ListenerConfig{
			PollInterval:     time.Minute,
			RepliesPerMinute: 5,
			MaxReplyLength:   200,
			AutoReply:        true,
		},
		Watcher: WatcherConfig{
			PollInterval: 5 * time.Minute,
			AutoPost:     true,
		},
		API:      APIConfig{Addr: ":8000"},
		Schedule: ScheduleConfig{Cron: "0 12 * * *"},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. A missing file is not an error: the
// defaults are returned. A .env file next to the working directory is
// loaded into the environment first when present.
func Load(path string) (*Config, error) {
	loadDotEnv()

	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(expandPath(path))
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("config file not found, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Database.Path = expandPath(cfg.Database.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}
}

// LoadSecrets reads credentials from the environment
func LoadSecrets() Secrets {
	return Secrets{
		NotionAPIKey:        os.Getenv(EnvNotionAPIKey),
		OpenAIAPIKey:        os.Getenv(EnvOpenAIAPIKey),
		OpenRouterAPIKey:    os.Getenv(EnvOpenRouterAPIKey),
		MastodonServer:      os.Getenv(EnvMastodonServer),
		MastodonAccessToken: os.Getenv(EnvMastodonAccessToken),
		TelegramBotToken:    os.Getenv(EnvTelegramBotToken),
		TelegramChatID:      os.Getenv(EnvTelegramChatID),
		APIToken:            os.Getenv(EnvAPIToken),
	}
}

// Validate checks the configuration for values the components cannot use
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if _, err := chunker.New(c.RAG.Chunking.Strategy, c.RAG.Chunking.Params()); err != nil {
		return fmt.Errorf("rag.chunking: %w", err)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be positive")
	}
	if c.RAG.KeywordWeight < 0 || c.RAG.SemanticWeight < 0 {
		return fmt.Errorf("rag weights must not be negative")
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "openrouter":
	default:
		return fmt.Errorf("llm.provider must be openai or openrouter, got %q", c.LLM.Provider)
	}

	if c.PostGeneration.MaxLength <= 60 {
		return fmt.Errorf("post_generation.max_length must be greater than 60")
	}

	switch c.Mastodon.Visibility {
	case "public", "unlisted", "private", "direct":
	default:
		return fmt.Errorf("mastodon.visibility %q is not recognized", c.Mastodon.Visibility)
	}

	if c.Telegram.Enabled && c.Telegram.Timeout <= 0 {
		return fmt.Errorf("telegram.timeout must be positive")
	}
	if c.Listener.PollInterval <= 0 {
		return fmt.Errorf("listener.poll_interval must be positive")
	}
	if c.Listener.RepliesPerMinute <= 0 {
		return fmt.Errorf("listener.replies_per_minute must be positive")
	}
	if c.Watcher.PollInterval <= 0 {
		return fmt.Errorf("watcher.poll_interval must be positive")
	}
	if c.API.Addr == "" {
		return fmt.Errorf("api.addr is required")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not recognized", c.Log.Level)
	}

	return nil
}

// SlogLevel maps log.level onto a slog level
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// expandPath expands a leading ~ to the user's home directory
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
