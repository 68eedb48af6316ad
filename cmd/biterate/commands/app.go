package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/biterate/socialagent/internal/approval"
	"github.com/biterate/socialagent/internal/chunker"
	"github.com/biterate/socialagent/internal/config"
	"github.com/biterate/socialagent/internal/embedder"
	"github.com/biterate/socialagent/internal/indexer"
	"github.com/biterate/socialagent/internal/llm"
	"github.com/biterate/socialagent/internal/mastodon"
	"github.com/biterate/socialagent/internal/notion"
	"github.com/biterate/socialagent/internal/searcher"
	"github.com/biterate/socialagent/internal/storage"
)

// app holds the components one command invocation needs. Components are
// built on first use so commands only require the credentials they touch.
type app struct {
	cfg     *config.Config
	secrets config.Secrets
	logger  *slog.Logger
	store   *storage.SQLiteStorage

	emb    embedder.Embedder
	source *notion.Client
	idx    *indexer.Indexer
}

func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if dir := filepath.Dir(cfg.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(cfg.Database.Path, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Debug("storage opened",
		"path", cfg.Database.Path, "build_mode", storage.BuildMode, "driver", storage.DriverName)

	return &app{cfg: cfg, secrets: config.LoadSecrets(), logger: logger, store: store}, nil
}

func (a *app) Close() {
	if a.emb != nil {
		_ = a.emb.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close storage", "error", err)
	}
}

func (a *app) embedder() (embedder.Embedder, error) {
	if a.emb != nil {
		return a.emb, nil
	}
	key := a.secrets.OpenAIAPIKey
	if a.cfg.Embedding.Provider == embedder.ProviderOpenRouter {
		key = a.secrets.OpenRouterAPIKey
	}
	emb, err := embedder.New(embedder.Config{
		Provider:   a.cfg.Embedding.Provider,
		Model:      a.cfg.Embedding.Model,
		APIKey:     key,
		BaseURL:    a.cfg.Embedding.BaseURL,
		CacheSize:  a.cfg.Embedding.CacheSize,
		MaxRetries: a.cfg.Embedding.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	a.logger.Debug("embedder ready", "provider", emb.Provider(), "model", emb.Model())
	a.emb = emb
	return emb, nil
}

func (a *app) notion() (*notion.Client, error) {
	if a.source != nil {
		return a.source, nil
	}
	client, err := notion.New(a.secrets.NotionAPIKey, notion.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	a.source = client
	return client, nil
}

// indexer needs Notion only when pages or databases are configured. One
// indexer is shared so its sync lock covers every caller.
func (a *app) indexer() (*indexer.Indexer, error) {
	if a.idx != nil {
		return a.idx, nil
	}
	emb, err := a.embedder()
	if err != nil {
		return nil, err
	}
	chk, err := chunker.New(a.cfg.RAG.Chunking.Strategy, a.cfg.RAG.Chunking.Params())
	if err != nil {
		return nil, err
	}

	opts := []indexer.Option{
		indexer.WithLogger(a.logger),
		indexer.WithConfig(indexer.Config{
			PageIDs:     a.cfg.Notion.PageIDs,
			DatabaseIDs: a.cfg.Notion.DatabaseIDs,
			MaxEntries:  a.cfg.Notion.MaxReviews,
			DocsGlob:    a.cfg.Notion.DocsGlob,
			Workers:     a.cfg.Notion.FetchWorkers,
		}),
	}
	if len(a.cfg.Notion.PageIDs) > 0 || len(a.cfg.Notion.DatabaseIDs) > 0 || a.secrets.NotionAPIKey != "" {
		src, err := a.notion()
		if err != nil {
			return nil, err
		}
		opts = append(opts, indexer.WithSource(src))
	}
	a.idx = indexer.New(a.store, emb, chk, opts...)
	return a.idx, nil
}

func (a *app) searcher() (*searcher.Searcher, error) {
	emb, err := a.embedder()
	if err != nil {
		return nil, err
	}
	defaults := searcher.DefaultOptions()
	defaults.TopK = a.cfg.RAG.TopK
	defaults.KeywordWeight = a.cfg.RAG.KeywordWeight
	defaults.SemanticWeight = a.cfg.RAG.SemanticWeight
	return searcher.NewSearcher(a.store, emb,
		searcher.WithLogger(a.logger),
		searcher.WithDefaults(defaults)), nil
}

func (a *app) llm() (*llm.Client, error) {
	key := a.secrets.OpenRouterAPIKey
	if a.cfg.LLM.Provider == llm.ProviderOpenAI {
		key = a.secrets.OpenAIAPIKey
	}
	return llm.New(llm.Config{
		Provider:    a.cfg.LLM.Provider,
		Model:       a.cfg.LLM.Model,
		APIKey:      key,
		Temperature: a.cfg.LLM.Temperature,
		MaxTokens:   a.cfg.LLM.MaxTokens,
	}, llm.WithLogger(a.logger))
}

// images returns nil when image generation is disabled or unavailable
func (a *app) images() *llm.ImageGenerator {
	if !a.cfg.ImageGeneration.Enabled {
		return nil
	}
	gen, err := llm.NewImageGenerator(llm.ImageConfig{
		APIKey: a.secrets.OpenAIAPIKey,
		Model:  a.cfg.ImageGeneration.Model,
		Size:   a.cfg.ImageGeneration.Size,
	})
	if err != nil {
		a.logger.Warn("image generation disabled", "error", err)
		return nil
	}
	return gen
}

func (a *app) mastodon() (*mastodon.Client, error) {
	return mastodon.New(a.secrets.MastodonServer, a.secrets.MastodonAccessToken,
		mastodon.WithLogger(a.logger),
		mastodon.WithVisibility(a.cfg.Mastodon.Visibility))
}

// approver returns nil when Telegram approval is disabled or not configured
func (a *app) approver() *approval.Gate {
	if !a.cfg.Telegram.Enabled {
		return nil
	}
	tg, err := approval.NewTelegram(a.secrets.TelegramBotToken, a.secrets.TelegramChatID, a.logger)
	if err != nil {
		a.logger.Warn("telegram approval disabled, continuing without review", "error", err)
		return nil
	}
	return approval.NewGate(tg,
		approval.WithTimeout(a.cfg.Telegram.Timeout),
		approval.WithLogger(a.logger))
}
