package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biterate/socialagent/internal/chunker"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, string(chunker.StrategyParagraph), cfg.RAG.Chunking.Strategy)
	assert.Equal(t, 0.5, cfg.RAG.KeywordWeight)
	assert.True(t, cfg.Mastodon.DryRun)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().RAG, cfg.RAG)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/kb.db
notion:
  page_ids: ["abc", "def"]
  database_ids: ["reviews"]
  max_reviews: 3
rag:
  chunking:
    strategy: markdown_header
  top_k: 7
  keyword_weight: 0.8
  semantic_weight: 0.2
telegram:
  enabled: true
  timeout: 90s
listener:
  poll_interval: 2m
watcher:
  enabled: true
  poll_interval: 10m
  auto_post: false
api:
  addr: 127.0.0.1:9000
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/kb.db", cfg.Database.Path)
	assert.Equal(t, []string{"abc", "def"}, cfg.Notion.PageIDs)
	assert.Equal(t, 3, cfg.Notion.MaxReviews)
	assert.Equal(t, "markdown_header", cfg.RAG.Chunking.Strategy)
	assert.Equal(t, chunker.DefaultChunkSize, cfg.RAG.Chunking.ChunkSize, "unset keys keep defaults")
	assert.Equal(t, 7, cfg.RAG.TopK)
	assert.Equal(t, 0.8, cfg.RAG.KeywordWeight)
	assert.Equal(t, 90*time.Second, cfg.Telegram.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Listener.PollInterval)
	assert.True(t, cfg.Watcher.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Watcher.PollInterval)
	assert.False(t, cfg.Watcher.AutoPost)
	assert.Equal(t, "127.0.0.1:9000", cfg.API.Addr)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, []string{"#BiteRate", "#FoodReview", "#Foodie"}, cfg.PostGeneration.Hashtags)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown strategy", "rag:\n  chunking:\n    strategy: semantic_magic\n"},
		{"overlap too large", "rag:\n  chunking:\n    strategy: fixed_chars\n    chunk_size: 100\n    chunk_overlap: 100\n"},
		{"bad llm provider", "llm:\n  provider: anthropic\n"},
		{"negative weight", "rag:\n  keyword_weight: -1\n"},
		{"short max length", "post_generation:\n  max_length: 40\n"},
		{"bad visibility", "mastodon:\n  visibility: everyone\n"},
		{"bad level", "log:\n  level: chatty\n"},
		{"zero watcher interval", "watcher:\n  poll_interval: 0s\n"},
		{"empty api addr", "api:\n  addr: \"\"\n"},
		{"malformed yaml", "rag: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv(EnvNotionAPIKey, "secret_n")
	t.Setenv(EnvTelegramChatID, "12345")
	t.Setenv(EnvAPIToken, "tok")

	s := LoadSecrets()
	assert.Equal(t, "tok", s.APIToken)
	assert.Equal(t, "secret_n", s.NotionAPIKey)
	assert.Equal(t, "12345", s.TelegramChatID)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "data/x.db"), expandPath("~/data/x.db"))
	assert.Equal(t, "data/x.db", expandPath("data/x.db"))
}
