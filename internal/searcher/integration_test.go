package searcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biterate/socialagent/internal/embedder"
	"github.com/biterate/socialagent/internal/storage"
	"github.com/biterate/socialagent/pkg/types"
)

func TestHybrid_SQLiteKeywordOnly(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)
	ctx := context.Background()

	for _, content := range []string{"The tiramisu was excellent.", "Parking was terrible."} {
		vector, err := emb.Embed(ctx, content)
		require.NoError(t, err)
		_, err = store.Save(ctx, &types.Record{SourceType: types.SourceManual, Content: content}, vector)
		require.NoError(t, err)
	}

	query, err := emb.Embed(ctx, "tiramisu")
	require.NoError(t, err)

	s := NewSearcher(store, emb)
	results, err := s.Hybrid(ctx, "tiramisu", query, Options{TopK: 10, KeywordWeight: 1, SemanticWeight: 0})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, 1.0, results[0].FinalScore)
	for _, r := range results[1:] {
		assert.Less(t, r.FinalScore, results[0].FinalScore)
	}
}

func TestRetrieveContext_SQLite(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, _ := embedder.NewLocalProvider(nil)
	ctx := context.Background()

	vector, err := emb.Embed(ctx, "Best ramen in the city, rich broth")
	require.NoError(t, err)
	_, err = store.Save(ctx, &types.Record{
		SourceType: types.SourceNotionDatabase,
		SourceID:   "review-9",
		Content:    "Best ramen in the city, rich broth",
	}, vector)
	require.NoError(t, err)

	s := NewSearcher(store, emb)
	text, results, err := s.RetrieveContext(ctx, "ramen", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, text, "[1. notion_database_entry] (score: ")
	assert.Contains(t, text, "Best ramen in the city")
}

func TestRetrieveContext_ConversationalQuestion(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, _ := embedder.NewLocalProvider(nil)
	ctx := context.Background()

	var tiramisuID int64
	for _, content := range []string{"The tiramisu was excellent.", "Parking was terrible."} {
		vector, err := emb.Embed(ctx, content)
		require.NoError(t, err)
		id, err := store.Save(ctx, &types.Record{SourceType: types.SourceManual, Content: content}, vector)
		require.NoError(t, err)
		if tiramisuID == 0 {
			tiramisuID = id
		}
	}

	s := NewSearcher(store, emb)
	for _, question := range []string{"What's the tiramisu like?", "Luigi's tiramisu"} {
		_, results, err := s.RetrieveContext(ctx, question, 3)
		require.NoError(t, err)

		var found bool
		for _, r := range results {
			if r.ID == tiramisuID {
				found = true
				assert.Greater(t, r.KeywordScore, 0.0, question)
			}
		}
		assert.True(t, found, question)
	}
}
