package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biterate/socialagent/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

// unitVector returns a 384-d vector with weight on the given axes
func unitVector(axes ...int) []float32 {
	v := make([]float32, EmbeddingDimension)
	for _, a := range axes {
		v[a] = 1
	}
	return v
}

func saveRecord(t *testing.T, s *SQLiteStorage, content, sourceID string, embedding []float32) int64 {
	t.Helper()
	id, err := s.Save(context.Background(), &types.Record{
		SourceType: types.SourceNotionPage,
		SourceID:   sourceID,
		Content:    content,
		Metadata:   map[string]any{"strategy": "paragraph", "chunk_index": 0},
	}, embedding)
	require.NoError(t, err)
	return id
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)
}

func TestSave_AssignsIncreasingIDs(t *testing.T) {
	s := setupTestDB(t)

	id1 := saveRecord(t, s, "The tiramisu was excellent.", "review-1", unitVector(0))
	id2 := saveRecord(t, s, "Parking was terrible.", "review-2", unitVector(1))

	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSave_RejectsInvalidRecord(t *testing.T) {
	s := setupTestDB(t)

	_, err := s.Save(context.Background(), &types.Record{Content: "no type"}, nil)
	assert.ErrorIs(t, err, types.ErrMissingSourceType)
}

func TestSave_EmptyContentRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for _, content := range []string{"", "   "} {
		id, err := s.Save(ctx, &types.Record{SourceType: types.SourceManual, Content: content}, make([]float32, EmbeddingDimension))
		require.NoError(t, err)
		require.Positive(t, id)

		records, err := s.GetMetadata(ctx, []int64{id})
		require.NoError(t, err)
		require.Contains(t, records, id)
		assert.Equal(t, content, records[id].Content)
	}
}

func TestSave_WrongDimensionKeepsMetadata(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	id := saveRecord(t, s, "short vector", "doc", []float32{1, 2, 3})

	records, err := s.GetMetadata(ctx, []int64{id})
	require.NoError(t, err)
	require.Contains(t, records, id)

	status, err := s.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.RecordsCount)
	assert.Equal(t, 0, status.VectorsCount)
}

func TestGetMetadata_RoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	content := "  Exact content, with spacing.\n"
	id, err := s.Save(ctx, &types.Record{SourceType: types.SourceManual, Content: content}, make([]float32, EmbeddingDimension))
	require.NoError(t, err)

	records, err := s.GetMetadata(ctx, []int64{id, 999})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[id]
	assert.Equal(t, content, rec.Content)
	assert.Equal(t, types.SourceManual, rec.SourceType)
	assert.Empty(t, rec.SourceID)
	assert.Nil(t, rec.Metadata)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestGetMetadata_DecodesMetadata(t *testing.T) {
	s := setupTestDB(t)
	id := saveRecord(t, s, "chunk", "doc-1", nil)

	records, err := s.GetMetadata(context.Background(), []int64{id})
	require.NoError(t, err)
	assert.Equal(t, "paragraph", records[id].Metadata["strategy"])
	assert.Equal(t, float64(0), records[id].Metadata["chunk_index"])
	assert.Equal(t, "doc-1", records[id].SourceID)
}

func TestGetMetadata_Empty(t *testing.T) {
	s := setupTestDB(t)
	records, err := s.GetMetadata(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestKeywordSearch(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	id1 := saveRecord(t, s, "The tiramisu was excellent.", "review-1", nil)
	id2 := saveRecord(t, s, "Parking was terrible.", "review-2", nil)
	id3 := saveRecord(t, s, "Tiramisu, tiramisu and more tiramisu.", "review-3", nil)

	results, err := s.KeywordSearch(ctx, "tiramisu", 100)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Contains(t, results, id1)
	assert.Contains(t, results, id3)
	assert.NotContains(t, results, id2)

	for _, score := range results {
		assert.Less(t, score, 0.0, "bm25 scores are negative")
	}
	assert.Less(t, results[id3], results[id1], "more occurrences score more negative")
}

func TestKeywordSearch_NoMatchAndMalformed(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	saveRecord(t, s, "The tiramisu was excellent.", "review-1", nil)

	queries := []string{"lasagna", "", "   ", `"unterminated`, "AND OR", "tiramisu?"}
	for _, q := range queries {
		results, err := s.KeywordSearch(ctx, q, 100)
		assert.NoError(t, err, "query %q", q)
		assert.NotNil(t, results)
		if q != "tiramisu?" {
			assert.Empty(t, results, "query %q", q)
		}
	}
}

func TestKeywordSearch_Limit(t *testing.T) {
	s := setupTestDB(t)
	for i := 0; i < 10; i++ {
		saveRecord(t, s, fmt.Sprintf("pasta dish number %d", i), "menu", nil)
	}
	results, err := s.KeywordSearch(context.Background(), "pasta", 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestKeywordSearch_MatchAnyTerms(t *testing.T) {
	s := setupTestDB(t)
	id := saveRecord(t, s, "The tiramisu was excellent.", "review-1", nil)

	results, err := s.KeywordSearch(context.Background(), MatchAnyTerms("Was the tiramisu good?!"), 10)
	require.NoError(t, err)
	assert.Contains(t, results, id)
}

func TestSemanticSearch(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	near := saveRecord(t, s, "near", "a", unitVector(0))
	mid := saveRecord(t, s, "mid", "b", unitVector(0, 1))
	far := saveRecord(t, s, "far", "c", unitVector(2))

	results, err := s.SemanticSearch(ctx, unitVector(0), 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.InDelta(t, 0.0, results[near], 1e-6)
	assert.InDelta(t, 1-1/1.4142135, results[mid], 1e-4)
	assert.InDelta(t, 1.0, results[far], 1e-6)
	for _, d := range results {
		assert.GreaterOrEqual(t, d, 0.0)
		assert.LessOrEqual(t, d, 2.0)
	}

	limited, err := s.SemanticSearch(ctx, unitVector(0), 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Contains(t, limited, near)
	assert.Contains(t, limited, mid)
}

func TestSemanticSearch_DimensionMismatch(t *testing.T) {
	s := setupTestDB(t)
	saveRecord(t, s, "near", "a", unitVector(0))

	results, err := s.SemanticSearch(context.Background(), []float32{1, 0, 0}, 10)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestFullTextMirrorStaysInSync(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	saveRecord(t, s, "menu soup", "menu", unitVector(0))
	saveRecord(t, s, "menu cake", "menu", unitVector(1))
	keep := saveRecord(t, s, "about us", "about", unitVector(2))

	var ftsCount int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings_fts").Scan(&ftsCount))
	assert.Equal(t, 3, ftsCount)

	deleted, err := s.DeleteBySource(ctx, "menu")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings_fts").Scan(&ftsCount))
	assert.Equal(t, 1, ftsCount)

	results, err := s.KeywordSearch(ctx, "menu", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	vectors, err := s.SemanticSearch(ctx, unitVector(0), 10)
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{keep: 1.0}, vectors)

	status, err := s.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Health.FTSIndexBuilt)
	assert.Equal(t, 1, status.VectorsCount)
}

func TestDeleteBySource_Unknown(t *testing.T) {
	s := setupTestDB(t)
	saveRecord(t, s, "kept", "doc", nil)

	deleted, err := s.DeleteBySource(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestReset(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	saveRecord(t, s, "one", "a", unitVector(0))
	saveRecord(t, s, "two", "b", unitVector(1))

	require.NoError(t, s.Reset(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	results, err := s.KeywordSearch(ctx, "one", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	vectors, err := s.SemanticSearch(ctx, unitVector(0), 10)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestGetStatus(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	saveRecord(t, s, "one", "a", unitVector(0))
	saveRecord(t, s, "two", "a", unitVector(1))
	_, err := s.Save(ctx, &types.Record{SourceType: types.SourceLocalFile, SourceID: "b", Content: "three"}, nil)
	require.NoError(t, err)

	status, err := s.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.RecordsCount)
	assert.Equal(t, 2, status.VectorsCount)
	assert.Equal(t, 2, status.SourcesCount)
	assert.Equal(t, map[string]int{types.SourceNotionPage: 2, types.SourceLocalFile: 1}, status.BySourceType)
	assert.True(t, status.Health.DatabaseAccessible)
	assert.True(t, status.Health.VectorIndexAvailable)
	assert.Equal(t, CurrentSchemaVersion, status.SchemaVersion)
}

func TestIndexUnavailable(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	id := saveRecord(t, s, "The tiramisu was excellent.", "review-1", unitVector(0))

	_, err := s.db.ExecContext(ctx, "DROP TABLE vec_embeddings")
	require.NoError(t, err)

	vectors, err := s.SemanticSearch(ctx, unitVector(0), 10)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
	assert.Empty(t, vectors)

	// metadata inserts still succeed without the vector index
	id2 := saveRecord(t, s, "Parking was terrible.", "review-2", unitVector(1))
	assert.Greater(t, id2, id)

	keyword, err := s.KeywordSearch(ctx, "tiramisu", 10)
	require.NoError(t, err)
	assert.Contains(t, keyword, id)
}
