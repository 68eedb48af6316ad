package storage

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeVector_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{"empty", []float32{}},
		{"small", []float32{1.5, -2.25, 0, 3.125}},
		{"special values", []float32{float32(math.Inf(1)), -0, math.SmallestNonzeroFloat32}},
		{"zero 384", make([]float32, EmbeddingDimension)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := SerializeVector(tt.vector)
			assert.Len(t, blob, len(tt.vector)*4)
			assert.Equal(t, tt.vector, DeserializeVector(blob))
		})
	}
}

func TestSerializeVector_LittleEndian(t *testing.T) {
	blob := SerializeVector([]float32{1.0})
	// 1.0 = 0x3F800000
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3F}, blob)
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"scaled", []float32{1, 1}, []float32{5, 5}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
		{"length mismatch", []float32{1}, []float32{1, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CosineDistance(tt.a, tt.b)
			assert.InDelta(t, tt.want, d, 1e-9)
			assert.GreaterOrEqual(t, d, 0.0)
			assert.LessOrEqual(t, d, 2.0)
		})
	}
}

func TestCosineSimilarity_Symmetric(t *testing.T) {
	a := []float32{0.3, -0.7, 0.1}
	b := []float32{0.9, 0.2, -0.4}
	assert.InDelta(t, CosineSimilarity(a, b), CosineSimilarity(b, a), 1e-12)
}

func TestSortCandidates(t *testing.T) {
	candidates := []candidate{
		{id: 4, distance: 0.5},
		{id: 2, distance: 0.1},
		{id: 3, distance: 0.5},
		{id: 1, distance: 0.9},
	}
	sortCandidates(candidates)

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	assert.Equal(t, []int64{2, 3, 4, 1}, ids)
}

func TestMatchAnyTerms(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tiramisu", `"tiramisu"`},
		{"Was the tiramisu good?!", `"was" OR "the" OR "tiramisu" OR "good"`},
		{`say "hi" hi`, `"say" OR "hi"`},
		{"?!", ""},
		{"café 2024", `"café" OR "2024"`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchAnyTerms(tt.in))
		})
	}
}

func TestEscapeFTSQuery(t *testing.T) {
	assert.Equal(t, `say ""hi""`, escapeFTSQuery(`say "hi"`))
	assert.Equal(t, "tiramisu", escapeFTSQuery("tiramisu"))
}

func TestIsMalformedQuery(t *testing.T) {
	assert.False(t, isMalformedQuery(nil))
	assert.True(t, isMalformedQuery(errors.New(`fts5: syntax error near "?"`)))
	assert.True(t, isMalformedQuery(errors.New("SQL logic error: no such column: foo (1)")))
	assert.False(t, isMalformedQuery(errors.New("no such table: embeddings_fts")))
	assert.False(t, isMalformedQuery(errors.New("database is locked")))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestWrapIndexError(t *testing.T) {
	err := wrapIndexError("vector", errors.New("boom"))
	require.ErrorIs(t, err, ErrIndexUnavailable)
	assert.Contains(t, err.Error(), "vector")
	assert.Same(t, err, wrapIndexError("vector", err))
}
