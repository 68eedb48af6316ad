package searcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKeywordScores(t *testing.T) {
	tests := []struct {
		name string
		raw  map[int64]float64
		want map[int64]float64
	}{
		{"empty", map[int64]float64{}, map[int64]float64{}},
		{"nil", nil, map[int64]float64{}},
		{"single", map[int64]float64{7: -3.2}, map[int64]float64{7: 1.0}},
		{"all equal", map[int64]float64{1: -2, 2: -2, 3: -2}, map[int64]float64{1: 1, 2: 1, 3: 1}},
		{
			"most negative is best",
			map[int64]float64{1: -4, 2: -2, 3: -3},
			map[int64]float64{1: 1, 2: 0, 3: 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeKeywordScores(tt.raw)
			assert.Len(t, got, len(tt.want))
			for id, want := range tt.want {
				assert.InDelta(t, want, got[id], 1e-9, "id %d", id)
			}
		})
	}
}

func TestNormalizeDistances(t *testing.T) {
	tests := []struct {
		name string
		raw  map[int64]float64
		want map[int64]float64
	}{
		{"empty", nil, map[int64]float64{}},
		{"single", map[int64]float64{1: 1.3}, map[int64]float64{1: 1.0}},
		{"all equal", map[int64]float64{1: 0.4, 2: 0.4}, map[int64]float64{1: 1, 2: 1}},
		{
			"closest is best",
			map[int64]float64{1: 0, 2: 2, 3: 1},
			map[int64]float64{1: 1, 2: 0, 3: 0.5},
		},
		{
			"relative to observed range",
			map[int64]float64{1: 0.2, 2: 0.6},
			map[int64]float64{1: 1, 2: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDistances(tt.raw)
			assert.Len(t, got, len(tt.want))
			for id, want := range tt.want {
				assert.InDelta(t, want, got[id], 1e-9, "id %d", id)
			}
		})
	}
}

func TestNormalize_Bounds(t *testing.T) {
	keyword := map[int64]float64{1: -12.5, 2: -0.001, 3: -7, 4: -7, 5: -3.3}
	semantic := map[int64]float64{1: 0.01, 2: 1.99, 3: 0.8, 4: 1.2}

	for _, scores := range []map[int64]float64{NormalizeKeywordScores(keyword), NormalizeDistances(semantic)} {
		for id, v := range scores {
			assert.GreaterOrEqual(t, v, 0.0, "id %d", id)
			assert.LessOrEqual(t, v, 1.0, "id %d", id)
		}
	}
}
