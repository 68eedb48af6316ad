package searcher

// NormalizeKeywordScores maps raw bm25 scores onto [0, 1]. bm25 is more
// negative for better matches, so the most negative score becomes 1.0.
// When every score is equal, every candidate gets 1.0.
func NormalizeKeywordScores(raw map[int64]float64) map[int64]float64 {
	normalized := make(map[int64]float64, len(raw))
	if len(raw) == 0 {
		return normalized
	}

	lo, hi := bounds(raw)
	for id, score := range raw {
		if hi == lo {
			normalized[id] = 1.0
			continue
		}
		normalized[id] = (hi - score) / (hi - lo)
	}
	return normalized
}

// NormalizeDistances converts cosine distances in [0, 2] to similarities
// with 1 - d/2, then min-max normalizes them onto [0, 1] under the same
// equal-value rule as NormalizeKeywordScores.
func NormalizeDistances(raw map[int64]float64) map[int64]float64 {
	similarities := make(map[int64]float64, len(raw))
	for id, d := range raw {
		similarities[id] = 1 - d/2
	}

	normalized := make(map[int64]float64, len(raw))
	if len(similarities) == 0 {
		return normalized
	}

	lo, hi := bounds(similarities)
	for id, sim := range similarities {
		if hi == lo {
			normalized[id] = 1.0
			continue
		}
		normalized[id] = (sim - lo) / (hi - lo)
	}
	return normalized
}

func bounds(values map[int64]float64) (lo, hi float64) {
	first := true
	for _, v := range values {
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}
