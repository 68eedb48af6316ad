package types

// SearchResult is one fused candidate returned by hybrid retrieval
type SearchResult struct {
	// Identification
	ID   int64
	Rank int // Position in result set (1-based)

	// Scoring, each side normalized to [0, 1]; FinalScore is the weighted sum
	KeywordScore  float64
	SemanticScore float64
	FinalScore    float64

	// Stored record data
	SourceType string
	SourceID   string
	Content    string
	Metadata   map[string]any
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.ID <= 0 {
		return ErrInvalidRecordID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.FinalScore < 0 {
		return ErrInvalidRelevanceScore
	}

	if sr.Content == "" {
		return ErrEmptyContent
	}

	return nil
}
