package types

import "errors"

// Validation errors
var (
	ErrInvalidRecordID       = errors.New("invalid record ID")
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("final score must not be negative")
	ErrMissingSourceType     = errors.New("source type is required")
	ErrEmptyContent          = errors.New("content cannot be empty")
)
