package types

import (
	"strings"
	"time"
)

// Metadata keys written by the chunker
const (
	MetaSourceID      = "source_id"
	MetaChunkIndex    = "chunk_index"
	MetaStrategy      = "strategy"
	MetaStartPos      = "start_pos"
	MetaEndPos        = "end_pos"
	MetaParagraph     = "paragraph_index"
	MetaSentenceCount = "sentence_count"
	MetaSectionTitle  = "section_title"
	MetaDocTitle      = "doc_title"
)

// Source types stored with each record
const (
	SourceNotionPage     = "notion_page"
	SourceNotionDatabase = "notion_database_entry"
	SourceLocalFile      = "local_file"
	SourceManual         = "manual"
)

// Chunk is a passage of a larger document produced for independent retrieval.
// Chunks are transient: the ingestion path turns each one into a Record.
type Chunk struct {
	Content  string
	SourceID string
	Metadata map[string]any
}

// Validate checks that the chunk carries retrievable text
func (c *Chunk) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}

// Strategy returns the chunking strategy recorded in metadata, if any
func (c *Chunk) Strategy() string {
	s, _ := c.Metadata[MetaStrategy].(string)
	return s
}

// Record is a persisted chunk: the row shared by the metadata table,
// the full-text mirror and the vector index.
type Record struct {
	ID         int64
	SourceType string
	SourceID   string // empty when the record has no originating document
	Content    string
	Metadata   map[string]any
	CreatedAt  time.Time
}

// Validate checks the fields required before a record is saved. Content
// may be empty; it is stored and returned unchanged.
func (r *Record) Validate() error {
	if r.SourceType == "" {
		return ErrMissingSourceType
	}
	return nil
}
