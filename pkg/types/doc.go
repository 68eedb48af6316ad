// Package types provides shared type definitions for the BiteRate agent.
//
// # Core Types
//
// Chunk is a retrieval-sized passage produced by the chunker. It never
// outlives ingestion:
//
//	chunk := types.Chunk{
//	    Content:  "## Desserts\n\nCake",
//	    SourceID: "menu-page",
//	    Metadata: map[string]any{"strategy": "markdown_header", "chunk_index": 2},
//	}
//
// Record is the persisted form of a chunk. Its ID is assigned by the store on
// insert and joins the metadata row, the full-text row and the vector row.
//
// SearchResult is one candidate from hybrid retrieval, carrying both
// normalized sub-scores and the weighted final score so callers can explain
// a ranking.
//
// # Metadata Keys
//
// The Meta* constants name the keys the chunker writes. Metadata is an open
// map; consumers must tolerate missing keys.
package types
