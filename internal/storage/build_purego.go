//go:build purego || !sqlite_vec

package storage

// This file is compiled when building without CGO or with the purego tag.
// It uses a pure Go SQLite implementation without the sqlite-vec extension:
// vectors live in an ordinary table and distances are computed in Go.
//
// Build command:
//   CGO_ENABLED=0 go build -tags "purego" ./...
//
// Driver used: modernc.org/sqlite

import (
	"context"
	"fmt"

	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)

const vectorTableDDL = `
CREATE TABLE IF NOT EXISTS vec_embeddings (
    rowid INTEGER PRIMARY KEY,
    embedding BLOB NOT NULL
);
`

// searchVectors scans every stored vector and ranks by cosine distance
func searchVectors(ctx context.Context, q querier, vector []float32, limit int) (map[int64]float64, error) {
	rows, err := q.QueryContext(ctx, "SELECT rowid, embedding FROM vec_embeddings")
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeDistances(rows, vector)
	if err != nil {
		return nil, err
	}
	sortCandidates(candidates)

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	results := make(map[int64]float64, len(candidates))
	for _, c := range candidates {
		results[c.id] = c.distance
	}
	return results, nil
}
