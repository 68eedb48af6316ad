//go:build sqlite_vec && !purego

package storage

// This file is compiled when building with CGO and the sqlite_vec tag.
// It registers the sqlite-vec extension so the vector index is a vec0
// virtual table with native cosine KNN search.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "sqlite_vec,fts5" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	"context"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

func init() {
	sqlite_vec.Auto()
}

const vectorTableDDL = `
CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(
    embedding float[384] distance_metric=cosine
);
`

// searchVectors runs a KNN query inside the vec0 table. vec0 reports
// cosine distance directly.
func searchVectors(ctx context.Context, q querier, vector []float32, limit int) (map[int64]float64, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT rowid, distance
		FROM vec_embeddings
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, serializeVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("vec0 query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make(map[int64]float64, limit)
	for rows.Next() {
		var id int64
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, err
		}
		results[id] = distance
	}
	return results, rows.Err()
}
