package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
)

// insertVector stores a vector under the metadata row id
func insertVector(ctx context.Context, q querier, id int64, vector []float32) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO vec_embeddings (rowid, embedding) VALUES (?, ?)",
		id, serializeVector(vector))
	return err
}

// searchText runs an FTS5 MATCH and returns raw bm25 scores.
// bm25 is negative and more negative means a better match.
func searchText(ctx context.Context, q querier, query string, limit int) (map[int64]float64, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT rowid, bm25(embeddings_fts) AS score
		FROM embeddings_fts
		WHERE embeddings_fts MATCH ?
		ORDER BY score
		LIMIT ?
	`, escapeFTSQuery(query), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := make(map[int64]float64)
	for rows.Next() {
		var id int64
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, err
		}
		results[id] = score
	}
	return results, rows.Err()
}

// escapeFTSQuery doubles embedded quotes. Everything else is passed to the
// FTS5 query parser untouched, so operator syntax keeps working and
// unparseable input surfaces as a syntax error.
func escapeFTSQuery(query string) string {
	return strings.ReplaceAll(query, `"`, `""`)
}

// isMalformedQuery reports whether err came from the FTS5 query parser
// rather than from the index itself.
func isMalformedQuery(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "no such table") {
		return false
	}
	return strings.Contains(msg, "fts5: syntax error") ||
		strings.Contains(msg, "unterminated string") ||
		strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "unknown special query") ||
		strings.Contains(msg, "malformed match")
}

// MatchAnyTerms turns free text into an FTS5 query that matches any of its
// words. Each word is quoted so punctuation in the source text cannot break
// the query parser.
func MatchAnyTerms(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		if seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

// candidate is a stored vector with its distance to the query
type candidate struct {
	id       int64
	distance float64
}

// computeDistances scans (rowid, embedding) rows and computes cosine distance
func computeDistances(rows *sql.Rows, query []float32) ([]candidate, error) {
	candidates := make([]candidate, 0, 256)

	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}

		vector := deserializeVector(blob)
		if len(vector) != len(query) {
			continue // Dimension mismatch, skip
		}

		candidates = append(candidates, candidate{id: id, distance: cosineDistance(query, vector)})
	}

	return candidates, rows.Err()
}

// sortCandidates orders by ascending distance, ids breaking ties
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].id < candidates[j].id
	})
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors.
// A zero vector has similarity 0 with everything.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cosineDistance is 1 - cosine similarity, clamped to [0, 2]
func cosineDistance(a, b []float32) float64 {
	d := 1 - cosineSimilarity(a, b)
	return math.Max(0, math.Min(2, d))
}

// placeholders returns "?, ?, ?" for n arguments
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// wrapIndexError marks err as an index failure
func wrapIndexError(kind string, err error) error {
	if errors.Is(err, ErrIndexUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrIndexUnavailable, kind, err)
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}

// CosineDistance is an exported helper for testing
func CosineDistance(a, b []float32) float64 {
	return cosineDistance(a, b)
}
