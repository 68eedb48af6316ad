package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/biterate/socialagent/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrIndexUnavailable is returned when the full-text or vector index cannot be queried
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrDimensionMismatch is returned for vectors that are not EmbeddingDimension long
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// SQLiteStorage implements Storage on a single SQLite file
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures SQLiteStorage
type Option func(*SQLiteStorage)

// WithLogger sets the logger used for non-fatal index warnings
func WithLogger(logger *slog.Logger) Option {
	return func(s *SQLiteStorage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// openDatabase opens a SQLite database with appropriate settings.
// No busy timeout is set: a second writer process gets SQLITE_BUSY
// instead of queuing.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens dbPath and applies pending migrations
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &SQLiteStorage{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that *sql.DB, *sql.Conn and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withConn acquires a connection for the duration of fn and releases it on
// every exit path
func (s *SQLiteStorage) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()
	return fn(conn)
}

// withTx runs fn inside a transaction on a scoped connection
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// Knowledge base operations

// Save inserts record and returns its id. A vector index failure is logged
// and does not undo the metadata insert.
func (s *SQLiteStorage) Save(ctx context.Context, record *types.Record, embedding []float32) (int64, error) {
	if err := record.Validate(); err != nil {
		return 0, err
	}

	var metadata sql.NullString
	if len(record.Metadata) > 0 {
		raw, err := json.Marshal(record.Metadata)
		if err != nil {
			return 0, fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	now := time.Now().UTC()
	var id int64
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx, `
			INSERT INTO embeddings_meta (source_type, source_id, content, metadata, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, record.SourceType, nullString(record.SourceID), record.Content, metadata, now.Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}

		id, err = result.LastInsertId()
		if err != nil {
			return err
		}

		switch {
		case len(embedding) == EmbeddingDimension:
			if err := insertVector(ctx, conn, id, embedding); err != nil {
				s.logger.Warn("vector index insert failed; record kept without vector",
					"id", id, "source_id", record.SourceID, "error", err)
			}
		case len(embedding) > 0:
			s.logger.Warn("embedding has wrong dimension; record kept without vector",
				"id", id, "got", len(embedding), "want", EmbeddingDimension)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	record.ID = id
	record.CreatedAt = now
	return id, nil
}

// KeywordSearch returns raw bm25 scores for query. A query the FTS5 parser
// rejects is treated as matching nothing.
func (s *SQLiteStorage) KeywordSearch(ctx context.Context, query string, limit int) (map[int64]float64, error) {
	results := map[int64]float64{}
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return results, nil
	}

	err := s.withConn(ctx, func(conn *sql.Conn) error {
		found, err := searchText(ctx, conn, query, limit)
		if err != nil {
			return err
		}
		results = found
		return nil
	})
	if err != nil {
		if isMalformedQuery(err) {
			s.logger.Debug("keyword query rejected by parser", "query", query, "error", err)
			return map[int64]float64{}, nil
		}
		return map[int64]float64{}, wrapIndexError("full-text", err)
	}
	return results, nil
}

// SemanticSearch returns the limit nearest records by cosine distance
func (s *SQLiteStorage) SemanticSearch(ctx context.Context, vector []float32, limit int) (map[int64]float64, error) {
	if len(vector) != EmbeddingDimension {
		return map[int64]float64{}, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), EmbeddingDimension)
	}
	if limit <= 0 {
		return map[int64]float64{}, nil
	}

	var results map[int64]float64
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		found, err := searchVectors(ctx, conn, vector, limit)
		if err != nil {
			return err
		}
		results = found
		return nil
	})
	if err != nil {
		return map[int64]float64{}, wrapIndexError("vector", err)
	}
	return results, nil
}

// GetMetadata loads the records among ids that exist. Missing ids are
// silently absent from the result.
func (s *SQLiteStorage) GetMetadata(ctx context.Context, ids []int64) (map[int64]*types.Record, error) {
	records := make(map[int64]*types.Record, len(ids))
	if len(ids) == 0 {
		return records, nil
	}

	query := `
		SELECT id, source_type, source_id, content, metadata, created_at
		FROM embeddings_meta
		WHERE id IN (` + placeholders(len(ids)) + `)`

	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, int64Args(ids)...)
		if err != nil {
			return fmt.Errorf("failed to load records: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			records[rec.ID] = rec
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteBySource removes all records of sourceID from the metadata table,
// the full-text mirror and the vector index in one transaction
func (s *SQLiteStorage) DeleteBySource(ctx context.Context, sourceID string) (int, error) {
	var deleted int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ids, err := idsForSource(ctx, tx, sourceID)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM vec_embeddings WHERE rowid IN ("+placeholders(len(ids))+")",
			int64Args(ids)...); err != nil {
			return wrapIndexError("vector", err)
		}

		result, err := tx.ExecContext(ctx, "DELETE FROM embeddings_meta WHERE source_id = ?", sourceID)
		if err != nil {
			return fmt.Errorf("failed to delete records: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		deleted = int(n)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Reset deletes every record. Triggers clear the full-text mirror.
func (s *SQLiteStorage) Reset(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_embeddings"); err != nil {
			return wrapIndexError("vector", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings_meta"); err != nil {
			return fmt.Errorf("failed to clear records: %w", err)
		}
		return nil
	})
}

// Count returns the number of stored records
func (s *SQLiteStorage) Count(ctx context.Context) (int, error) {
	var n int
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings_meta").Scan(&n)
	})
	return n, err
}

// GetStatus collects counts and probes both indices
func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{BySourceType: map[string]int{}}

	err := s.withConn(ctx, func(conn *sql.Conn) error {
		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings_meta").Scan(&status.RecordsCount); err != nil {
			return err
		}
		status.Health.DatabaseAccessible = true

		if err := conn.QueryRowContext(ctx,
			"SELECT COUNT(DISTINCT source_id) FROM embeddings_meta WHERE source_id IS NOT NULL",
		).Scan(&status.SourcesCount); err != nil {
			return err
		}

		rows, err := conn.QueryContext(ctx, "SELECT source_type, COUNT(*) FROM embeddings_meta GROUP BY source_type")
		if err != nil {
			return err
		}
		for rows.Next() {
			var sourceType string
			var n int
			if err := rows.Scan(&sourceType, &n); err != nil {
				_ = rows.Close()
				return err
			}
			status.BySourceType[sourceType] = n
		}
		_ = rows.Close()

		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM vec_embeddings").Scan(&status.VectorsCount); err == nil {
			status.Health.VectorIndexAvailable = true
		}

		var ftsRows int
		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings_fts").Scan(&ftsRows); err == nil {
			status.Health.FTSIndexBuilt = ftsRows == status.RecordsCount
		}

		var pageCount, pageSize int
		if err := conn.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
			if err := conn.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
				status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
			}
		}
		return nil
	})
	if err != nil {
		return status, err
	}

	status.SchemaVersion = CurrentSchemaVersion
	return status, nil
}

func idsForSource(ctx context.Context, q querier, sourceID string) ([]int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT id FROM embeddings_meta WHERE source_id = ?", sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*types.Record, error) {
	var (
		rec       types.Record
		sourceID  sql.NullString
		metadata  sql.NullString
		createdAt string
	)
	if err := row.Scan(&rec.ID, &rec.SourceType, &sourceID, &rec.Content, &metadata, &createdAt); err != nil {
		return nil, err
	}

	rec.SourceID = sourceID.String
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("record %d: invalid metadata: %w", rec.ID, err)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
