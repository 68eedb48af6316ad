package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.2.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up + vectorTableDDL,
		Down:    migrationV1Down,
	},
	{
		Version: "1.1.0",
		Up:      migrationV11Up,
		Down:    migrationV11Down,
	},
	{
		Version: "1.2.0",
		Up:      migrationV12Up,
		Down:    migrationV12Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Knowledge base records; id joins the full-text and vector tables
CREATE TABLE IF NOT EXISTS embeddings_meta (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_type TEXT NOT NULL,
    source_id TEXT,
    content TEXT NOT NULL,
    metadata TEXT,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_embeddings_meta_source_id ON embeddings_meta(source_id);
CREATE INDEX IF NOT EXISTS idx_embeddings_meta_source_type ON embeddings_meta(source_type);

-- External-content FTS5 mirror of embeddings_meta
CREATE VIRTUAL TABLE IF NOT EXISTS embeddings_fts USING fts5(
    content,
    source_type,
    source_id,
    content='embeddings_meta',
    content_rowid='id'
);

-- Keep the mirror in step with every metadata insert and delete
CREATE TRIGGER IF NOT EXISTS embeddings_ai AFTER INSERT ON embeddings_meta BEGIN
    INSERT INTO embeddings_fts(rowid, content, source_type, source_id)
    VALUES (new.id, new.content, new.source_type, new.source_id);
END;

CREATE TRIGGER IF NOT EXISTS embeddings_ad AFTER DELETE ON embeddings_meta BEGIN
    INSERT INTO embeddings_fts(embeddings_fts, rowid, content, source_type, source_id)
    VALUES ('delete', old.id, old.content, old.source_type, old.source_id);
END;
`

const migrationV1Down = `
DROP TRIGGER IF EXISTS embeddings_ad;
DROP TRIGGER IF EXISTS embeddings_ai;
DROP TABLE IF EXISTS vec_embeddings;
DROP TABLE IF EXISTS embeddings_fts;
DROP TABLE IF EXISTS embeddings_meta;
`

const migrationV11Up = `
-- Reviews mirrored from the document workspace
CREATE TABLE IF NOT EXISTS reviews (
    id TEXT PRIMARY KEY,
    notion_page_id TEXT,
    restaurant TEXT NOT NULL,
    rating REAL,
    review TEXT,
    cuisine TEXT,
    location TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Generated posts and their publication state
CREATE TABLE IF NOT EXISTS posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    content TEXT NOT NULL,
    hashtags TEXT,
    tone TEXT,
    restaurant_mentioned TEXT,
    rating_mentioned REAL,
    image_url TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    mastodon_post_id TEXT,
    mastodon_url TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    published_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_posts_status ON posts(status);

CREATE TABLE IF NOT EXISTS approvals (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    post_id INTEGER NOT NULL,
    decision TEXT NOT NULL,
    rejection_reason TEXT,
    decided_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS feedback (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    post_id INTEGER,
    feedback_type TEXT NOT NULL,
    feedback_text TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE SET NULL
);

-- Notifications the listener has already answered
CREATE TABLE IF NOT EXISTS replied_notifications (
    notification_id TEXT PRIMARY KEY,
    status_id TEXT,
    reply_id TEXT,
    replied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE VIEW IF NOT EXISTS recent_posts AS
    SELECT id, content, status, mastodon_url, created_at, published_at
    FROM posts
    ORDER BY created_at DESC, id DESC;
`

const migrationV11Down = `
DROP VIEW IF EXISTS recent_posts;
DROP TABLE IF EXISTS replied_notifications;
DROP TABLE IF EXISTS feedback;
DROP TABLE IF EXISTS approvals;
DROP TABLE IF EXISTS posts;
DROP TABLE IF EXISTS reviews;
`

const migrationV12Up = `
-- Last seen edit time of each watched workspace page
CREATE TABLE IF NOT EXISTS page_states (
    page_id TEXT PRIMARY KEY,
    last_edited_time TEXT NOT NULL,
    last_checked TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

const migrationV12Down = `
DROP TABLE IF EXISTS page_states;
`

// ApplyMigrations applies all pending migrations to the database
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	// Check if schema_version table exists
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)

	// Parse current version (default to 0.0.0 if no migrations applied or table doesn't exist)
	var currentVersion *semver.Version
	if err == sql.ErrNoRows {
		// schema_version table doesn't exist, start from 0.0.0
		currentVersion = semver.MustParse("0.0.0")
	} else if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	} else {
		currentVersion, err = latestAppliedVersion(ctx, db)
		if err != nil {
			return err
		}
	}

	// Run migrations in order
	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		// Skip if already applied (LessThanOrEqual means current >= migration)
		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		// Execute migration
		_, err = db.ExecContext(ctx, migration.Up)
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		// Record migration
		_, err = db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version)
		if err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		// Update current version for next iteration
		currentVersion = migrationVersion
	}

	return nil
}

// latestAppliedVersion returns the highest recorded schema version.
// Versions are compared as semver because several migrations can share one
// applied_at second.
func latestAppliedVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	latest := semver.MustParse("0.0.0")
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid current schema version %s: %w", raw, err)
		}
		if v.GreaterThan(latest) {
			latest = v
		}
	}
	return latest, rows.Err()
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	latest, err := latestAppliedVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("no migrations to rollback: %w", err)
	}
	if latest.Equal(semver.MustParse("0.0.0")) {
		return fmt.Errorf("no migrations to rollback")
	}
	currentVersion := latest.Original()

	// Find migration
	var migration *Migration
	for i := range AllMigrations {
		if AllMigrations[i].Version == currentVersion {
			migration = &AllMigrations[i]
			break
		}
	}

	if migration == nil {
		return fmt.Errorf("migration %s not found", currentVersion)
	}

	// Execute rollback
	_, err = db.ExecContext(ctx, migration.Down)
	if err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", currentVersion, err)
	}

	// Remove version record
	_, err = db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", currentVersion)
	if err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", currentVersion, err)
	}

	return nil
}
