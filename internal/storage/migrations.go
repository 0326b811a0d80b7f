package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.1.0"
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
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
	{
		Version: "1.1.0",
		Up:      migrationV11Up,
		Down:    migrationV11Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Projects table
CREATE TABLE IF NOT EXISTS projects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    root_path TEXT NOT NULL UNIQUE,
    total_tag_files INTEGER DEFAULT 0,
    total_tags INTEGER DEFAULT 0,
    index_version TEXT NOT NULL,
    last_indexed_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Tag files table
CREATE TABLE IF NOT EXISTS tag_files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id INTEGER NOT NULL,
    file_path TEXT NOT NULL,
    content_hash BLOB NOT NULL,
    mod_time TIMESTAMP,
    size_bytes INTEGER,
    tag_count INTEGER DEFAULT 0,
    error_count INTEGER DEFAULT 0,
    parse_error TEXT,
    last_indexed_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
    UNIQUE(project_id, file_path)
);

CREATE INDEX IF NOT EXISTS idx_tag_files_project ON tag_files(project_id);

-- Tags table
CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tag_file_id INTEGER NOT NULL,
    ordinal INTEGER NOT NULL,
    name TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT '',
    file_path TEXT NOT NULL,
    line INTEGER DEFAULT 0,
    pattern TEXT NOT NULL DEFAULT '',
    scope TEXT NOT NULL DEFAULT '',
    fields TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (tag_file_id) REFERENCES tag_files(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_tags_file ON tags(tag_file_id, ordinal);
CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name);
`

const migrationV1Down = `
DROP TABLE IF EXISTS tags;
DROP TABLE IF EXISTS tag_files;
DROP TABLE IF EXISTS projects;
DROP TABLE IF EXISTS schema_version;
`

const migrationV11Up = `
-- Full-text search on tags
CREATE VIRTUAL TABLE IF NOT EXISTS tags_fts USING fts5(
    name, kind, file_path,
    content='tags',
    content_rowid='id'
);

INSERT INTO tags_fts(rowid, name, kind, file_path)
SELECT id, name, kind, file_path FROM tags;

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS tags_ai AFTER INSERT ON tags BEGIN
    INSERT INTO tags_fts(rowid, name, kind, file_path)
    VALUES (new.id, new.name, new.kind, new.file_path);
END;

CREATE TRIGGER IF NOT EXISTS tags_ad AFTER DELETE ON tags BEGIN
    INSERT INTO tags_fts(tags_fts, rowid, name, kind, file_path)
    VALUES ('delete', old.id, old.name, old.kind, old.file_path);
END;

CREATE TRIGGER IF NOT EXISTS tags_au AFTER UPDATE ON tags BEGIN
    INSERT INTO tags_fts(tags_fts, rowid, name, kind, file_path)
    VALUES ('delete', old.id, old.name, old.kind, old.file_path);
    INSERT INTO tags_fts(rowid, name, kind, file_path)
    VALUES (new.id, new.name, new.kind, new.file_path);
END;
`

const migrationV11Down = `
DROP TRIGGER IF EXISTS tags_au;
DROP TRIGGER IF EXISTS tags_ad;
DROP TRIGGER IF EXISTS tags_ai;
DROP TABLE IF EXISTS tags_fts;
`

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	currentVersion, _, err := appliedVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	_, currentVersion, err := appliedVersion(ctx, db)
	if err != nil {
		return err
	}
	if currentVersion == "" {
		return fmt.Errorf("no migrations to rollback")
	}

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

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", currentVersion, err)
	}

	// The first migration's Down drops schema_version itself
	if migration == &AllMigrations[0] {
		return nil
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", currentVersion); err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", currentVersion, err)
	}

	return nil
}

// SchemaVersion returns the highest applied migration version, or "" for an
// empty database
func SchemaVersion(ctx context.Context, db *sql.DB) (string, error) {
	_, raw, err := appliedVersion(ctx, db)
	return raw, err
}

// appliedVersion returns the highest version recorded in schema_version.
// Versions are compared as semver since several migrations can share an
// applied_at timestamp.
func appliedVersion(ctx context.Context, db *sql.DB) (*semver.Version, string, error) {
	zero := semver.MustParse("0.0.0")

	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to check schema_version table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, "", fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	latest, latestRaw := zero, ""
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, "", err
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, "", fmt.Errorf("invalid schema version %s: %w", raw, err)
		}
		if v.GreaterThan(latest) {
			latest, latestRaw = v, raw
		}
	}
	return latest, latestRaw, rows.Err()
}
