package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
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

	// SQLite benefits from a single writer; this also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Project operations

const projectColumns = `id, root_path, total_tag_files, total_tags, index_version,
		       last_indexed_at, created_at, updated_at`

func scanProject(row interface{ Scan(...interface{}) error }) (*Project, error) {
	var project Project
	var lastIndexedAt sql.NullTime
	err := row.Scan(
		&project.ID, &project.RootPath, &project.TotalTagFiles, &project.TotalTags,
		&project.IndexVersion, &lastIndexedAt, &project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastIndexedAt.Valid {
		project.LastIndexedAt = lastIndexedAt.Time
	}
	return &project, nil
}

func (s *SQLiteStorage) createProjectWithQuerier(ctx context.Context, q querier, project *Project) error {
	query := `
		INSERT INTO projects (root_path, index_version, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(root_path) DO NOTHING
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query, project.RootPath, project.IndexVersion, now, now)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("project %s: %w", project.RootPath, ErrAlreadyExists)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	project.ID = id
	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateProject(ctx context.Context, project *Project) error {
	return s.createProjectWithQuerier(ctx, s.querier(), project)
}

func (s *SQLiteStorage) getProjectWithQuerier(ctx context.Context, q querier, rootPath string) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE root_path = ?`
	project, err := scanProject(q.QueryRowContext(ctx, query, rootPath))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return project, err
}

func (s *SQLiteStorage) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	return s.getProjectWithQuerier(ctx, s.querier(), rootPath)
}

func (s *SQLiteStorage) getProjectByIDWithQuerier(ctx context.Context, q querier, projectID int64) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	project, err := scanProject(q.QueryRowContext(ctx, query, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return project, err
}

func (s *SQLiteStorage) updateProjectWithQuerier(ctx context.Context, q querier, project *Project) error {
	query := `
		UPDATE projects
		SET total_tag_files = ?, total_tags = ?, index_version = ?,
		    last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		project.TotalTagFiles, project.TotalTags, project.IndexVersion,
		project.LastIndexedAt, now, project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpdateProject(ctx context.Context, project *Project) error {
	return s.updateProjectWithQuerier(ctx, s.querier(), project)
}

func (s *SQLiteStorage) listProjectsWithQuerier(ctx context.Context, q querier) ([]*Project, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY root_path`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	projects := make([]*Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (s *SQLiteStorage) ListProjects(ctx context.Context) ([]*Project, error) {
	return s.listProjectsWithQuerier(ctx, s.querier())
}

// Tag file operations

const tagFileColumns = `id, project_id, file_path, content_hash, mod_time, size_bytes,
		       tag_count, error_count, parse_error, last_indexed_at, created_at, updated_at`

func scanTagFile(row interface{ Scan(...interface{}) error }) (*TagFile, error) {
	var file TagFile
	var hash []byte
	var parseError sql.NullString
	err := row.Scan(
		&file.ID, &file.ProjectID, &file.FilePath, &hash, &file.ModTime, &file.SizeBytes,
		&file.TagCount, &file.ErrorCount, &parseError,
		&file.LastIndexedAt, &file.CreatedAt, &file.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	copy(file.ContentHash[:], hash)
	if parseError.Valid {
		file.ParseError = &parseError.String
	}
	return &file, nil
}

func (s *SQLiteStorage) upsertTagFileWithQuerier(ctx context.Context, q querier, file *TagFile) error {
	query := `
		INSERT INTO tag_files (project_id, file_path, content_hash, mod_time, size_bytes,
			tag_count, error_count, parse_error, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			mod_time = excluded.mod_time,
			size_bytes = excluded.size_bytes,
			tag_count = excluded.tag_count,
			error_count = excluded.error_count,
			parse_error = excluded.parse_error,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		file.ProjectID, file.FilePath, file.ContentHash[:], file.ModTime, file.SizeBytes,
		file.TagCount, file.ErrorCount, file.ParseError, now, now, now,
	).Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert tag file: %w", err)
	}

	file.LastIndexedAt = now
	file.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertTagFile(ctx context.Context, file *TagFile) error {
	return s.upsertTagFileWithQuerier(ctx, s.querier(), file)
}

func (s *SQLiteStorage) getTagFileWithQuerier(ctx context.Context, q querier, projectID int64, filePath string) (*TagFile, error) {
	query := `SELECT ` + tagFileColumns + ` FROM tag_files WHERE project_id = ? AND file_path = ?`
	file, err := scanTagFile(q.QueryRowContext(ctx, query, projectID, filePath))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return file, err
}

func (s *SQLiteStorage) GetTagFile(ctx context.Context, projectID int64, filePath string) (*TagFile, error) {
	return s.getTagFileWithQuerier(ctx, s.querier(), projectID, filePath)
}

func (s *SQLiteStorage) listTagFilesWithQuerier(ctx context.Context, q querier, projectID int64) ([]*TagFile, error) {
	query := `SELECT ` + tagFileColumns + ` FROM tag_files WHERE project_id = ? ORDER BY file_path`
	rows, err := q.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*TagFile, 0)
	for rows.Next() {
		file, err := scanTagFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *SQLiteStorage) ListTagFiles(ctx context.Context, projectID int64) ([]*TagFile, error) {
	return s.listTagFilesWithQuerier(ctx, s.querier(), projectID)
}

func (s *SQLiteStorage) deleteTagFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM tag_files WHERE id = ?`, fileID)
	return err
}

func (s *SQLiteStorage) DeleteTagFile(ctx context.Context, fileID int64) error {
	return s.deleteTagFileWithQuerier(ctx, s.querier(), fileID)
}

// Tag operations

const tagColumns = `t.id, t.tag_file_id, t.ordinal, t.name, t.kind, t.file_path, t.line,
		       t.pattern, t.scope, t.fields, t.created_at`

func scanTag(row interface{ Scan(...interface{}) error }) (*TagRecord, error) {
	var tag TagRecord
	var fields sql.NullString
	err := row.Scan(
		&tag.ID, &tag.TagFileID, &tag.Ordinal, &tag.Name, &tag.Kind, &tag.FilePath, &tag.Line,
		&tag.Pattern, &tag.Scope, &fields, &tag.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if fields.Valid && fields.String != "" {
		if err := json.Unmarshal([]byte(fields.String), &tag.Fields); err != nil {
			return nil, fmt.Errorf("tag %d: corrupt fields: %w", tag.ID, err)
		}
	}
	return &tag, nil
}

func scanTags(rows *sql.Rows) ([]*TagRecord, error) {
	defer func() { _ = rows.Close() }()

	tags := make([]*TagRecord, 0)
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (s *SQLiteStorage) insertTagsWithQuerier(ctx context.Context, q querier, tags []*TagRecord) error {
	if len(tags) == 0 {
		return nil
	}
	stmt, err := q.PrepareContext(ctx, `
		INSERT INTO tags (tag_file_id, ordinal, name, kind, file_path, line, pattern, scope, fields, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare tag insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	for _, tag := range tags {
		var fields interface{}
		if len(tag.Fields) > 0 {
			data, err := json.Marshal(tag.Fields)
			if err != nil {
				return fmt.Errorf("failed to encode fields of %s: %w", tag.Name, err)
			}
			fields = string(data)
		}
		result, err := stmt.ExecContext(ctx,
			tag.TagFileID, tag.Ordinal, tag.Name, tag.Kind, tag.FilePath, tag.Line,
			tag.Pattern, tag.Scope, fields, now)
		if err != nil {
			return fmt.Errorf("failed to insert tag %s: %w", tag.Name, err)
		}
		if id, err := result.LastInsertId(); err == nil {
			tag.ID = id
		}
		tag.CreatedAt = now
	}
	return nil
}

func (s *SQLiteStorage) InsertTags(ctx context.Context, tags []*TagRecord) error {
	return s.insertTagsWithQuerier(ctx, s.querier(), tags)
}

// listTagsByNameWithQuerier returns the tags named name in index order: by
// tag file, then by position within the file
func (s *SQLiteStorage) listTagsByNameWithQuerier(ctx context.Context, q querier, projectID int64, name string) ([]*TagRecord, error) {
	query := `
		SELECT ` + tagColumns + `
		FROM tags t
		JOIN tag_files f ON t.tag_file_id = f.id
		WHERE f.project_id = ? AND t.name = ?
		ORDER BY f.file_path, t.ordinal
	`
	rows, err := q.QueryContext(ctx, query, projectID, name)
	if err != nil {
		return nil, err
	}
	return scanTags(rows)
}

func (s *SQLiteStorage) ListTagsByName(ctx context.Context, projectID int64, name string) ([]*TagRecord, error) {
	return s.listTagsByNameWithQuerier(ctx, s.querier(), projectID, name)
}

func (s *SQLiteStorage) deleteTagsByFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM tags WHERE tag_file_id = ?`, fileID)
	return err
}

func (s *SQLiteStorage) DeleteTagsByFile(ctx context.Context, fileID int64) error {
	return s.deleteTagsByFileWithQuerier(ctx, s.querier(), fileID)
}

// searchTagsWithQuerier runs a prefix full-text search over tag names, kinds
// and paths. In FTS5, rank is the BM25 score; lower is better.
func (s *SQLiteStorage) searchTagsWithQuerier(ctx context.Context, q querier, projectID int64, query string, limit int) ([]TagSearchResult, error) {
	match := ftsQuery(query)
	if match == "" {
		return []TagSearchResult{}, nil
	}
	sqlQuery := `
		SELECT ` + tagColumns + `, bm25(tags_fts)
		FROM tags_fts
		JOIN tags t ON t.id = tags_fts.rowid
		JOIN tag_files f ON t.tag_file_id = f.id
		WHERE tags_fts MATCH ? AND f.project_id = ?
		ORDER BY rank, f.file_path, t.ordinal
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, sqlQuery, match, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TagSearchResult, 0)
	for rows.Next() {
		var tag TagRecord
		var fields sql.NullString
		var score float64
		err := rows.Scan(
			&tag.ID, &tag.TagFileID, &tag.Ordinal, &tag.Name, &tag.Kind, &tag.FilePath, &tag.Line,
			&tag.Pattern, &tag.Scope, &fields, &tag.CreatedAt, &score,
		)
		if err != nil {
			return nil, err
		}
		if fields.Valid && fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &tag.Fields); err != nil {
				return nil, fmt.Errorf("tag %d: corrupt fields: %w", tag.ID, err)
			}
		}
		results = append(results, TagSearchResult{Tag: &tag, BM25Score: score})
	}
	return results, rows.Err()
}

func (s *SQLiteStorage) SearchTags(ctx context.Context, projectID int64, query string, limit int) ([]TagSearchResult, error) {
	return s.searchTagsWithQuerier(ctx, s.querier(), projectID, query, limit)
}

// ftsQuery turns free text into an FTS5 expression of quoted prefix terms,
// so user input never reaches the FTS5 query syntax
func ftsQuery(text string) string {
	terms := strings.Fields(text)
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ReplaceAll(term, `"`, `""`)
		quoted = append(quoted, `"`+term+`"*`)
	}
	return strings.Join(quoted, " ")
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier, projectID int64) (*ProjectStatus, error) {
	project, err := s.getProjectByIDWithQuerier(ctx, q, projectID)
	if err != nil {
		return nil, err
	}

	status := &ProjectStatus{
		Project:       project,
		LastIndexedAt: project.LastIndexedAt,
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(error_count), 0) FROM tag_files WHERE project_id = ?
	`, projectID).Scan(&status.TagFilesCount, &status.ErrorCount)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tags t
		JOIN tag_files f ON t.tag_file_id = f.id
		WHERE f.project_id = ?
	`, projectID).Scan(&status.TagsCount)
	if err != nil {
		return nil, err
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	var ftsName string
	ftsErr := q.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='tags_fts'").Scan(&ftsName)

	status.Health = HealthStatus{
		DatabaseAccessible: true,
		FTSIndexesBuilt:    ftsErr == nil,
	}
	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error) {
	return s.getStatusWithQuerier(ctx, s.querier(), projectID)
}

// Transaction implementations delegate to the shared helpers with the
// transaction as querier

func (t *sqliteTx) CreateProject(ctx context.Context, project *Project) error {
	return t.storage.createProjectWithQuerier(ctx, t.querier(), project)
}

func (t *sqliteTx) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	return t.storage.getProjectWithQuerier(ctx, t.querier(), rootPath)
}

func (t *sqliteTx) UpdateProject(ctx context.Context, project *Project) error {
	return t.storage.updateProjectWithQuerier(ctx, t.querier(), project)
}

func (t *sqliteTx) ListProjects(ctx context.Context) ([]*Project, error) {
	return t.storage.listProjectsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) UpsertTagFile(ctx context.Context, file *TagFile) error {
	return t.storage.upsertTagFileWithQuerier(ctx, t.querier(), file)
}

func (t *sqliteTx) GetTagFile(ctx context.Context, projectID int64, filePath string) (*TagFile, error) {
	return t.storage.getTagFileWithQuerier(ctx, t.querier(), projectID, filePath)
}

func (t *sqliteTx) ListTagFiles(ctx context.Context, projectID int64) ([]*TagFile, error) {
	return t.storage.listTagFilesWithQuerier(ctx, t.querier(), projectID)
}

func (t *sqliteTx) DeleteTagFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteTagFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) InsertTags(ctx context.Context, tags []*TagRecord) error {
	return t.storage.insertTagsWithQuerier(ctx, t.querier(), tags)
}

func (t *sqliteTx) ListTagsByName(ctx context.Context, projectID int64, name string) ([]*TagRecord, error) {
	return t.storage.listTagsByNameWithQuerier(ctx, t.querier(), projectID, name)
}

func (t *sqliteTx) DeleteTagsByFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteTagsByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) SearchTags(ctx context.Context, projectID int64, query string, limit int) ([]TagSearchResult, error) {
	return t.storage.searchTagsWithQuerier(ctx, t.querier(), projectID, query, limit)
}

func (t *sqliteTx) GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier(), projectID)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite has no nested transactions; savepoints are not used
	return nil, errors.New("nested transactions not supported")
}
