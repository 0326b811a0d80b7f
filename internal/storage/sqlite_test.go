package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekelcohen/CTags/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func createTestProject(t *testing.T, s *SQLiteStorage) *Project {
	t.Helper()
	project := &Project{RootPath: "/test/path", IndexVersion: "1.0.0"}
	require.NoError(t, s.CreateProject(context.Background(), project))
	return project
}

func createTestTagFile(t *testing.T, s *SQLiteStorage, projectID int64, path string) *TagFile {
	t.Helper()
	file := &TagFile{
		ProjectID:   projectID,
		FilePath:    path,
		ContentHash: sha256.Sum256([]byte(path)),
		ModTime:     time.Now(),
		SizeBytes:   128,
	}
	require.NoError(t, s.UpsertTagFile(context.Background(), file))
	return file
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)

	version, err := SchemaVersion(context.Background(), storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestClose(t *testing.T) {
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	assert.NoError(t, storage.Close())
}

func TestCreateProject(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	project := createTestProject(t, storage)
	assert.Greater(t, project.ID, int64(0))
	assert.False(t, project.CreatedAt.IsZero())

	duplicate := &Project{RootPath: "/test/path", IndexVersion: "1.0.0"}
	err := storage.CreateProject(ctx, duplicate)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestGetProject(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)

	retrieved, err := storage.GetProject(ctx, "/test/path")
	require.NoError(t, err)
	assert.Equal(t, project.ID, retrieved.ID)
	assert.Equal(t, project.RootPath, retrieved.RootPath)
	assert.True(t, retrieved.LastIndexedAt.IsZero())

	_, err = storage.GetProject(ctx, "/nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProject(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)

	project.TotalTagFiles = 2
	project.TotalTags = 120
	project.LastIndexedAt = time.Now()
	require.NoError(t, storage.UpdateProject(ctx, project))

	retrieved, err := storage.GetProject(ctx, project.RootPath)
	require.NoError(t, err)
	assert.Equal(t, 2, retrieved.TotalTagFiles)
	assert.Equal(t, 120, retrieved.TotalTags)
	assert.False(t, retrieved.LastIndexedAt.IsZero())

	missing := &Project{ID: 9999, IndexVersion: "1.0.0"}
	assert.ErrorIs(t, storage.UpdateProject(ctx, missing), ErrNotFound)
}

func TestListProjects(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	for _, root := range []string{"/b", "/a"} {
		require.NoError(t, storage.CreateProject(ctx, &Project{RootPath: root, IndexVersion: "1.0.0"}))
	}

	projects, err := storage.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "/a", projects[0].RootPath)
}

func TestUpsertTagFile(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)

	file := createTestTagFile(t, storage, project.ID, "tags")
	assert.Greater(t, file.ID, int64(0))
	firstID := file.ID

	// Upsert with the same path updates in place
	msg := "line 3: expected name, file and address"
	update := &TagFile{
		ProjectID:   project.ID,
		FilePath:    "tags",
		ContentHash: sha256.Sum256([]byte("changed")),
		ModTime:     time.Now(),
		TagCount:    10,
		ErrorCount:  1,
		ParseError:  &msg,
	}
	require.NoError(t, storage.UpsertTagFile(ctx, update))
	assert.Equal(t, firstID, update.ID)

	retrieved, err := storage.GetTagFile(ctx, project.ID, "tags")
	require.NoError(t, err)
	assert.Equal(t, update.ContentHash, retrieved.ContentHash)
	assert.Equal(t, 10, retrieved.TagCount)
	assert.Equal(t, 1, retrieved.ErrorCount)
	require.NotNil(t, retrieved.ParseError)
	assert.Equal(t, msg, *retrieved.ParseError)

	_, err = storage.GetTagFile(ctx, project.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndDeleteTagFiles(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)

	b := createTestTagFile(t, storage, project.ID, "sub/tags")
	createTestTagFile(t, storage, project.ID, ".tags")

	files, err := storage.ListTagFiles(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, ".tags", files[0].FilePath)

	require.NoError(t, storage.InsertTags(ctx, []*TagRecord{{TagFileID: b.ID, Name: "x", FilePath: "x.js"}}))
	require.NoError(t, storage.DeleteTagFile(ctx, b.ID))

	files, err = storage.ListTagFiles(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	tags, err := storage.ListTagsByName(ctx, project.ID, "x")
	require.NoError(t, err)
	assert.Empty(t, tags, "tags cascade with their file")
}

func TestInsertAndListTags(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)
	first := createTestTagFile(t, storage, project.ID, "a/tags")
	second := createTestTagFile(t, storage, project.ID, "b/tags")

	records := []*TagRecord{
		FromTypesTag(types.Tag{Name: "fetch", Kind: "m", FilePath: "youtube.js", Line: 12}, second.ID, 0),
		FromTypesTag(types.Tag{Name: "fetch", Kind: "f", FilePath: "net.js", Scope: "1:1-9:1",
			Fields: map[string]string{"access": "public"}}, first.ID, 1),
		FromTypesTag(types.Tag{Name: "fetch", Kind: "f", FilePath: "api.js"}, first.ID, 0),
		FromTypesTag(types.Tag{Name: "other", Kind: "v", FilePath: "api.js"}, first.ID, 2),
	}
	require.NoError(t, storage.InsertTags(ctx, records))
	for _, r := range records {
		assert.Greater(t, r.ID, int64(0))
	}

	tags, err := storage.ListTagsByName(ctx, project.ID, "fetch")
	require.NoError(t, err)
	require.Len(t, tags, 3)

	// tag file path, then ordinal
	assert.Equal(t, "api.js", tags[0].FilePath)
	assert.Equal(t, "net.js", tags[1].FilePath)
	assert.Equal(t, "youtube.js", tags[2].FilePath)

	net := tags[1].ToTypesTag()
	assert.Equal(t, "1:1-9:1", net.Scope)
	assert.Equal(t, map[string]string{"access": "public"}, net.Fields)
	assert.Nil(t, tags[0].Fields)
	assert.Equal(t, 12, tags[2].Line)

	require.NoError(t, storage.DeleteTagsByFile(ctx, first.ID))
	tags, err = storage.ListTagsByName(ctx, project.ID, "fetch")
	require.NoError(t, err)
	assert.Len(t, tags, 1)

	assert.NoError(t, storage.InsertTags(ctx, nil))
}

func TestSearchTags(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)
	file := createTestTagFile(t, storage, project.ID, "tags")

	require.NoError(t, storage.InsertTags(ctx, []*TagRecord{
		{TagFileID: file.ID, Ordinal: 0, Name: "fetchUser", Kind: "f", FilePath: "api/users.js"},
		{TagFileID: file.ID, Ordinal: 1, Name: "fetchOrders", Kind: "f", FilePath: "api/orders.js"},
		{TagFileID: file.ID, Ordinal: 2, Name: "render", Kind: "m", FilePath: "ui/view.js"},
	}))

	t.Run("Prefix", func(t *testing.T) {
		results, err := storage.SearchTags(ctx, project.ID, "fetch", 10)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("Path", func(t *testing.T) {
		results, err := storage.SearchTags(ctx, project.ID, "ui", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "render", results[0].Tag.Name)
	})

	t.Run("Limit", func(t *testing.T) {
		results, err := storage.SearchTags(ctx, project.ID, "fetch", 1)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("QuotesEscaped", func(t *testing.T) {
		results, err := storage.SearchTags(ctx, project.ID, `re"nder OR`, 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("Empty", func(t *testing.T) {
		results, err := storage.SearchTags(ctx, project.ID, "   ", 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("DeletedTagsLeaveIndex", func(t *testing.T) {
		require.NoError(t, storage.DeleteTagsByFile(ctx, file.ID))
		results, err := storage.SearchTags(ctx, project.ID, "fetch", 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"fetch"*`, ftsQuery("fetch"))
	assert.Equal(t, `"a"* "b"*`, ftsQuery(" a  b "))
	assert.Equal(t, `"x""y"*`, ftsQuery(`x"y`))
	assert.Equal(t, "", ftsQuery(""))
}

func TestGetStatus(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)
	file := createTestTagFile(t, storage, project.ID, "tags")
	file.ErrorCount = 2
	require.NoError(t, storage.UpsertTagFile(ctx, file))

	require.NoError(t, storage.InsertTags(ctx, []*TagRecord{
		{TagFileID: file.ID, Name: "a", FilePath: "a.js"},
		{TagFileID: file.ID, Ordinal: 1, Name: "b", FilePath: "b.js"},
	}))

	status, err := storage.GetStatus(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.TagFilesCount)
	assert.Equal(t, 2, status.TagsCount)
	assert.Equal(t, 2, status.ErrorCount)
	assert.True(t, status.Health.DatabaseAccessible)
	assert.True(t, status.Health.FTSIndexesBuilt)
	assert.Greater(t, status.IndexSizeMB, 0.0)

	_, err = storage.GetStatus(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransaction(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createTestProject(t, storage)
	file := createTestTagFile(t, storage, project.ID, "tags")

	t.Run("Commit", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.InsertTags(ctx, []*TagRecord{{TagFileID: file.ID, Name: "committed", FilePath: "a.js"}}))

		inTx, err := tx.ListTagsByName(ctx, project.ID, "committed")
		require.NoError(t, err)
		assert.Len(t, inTx, 1)
		require.NoError(t, tx.Commit())

		tags, err := storage.ListTagsByName(ctx, project.ID, "committed")
		require.NoError(t, err)
		assert.Len(t, tags, 1)
	})

	t.Run("Rollback", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.InsertTags(ctx, []*TagRecord{{TagFileID: file.ID, Name: "dropped", FilePath: "a.js"}}))
		require.NoError(t, tx.Rollback())

		tags, err := storage.ListTagsByName(ctx, project.ID, "dropped")
		require.NoError(t, err)
		assert.Empty(t, tags)
	})

	t.Run("NoNesting", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()

		_, err = tx.BeginTx(ctx)
		assert.Error(t, err)
		assert.NoError(t, tx.Close())
	})
}

func TestMigrations(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	db := storage.db

	// Re-applying is a no-op
	require.NoError(t, ApplyMigrations(ctx, db))

	require.NoError(t, RollbackMigration(ctx, db))
	version, err := SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version)

	var name string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE name='tags_fts'").Scan(&name)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, RollbackMigration(ctx, db))
	version, err = SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "", version)

	assert.Error(t, RollbackMigration(ctx, db))

	require.NoError(t, ApplyMigrations(ctx, db))
	version, err = SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}
