package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekelcohen/CTags/internal/storage"
)

const rootTags = "!_TAG_FILE_FORMAT\t2\t/extended format/\n" +
	"Foo\tsrc/foo.js\t3;\"\tc\n" +
	"bar\tsrc/foo.js\t7;\"\tm\tclass:Foo\n" +
	"helper\tsrc/util.js\t1;\"\tf\n"

const nestedTags = "Widget\twidget.js\t10;\"\tc\n" +
	"Foo\t../shared/foo.js\t2;\"\tc\n"

// setupTestStorage creates an in-memory SQLite database for testing
func setupTestStorage(t testing.TB) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err, "Failed to create test storage")
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// createTestFile creates a file below dir, making parent directories
func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()

	filePath := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))

	return filePath
}

func projectFor(t *testing.T, store storage.Storage, root string) *storage.Project {
	t.Helper()
	abs, err := filepath.Abs(root)
	require.NoError(t, err)
	project, err := store.GetProject(context.Background(), abs)
	require.NoError(t, err)
	return project
}

func TestNew(t *testing.T) {
	idx := New(setupTestStorage(t), nil)

	assert.NotNil(t, idx.parser)
	assert.NotNil(t, idx.storage)
	assert.NotNil(t, idx.logger)
	assert.False(t, idx.InProgress())
}

func TestDiscoverTagFiles(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "tags", rootTags)
	createTestFile(t, tmpDir, "lib/.tags", nestedTags)
	createTestFile(t, tmpDir, "lib/tags.txt", "")
	createTestFile(t, tmpDir, "node_modules/pkg/tags", nestedTags)
	createTestFile(t, tmpDir, ".git/tags", nestedTags)
	createTestFile(t, tmpDir, ".config/tags", nestedTags)

	t.Run("recursive", func(t *testing.T) {
		files, err := discoverTagFiles(tmpDir, WithDefaults(&Config{Recursive: true}))
		require.NoError(t, err)
		assert.Equal(t, []string{".config/tags", "lib/.tags", "tags"}, files)
	})

	t.Run("root only", func(t *testing.T) {
		files, err := discoverTagFiles(tmpDir, WithDefaults(&Config{Recursive: false}))
		require.NoError(t, err)
		assert.Equal(t, []string{"tags"}, files)
	})

	t.Run("custom names", func(t *testing.T) {
		files, err := discoverTagFiles(tmpDir, WithDefaults(&Config{
			Recursive:    true,
			TagFileNames: []string{"tags.txt"},
		}))
		require.NoError(t, err)
		assert.Equal(t, []string{"lib/tags.txt"}, files)
	})

	t.Run("custom skip dirs", func(t *testing.T) {
		files, err := discoverTagFiles(tmpDir, WithDefaults(&Config{
			Recursive: true,
			SkipDirs:  []string{".config", "lib"},
		}))
		require.NoError(t, err)
		assert.Equal(t, []string{".git/tags", "node_modules/pkg/tags", "tags"}, files)
	})
}

func TestConfigSkipDir(t *testing.T) {
	c := WithDefaults(nil)
	assert.True(t, c.SkipDir(".git"))
	assert.True(t, c.SkipDir("node_modules"))
	assert.False(t, c.SkipDir(".config"))
	assert.False(t, c.SkipDir("lib"))

	custom := &Config{SkipDirs: []string{"vendor"}}
	assert.True(t, custom.SkipDir("vendor"))
	assert.False(t, custom.SkipDir(".git"))
}

func TestWithDefaults(t *testing.T) {
	c := WithDefaults(nil)
	assert.True(t, c.Recursive)
	assert.Positive(t, c.Workers)
	assert.Equal(t, DefaultTagFileNames, c.TagFileNames)
	assert.Equal(t, DefaultSkipDirs, c.SkipDirs)
}

func TestComputeFileHash(t *testing.T) {
	tmpDir := t.TempDir()
	a := createTestFile(t, tmpDir, "a", "one")
	b := createTestFile(t, tmpDir, "b", "one")
	c := createTestFile(t, tmpDir, "c", "two")

	ha, _, size, err := computeFileHash(a)
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)

	hb, _, _, err := computeFileHash(b)
	require.NoError(t, err)
	hc, _, _, err := computeFileHash(c)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc)

	_, _, _, err = computeFileHash(filepath.Join(tmpDir, "missing"))
	assert.Error(t, err)
}

func TestRebase(t *testing.T) {
	tests := []struct {
		relDir, path, want string
	}{
		{".", "src/foo.js", "src/foo.js"},
		{"lib", "widget.js", "lib/widget.js"},
		{"lib", "../shared/foo.js", "shared/foo.js"},
		{"lib/deep", "./x.js", "lib/deep/x.js"},
		{"lib", "/abs/x.js", "/abs/x.js"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rebase(tt.relDir, tt.path), "%s + %s", tt.relDir, tt.path)
	}
}

func TestIndexProject(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "tags", rootTags)
	createTestFile(t, tmpDir, "lib/.tags", nestedTags)

	store := setupTestStorage(t)
	idx := New(store, nil)

	stats, err := idx.IndexProject(ctx, tmpDir, &Config{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TagFilesIndexed)
	assert.Equal(t, 0, stats.TagFilesSkipped)
	assert.Equal(t, 0, stats.TagFilesFailed)
	assert.Equal(t, 5, stats.TagsStored)
	assert.Equal(t, 0, stats.ParseErrors)

	project := projectFor(t, store, tmpDir)
	assert.Equal(t, 2, project.TotalTagFiles)
	assert.Equal(t, 5, project.TotalTags)
	assert.False(t, project.LastIndexedAt.IsZero())

	foos, err := store.ListTagsByName(ctx, project.ID, "Foo")
	require.NoError(t, err)
	require.Len(t, foos, 2)
	paths := []string{foos[0].FilePath, foos[1].FilePath}
	assert.ElementsMatch(t, []string{"src/foo.js", "shared/foo.js"}, paths)

	widgets, err := store.ListTagsByName(ctx, project.ID, "Widget")
	require.NoError(t, err)
	require.Len(t, widgets, 1)
	assert.Equal(t, "lib/widget.js", widgets[0].FilePath)
	assert.Equal(t, 10, widgets[0].Line)

	bars, err := store.ListTagsByName(ctx, project.ID, "bar")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "Foo", bars[0].Fields["class"])
}

func TestIndexProject_Incremental(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	tagsPath := createTestFile(t, tmpDir, "tags", rootTags)
	createTestFile(t, tmpDir, "lib/.tags", nestedTags)

	store := setupTestStorage(t)
	idx := New(store, nil)

	_, err := idx.IndexProject(ctx, tmpDir, nil)
	require.NoError(t, err)

	t.Run("unchanged files are skipped", func(t *testing.T) {
		stats, err := idx.IndexProject(ctx, tmpDir, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.TagFilesIndexed)
		assert.Equal(t, 2, stats.TagFilesSkipped)
	})

	t.Run("force re-indexes", func(t *testing.T) {
		stats, err := idx.IndexProject(ctx, tmpDir, &Config{Recursive: true, Force: true})
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TagFilesIndexed)
		assert.Equal(t, 5, stats.TagsStored)
		assert.Equal(t, 5, projectFor(t, store, tmpDir).TotalTags)
	})

	t.Run("modified file replaces its tags", func(t *testing.T) {
		require.NoError(t, os.WriteFile(tagsPath, []byte("Only\tonly.js\t1;\"\tc\n"), 0644))

		stats, err := idx.IndexProject(ctx, tmpDir, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TagFilesIndexed)
		assert.Equal(t, 1, stats.TagFilesSkipped)

		project := projectFor(t, store, tmpDir)
		foos, err := store.ListTagsByName(ctx, project.ID, "Foo")
		require.NoError(t, err)
		require.Len(t, foos, 1)
		assert.Equal(t, "shared/foo.js", foos[0].FilePath)
		assert.Equal(t, 3, project.TotalTags)
	})

	t.Run("deleted file is removed", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(tmpDir, "lib", ".tags")))

		stats, err := idx.IndexProject(ctx, tmpDir, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TagFilesRemoved)

		project := projectFor(t, store, tmpDir)
		assert.Equal(t, 1, project.TotalTagFiles)
		assert.Equal(t, 1, project.TotalTags)
	})
}

func TestIndexProject_ParseErrors(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "tags", "Good\tgood.js\t1;\"\tc\nbroken line\n")

	store := setupTestStorage(t)
	stats, err := New(store, nil).IndexProject(ctx, tmpDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TagFilesIndexed)
	assert.Equal(t, 1, stats.TagsStored)
	assert.Equal(t, 1, stats.ParseErrors)

	project := projectFor(t, store, tmpDir)
	file, err := store.GetTagFile(ctx, project.ID, "tags")
	require.NoError(t, err)
	assert.Equal(t, 1, file.ErrorCount)
	require.NotNil(t, file.ParseError)
	assert.Contains(t, *file.ParseError, "line 2")
}

func TestIndexProject_InvalidRoot(t *testing.T) {
	store := setupTestStorage(t)
	idx := New(store, nil)

	_, err := idx.IndexProject(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)

	file := createTestFile(t, t.TempDir(), "plain", "x")
	_, err = idx.IndexProject(context.Background(), file, nil)
	assert.Error(t, err)
}

func TestIndexProject_InProgress(t *testing.T) {
	idx := New(setupTestStorage(t), nil)
	require.True(t, idx.lock.TryAcquire())
	assert.True(t, idx.InProgress())

	_, err := idx.IndexProject(context.Background(), t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrIndexInProgress)

	idx.lock.Release()
	assert.False(t, idx.InProgress())
}

func TestIndexProject_Cancelled(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "tags", rootTags)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(setupTestStorage(t), nil).IndexProject(ctx, tmpDir, nil)
	assert.Error(t, err)
}

func TestIndexLock(t *testing.T) {
	var l IndexLock
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
	l.Release()
	assert.True(t, l.TryAcquire())
}
