package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]Event
}

func (r *recorder) onChange(_ context.Context, events []Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, events)
}

func (r *recorder) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, b := range r.batches {
		for _, e := range b {
			if !seen[e.Path] {
				seen[e.Path] = true
				out = append(out, e.Path)
			}
		}
	}
	return out
}

func testConfig() Config {
	return Config{
		TagFileNames: []string{"tags", ".tags"},
		Recursive:    true,
		SkipDir:      func(name string) bool { return name == "node_modules" },
		Debounce:     50 * time.Millisecond,
	}
}

func startWatcher(t *testing.T, root string) *recorder {
	t.Helper()
	return startWatcherWith(t, root, testConfig())
}

func startWatcherWith(t *testing.T, root string, cfg Config) *recorder {
	t.Helper()
	rec := &recorder{}
	w, err := New(root, cfg, rec.onChange, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return rec
}

func TestWatcher_TagFileWrite(t *testing.T) {
	root := t.TempDir()
	rec := startWatcher(t, root)

	tags := filepath.Join(root, "tags")
	require.NoError(t, os.WriteFile(tags, []byte("a\tb\t1;\"\tc\n"), 0644))

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{tags}, rec.paths())
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	rec := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "main.js"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".tags"), []byte("x"), 0644))

	assert.Eventually(t, func() bool {
		return len(rec.paths()) == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{filepath.Join(root, ".tags")}, rec.paths())
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	root := t.TempDir()
	rec := startWatcher(t, root)

	sub := filepath.Join(root, "lib")
	require.NoError(t, os.Mkdir(sub, 0755))

	nested := filepath.Join(sub, "tags")
	// the directory watch is added asynchronously; keep rewriting until seen
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(nested, []byte("x"), 0644)
		for _, p := range rec.paths() {
			if p == nested {
				return true
			}
		}
		return false
	}, 5*time.Second, 100*time.Millisecond)
}

func TestWatcher_Debounce(t *testing.T) {
	root := t.TempDir()
	rec := startWatcher(t, root)

	tags := filepath.Join(root, "tags")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(tags, []byte{byte('a' + i)}, 0644))
	}

	assert.Eventually(t, func() bool {
		return len(rec.paths()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, batch := range rec.batches {
		assert.Len(t, batch, 1, "one event per path per batch")
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New(t.TempDir(), Config{}, nil, nil)
	assert.Error(t, err)

	_, err = New(filepath.Join(t.TempDir(), "missing"), Config{TagFileNames: []string{"tags"}}, nil, nil)
	assert.Error(t, err)
}

func TestWatcher_DotDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".config"), 0755))
	rec := startWatcher(t, root)

	tags := filepath.Join(root, ".config", "tags")
	require.NoError(t, os.WriteFile(tags, []byte("x"), 0644))

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{tags}, rec.paths())
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_SkippedDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0755))
	rec := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "pkg", "tags"), []byte("x"), 0644))
	tags := filepath.Join(root, "tags")
	require.NoError(t, os.WriteFile(tags, []byte("x"), 0644))

	assert.Eventually(t, func() bool {
		return len(rec.paths()) > 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{tags}, rec.paths())
}

func TestWatcher_RootOnly(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "lib"), 0755))
	cfg := testConfig()
	cfg.Recursive = false
	rec := startWatcherWith(t, root, cfg)

	require.NoError(t, os.WriteFile(filepath.Join(root, "lib", "tags"), []byte("x"), 0644))
	tags := filepath.Join(root, "tags")
	require.NoError(t, os.WriteFile(tags, []byte("x"), 0644))

	assert.Eventually(t, func() bool {
		return len(rec.paths()) > 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{tags}, rec.paths())
}

func TestSkipDir(t *testing.T) {
	w := &Watcher{}
	assert.False(t, w.skipDir(".git"), "nil predicate skips nothing")

	w.skip = func(name string) bool { return name == "node_modules" }
	assert.True(t, w.skipDir("node_modules"))
	assert.False(t, w.skipDir(".config"))
	assert.False(t, w.skipDir("src"))
}
