package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dekelcohen/CTags/internal/parser"
	"github.com/dekelcohen/CTags/internal/storage"
	"github.com/dekelcohen/CTags/pkg/types"
)

// ErrIndexInProgress is returned when another indexing run holds the lock
var ErrIndexInProgress = errors.New("indexing already in progress")

// DefaultTagFileNames are the tag file names discovered when Config names none
var DefaultTagFileNames = []string{"tags", ".tags"}

// DefaultSkipDirs are never descended into during discovery
var DefaultSkipDirs = []string{".git", ".hg", ".svn", "node_modules"}

// Indexer coordinates the indexing pipeline: discover -> parse -> store
type Indexer struct {
	parser  *parser.Parser
	storage storage.Storage
	logger  *slog.Logger
	lock    IndexLock
}

// Config contains configuration for the indexer
type Config struct {
	Workers      int      // Number of concurrent parsers (default: runtime.NumCPU())
	TagFileNames []string // File names treated as tag files (default: DefaultTagFileNames)
	Recursive    bool     // Look for tag files below the root, not only in it
	SkipDirs     []string // Directory names never walked (default: DefaultSkipDirs)
	Force        bool     // Re-index tag files even when their hash is unchanged
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	TagFilesIndexed int
	TagFilesSkipped int
	TagFilesFailed  int
	TagFilesRemoved int
	TagsStored      int
	ParseErrors     int
	Duration        time.Duration
	ErrorMessages   []string
}

// New creates a new Indexer instance
func New(store storage.Storage, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		parser:  parser.New(),
		storage: store,
		logger:  logger,
	}
}

// parsedFile is one tag file ready to be stored
type parsedFile struct {
	relPath string
	relDir  string
	hash    [32]byte
	modTime time.Time
	size    int64
	result  *types.TagFileResult
}

// IndexProject indexes every tag file of the project rooted at rootPath.
// Unchanged tag files are skipped unless config.Force is set, and tag files
// that disappeared since the last run are removed from the index.
func (idx *Indexer) IndexProject(ctx context.Context, rootPath string, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexInProgress
	}
	defer idx.lock.Release()

	config = WithDefaults(config)
	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat project path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project path %s is not a directory", absRoot)
	}

	project, err := idx.getOrCreateProject(ctx, absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create project: %w", err)
	}

	files, err := discoverTagFiles(absRoot, config)
	if err != nil {
		return nil, fmt.Errorf("failed to discover tag files: %w", err)
	}
	idx.logger.Debug("index.discovered", "project", absRoot, "tag_files", len(files))

	parsed, err := idx.parseFiles(ctx, project, files, config, stats)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tag files: %w", err)
	}

	for _, pf := range parsed {
		if err := idx.storeFile(ctx, project, pf); err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", pf.relPath, err)
		}
		stats.TagFilesIndexed++
		stats.TagsStored += len(pf.result.Tags)
		stats.ParseErrors += len(pf.result.Errors)
	}

	removed, err := idx.removeStale(ctx, project, files)
	if err != nil {
		return nil, fmt.Errorf("failed to remove stale tag files: %w", err)
	}
	stats.TagFilesRemoved = removed

	if err := idx.updateProjectStats(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project stats: %w", err)
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info("index.done",
		"project", absRoot,
		"indexed", stats.TagFilesIndexed,
		"skipped", stats.TagFilesSkipped,
		"failed", stats.TagFilesFailed,
		"removed", stats.TagFilesRemoved,
		"tags", stats.TagsStored,
		"parse_errors", stats.ParseErrors,
		"duration", stats.Duration)
	return stats, nil
}

// InProgress reports whether an indexing run currently holds the lock
func (idx *Indexer) InProgress() bool {
	if idx.lock.TryAcquire() {
		idx.lock.Release()
		return false
	}
	return true
}

// WithDefaults returns a copy of config with unset fields filled in. A nil
// config indexes recursively.
func WithDefaults(config *Config) *Config {
	c := Config{Recursive: true}
	if config != nil {
		c = *config
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if len(c.TagFileNames) == 0 {
		c.TagFileNames = DefaultTagFileNames
	}
	if c.SkipDirs == nil {
		c.SkipDirs = DefaultSkipDirs
	}
	return &c
}

// SkipDir reports whether a directory with this base name is left out of
// discovery. The watcher uses the same rule so that every indexed tag file
// is also watched.
func (c *Config) SkipDir(name string) bool {
	return slices.Contains(c.SkipDirs, name)
}

// getOrCreateProject retrieves an existing project or creates a new one
func (idx *Indexer) getOrCreateProject(ctx context.Context, rootPath string) (*storage.Project, error) {
	project, err := idx.storage.GetProject(ctx, rootPath)
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	project = &storage.Project{
		RootPath:     rootPath,
		IndexVersion: storage.CurrentSchemaVersion,
	}
	if err := idx.storage.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// discoverTagFiles returns the tag files under rootPath, relative to it and
// sorted
func discoverTagFiles(rootPath string, config *Config) ([]string, error) {
	names := make(map[string]bool, len(config.TagFileNames))
	for _, n := range config.TagFileNames {
		names[n] = true
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == rootPath {
				return nil
			}
			if !config.Recursive || config.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !names[d.Name()] || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(rootPath, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(files)
	return files, err
}

// parseFiles hashes and parses tag files concurrently. Unchanged files are
// counted as skipped and left out of the result; a file that cannot be read
// fails alone without stopping the run.
func (idx *Indexer) parseFiles(ctx context.Context, project *storage.Project, files []string, config *Config, stats *Statistics) ([]*parsedFile, error) {
	var (
		skipped int32
		failed  int32
		mu      sync.Mutex
	)
	results := make([]*parsedFile, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)

	for i, relPath := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pf, err := idx.parseFile(gctx, project, relPath, config.Force)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", relPath, err))
				mu.Unlock()
				idx.logger.Warn("index.file.failed", "file", relPath, "error", err)
				return nil
			}
			if pf == nil {
				atomic.AddInt32(&skipped, 1)
				return nil
			}
			results[i] = pf
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.TagFilesSkipped = int(skipped)
	stats.TagFilesFailed = int(failed)

	parsed := make([]*parsedFile, 0, len(results))
	for _, pf := range results {
		if pf != nil {
			parsed = append(parsed, pf)
		}
	}
	return parsed, nil
}

// parseFile returns nil when the stored hash matches and force is off
func (idx *Indexer) parseFile(ctx context.Context, project *storage.Project, relPath string, force bool) (*parsedFile, error) {
	absPath := filepath.Join(project.RootPath, filepath.FromSlash(relPath))

	hash, modTime, size, err := computeFileHash(absPath)
	if err != nil {
		return nil, err
	}

	if !force {
		existing, err := idx.storage.GetTagFile(ctx, project.ID, relPath)
		switch {
		case err == nil && existing.ContentHash == hash:
			return nil, nil
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return nil, err
		}
	}

	result, err := idx.parser.ParseFile(absPath)
	if err != nil {
		return nil, err
	}

	return &parsedFile{
		relPath: relPath,
		relDir:  filepath.ToSlash(filepath.Dir(filepath.FromSlash(relPath))),
		hash:    hash,
		modTime: modTime,
		size:    size,
		result:  result,
	}, nil
}

// storeFile replaces the stored tags of one tag file in a single transaction
func (idx *Indexer) storeFile(ctx context.Context, project *storage.Project, pf *parsedFile) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	file := &storage.TagFile{
		ProjectID:   project.ID,
		FilePath:    pf.relPath,
		ContentHash: pf.hash,
		ModTime:     pf.modTime,
		SizeBytes:   pf.size,
		TagCount:    len(pf.result.Tags),
		ErrorCount:  len(pf.result.Errors),
	}
	if pf.result.HasErrors() {
		first := pf.result.Errors[0]
		msg := fmt.Sprintf("line %d: %s", first.Line, first.Message)
		file.ParseError = &msg
	}
	if err := tx.UpsertTagFile(ctx, file); err != nil {
		return err
	}
	if err := tx.DeleteTagsByFile(ctx, file.ID); err != nil {
		return fmt.Errorf("failed to delete old tags: %w", err)
	}

	records := make([]*storage.TagRecord, len(pf.result.Tags))
	for i, tag := range pf.result.Tags {
		tag.FilePath = rebase(pf.relDir, tag.FilePath)
		records[i] = storage.FromTypesTag(tag, file.ID, i)
	}
	if err := tx.InsertTags(ctx, records); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// rebase makes a tag path from a nested tag file relative to the project
// root. Paths from a root tag file are kept verbatim.
func rebase(relDir, tagPath string) string {
	if relDir == "." || relDir == "" || filepath.IsAbs(tagPath) || strings.HasPrefix(tagPath, "/") {
		return tagPath
	}
	return filepath.ToSlash(filepath.Join(filepath.FromSlash(relDir), filepath.FromSlash(tagPath)))
}

// removeStale deletes indexed tag files that were not discovered this run
func (idx *Indexer) removeStale(ctx context.Context, project *storage.Project, discovered []string) (int, error) {
	present := make(map[string]bool, len(discovered))
	for _, f := range discovered {
		present[f] = true
	}

	stored, err := idx.storage.ListTagFiles(ctx, project.ID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, file := range stored {
		if present[file.FilePath] {
			continue
		}
		if err := idx.storage.DeleteTagFile(ctx, file.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// updateProjectStats updates the project's tag file and tag counts
func (idx *Indexer) updateProjectStats(ctx context.Context, project *storage.Project) error {
	status, err := idx.storage.GetStatus(ctx, project.ID)
	if err != nil {
		return err
	}

	project.TotalTagFiles = status.TagFilesCount
	project.TotalTags = status.TagsCount
	project.LastIndexedAt = time.Now()

	return idx.storage.UpdateProject(ctx, project)
}

// computeFileHash computes SHA-256 hash of a file
func computeFileHash(filePath string) ([32]byte, time.Time, int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}

	var result [32]byte
	copy(result[:], hash.Sum(nil))

	return result, info.ModTime(), info.Size(), nil
}
