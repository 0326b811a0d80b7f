package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dekelcohen/CTags/internal/buffer"
	"github.com/dekelcohen/CTags/internal/ranker"
	"github.com/dekelcohen/CTags/internal/storage"
	"github.com/dekelcohen/CTags/pkg/types"
)

var (
	// ErrProjectNotIndexed is returned for a project root with no index
	ErrProjectNotIndexed = errors.New("project not indexed")
	// ErrInvalidRequest wraps request validation failures
	ErrInvalidRequest = errors.New("invalid request")
)

const (
	DefaultLimit     = 20
	DefaultCacheSize = 256
	DefaultCacheTTL  = 5 * time.Minute
)

// Request asks for the definition of the reference at a cursor
type Request struct {
	ProjectPath string
	FilePath    string   // absolute, or relative to ProjectPath
	Line        int      // 1-based
	Column      int      // 1-based, in characters
	Symbol      string   // when set, skips extraction at the cursor
	Receiver    []string // receiver chain for Symbol
	Content     *string  // unsaved buffer text, read from disk when nil
	Limit       int
}

// Candidate is a ranked tag with its path resolved against the project root
type Candidate struct {
	types.RankedTag
	AbsPath string
}

// Response contains ranked definitions and metadata
type Response struct {
	Symbol          string
	Receiver        []string
	Source          string
	Import          *ranker.ImportResolution
	Candidates      []Candidate
	TotalCandidates int
	Duration        time.Duration
	CacheHit        bool
}

// Navigator answers "go to definition" requests from the tag index
type Navigator struct {
	storage storage.Storage
	ranker  *ranker.Ranker
	cache   *bufferCache
	logger  *slog.Logger
}

// New creates a Navigator. logger may be nil.
func New(store storage.Storage, rk *ranker.Ranker, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := newBufferCache(DefaultCacheSize, DefaultCacheTTL)
	if err != nil {
		// only fails for a non-positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Navigator{storage: store, ranker: rk, cache: cache, logger: logger}
}

// GotoDefinition ranks the indexed tags named like the reference at the
// request's cursor, best first
func (n *Navigator) GotoDefinition(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(req.ProjectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path: %w", err)
	}
	project, err := n.storage.GetProject(ctx, root)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotIndexed, root)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	filePath := req.FilePath
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(root, filePath)
	}

	var (
		buf *buffer.Buffer
		hit bool
	)
	if req.Content != nil {
		buf = buffer.New(filePath, *req.Content)
	} else {
		buf, hit, err = n.cache.load(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", req.FilePath, err)
		}
	}

	settings := n.ranker.Settings()
	lang := settings.Language(settings.SourceForFile(filePath))
	line, col := req.Line-1, req.Column-1

	var ref ranker.Reference
	if req.Symbol != "" {
		ref = ranker.Reference{
			Symbol:   req.Symbol,
			Receiver: req.Receiver,
			Line:     buf.Line(line),
			Source:   lang.Source,
		}
		if req.Line > 0 {
			point := buf.TextPoint(line, byteOffset(buf.Line(line), col))
			ref.Region = &ranker.Region{Begin: point, End: point}
		}
	} else {
		ref, err = ExtractReference(lang, buf, line, col)
		if err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := n.storage.ListTagsByName(ctx, project.ID, ref.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	tags := make([]types.Tag, len(records))
	for i, rec := range records {
		tags[i] = rec.ToTypesTag()
	}

	result := n.ranker.RankWithImport(ref, buf, tags)
	ranked := result.Tags
	total := len(ranked)
	if len(ranked) > req.Limit {
		ranked = ranked[:req.Limit]
	}

	candidates := make([]Candidate, len(ranked))
	for i, rt := range ranked {
		candidates[i] = Candidate{RankedTag: rt, AbsPath: absTagPath(root, rt.Tag.FilePath)}
	}

	resp := &Response{
		Symbol:          ref.Symbol,
		Receiver:        ref.Receiver,
		Source:          ref.Source,
		Candidates:      candidates,
		TotalCandidates: total,
		CacheHit:        hit,
	}
	if imp := result.Import; imp.Path != "" {
		resp.Import = &imp
	}
	resp.Duration = time.Since(startTime)

	n.logger.Debug("navigate.done",
		"symbol", ref.Symbol,
		"receiver", strings.Join(ref.Receiver, "."),
		"candidates", len(tags),
		"returned", len(candidates),
		"duration", resp.Duration)
	return resp, nil
}

// InvalidateCache drops every cached buffer
func (n *Navigator) InvalidateCache() {
	n.cache.purge()
}

// CacheStats reports buffer cache hits, misses, and current size
func (n *Navigator) CacheStats() (hits, misses, size int) {
	return n.cache.stats()
}

func validateRequest(req *Request) error {
	if req.ProjectPath == "" {
		return fmt.Errorf("%w: project path is required", ErrInvalidRequest)
	}
	if req.FilePath == "" {
		return fmt.Errorf("%w: file path is required", ErrInvalidRequest)
	}
	if req.Symbol == "" && (req.Line < 1 || req.Column < 1) {
		return fmt.Errorf("%w: line and column must be >= 1 without a symbol", ErrInvalidRequest)
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	return nil
}

func absTagPath(root, tagPath string) string {
	if filepath.IsAbs(tagPath) {
		return filepath.Clean(tagPath)
	}
	return filepath.Join(root, filepath.FromSlash(tagPath))
}
