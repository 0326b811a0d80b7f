package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dekelcohen/CTags/internal/indexer"
	"github.com/dekelcohen/CTags/internal/navigator"
	"github.com/dekelcohen/CTags/internal/profile"
	"github.com/dekelcohen/CTags/internal/ranker"
	"github.com/dekelcohen/CTags/internal/storage"
	"github.com/dekelcohen/CTags/internal/watcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "ctagsrank"
	// DefaultDBPath is the default location for the database
	DefaultDBPath = "~/.ctagsrank/indices"
	// DBFileName is the index file inside the database directory
	DBFileName = "ctagsrank.db"
)

// ServerVersion is reported to MCP clients; set by the CLI at link time
var ServerVersion = "1.0.0"

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	storage   storage.Storage
	indexer   *indexer.Indexer
	navigator *navigator.Navigator
	logger    *slog.Logger
}

// NewServer opens the index under dbPath and registers the tools. settings
// may be nil for the built-in language profiles.
func NewServer(dbPath string, settings *profile.Settings, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if settings == nil {
		var err error
		if settings, err = profile.Default(); err != nil {
			return nil, fmt.Errorf("failed to load default settings: %w", err)
		}
	}

	dir, err := ExpandDBPath(dbPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, DBFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		storage:   store,
		indexer:   indexer.New(store, logger),
		navigator: navigator.New(store, ranker.New(settings, ranker.WithLogger(logger)), logger),
		logger:    logger,
	}
	s.registerTools()
	return s, nil
}

// ExpandDBPath resolves "" and a leading "~" against the home directory
func ExpandDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if dbPath == "~" || strings.HasPrefix(dbPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, strings.TrimPrefix(dbPath, "~"))
	}
	return dbPath, nil
}

// Serve starts the MCP server on stdio and blocks until the client
// disconnects or ctx is cancelled. The caller closes the server.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// Close releases the index
func (s *Server) Close() error {
	return s.storage.Close()
}

// Storage exposes the index for the CLI's one-shot commands
func (s *Server) Storage() storage.Storage {
	return s.storage
}

// Indexer exposes the indexer for the CLI's one-shot commands
func (s *Server) Indexer() *indexer.Indexer {
	return s.indexer
}

// Navigator exposes the navigator for the CLI's one-shot commands
func (s *Server) Navigator() *navigator.Navigator {
	return s.navigator
}

// WatchProject re-indexes root whenever one of its tag files changes. It
// blocks until ctx is cancelled.
func (s *Server) WatchProject(ctx context.Context, root string, cfg *indexer.Config) error {
	cfg = indexer.WithDefaults(cfg)
	wcfg := watcher.Config{
		TagFileNames: cfg.TagFileNames,
		Recursive:    cfg.Recursive,
		SkipDir:      cfg.SkipDir,
	}

	return watcher.Watch(ctx, root, wcfg,
		func(ctx context.Context, events []watcher.Event) {
			stats, err := s.indexer.IndexProject(ctx, root, cfg)
			if err != nil {
				s.logger.Warn("watch.reindex_failed", "root", root, "events", len(events), "error", err)
				return
			}
			s.logger.Info("watch.reindexed", "root", root, "events", len(events), "tag_files", stats.TagFilesIndexed)
		}, s.logger)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexTagsTool(), s.handleIndexTags)
	s.mcp.AddTool(gotoDefinitionTool(), s.handleGotoDefinition)
	s.mcp.AddTool(searchTagsTool(), s.handleSearchTags)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
