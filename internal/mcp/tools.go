package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dekelcohen/CTags/internal/indexer"
	"github.com/dekelcohen/CTags/internal/navigator"
	"github.com/dekelcohen/CTags/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound    = -32001 // Specified path is not a readable directory
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Project not indexed
	ErrorCodeEmptySymbol        = -32004 // No symbol or query to look up
)

const maxErrorsReported = 5

// handleIndexTags handles the index_tags tool invocation
func (s *Server) handleIndexTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	config := &indexer.Config{
		Force:     getBoolDefault(args, "force", false),
		Recursive: getBoolDefault(args, "recursive", true),
	}

	stats, err := s.indexer.IndexProject(ctx, path, config)
	if errors.Is(err, indexer.ErrIndexInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
			"path": path,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":           true,
		"tag_files_indexed": stats.TagFilesIndexed,
		"tag_files_skipped": stats.TagFilesSkipped,
		"tag_files_failed":  stats.TagFilesFailed,
		"tag_files_removed": stats.TagFilesRemoved,
		"tags_stored":       stats.TagsStored,
		"parse_errors":      stats.ParseErrors,
		"duration_ms":       stats.Duration.Milliseconds(),
	}

	if n := len(stats.ErrorMessages); n > 0 {
		if n > maxErrorsReported {
			response["errors"] = stats.ErrorMessages[:maxErrorsReported]
			response["error_count"] = n
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGotoDefinition handles the goto_definition tool invocation
func (s *Server) handleGotoDefinition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	file := getStringDefault(args, "file", "")
	if file == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "file parameter is required", map[string]interface{}{
			"param":  "file",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", navigator.DefaultLimit)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	req := navigator.Request{
		ProjectPath: path,
		FilePath:    file,
		Line:        getIntDefault(args, "line", 0),
		Column:      getIntDefault(args, "column", 0),
		Symbol:      getStringDefault(args, "symbol", ""),
		Receiver:    getStringSlice(args, "receiver"),
		Limit:       limit,
	}
	if content, ok := args["content"].(string); ok {
		req.Content = &content
	}

	resp, err := s.navigator.GotoDefinition(ctx, req)
	switch {
	case errors.Is(err, navigator.ErrProjectNotIndexed):
		return nil, newMCPError(ErrorCodeNotIndexed, "project not indexed", map[string]interface{}{
			"path": path,
			"hint": "run index_tags first",
		})
	case errors.Is(err, navigator.ErrNoSymbol):
		return nil, newMCPError(ErrorCodeEmptySymbol, "no symbol at cursor", map[string]interface{}{
			"line":   req.Line,
			"column": req.Column,
		})
	case errors.Is(err, navigator.ErrInvalidRequest), errors.Is(err, os.ErrNotExist):
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid request", map[string]interface{}{
			"reason": err.Error(),
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "goto definition failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	candidates := make([]map[string]interface{}, len(resp.Candidates))
	for i, c := range resp.Candidates {
		candidate := map[string]interface{}{
			"rank":       c.Rank,
			"rank_score": c.RankScore,
			"name":       c.Tag.Name,
			"kind":       c.Tag.Kind,
			"file":       c.Tag.FilePath,
			"abs_path":   c.AbsPath,
			"line":       c.Tag.Line,
			"breakdown": map[string]interface{}{
				"type":      c.Breakdown.Type,
				"same_file": c.Breakdown.SameFile,
				"member":    c.Breakdown.Member,
				"import":    c.Breakdown.Import,
			},
		}
		if c.Tag.Scope != "" {
			candidate["scope"] = c.Tag.Scope
		}
		if c.Tag.Pattern != "" {
			candidate["pattern"] = c.Tag.Pattern
		}
		candidates[i] = candidate
	}

	response := map[string]interface{}{
		"symbol":           resp.Symbol,
		"receiver":         resp.Receiver,
		"language":         resp.Source,
		"candidates":       candidates,
		"total_candidates": resp.TotalCandidates,
		"duration_ms":      resp.Duration.Milliseconds(),
	}
	if resp.Import != nil {
		response["import"] = map[string]interface{}{
			"path":   resp.Import.Path,
			"exists": resp.Import.Exists,
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchTags handles the search_tags tool invocation
func (s *Server) handleSearchTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	query := getStringDefault(args, "query", "")
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptySymbol, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	project, err := s.storage.GetProject(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNotIndexed, "project not indexed", map[string]interface{}{
			"path": path,
			"hint": "run index_tags first",
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results, err := s.storage.SearchTags(ctx, project.ID, query, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	tags := make([]map[string]interface{}, len(results))
	for i, r := range results {
		tags[i] = map[string]interface{}{
			"name":  r.Tag.Name,
			"kind":  r.Tag.Kind,
			"file":  r.Tag.FilePath,
			"line":  r.Tag.Line,
			"score": r.BM25Score,
		}
	}

	response := map[string]interface{}{
		"query":   query,
		"results": tags,
		"count":   len(tags),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	project, err := s.storage.GetProject(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		response := map[string]interface{}{
			"indexed": false,
			"path":    path,
			"message": "Project not indexed. Use index_tags tool to index this project.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get project status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	status, err := s.storage.GetStatus(ctx, project.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":     true,
		"in_progress": s.indexer.InProgress(),
		"project": map[string]interface{}{
			"path":            project.RootPath,
			"index_version":   project.IndexVersion,
			"last_indexed_at": project.LastIndexedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
		"statistics": map[string]interface{}{
			"tag_files_count": status.TagFilesCount,
			"tags_count":      status.TagsCount,
			"parse_errors":    status.ErrorCount,
			"index_size_mb":   fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible": status.Health.DatabaseAccessible,
			"fts_indexes_built":   status.Health.FTSIndexesBuilt,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requirePath extracts and validates the project path argument
func requirePath(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrPathNotFound) || errors.Is(err, ErrNotDirectory) {
			code = ErrorCodeProjectNotFound
		}
		return "", newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return filepath.Clean(path), nil
}

// validatePath checks if a path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter; non-string items are
// skipped
func getStringSlice(args map[string]interface{}, key string) []string {
	switch val := args[key].(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
