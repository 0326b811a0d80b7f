package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexTagsTool returns the tool definition for index_tags
func indexTagsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_tags",
		Description: "Load a project's ctags tag files into the definition index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root holding tags or .tags files",
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-index every tag file ignoring content hashes",
					"default":     false,
				},
				"recursive": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, also load tag files found in subdirectories",
					"default":     true,
				},
			},
			Required: []string{"path"},
		},
	}
}

// gotoDefinitionTool returns the tool definition for goto_definition
func gotoDefinitionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "goto_definition",
		Description: "Rank the indexed definitions of the symbol at a cursor position, best first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to an indexed project",
				},
				"file": map[string]interface{}{
					"type":        "string",
					"description": "File holding the reference, absolute or relative to path",
				},
				"line": map[string]interface{}{
					"type":        "integer",
					"description": "1-based line of the cursor",
					"minimum":     1,
				},
				"column": map[string]interface{}{
					"type":        "integer",
					"description": "1-based column of the cursor, counted in characters",
					"minimum":     1,
				},
				"symbol": map[string]interface{}{
					"type":        "string",
					"description": "Symbol to look up instead of the one under the cursor",
				},
				"receiver": map[string]interface{}{
					"type":        "array",
					"description": "Member chain before symbol, e.g. [\"list\", \"provider\"] for list.provider.add",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Unsaved file content to use instead of reading the file",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of candidates to return (1-100)",
					"default":     20,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"path", "file"},
		},
	}
}

// searchTagsTool returns the tool definition for search_tags
func searchTagsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_tags",
		Description: "Search indexed tag names by prefix",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to an indexed project",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Tag name prefixes, space separated",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query indexing status and statistics for a project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project",
				},
			},
			Required: []string{"path"},
		},
	}
}
