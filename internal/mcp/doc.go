// Package mcp implements the Model Context Protocol (MCP) server for ctagsrank.
//
// The server exposes four tools to AI coding assistants:
//   - index_tags: Load a project's ctags tag files into the index
//   - goto_definition: Rank the definitions of the symbol at a cursor
//   - search_tags: Prefix search over indexed tag names
//   - get_status: Check indexing status and statistics
//
// The server communicates with MCP clients over stdio; logs go to stderr.
//
//	ctagsrank serve
//
// # Tool: goto_definition
//
//	Request:
//	{
//	  "name": "goto_definition",
//	  "arguments": {
//	    "path": "/path/to/project",
//	    "file": "web/app.js",
//	    "line": 12,
//	    "column": 18
//	  }
//	}
//
//	Response:
//	{
//	  "symbol": "add",
//	  "receiver": ["list", "provider"],
//	  "language": "source.js",
//	  "candidates": [
//	    {
//	      "rank": 1,
//	      "rank_score": 82,
//	      "name": "add",
//	      "kind": "m",
//	      "file": "utils/list/provider.js",
//	      "line": 40,
//	      "breakdown": {"type": 60, "same_file": 0, "member": 22, "import": 0}
//	    }
//	  ],
//	  "total_candidates": 7
//	}
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "ctagsrank": {
//	      "command": "/usr/local/bin/ctagsrank",
//	      "args": ["serve"]
//	    }
//	  }
//	}
//
// # Error Handling
//
// Handlers return *MCPError values carrying JSON-RPC style codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32001: Project not found
//   - -32002: Indexing in progress
//   - -32003: Project not indexed
//   - -32004: No symbol at the cursor, or an empty query
package mcp
