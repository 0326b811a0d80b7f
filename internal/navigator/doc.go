// Package navigator answers "go to definition" requests against the tag
// index.
//
// A request names a project, a file, and a cursor. The navigator loads the
// file (through an LRU cache keyed by path, refreshed when the file changes),
// picks the language profile from the file extension, extracts the symbol
// and receiver chain under the cursor, fetches every indexed tag with that
// name, and hands them to the ranker.
//
//	nav := navigator.New(store, ranker.New(settings), logger)
//	resp, err := nav.GotoDefinition(ctx, navigator.Request{
//	    ProjectPath: "/src/app",
//	    FilePath:    "web/main.js",
//	    Line:        12,
//	    Column:      18,
//	})
//
// Candidates come back best first. Unsaved editor content can be passed in
// Request.Content instead of reading the file from disk.
package navigator
