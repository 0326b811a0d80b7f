// Package indexer loads ctags tag files into the tag index.
//
// # Basic Usage
//
//	idx := indexer.New(store, logger)
//
//	stats, err := idx.IndexProject(ctx, "/path/to/project", &indexer.Config{
//	    Recursive: true,
//	})
//
//	fmt.Printf("Indexed %d tag files in %v\n", stats.TagFilesIndexed, stats.Duration)
//
// # Pipeline
//
//  1. Discovery: walk the project for files named "tags" or ".tags"
//  2. Incremental decision: compare SHA-256 hashes, skip unchanged files
//  3. Parse: read tag files concurrently, bounded by Config.Workers
//  4. Store: replace each tag file's tags in one transaction
//  5. Cleanup: drop tag files that no longer exist on disk
//
// Tag paths in a nested tag file are relative to that file's directory, so
// they are rebased onto the project root before storage.
//
// Only one IndexProject call runs at a time per Indexer; a concurrent call
// fails fast with ErrIndexInProgress.
package indexer
