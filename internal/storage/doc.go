// Package storage provides SQLite-based persistence for indexed tag files.
//
// The storage layer manages:
//   - Project metadata (root path, totals, last index time)
//   - Tag files and their SHA-256 content hashes
//   - Tags, with extension fields stored as JSON
//   - An FTS5 index over tag names, kinds and paths
//
// # Database Schema
//
// Tables:
//   - projects: one row per indexed source tree
//   - tag_files: tracked ctags files, relative to the project root
//   - tags: tag records, ordered within their tag file by ordinal
//   - tags_fts: FTS5 external content index kept in sync by triggers
//
// Schema versions are applied in semver order by ApplyMigrations.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.ctagsrank/indices/project.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	records, err := db.ListTagsByName(ctx, project.ID, "fetch")
//
// # Transactions
//
// Replacing the tags of one tag file is done atomically:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.DeleteTagsByFile(ctx, file.ID)
//	_ = tx.InsertTags(ctx, records)
//	_ = tx.UpsertTagFile(ctx, file)
//
//	if err := tx.Commit(); err != nil {
//	    return err
//	}
//
// # Drivers
//
// The default build uses modernc.org/sqlite. Building with the sqlite_cgo
// tag switches to github.com/mattn/go-sqlite3 (add sqlite_fts5 for FTS5).
package storage
