// Package types provides shared type definitions for ctagsrank.
//
// Tag is one definition record from a ctags tag index: a name, a
// language-specific kind, the project relative file that defines it, and an
// optional lexical scope range.
//
//	tag := types.Tag{
//	    Name:     "fetch",
//	    Kind:     "f",
//	    FilePath: "./google/video/youtube.js",
//	    Scope:    "12:3-40:1",
//	}
//
// RankedTag is what the ranking engine hands back: the tag, its 1-based
// position, the rank score for the pass that produced it and a per-heuristic
// breakdown of that score.
//
// TagFileResult is the parser output for a whole tag file, including pseudo
// tags and non-fatal per-line errors.
package types
