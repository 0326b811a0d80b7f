package ranker

import "regexp"

// Region is a half-open interval of buffer offsets
type Region struct {
	Begin int
	End   int
}

// Empty reports whether the region covers no characters
func (r Region) Empty() bool {
	return r.End <= r.Begin
}

// View is the text buffer the reference was made in
type View interface {
	// FileName returns the absolute path of the buffer, or "" when unsaved
	FileName() string

	// TextPoint converts a 0-based line and column to a buffer offset
	TextPoint(line, col int) int

	// Find returns the first match of re at or after offset from
	Find(re *regexp.Regexp, from int) (Region, bool)

	// Substr returns the text covered by r
	Substr(r Region) string
}

// Reference is the symbol the user asked to go to
type Reference struct {
	// Symbol is the bare identifier, e.g. "fetch" in youtube.player.fetch()
	Symbol string

	// Receiver is the member chain before Symbol, e.g. ["youtube", "player"]
	Receiver []string

	// Region is the cursor selection, nil when there is none
	Region *Region

	// Line is the full text of the line holding the reference
	Line string

	// Source is the language scope, e.g. "source.js". When empty it is
	// derived from the view's file extension.
	Source string
}
