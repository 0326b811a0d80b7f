// Package buffer provides an in-memory text buffer that serves as the view
// a reference is ranked against.
package buffer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/dekelcohen/CTags/internal/ranker"
)

// Buffer is an immutable snapshot of a file's text. Offsets are byte offsets;
// lines and columns are 0-based.
type Buffer struct {
	path  string
	text  string
	lines []int // offset of the first byte of each line
}

// New creates a buffer over text. path may be empty for unsaved content.
func New(path, text string) *Buffer {
	lines := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, i+1)
		}
	}
	return &Buffer{path: path, text: text, lines: lines}
}

// Load reads the file at path into a buffer
func Load(path string) (*Buffer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return New(abs, string(data)), nil
}

// FileName returns the buffer's path
func (b *Buffer) FileName() string {
	return b.path
}

// Text returns the whole buffer
func (b *Buffer) Text() string {
	return b.text
}

// Size returns the buffer length in bytes
func (b *Buffer) Size() int {
	return len(b.text)
}

// LineCount returns the number of lines
func (b *Buffer) LineCount() int {
	return len(b.lines)
}

// TextPoint converts a 0-based line and column into an offset. Out of range
// values are clamped to the buffer and to the line.
func (b *Buffer) TextPoint(line, col int) int {
	if line < 0 {
		return 0
	}
	if line >= len(b.lines) {
		return len(b.text)
	}
	start, end := b.lineBounds(line)
	if col < 0 {
		col = 0
	}
	if start+col > end {
		return end
	}
	return start + col
}

// RowCol converts an offset back into a 0-based line and column
func (b *Buffer) RowCol(offset int) (int, int) {
	offset = max(0, min(offset, len(b.text)))
	line := sort.Search(len(b.lines), func(i int) bool { return b.lines[i] > offset }) - 1
	return line, offset - b.lines[line]
}

// Line returns the text of a 0-based line without its line terminator
func (b *Buffer) Line(line int) string {
	if line < 0 || line >= len(b.lines) {
		return ""
	}
	start, end := b.lineBounds(line)
	return strings.TrimSuffix(b.text[start:end], "\r")
}

// Find returns the first match of re at or after offset from
func (b *Buffer) Find(re *regexp.Regexp, from int) (ranker.Region, bool) {
	if from < 0 {
		from = 0
	}
	if from > len(b.text) {
		return ranker.Region{}, false
	}
	loc := re.FindStringIndex(b.text[from:])
	if loc == nil {
		return ranker.Region{}, false
	}
	return ranker.Region{Begin: from + loc[0], End: from + loc[1]}, true
}

// Substr returns the text covered by r, clamped to the buffer
func (b *Buffer) Substr(r ranker.Region) string {
	begin := max(0, min(r.Begin, len(b.text)))
	end := max(begin, min(r.End, len(b.text)))
	return b.text[begin:end]
}

// lineBounds returns the offsets of the first byte of line and of its
// terminating newline (or the buffer end)
func (b *Buffer) lineBounds(line int) (int, int) {
	start := b.lines[line]
	if line+1 < len(b.lines) {
		return start, b.lines[line+1] - 1
	}
	return start, len(b.text)
}

var _ ranker.View = (*Buffer)(nil)
