package navigator

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/dekelcohen/CTags/internal/buffer"
	"github.com/dekelcohen/CTags/internal/profile"
	"github.com/dekelcohen/CTags/internal/ranker"
)

// ErrNoSymbol is returned when the cursor is not on an identifier
var ErrNoSymbol = errors.New("no symbol at cursor")

// ExtractReference finds the identifier under a 0-based line and column
// and the receiver chain to its left. The column counts characters, not
// bytes. For "list.provider.add()" with the
// cursor on add it yields symbol "add" and receiver ["list", "provider"].
func ExtractReference(lang *profile.Language, buf *buffer.Buffer, line, col int) (ranker.Reference, error) {
	idRe, err := regexp.Compile(lang.IdentifierPattern())
	if err != nil {
		return ranker.Reference{}, fmt.Errorf("invalid identifier pattern: %w", err)
	}
	tailID, err := regexp.Compile("(?:" + lang.IdentifierPattern() + ")$")
	if err != nil {
		return ranker.Reference{}, fmt.Errorf("invalid identifier pattern: %w", err)
	}
	tailSplit, err := regexp.Compile(profile.Alternation(lang.Splitters()) + "$")
	if err != nil {
		return ranker.Reference{}, fmt.Errorf("invalid splitter pattern: %w", err)
	}

	text := buf.Line(line)
	col = byteOffset(text, col)
	begin, end := -1, -1
	for _, loc := range idRe.FindAllStringIndex(text, -1) {
		if loc[0] <= col && col <= loc[1] {
			begin, end = loc[0], loc[1]
			break
		}
	}
	if begin < 0 {
		return ranker.Reference{}, ErrNoSymbol
	}

	var receiver []string
	pos := begin
	for {
		split := tailSplit.FindStringIndex(text[:pos])
		if split == nil {
			break
		}
		id := tailID.FindStringIndex(text[:split[0]])
		if id == nil {
			break
		}
		receiver = append([]string{text[id[0]:id[1]]}, receiver...)
		pos = id[0]
	}

	return ranker.Reference{
		Symbol:   text[begin:end],
		Receiver: receiver,
		Region: &ranker.Region{
			Begin: buf.TextPoint(line, begin),
			End:   buf.TextPoint(line, end),
		},
		Line:   text,
		Source: lang.Source,
	}, nil
}

// byteOffset converts a character column in text to a byte offset. Columns
// past the end of the line stay past it by the same number of characters.
func byteOffset(text string, col int) int {
	off := 0
	for ; col > 0 && off < len(text); col-- {
		_, size := utf8.DecodeRuneInString(text[off:])
		off += size
	}
	return off + max(col, 0)
}
