package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dekelcohen/CTags/pkg/types"
)

const (
	pseudoPrefix  = "!_"
	fieldSep      = "\t"
	excmdTerm     = `;"`
	maxLineLength = 1 << 20
)

// Parser reads ctags tag files in the classic and extended formats
type Parser struct {
	maxLine int
}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{maxLine: maxLineLength}
}

// ParseFile parses the tag file at filePath
func (p *Parser) ParseFile(filePath string) (*types.TagFileResult, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open tag file: %w", err)
	}
	defer f.Close()

	return p.Parse(f, filePath)
}

// Parse reads tag lines from r. name labels errors. Malformed lines are
// recorded in the result and skipped; only read failures are returned as
// errors.
func (p *Parser) Parse(r io.Reader, name string) (*types.TagFileResult, error) {
	result := &types.TagFileResult{
		Tags:   make([]types.Tag, 0, 256),
		Pseudo: make(map[string]string),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(64*1024, p.maxLine)), p.maxLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, pseudoPrefix) {
			key, value := parsePseudo(line)
			result.Pseudo[key] = value
			continue
		}

		tag, err := parseLine(line)
		if err != nil {
			result.AddError(name, lineNo, err.Error())
			if tag == nil {
				continue
			}
		}
		result.Tags = append(result.Tags, *tag)
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("failed to read %s at line %d: %w", name, lineNo+1, err)
	}

	return result, nil
}

// parsePseudo splits "!_TAG_FILE_FORMAT\t2\t/comment/" into name and value
func parsePseudo(line string) (string, string) {
	parts := strings.SplitN(line, fieldSep, 3)
	if len(parts) < 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

// parseLine parses one tag line:
//
//	name<TAB>file<TAB>excmd;"<TAB>kind<TAB>key:value...
//
// A tag is returned alongside a non-nil error when only an extension field
// was malformed.
func parseLine(line string) (*types.Tag, error) {
	parts := strings.SplitN(line, fieldSep, 3)
	if len(parts) < 3 {
		return nil, fmt.Errorf("expected name, file and address, found %d fields", len(parts))
	}
	tag := &types.Tag{Name: parts[0], FilePath: parts[1]}
	if tag.Name == "" || tag.FilePath == "" {
		return nil, fmt.Errorf("empty tag name or file")
	}

	excmd, fields := splitAddress(parts[2])
	tag.Pattern = excmd
	if n, err := strconv.Atoi(excmd); err == nil {
		tag.Line = n
	}

	var fieldErr error
	for i, field := range fields {
		if field == "" {
			continue
		}
		key, value, ok := strings.Cut(field, ":")
		if !ok {
			// a bare first field is the kind letter
			if i == 0 || tag.Kind == "" {
				tag.Kind = field
				continue
			}
			fieldErr = fmt.Errorf("tag %s: field %q has no key", tag.Name, field)
			continue
		}
		value = unescape(value)
		if tag.Fields == nil {
			tag.Fields = make(map[string]string, len(fields))
		}
		tag.Fields[key] = value

		switch key {
		case "kind":
			tag.Kind = value
		case "scope":
			tag.Scope = value
		case "line":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				fieldErr = fmt.Errorf("tag %s: invalid line %q", tag.Name, value)
				continue
			}
			tag.Line = n
		}
	}

	return tag, fieldErr
}

// splitAddress separates the ex command from the extension fields that
// follow its ;" terminator
func splitAddress(s string) (string, []string) {
	if i := strings.Index(s, excmdTerm+fieldSep); i >= 0 {
		return s[:i], strings.Split(s[i+len(excmdTerm)+1:], fieldSep)
	}
	if strings.HasSuffix(s, excmdTerm) {
		return strings.TrimSuffix(s, excmdTerm), nil
	}
	return s, nil
}

var fieldUnescaper = strings.NewReplacer(`\\`, `\`, `\t`, "\t", `\r`, "\r", `\n`, "\n")

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return fieldUnescaper.Replace(s)
}
