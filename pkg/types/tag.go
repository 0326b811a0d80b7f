package types

import (
	"strings"
)

// GlobalScope is the scope value ctags writes for file-level definitions
const GlobalScope = "global"

// Tag represents a single definition record from a tag index
type Tag struct {
	// Identification
	Name string
	Kind string // Language specific definition kind (e.g. "f", "function", "class")

	// Location
	FilePath string // Project relative, may carry a leading ./ or ../
	Line     int    // 1-based, 0 when the tag file has no line field
	Pattern  string // Ex-command used by editors to locate the definition

	// Scope is the raw lexical range "startLine:startCol-endLine:endCol",
	// GlobalScope, or empty when the definition has no declared range.
	Scope string

	// Fields holds every extension field from the tag file, including kind,
	// line and scope when they were written as key:value pairs.
	Fields map[string]string
}

// HasScope reports whether the tag declares a concrete lexical range
func (t *Tag) HasScope() bool {
	return t.Scope != "" && t.Scope != GlobalScope
}

// Field returns the value of a named tag field. The well-known names
// name, kind/type, file/filename, scope and pattern map to the struct fields;
// anything else is looked up in Fields.
func (t *Tag) Field(name string) (string, bool) {
	switch strings.ToLower(name) {
	case "name", "symbol":
		return t.Name, t.Name != ""
	case "kind", "type":
		return t.Kind, t.Kind != ""
	case "file", "filename", "file_path":
		return t.FilePath, t.FilePath != ""
	case "scope":
		return t.Scope, t.Scope != ""
	case "pattern", "ex_command":
		return t.Pattern, t.Pattern != ""
	}
	v, ok := t.Fields[name]
	return v, ok
}

// Validate checks the tag has the fields ranking depends on
func (t *Tag) Validate() error {
	if t.Name == "" {
		return ErrEmptyTagName
	}
	if t.FilePath == "" {
		return ErrEmptyTagFile
	}
	if t.Line < 0 {
		return ErrInvalidLine
	}
	return nil
}

// Clone returns a deep copy of the tag
func (t *Tag) Clone() Tag {
	c := *t
	if t.Fields != nil {
		c.Fields = make(map[string]string, len(t.Fields))
		for k, v := range t.Fields {
			c.Fields[k] = v
		}
	}
	return c
}
