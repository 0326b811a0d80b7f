package types

// TagFileResult represents the output of parsing a ctags tag file
type TagFileResult struct {
	// Extracted data
	Tags []Tag

	// Pseudo tags (!_TAG_FILE_FORMAT and friends) keyed by name
	Pseudo map[string]string

	// Errors encountered during parsing
	Errors []ParseError
}

// ParseError represents a malformed line in a tag file
type ParseError struct {
	File    string
	Line    int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	return pe.Message
}

// HasErrors returns true if any parsing errors occurred
func (pr *TagFileResult) HasErrors() bool {
	return len(pr.Errors) > 0
}

// AddError adds a parsing error to the result
func (pr *TagFileResult) AddError(file string, line int, msg string) {
	pr.Errors = append(pr.Errors, ParseError{
		File:    file,
		Line:    line,
		Message: msg,
	})
}
