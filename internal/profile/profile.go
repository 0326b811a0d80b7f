package profile

import (
	"fmt"
	"strings"
)

// Member expression roles understood by the ranker and reference extraction
const (
	RoleThis       = "this"
	RoleSplitters  = "splitters"
	RoleIdentifier = "identifier"
)

// DefaultIdentifier matches an identifier when a profile does not define one
const DefaultIdentifier = `[A-Za-z0-9_$]+`

// DefaultSplitter separates receiver segments when a profile does not define one
const DefaultSplitter = `\.`

// Language is the typed, read-only syntax profile for one source scope
type Language struct {
	Source     string   `yaml:"-"`
	Inherit    string   `yaml:"inherit,omitempty"`
	Extensions []string `yaml:"extensions,omitempty"`

	// MemberExp maps a role (this, splitters, identifier) to regex alternatives
	MemberExp map[string][]string `yaml:"member_exp,omitempty"`

	// ReferenceTypes maps a regex template containing __symbol__ to the tag
	// kinds a matching reference line implies
	ReferenceTypes map[string][]string `yaml:"reference_types,omitempty"`

	Imports *ImportConfig `yaml:"imports,omitempty"`

	known bool
}

// ImportConfig describes how to find and resolve the import of a symbol
type ImportConfig struct {
	SymToImportPath   string   `yaml:"sym_to_import_path,omitempty"`
	IsRelPath         string   `yaml:"is_rel_path,omitempty"`
	FileExtensions    []string `yaml:"file_extensions,omitempty"`
	DefaultFolderFile string   `yaml:"default_folder_file,omitempty"`

	// ParentSearch enables package/parent directory lookup for bare
	// specifiers. Not implemented: bare specifiers resolve to themselves.
	ParentSearch bool `yaml:"parent_search,omitempty"`
}

// Known reports whether the settings define this source scope
func (l *Language) Known() bool {
	return l.known
}

// HasMemberExp reports whether any member expression syntax is configured
func (l *Language) HasMemberExp() bool {
	return len(l.MemberExp) > 0
}

// ThisPatterns returns the this/self alternatives. A language that defines
// member expression syntax without a this entry yields a ConfigurationGap.
func (l *Language) ThisPatterns() ([]string, error) {
	if alts := l.MemberExp[RoleThis]; len(alts) > 0 {
		return alts, nil
	}
	if l.HasMemberExp() {
		return nil, &ConfigurationGap{
			Source:  l.Source,
			Section: "member_exp." + RoleThis,
			Detail:  "language with member expression syntax is expected to define this|self",
		}
	}
	return nil, nil
}

// Splitters returns the receiver separator alternatives
func (l *Language) Splitters() []string {
	if alts := l.MemberExp[RoleSplitters]; len(alts) > 0 {
		return alts
	}
	return []string{DefaultSplitter}
}

// IdentifierPattern returns a single regex matching one identifier
func (l *Language) IdentifierPattern() string {
	alts := l.MemberExp[RoleIdentifier]
	if len(alts) == 0 {
		return DefaultIdentifier
	}
	return Alternation(alts)
}

// ImportSettings returns the import config, never nil
func (l *Language) ImportSettings() ImportConfig {
	if l.Imports == nil {
		return ImportConfig{}
	}
	return *l.Imports
}

// Alternation joins regex alternatives into one non-capturing group
func Alternation(alts []string) string {
	if len(alts) == 1 {
		return alts[0]
	}
	return "(?:" + strings.Join(alts, "|") + ")"
}

// ConfigurationGap reports a language profile section the ranker expected
// but did not find. Rankers log it and degrade the affected heuristic.
type ConfigurationGap struct {
	Source  string
	Section string
	Detail  string
}

func (g *ConfigurationGap) Error() string {
	return fmt.Sprintf("language %s: missing %s: %s", g.Source, g.Section, g.Detail)
}
