package profile

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultSettingsYAML []byte

// DefaultScopeRe parses "startLine:startCol-endLine:endCol"
const DefaultScopeRe = `(\d+):(\d+)-(\d+):(\d+)`

// document is the YAML shape of a settings file
type document struct {
	ScopeRe           string                       `yaml:"scope_re"`
	DefinitionFilters map[string]map[string]string `yaml:"definition_filters"`
	LanguageSyntax    map[string]map[string]any    `yaml:"language_syntax"`
}

// FilterRule maps a tag field name to an exclusion regex anchored at the
// start of the field value
type FilterRule map[string]*regexp.Regexp

type selectorRules struct {
	selector string
	rule     FilterRule
}

// Settings is the compiled, immutable ranking configuration. It is safe for
// concurrent use.
type Settings struct {
	scopeRe   *regexp.Regexp
	filters   []selectorRules
	languages map[string]*Language
	byExt     map[string]string
}

// Default returns the built-in settings
func Default() (*Settings, error) {
	return New(defaultSettingsYAML)
}

// LoadFile returns the built-in settings with the YAML file at path merged
// over them
func LoadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return New(defaultSettingsYAML, data)
}

// New deep-merges the YAML documents in order and compiles the result
func New(docs ...[]byte) (*Settings, error) {
	merged := map[string]any{}
	for i, data := range docs {
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("settings document %d: %w", i, err)
		}
		merged = mergeDeep(merged, raw)
	}

	var doc document
	if err := remarshal(merged, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return compile(&doc)
}

func compile(doc *document) (*Settings, error) {
	s := &Settings{
		languages: make(map[string]*Language, len(doc.LanguageSyntax)),
		byExt:     make(map[string]string),
	}

	scopeRe := doc.ScopeRe
	if scopeRe == "" {
		scopeRe = DefaultScopeRe
	}
	re, err := regexp.Compile(scopeRe)
	if err != nil {
		return nil, fmt.Errorf("scope_re: %w", err)
	}
	if re.NumSubexp() < 4 {
		return nil, fmt.Errorf("scope_re: expected 4 capture groups, found %d", re.NumSubexp())
	}
	s.scopeRe = re

	for _, selector := range sortedKeys(doc.DefinitionFilters) {
		rule := FilterRule{}
		for field, expr := range doc.DefinitionFilters[selector] {
			fre, err := regexp.Compile("^(?:" + expr + ")")
			if err != nil {
				return nil, fmt.Errorf("definition_filters %s.%s: %w", selector, field, err)
			}
			rule[field] = fre
		}
		s.filters = append(s.filters, selectorRules{selector: selector, rule: rule})
	}

	for _, source := range sortedKeys(doc.LanguageSyntax) {
		lang, err := resolveLanguage(doc.LanguageSyntax, source)
		if err != nil {
			return nil, err
		}
		if err := lang.validate(); err != nil {
			return nil, fmt.Errorf("language %s: %w", source, err)
		}
		s.languages[source] = lang
		for _, ext := range lang.Extensions {
			ext = strings.ToLower(strings.TrimPrefix(ext, "."))
			if _, taken := s.byExt[ext]; !taken {
				s.byExt[ext] = source
			}
		}
	}

	return s, nil
}

// resolveLanguage applies the inherit chain of source, base first
func resolveLanguage(all map[string]map[string]any, source string) (*Language, error) {
	chain := []map[string]any{}
	seen := map[string]bool{}
	for cur := source; cur != ""; {
		if seen[cur] {
			return nil, fmt.Errorf("language %s: inherit cycle through %s", source, cur)
		}
		seen[cur] = true
		raw, ok := all[cur]
		if !ok {
			return nil, fmt.Errorf("language %s: inherits unknown language %s", source, cur)
		}
		chain = append(chain, raw)
		cur, _ = raw["inherit"].(string)
	}

	merged := map[string]any{}
	for i := len(chain) - 1; i >= 0; i-- {
		merged = mergeDeep(merged, chain[i])
	}

	lang := &Language{}
	if err := remarshal(merged, lang); err != nil {
		return nil, fmt.Errorf("language %s: %w", source, err)
	}
	lang.Source = source
	lang.known = true
	return lang, nil
}

// validate compiles every regex the ranker will later build from the profile
func (l *Language) validate() error {
	for role, alts := range l.MemberExp {
		for _, alt := range alts {
			if _, err := regexp.Compile(alt); err != nil {
				return fmt.Errorf("member_exp.%s %q: %w", role, alt, err)
			}
		}
	}
	for tmpl := range l.ReferenceTypes {
		if err := checkTemplate(tmpl); err != nil {
			return fmt.Errorf("reference_types: %w", err)
		}
	}
	if l.Imports != nil {
		if l.Imports.SymToImportPath != "" {
			if err := checkTemplate(l.Imports.SymToImportPath); err != nil {
				return fmt.Errorf("imports.sym_to_import_path: %w", err)
			}
		}
		if l.Imports.IsRelPath != "" {
			if _, err := regexp.Compile(l.Imports.IsRelPath); err != nil {
				return fmt.Errorf("imports.is_rel_path: %w", err)
			}
		}
	}
	return nil
}

// ScopeRegexp returns the compiled scope_re
func (s *Settings) ScopeRegexp() *regexp.Regexp {
	return s.scopeRe
}

// Language returns the profile for a source scope such as "source.js". An
// unknown scope yields an empty profile whose Known method returns false.
func (s *Settings) Language(source string) *Language {
	if lang, ok := s.languages[source]; ok {
		return lang
	}
	return &Language{Source: source}
}

// Sources lists every configured source scope, sorted
func (s *Settings) Sources() []string {
	return sortedKeys(s.languages)
}

// SourceForFile maps a file name to its source scope by extension, or ""
func (s *Settings) SourceForFile(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return ""
	}
	return s.byExt[ext]
}

// DefinitionFilters returns the rule sets whose selector matches source
func (s *Settings) DefinitionFilters(source string) []FilterRule {
	var rules []FilterRule
	for _, sr := range s.filters {
		if MatchSelector(sr.selector, source) {
			rules = append(rules, sr.rule)
		}
	}
	return rules
}

// MatchSelector reports whether a comma separated selector list matches a
// source scope. A selector part matches when it is "*", equals the scope, or
// is a dot-boundary prefix of it ("source" matches "source.js").
func MatchSelector(selector, source string) bool {
	for _, part := range strings.Split(selector, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			continue
		case part == "*", part == source:
			return true
		case strings.HasPrefix(source, part+"."):
			return true
		}
	}
	return false
}

// mergeDeep merges overlay into base and returns base. Nested maps merge,
// every other value in overlay replaces the one in base.
func mergeDeep(base, overlay map[string]any) map[string]any {
	if base == nil {
		base = map[string]any{}
	}
	for k, v := range overlay {
		bv, ok := base[k].(map[string]any)
		ov, isMap := v.(map[string]any)
		if ok && isMap {
			base[k] = mergeDeep(copyMap(bv), ov)
			continue
		}
		base[k] = v
	}
	return base
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// remarshal decodes a generic YAML tree into a typed value
func remarshal(in any, out any) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
