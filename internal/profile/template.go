package profile

import (
	"fmt"
	"regexp"
	"strings"
)

// SymbolPlaceholder is replaced by the referenced symbol in regex templates
const SymbolPlaceholder = "__symbol__"

// Expand substitutes symbol into a regex template. The symbol is quoted, so
// identifiers such as $scope match literally.
func Expand(template, symbol string) string {
	return strings.ReplaceAll(template, SymbolPlaceholder, regexp.QuoteMeta(symbol))
}

// checkTemplate verifies a template has exactly one placeholder and compiles
// once a sample identifier is substituted
func checkTemplate(template string) error {
	if n := strings.Count(template, SymbolPlaceholder); n != 1 {
		return fmt.Errorf("template %q: expected exactly one %s, found %d", template, SymbolPlaceholder, n)
	}
	if _, err := regexp.Compile(Expand(template, "sample_1")); err != nil {
		return fmt.Errorf("template %q: %w", template, err)
	}
	return nil
}
