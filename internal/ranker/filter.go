package ranker

import (
	"github.com/dekelcohen/CTags/internal/profile"
	"github.com/dekelcohen/CTags/pkg/types"
)

// passesFilters reports whether no rule excludes the tag. A rule field only
// applies when the tag has that field.
func passesFilters(tag *types.Tag, rules []profile.FilterRule) bool {
	for _, rule := range rules {
		for field, re := range rule {
			v, ok := tag.Field(field)
			if ok && re.MatchString(v) {
				return false
			}
		}
	}
	return true
}

func filterDefinitions(tags []types.Tag, rules []profile.FilterRule) []types.Tag {
	if len(rules) == 0 {
		return tags
	}
	kept := make([]types.Tag, 0, len(tags))
	for i := range tags {
		if passesFilters(&tags[i], rules) {
			kept = append(kept, tags[i])
		}
	}
	return kept
}
