package ranker

import (
	"strconv"

	"github.com/dekelcohen/CTags/pkg/types"
)

// scopeResult is the three-way split of the candidates by lexical scope
type scopeResult struct {
	inScope   []types.Tag
	noScope   []types.Tag
	discarded int
}

// filterScope partitions tags by whether their declared scope contains the
// cursor region. Tags without a usable scope, or any tag when there is no
// cursor region, land in noScope. Scoped tags from other files and scoped
// tags whose range misses the region or does not parse are discarded.
func (p *pass) filterScope(tags []types.Tag) scopeResult {
	var res scopeResult
	region := p.ref.Region
	for _, tag := range tags {
		if region == nil || !tag.HasScope() {
			res.noScope = append(res.noScope, tag)
			continue
		}
		if !sameFile(p.currentFile, tag.FilePath) {
			res.discarded++
			continue
		}

		begin, end, ok := p.scopeRange(tag.Scope)
		if !ok {
			p.r.logger.Debug("rank.scope.malformed",
				"tag", tag.Name, "file", tag.FilePath, "scope", tag.Scope)
			res.discarded++
			continue
		}
		if region.Begin >= begin && region.End <= end {
			res.inScope = append(res.inScope, tag)
		} else {
			res.discarded++
		}
	}
	return res
}

// scopeRange parses a 1-based "line:col-line:col" scope into buffer offsets
func (p *pass) scopeRange(scope string) (int, int, bool) {
	m := p.r.settings.ScopeRegexp().FindStringSubmatch(scope)
	if m == nil {
		return 0, 0, false
	}
	var n [4]int
	for i := range n {
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, 0, false
		}
		n[i] = v - 1
	}
	return p.view.TextPoint(n[0], n[1]), p.view.TextPoint(n[2], n[3]), true
}

// choosePartition keeps locals only for an unqualified reference that
// matched at least one of them. A receiver access cannot name a local, and
// without a local shadow the globals are visible.
func (p *pass) choosePartition(res scopeResult) []types.Tag {
	if len(p.ref.Receiver) == 0 && len(res.inScope) > 0 {
		return res.inScope
	}
	return res.noScope
}
