package ranker

import (
	"strings"

	"github.com/dekelcohen/CTags/pkg/types"
)

// Scoring weights
const (
	WeightTypeMatch   = 60
	WeightSameFile    = 10
	WeightExactTail   = 20
	MaxGramWeight     = 3.0
	GramWeightDecay   = 1.5
	WeightImportFirst = 20 // each of the first two matching segments
	WeightImportRest  = 2  // each further matching segment
	WeightImportExt   = 2
	MinImportSegments = 2
)

// typeScore rewards tags whose kind the reference line implies
func (p *pass) typeScore(tag *types.Tag) float64 {
	if _, ok := p.preferredKinds[tag.Kind]; ok {
		return WeightTypeMatch
	}
	return 0
}

// sameFileScore rewards tags from the current file, twice over when the
// reference is a single this/self receiver
func (p *pass) sameFileScore(tag *types.Tag) float64 {
	if !sameFile(p.currentFile, tag.FilePath) {
		return 0
	}
	score := float64(WeightSameFile)
	recv := p.ref.Receiver
	if len(recv) == 1 && p.thisRe != nil && p.thisRe.MatchString(recv[0]) {
		score += WeightSameFile
	}
	return score
}

// memberScore fuzzily matches the receiver chain against the tag path.
// The rightmost path component is worth WeightExactTail on an exact match;
// on top of that every receiver trigram found in the path adds its weight,
// which starts at MaxGramWeight for the file name and decays leftward.
func (p *pass) memberScore(tag *types.Tag) float64 {
	recv := p.ref.Receiver
	if len(recv) == 0 {
		return 0
	}
	parts, _ := splitPath(tag.FilePath)

	var score float64
	if len(parts) > 0 && strings.EqualFold(parts[len(parts)-1], recv[len(recv)-1]) {
		score += WeightExactTail
	}

	weights := make(map[gram]float64)
	wt := MaxGramWeight
	for i := len(parts) - 1; i >= 0; i-- {
		for g := range grams(parts[i]) {
			if _, seen := weights[g]; !seen {
				weights[g] = wt
			}
		}
		wt /= GramWeightDecay
	}

	for g := range p.receiverGrams {
		score += weights[g]
	}
	return score
}

// importScore rewards tags whose path matches the resolved import of the
// symbol, compared component by component from the right
func (p *pass) importScore(tag *types.Tag) float64 {
	imp := p.importResolution()
	if imp.Path == "" {
		return 0
	}
	impParts, impExt := splitPath(imp.Path)
	tagParts, tagExt := splitPath(tag.FilePath)
	folderFile := p.imports.DefaultFolderFile

	idx, matched := 0, 0
	for i := len(tagParts) - 1; i >= 0 && idx < len(impParts); i-- {
		part := tagParts[i]
		if !strings.EqualFold(part, impParts[len(impParts)-1-idx]) {
			// an import of a folder may land on its default file
			if !imp.Exists && idx == 0 && folderFile != "" && strings.EqualFold(part, folderFile) {
				matched++
				continue
			}
			break
		}
		idx++
		matched++
	}

	if matched < MinImportSegments {
		return 0
	}
	score := float64(min(MinImportSegments, matched)*WeightImportFirst + (matched-MinImportSegments)*WeightImportRest)
	if impExt == tagExt {
		score += WeightImportExt
	}
	return score
}
