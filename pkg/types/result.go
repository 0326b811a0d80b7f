package types

// ScoreBreakdown records what each heuristic contributed to a rank score
type ScoreBreakdown struct {
	Type     float64 // Definition kind implied by the reference line
	SameFile float64 // Same file, doubled for this/self calls
	Member   float64 // Receiver chain fuzzy-matched against the tag path
	Import   float64 // Tag path matches the resolved import
}

// Total returns the sum of all components
func (b ScoreBreakdown) Total() float64 {
	return b.Type + b.SameFile + b.Member + b.Import
}

// RankedTag is a candidate that survived filtering, with its rank score
type RankedTag struct {
	Tag       Tag
	Rank      int     // Position in the ordered result (1-based)
	RankScore float64 // Sum of all scorer outputs for this ranking pass
	Breakdown ScoreBreakdown
}

// Validate checks if the ranked tag is valid
func (rt *RankedTag) Validate() error {
	if rt.Rank < 1 {
		return ErrInvalidRank
	}
	if rt.RankScore < 0 {
		return ErrInvalidRankScore
	}
	return rt.Tag.Validate()
}
