package types

import "errors"

// Domain errors for type validation
var (
	// Tag errors
	ErrEmptyTagName = errors.New("tag name is required")
	ErrEmptyTagFile = errors.New("tag file path is required")
	ErrInvalidLine  = errors.New("line must be >= 0")

	// Ranking errors
	ErrInvalidRank      = errors.New("rank must be >= 1")
	ErrInvalidRankScore = errors.New("rank score must be >= 0")
)
