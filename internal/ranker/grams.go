package ranker

import "strings"

type gram [3]rune

type gramSet map[gram]struct{}

// grams returns the overlapping 3-character windows of the lowercased string
func grams(s string) gramSet {
	runes := []rune(strings.ToLower(s))
	set := make(gramSet)
	for i := 0; i+2 < len(runes); i++ {
		set[gram{runes[i], runes[i+1], runes[i+2]}] = struct{}{}
	}
	return set
}

func (s gramSet) union(other gramSet) {
	for g := range other {
		s[g] = struct{}{}
	}
}
