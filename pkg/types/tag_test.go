package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagField(t *testing.T) {
	tag := Tag{
		Name:     "fetch",
		Kind:     "m",
		FilePath: "a/b.js",
		Scope:    "1:1-2:1",
		Fields:   map[string]string{"access": "public"},
	}

	tests := []struct {
		field string
		want  string
		ok    bool
	}{
		{"name", "fetch", true},
		{"kind", "m", true},
		{"type", "m", true},
		{"filename", "a/b.js", true},
		{"scope", "1:1-2:1", true},
		{"pattern", "", false},
		{"access", "public", true},
		{"signature", "", false},
	}
	for _, tt := range tests {
		got, ok := tag.Field(tt.field)
		assert.Equal(t, tt.ok, ok, tt.field)
		assert.Equal(t, tt.want, got, tt.field)
	}
}

func TestTagHasScope(t *testing.T) {
	assert.True(t, (&Tag{Scope: "3:1-9:2"}).HasScope())
	assert.False(t, (&Tag{Scope: GlobalScope}).HasScope())
	assert.False(t, (&Tag{}).HasScope())
}

func TestTagValidate(t *testing.T) {
	assert.NoError(t, (&Tag{Name: "a", FilePath: "a.js"}).Validate())
	assert.ErrorIs(t, (&Tag{FilePath: "a.js"}).Validate(), ErrEmptyTagName)
	assert.ErrorIs(t, (&Tag{Name: "a"}).Validate(), ErrEmptyTagFile)
	assert.ErrorIs(t, (&Tag{Name: "a", FilePath: "a.js", Line: -1}).Validate(), ErrInvalidLine)
}

func TestTagClone(t *testing.T) {
	orig := Tag{Name: "a", FilePath: "a.js", Fields: map[string]string{"k": "v"}}
	c := orig.Clone()
	c.Fields["k"] = "changed"
	assert.Equal(t, "v", orig.Fields["k"])
}

func TestRankedTagValidate(t *testing.T) {
	rt := RankedTag{Tag: Tag{Name: "a", FilePath: "a.js"}, Rank: 1, RankScore: 12}
	assert.NoError(t, rt.Validate())

	rt.Rank = 0
	assert.ErrorIs(t, rt.Validate(), ErrInvalidRank)

	rt.Rank, rt.RankScore = 1, -1
	assert.ErrorIs(t, rt.Validate(), ErrInvalidRankScore)
}

func TestScoreBreakdownTotal(t *testing.T) {
	b := ScoreBreakdown{Type: 60, SameFile: 10, Member: 8, Import: 42}
	assert.Equal(t, 120.0, b.Total())
}

func TestTagFileResultErrors(t *testing.T) {
	var r TagFileResult
	assert.False(t, r.HasErrors())
	r.AddError("tags", 3, "bad")
	assert.True(t, r.HasErrors())
	assert.Equal(t, "bad", r.Errors[0].Error())
}
