package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTags = "!_TAG_FILE_FORMAT\t2\t/extended format/\n" +
	"!_TAG_FILE_SORTED\t1\t/0=unsorted, 1=sorted/\n" +
	"fetch\tgoogle/video/youtube.js\t/^  fetch(url) {$/;\"\tm\tline:12\n" +
	"url\tgoogle/video/youtube.js\t/^  fetch(url) {$/;\"\tv\tscope:12:9-20:3\n" +
	"Player\t./lib/player.js\t3;\"\tkind:class\taccess:public\n" +
	"main\tmain.c\t42\n"

func TestNew(t *testing.T) {
	p := New()
	assert.NotNil(t, p)
	assert.Equal(t, maxLineLength, p.maxLine)
}

func TestParse(t *testing.T) {
	result, err := New().Parse(strings.NewReader(sampleTags), "tags")
	require.NoError(t, err)
	assert.False(t, result.HasErrors())

	assert.Equal(t, "2", result.Pseudo["!_TAG_FILE_FORMAT"])
	assert.Equal(t, "1", result.Pseudo["!_TAG_FILE_SORTED"])

	require.Len(t, result.Tags, 4)

	fetch := result.Tags[0]
	assert.Equal(t, "fetch", fetch.Name)
	assert.Equal(t, "google/video/youtube.js", fetch.FilePath)
	assert.Equal(t, `/^  fetch(url) {$/`, fetch.Pattern)
	assert.Equal(t, "m", fetch.Kind)
	assert.Equal(t, 12, fetch.Line)
	assert.Empty(t, fetch.Scope)

	url := result.Tags[1]
	assert.Equal(t, "12:9-20:3", url.Scope)
	assert.True(t, url.HasScope())

	player := result.Tags[2]
	assert.Equal(t, "class", player.Kind)
	assert.Equal(t, 3, player.Line)
	assert.Equal(t, "./lib/player.js", player.FilePath)
	v, ok := player.Field("access")
	assert.True(t, ok)
	assert.Equal(t, "public", v)

	classic := result.Tags[3]
	assert.Equal(t, "main", classic.Name)
	assert.Equal(t, 42, classic.Line)
	assert.Empty(t, classic.Kind)
	assert.Nil(t, classic.Fields)
}

func TestParse_Malformed(t *testing.T) {
	input := "good\ta.js\t1;\"\tf\n" +
		"broken line without tabs\n" +
		"\n" +
		"\tfile.js\t1\n" +
		"badline\tb.js\t2;\"\tf\tline:x\n" +
		"crlf\tc.js\t3;\"\tf\r\n"

	result, err := New().Parse(strings.NewReader(input), "tags")
	require.NoError(t, err)

	require.Len(t, result.Errors, 3)
	assert.Equal(t, 2, result.Errors[0].Line)
	assert.Equal(t, "tags", result.Errors[0].File)
	assert.Equal(t, 4, result.Errors[1].Line)
	assert.Equal(t, 5, result.Errors[2].Line)
	assert.Contains(t, result.Errors[2].Error(), "invalid line")

	require.Len(t, result.Tags, 3)
	assert.Equal(t, "good", result.Tags[0].Name)
	assert.Equal(t, "badline", result.Tags[1].Name, "tag with a bad field is kept")
	assert.Equal(t, "f", result.Tags[2].Kind, "carriage return stripped")
}

func TestParse_Escapes(t *testing.T) {
	input := "sig\ta.js\t/^x$/;\"\tf\tsignature:(a,\\tb)\tpath:C:\\\\src\n"
	result, err := New().Parse(strings.NewReader(input), "tags")
	require.NoError(t, err)
	require.Len(t, result.Tags, 1)

	assert.Equal(t, "(a,\tb)", result.Tags[0].Fields["signature"])
	assert.Equal(t, `C:\src`, result.Tags[0].Fields["path"])
}

func TestParse_LongLine(t *testing.T) {
	p := &Parser{maxLine: 64}
	input := "ok\ta.js\t1\n" + strings.Repeat("x", 200) + "\n"

	result, err := p.Parse(strings.NewReader(input), "tags")
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.Tags, 1)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags")
	require.NoError(t, os.WriteFile(path, []byte(sampleTags), 0o644))

	result, err := New().ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, result.Tags, 4)

	_, err = New().ParseFile(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestSplitAddress(t *testing.T) {
	excmd, fields := splitAddress("/^a;\"b$/;\"\tf\tline:1")
	assert.Equal(t, "/^a;\"b$/", excmd)
	assert.Equal(t, []string{"f", "line:1"}, fields)

	excmd, fields = splitAddress("12;\"")
	assert.Equal(t, "12", excmd)
	assert.Nil(t, fields)

	excmd, fields = splitAddress("/^x$/")
	assert.Equal(t, "/^x$/", excmd)
	assert.Nil(t, fields)
}
