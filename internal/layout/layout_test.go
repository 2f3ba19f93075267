package layout

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWordNormalizesCoordinates(t *testing.T) {
	w := NewWord("12", 50, math.NaN(), 40, math.Inf(1))
	assert.Equal(t, Word{Text: "12", X0: 40, Top: 0, X1: 50, Bottom: 0}, w)

	w = NewWord("x", 1, 20, 2, 10)
	assert.Equal(t, 10.0, w.Top)
	assert.Equal(t, 20.0, w.Bottom)
}

func TestNormalizeDropsEmptyWords(t *testing.T) {
	got := Normalize([]Word{{Text: ""}, {Text: "a", X0: 3, X1: 1}})
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].X0)
	assert.Equal(t, 3.0, got[0].X1)
}

func TestBBoxContains(t *testing.T) {
	region := BBox{X0: 10, Top: 10, X1: 100, Bottom: 100}

	assert.True(t, region.Contains(BBox{X0: 20, Top: 20, X1: 30, Bottom: 30}, 0))
	assert.True(t, region.Contains(BBox{X0: 9.6, Top: 20, X1: 100.4, Bottom: 30}, 0.5))
	assert.False(t, region.Contains(BBox{X0: 9.4, Top: 20, X1: 30, Bottom: 30}, 0.5))
	assert.False(t, region.Contains(BBox{X0: 20, Top: 20, X1: 30, Bottom: 101}, 0.5))
}

func TestUnion(t *testing.T) {
	_, ok := Union(nil)
	assert.False(t, ok)

	box, ok := Union([]Word{
		NewWord("a", 10, 5, 20, 15),
		NewWord("b", 25, 4, 40, 16),
	})
	require.True(t, ok)
	assert.Equal(t, BBox{X0: 10, Top: 4, X1: 40, Bottom: 16}, box)
}

func TestBBoxJSON(t *testing.T) {
	data, err := json.Marshal(BBox{X0: 1, Top: 2, X1: 3, Bottom: 4})
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2,3,4]`, string(data))

	var back BBox
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, BBox{X0: 1, Top: 2, X1: 3, Bottom: 4}, back)
}

func TestNewOpener(t *testing.T) {
	o, err := NewOpener("", 0)
	require.NoError(t, err)
	assert.IsType(t, NativeOpener{}, o)

	o, err = NewOpener("Poppler", 0)
	require.NoError(t, err)
	assert.IsType(t, PopplerOpener{}, o)

	_, err = NewOpener("ocr", 0)
	assert.Error(t, err)
}

func TestNativeOpenRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("<Error>expired</Error>"), 0o600))

	_, err := NativeOpener{}.Open(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOpen)

	_, err = NativeOpener{}.Open(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, ErrOpen)
}

func TestAssembleWords(t *testing.T) {
	glyphs := []pdf.Text{
		{S: "1", X: 100, Y: 700, W: 5, FontSize: 10},
		{S: ",", X: 105, Y: 700, W: 2, FontSize: 10},
		{S: "2", X: 107, Y: 700, W: 5, FontSize: 10},
		{S: " ", X: 112, Y: 700, W: 3, FontSize: 10},
		{S: "U", X: 115, Y: 700, W: 6, FontSize: 10},
		{S: "S", X: 121, Y: 700, W: 6, FontSize: 10},
		// far gap on the same baseline starts a new word
		{S: "$", X: 200, Y: 700, W: 5, FontSize: 10},
		// next line
		{S: "9", X: 100, Y: 680, W: 5, FontSize: 10},
	}

	words := assembleWords(glyphs, 792, 1, 1)
	require.Len(t, words, 4)

	assert.Equal(t, "1,2", words[0].Text)
	assert.Equal(t, 100.0, words[0].X0)
	assert.Equal(t, 112.0, words[0].X1)
	assert.Equal(t, 792.0-710, words[0].Top)
	assert.Equal(t, 792.0-700, words[0].Bottom)

	assert.Equal(t, "US", words[1].Text)
	assert.Equal(t, "$", words[2].Text)
	assert.Equal(t, "9", words[3].Text)
	assert.Equal(t, 792.0-690, words[3].Top)
}

func TestParseBBoxWords(t *testing.T) {
	doc := `<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title></title></head>
<body>
<doc>
  <page width="612.000000" height="792.000000">
    <word xMin="72.000000" yMin="90.500000" xMax="110.250000" yMax="101.000000">(Dollars</word>
    <word xMin="113.000000" yMin="90.500000" xMax="122.000000" yMax="101.000000">in</word>
    <word xMin="125.000000" yMin="90.500000" xMax="170.000000" yMax="101.000000">Millions)</word>
    <word xMin="300.000000" yMin="120.000000" xMax="330.000000" yMax="130.000000">1,250</word>
  </page>
</doc>
</body>
</html>`

	words, err := parseBBoxWords([]byte(doc))
	require.NoError(t, err)
	require.Len(t, words, 4)
	assert.Equal(t, Word{Text: "(Dollars", X0: 72, Top: 90.5, X1: 110.25, Bottom: 101}, words[0])
	assert.Equal(t, "1,250", words[3].Text)
}

func TestParsePageCount(t *testing.T) {
	n, err := parsePageCount([]byte("Title:  x\nPages:          12\nEncrypted: no\n"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = parsePageCount([]byte("Title: x\n"))
	assert.Error(t, err)
}
