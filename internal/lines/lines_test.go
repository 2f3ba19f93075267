package lines

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toricodesthings/pdf-scale-finder/internal/layout"
)

func word(text string, x0, top float64) layout.Word {
	return layout.NewWord(text, x0, top, x0+10, top+8)
}

func TestKeyFor(t *testing.T) {
	assert.Equal(t, 100.0, KeyFor(101.9, 10))
	assert.Equal(t, 110.0, KeyFor(106, 10))
	assert.Equal(t, 20.0, KeyFor(15, 10))
	assert.Equal(t, 20.0, KeyFor(25, 10))
	assert.Equal(t, 0.0, KeyFor(4, 10))
	assert.Equal(t, 100.0, KeyFor(101, 0))
}

func TestGroupOrdersLinesAndKeepsWordOrder(t *testing.T) {
	words := []layout.Word{
		word("b", 50, 200.5),
		word("x", 10, 100),
		word("a", 10, 199),
		word("y", 60, 102),
	}

	g := Group(words, 10)
	require.Len(t, g.Lines, 2)

	assert.Equal(t, 100.0, g.Lines[0].Key)
	assert.Equal(t, []string{"x", "y"}, texts(g.Lines[0].Words))

	assert.Equal(t, 200.0, g.Lines[1].Key)
	assert.Equal(t, []string{"b", "a"}, texts(g.Lines[1].Words))
}

func TestGroupBucketSizeTradeOff(t *testing.T) {
	words := []layout.Word{word("row1", 10, 100), word("row2", 10, 112)}

	assert.Len(t, Group(words, 10).Lines, 2)
	assert.Len(t, Group(words, 50).Lines, 1)
}

func TestLineOf(t *testing.T) {
	a, b := word("Revenue", 10, 300), word("1,250", 200, 302)
	g := Group([]layout.Word{a, b}, 10)

	assert.Equal(t, []string{"Revenue", "1,250"}, texts(g.LineOf(b)))

	stray := word("9", 10, 500)
	assert.Equal(t, []string{"9"}, texts(g.LineOf(stray)))
}

func TestGroupEmpty(t *testing.T) {
	g := Group(nil, 10)
	assert.Empty(t, g.Lines)
}

func texts(ws []layout.Word) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Text)
	}
	return out
}
