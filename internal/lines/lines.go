// Package lines buckets words into approximate visual lines.
package lines

import (
	"math"
	"sort"

	"github.com/toricodesthings/pdf-scale-finder/internal/layout"
)

const DefaultBucket = 10.0

type Line struct {
	Key   float64
	Words []layout.Word
}

// Grouping holds the lines of one page, ordered top to bottom.
type Grouping struct {
	Lines  []Line
	bucket float64
	byKey  map[float64]int
}

// KeyFor rounds top to the nearest multiple of bucket. Halves round to even
// (15 -> 20, 25 -> 20), so the bucket boundaries are stable for equal inputs.
func KeyFor(top, bucket float64) float64 {
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	return math.RoundToEven(top/bucket) * bucket
}

// Group assigns every word to the bucket of its top edge. Words keep their
// extraction order inside a line.
func Group(words []layout.Word, bucket float64) *Grouping {
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	g := &Grouping{bucket: bucket, byKey: make(map[float64]int)}

	for _, w := range words {
		key := KeyFor(w.Top, bucket)
		i, ok := g.byKey[key]
		if !ok {
			i = len(g.Lines)
			g.byKey[key] = i
			g.Lines = append(g.Lines, Line{Key: key})
		}
		g.Lines[i].Words = append(g.Lines[i].Words, w)
	}

	sort.SliceStable(g.Lines, func(i, j int) bool { return g.Lines[i].Key < g.Lines[j].Key })
	for i, ln := range g.Lines {
		g.byKey[ln.Key] = i
	}
	return g
}

// LineOf returns the words sharing w's line. A word that was not part of the
// grouping gets a line of its own.
func (g *Grouping) LineOf(w layout.Word) []layout.Word {
	if i, ok := g.byKey[KeyFor(w.Top, g.bucket)]; ok {
		return g.Lines[i].Words
	}
	return []layout.Word{w}
}
