package layout

import (
	"encoding/json"
	"math"
)

// BBox is a rectangle in page coordinates with the origin at the top-left.
type BBox struct {
	X0     float64
	Top    float64
	X1     float64
	Bottom float64
}

func (b BBox) Union(o BBox) BBox {
	return BBox{
		X0:     math.Min(b.X0, o.X0),
		Top:    math.Min(b.Top, o.Top),
		X1:     math.Max(b.X1, o.X1),
		Bottom: math.Max(b.Bottom, o.Bottom),
	}
}

func (b BBox) Expand(margin float64) BBox {
	return BBox{X0: b.X0 - margin, Top: b.Top - margin, X1: b.X1 + margin, Bottom: b.Bottom + margin}
}

// Contains reports whether inner lies within b, allowing tol on every side.
func (b BBox) Contains(inner BBox, tol float64) bool {
	return inner.X0 >= b.X0-tol && inner.X1 <= b.X1+tol &&
		inner.Top >= b.Top-tol && inner.Bottom <= b.Bottom+tol
}

func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X0, b.Top, b.X1, b.Bottom})
}

func (b *BBox) UnmarshalJSON(data []byte) error {
	var v [4]float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = BBox{X0: v[0], Top: v[1], X1: v[2], Bottom: v[3]}
	return nil
}

// Word is one extracted token with its bounding box. Values are built by
// NewWord so every coordinate is finite and edges are ordered.
type Word struct {
	Text   string
	X0     float64
	Top    float64
	X1     float64
	Bottom float64
}

func NewWord(text string, x0, top, x1, bottom float64) Word {
	x0, x1 = finite(x0), finite(x1)
	top, bottom = finite(top), finite(bottom)
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if bottom < top {
		top, bottom = bottom, top
	}
	return Word{Text: text, X0: x0, Top: top, X1: x1, Bottom: bottom}
}

func (w Word) BBox() BBox {
	return BBox{X0: w.X0, Top: w.Top, X1: w.X1, Bottom: w.Bottom}
}

// Normalize re-validates words handed over by a backend and drops the ones
// with no text.
func Normalize(words []Word) []Word {
	out := make([]Word, 0, len(words))
	for _, w := range words {
		if w.Text == "" {
			continue
		}
		out = append(out, NewWord(w.Text, w.X0, w.Top, w.X1, w.Bottom))
	}
	return out
}

// Union returns the box covering all words; ok is false for an empty slice.
func Union(words []Word) (BBox, bool) {
	if len(words) == 0 {
		return BBox{}, false
	}
	box := words[0].BBox()
	for _, w := range words[1:] {
		box = box.Union(w.BBox())
	}
	return box, true
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
