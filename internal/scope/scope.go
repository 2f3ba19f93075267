// Package scope decides which scale phrase governs a number: the phrase of
// the table that contains it, or the page-level phrase outside any table.
package scope

import (
	"github.com/tidwall/rtree"

	"github.com/toricodesthings/pdf-scale-finder/internal/layout"
	"github.com/toricodesthings/pdf-scale-finder/internal/scale"
)

// DefaultTolerance absorbs rounding at table edges.
const DefaultTolerance = 0.5

type Table struct {
	BBox  layout.BBox
	Scale scale.Match
}

// Scope is the scale assigned to one number. Table is nil when the page-level
// phrase applies.
type Scope struct {
	Scale scale.Match
	Table *layout.BBox
}

type Resolver struct {
	page   scale.Match
	tables []Table
	tol    float64
	index  rtree.RTreeG[int]
}

// NewResolver runs table-local detection once per table box. Boxes keep
// their discovery order, which is also their precedence order.
func NewResolver(d *scale.Detector, words []layout.Word, boxes []layout.BBox, page scale.Match, tol float64) *Resolver {
	if tol < 0 {
		tol = DefaultTolerance
	}
	r := &Resolver{page: page, tol: tol, tables: make([]Table, 0, len(boxes))}

	for i, box := range boxes {
		var local scale.Match
		if d != nil {
			local = d.DetectInRegion(words, box, tol)
		}
		r.tables = append(r.tables, Table{BBox: box, Scale: local})

		grown := box.Expand(tol)
		r.index.Insert([2]float64{grown.X0, grown.Top}, [2]float64{grown.X1, grown.Bottom}, i)
	}
	return r
}

func (r *Resolver) Tables() []Table { return r.tables }

func (r *Resolver) Page() scale.Match { return r.page }

// Resolve returns the scope for a number's box. When several tables contain
// the box, the one discovered first wins; a containing table without its own
// phrase still overrides the page phrase.
func (r *Resolver) Resolve(box layout.BBox) Scope {
	best := -1
	r.index.Search([2]float64{box.X0, box.Top}, [2]float64{box.X1, box.Bottom},
		func(_, _ [2]float64, i int) bool {
			if (best < 0 || i < best) && r.tables[i].BBox.Contains(box, r.tol) {
				best = i
			}
			return true
		})

	if best < 0 {
		return Scope{Scale: r.page}
	}
	t := r.tables[best]
	tb := t.BBox
	return Scope{Scale: t.Scale, Table: &tb}
}
