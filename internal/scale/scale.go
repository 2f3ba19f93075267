// Package scale detects captions such as "(Dollars in Millions)" that tell
// the reader what magnitude the surrounding figures are reported in.
//
// Resolution order is explicit: lines are tried top to bottom and the first
// line with any match wins; within that line the first pattern in table
// order wins.
package scale

import (
	"strings"

	"github.com/toricodesthings/pdf-scale-finder/internal/layout"
	"github.com/toricodesthings/pdf-scale-finder/internal/lines"
)

type Unit string

const (
	None      Unit = ""
	Thousands Unit = "thousands"
	Millions  Unit = "millions"
	Billions  Unit = "billions"
)

func ParseUnit(s string) (Unit, bool) {
	switch Unit(strings.ToLower(strings.TrimSpace(s))) {
	case Thousands:
		return Thousands, true
	case Millions:
		return Millions, true
	case Billions:
		return Billions, true
	case None:
		return None, true
	}
	return None, false
}

// Factor returns the multiplier for u; unknown or empty units scale by 1.
func Factor(u Unit) float64 {
	switch Unit(strings.ToLower(string(u))) {
	case Thousands:
		return 1e3
	case Millions:
		return 1e6
	case Billions:
		return 1e9
	}
	return 1
}

// Match is the outcome of a detection. The zero value means no scale cue.
type Match struct {
	Unit    Unit
	Phrase  string
	BBox    layout.BBox
	Pattern string
}

func (m Match) Found() bool { return m.Phrase != "" }

// Factor is Factor(m.Unit).
func (m Match) Factor() float64 { return Factor(m.Unit) }

// BBoxPtr returns nil when nothing matched, for optional fields.
func (m Match) BBoxPtr() *layout.BBox {
	if !m.Found() {
		return nil
	}
	b := m.BBox
	return &b
}

type Detector struct {
	table  *Table
	bucket float64
}

// NewDetector builds a detector over table; a nil table uses DefaultTable.
func NewDetector(table *Table, bucket float64) *Detector {
	if table == nil {
		table = DefaultTable()
	}
	if bucket <= 0 {
		bucket = lines.DefaultBucket
	}
	return &Detector{table: table, bucket: bucket}
}

func (d *Detector) Table() *Table { return d.table }

// Detect scans words line by line and returns the first scale phrase found.
func (d *Detector) Detect(words []layout.Word) Match {
	if len(words) == 0 {
		return Match{}
	}
	return d.DetectLines(lines.Group(words, d.bucket))
}

// DetectLines is Detect over an existing grouping.
func (d *Detector) DetectLines(g *lines.Grouping) Match {
	for _, ln := range g.Lines {
		text, spans := joinLine(ln.Words)
		if text == "" {
			continue
		}
		m, start, end, ok := d.match(text)
		if !ok {
			continue
		}
		if box, ok := spanBBox(ln.Words, spans, start, end); ok {
			m.BBox = box
		}
		return m
	}
	return Match{}
}

// DetectInRegion restricts detection to the words inside region.
func (d *Detector) DetectInRegion(words []layout.Word, region layout.BBox, tol float64) Match {
	var sub []layout.Word
	for _, w := range words {
		if region.Contains(w.BBox(), tol) {
			sub = append(sub, w)
		}
	}
	return d.Detect(sub)
}

// DetectText looks for a scale phrase in free text. The result has no box.
func (d *Detector) DetectText(text string) Match {
	if text == "" {
		return Match{}
	}
	m, _, _, _ := d.match(text)
	return m
}

func (d *Detector) match(text string) (Match, int, int, bool) {
	for _, p := range d.table.patterns {
		loc := p.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		var unit Unit
		if loc[2] >= 0 {
			unit = d.table.unitFor(text[loc[2]:loc[3]])
		}
		return Match{Unit: unit, Phrase: text[loc[0]:loc[1]], Pattern: p.Name}, loc[0], loc[1], true
	}
	return Match{}, 0, 0, false
}

type span struct{ start, end int }

// joinLine joins word texts with single spaces and records each word's byte
// range in the result.
func joinLine(words []layout.Word) (string, []span) {
	var b strings.Builder
	spans := make([]span, len(words))
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		start := b.Len()
		b.WriteString(w.Text)
		spans[i] = span{start, b.Len()}
	}
	return b.String(), spans
}

func spanBBox(words []layout.Word, spans []span, start, end int) (layout.BBox, bool) {
	var hit []layout.Word
	for i, s := range spans {
		if s.start < end && s.end > start {
			hit = append(hit, words[i])
		}
	}
	return layout.Union(hit)
}
