// Package tables finds table regions on a page from the alignment of its
// words. Only the bounding box of each region is reported.
package tables

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/toricodesthings/pdf-scale-finder/internal/layout"
	"github.com/toricodesthings/pdf-scale-finder/internal/lines"
)

var ErrTooManyWords = errors.New("tables: too many words on page")

// Finder returns table boxes in discovery order (top to bottom).
type Finder interface {
	Find(words []layout.Word) ([]layout.BBox, error)
}

type FinderFunc func(words []layout.Word) ([]layout.BBox, error)

func (f FinderFunc) Find(words []layout.Word) ([]layout.BBox, error) { return f(words) }

type Config struct {
	LineBucket float64 // line grouping bucket
	ClusterGap float64 // vertical gap that ends a cluster
	CellGap    float64 // horizontal gap that separates two cells
	MinCols    int     // cells a line needs to count as a row
	MinRows    int     // rows a cluster needs to count as a table
	MinRatio   float64 // share of cluster lines that must be rows
	CaptionGap float64 // how far above a table its caption may sit
	MaxWords   int
}

func DefaultConfig() Config {
	return Config{
		LineBucket: lines.DefaultBucket,
		ClusterGap: 24,
		CellGap:    12,
		MinCols:    2,
		MinRows:    2,
		MinRatio:   0.5,
		CaptionGap: 96,
		MaxWords:   20000,
	}
}

type Detector struct {
	cfg     Config
	caption func(text string) bool
}

// NewDetector fills zero fields of cfg from DefaultConfig.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.LineBucket <= 0 {
		cfg.LineBucket = def.LineBucket
	}
	if cfg.ClusterGap <= 0 {
		cfg.ClusterGap = def.ClusterGap
	}
	if cfg.CellGap <= 0 {
		cfg.CellGap = def.CellGap
	}
	if cfg.MinCols <= 0 {
		cfg.MinCols = def.MinCols
	}
	if cfg.MinRows <= 0 {
		cfg.MinRows = def.MinRows
	}
	if cfg.MinRatio <= 0 {
		cfg.MinRatio = def.MinRatio
	}
	if cfg.CaptionGap <= 0 {
		cfg.CaptionGap = def.CaptionGap
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = def.MaxWords
	}
	return &Detector{cfg: cfg}
}

// WithCaptions makes a table's box take in the line right above it when
// match accepts that line's text and it sits within CaptionGap.
func (d *Detector) WithCaptions(match func(text string) bool) *Detector {
	d.caption = match
	return d
}

func (d *Detector) Find(words []layout.Word) ([]layout.BBox, error) {
	if len(words) > d.cfg.MaxWords {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyWords, len(words), d.cfg.MaxWords)
	}
	if len(words) == 0 {
		return nil, nil
	}

	g := lines.Group(words, d.cfg.LineBucket)

	var boxes []layout.BBox
	next, taken := 0, -1 // first line of the next cluster; last line inside a table
	for _, cluster := range d.cluster(g.Lines) {
		first := next
		next += len(cluster)

		box, ok := d.tableBox(cluster)
		if !ok {
			continue
		}
		if first-1 > taken {
			if cb, ok := d.captionAbove(g.Lines[first-1], box); ok {
				box = box.Union(cb)
			}
		}
		boxes = append(boxes, box)
		taken = next - 1
	}
	return boxes, nil
}

func (d *Detector) captionAbove(ln lines.Line, table layout.BBox) (layout.BBox, bool) {
	if d.caption == nil {
		return layout.BBox{}, false
	}
	if _, bottom := extent(ln.Words); table.Top-bottom > d.cfg.CaptionGap {
		return layout.BBox{}, false
	}
	texts := make([]string, len(ln.Words))
	for i, w := range ln.Words {
		texts[i] = w.Text
	}
	if !d.caption(strings.Join(texts, " ")) {
		return layout.BBox{}, false
	}
	return layout.Union(ln.Words)
}

// cluster splits lines wherever the vertical gap between consecutive lines
// exceeds ClusterGap.
func (d *Detector) cluster(ls []lines.Line) [][]lines.Line {
	var (
		out    [][]lines.Line
		cur    []lines.Line
		bottom = math.Inf(-1)
	)
	for _, ln := range ls {
		top, bot := extent(ln.Words)
		if len(cur) > 0 && top-bottom > d.cfg.ClusterGap {
			out = append(out, cur)
			cur = nil
			bottom = math.Inf(-1)
		}
		cur = append(cur, ln)
		bottom = math.Max(bottom, bot)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func (d *Detector) tableBox(cluster []lines.Line) (layout.BBox, bool) {
	if len(cluster) < d.cfg.MinRows {
		return layout.BBox{}, false
	}

	rows := 0
	var all []layout.Word
	for _, ln := range cluster {
		if d.cells(ln.Words) >= d.cfg.MinCols {
			rows++
		}
		all = append(all, ln.Words...)
	}

	if rows < d.cfg.MinRows || float64(rows)/float64(len(cluster)) < d.cfg.MinRatio {
		return layout.BBox{}, false
	}
	return layout.Union(all)
}

// cells counts runs of words separated by more than CellGap.
func (d *Detector) cells(words []layout.Word) int {
	if len(words) == 0 {
		return 0
	}
	sorted := make([]layout.Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X0 < sorted[j].X0 })

	n := 1
	right := sorted[0].X1
	for _, w := range sorted[1:] {
		if w.X0-right > d.cfg.CellGap {
			n++
		}
		right = math.Max(right, w.X1)
	}
	return n
}

func extent(words []layout.Word) (top, bottom float64) {
	top, bottom = math.Inf(1), math.Inf(-1)
	for _, w := range words {
		top = math.Min(top, w.Top)
		bottom = math.Max(bottom, w.Bottom)
	}
	return top, bottom
}
