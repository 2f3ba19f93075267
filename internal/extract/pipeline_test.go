package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toricodesthings/pdf-scale-finder/internal/layout"
	"github.com/toricodesthings/pdf-scale-finder/internal/scale"
	"github.com/toricodesthings/pdf-scale-finder/internal/tables"
	"github.com/toricodesthings/pdf-scale-finder/internal/types"
	"github.com/toricodesthings/pdf-scale-finder/internal/units"
)

type fakePage struct {
	num   int
	words []layout.Word
	err   error
}

func (p fakePage) Number() int { return p.num }

func (p fakePage) Words(ctx context.Context, _, _ float64) ([]layout.Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.words, p.err
}

type fakeDoc struct {
	pages  [][]layout.Word
	errs   map[int]error
	closed bool
}

func (d *fakeDoc) PageCount() int { return len(d.pages) }

func (d *fakeDoc) Page(n int) (layout.Page, error) {
	if n < 1 || n > len(d.pages) {
		return nil, layout.ErrPageRange
	}
	return fakePage{num: n, words: d.pages[n-1], err: d.errs[n]}, nil
}

func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

func opener(doc *fakeDoc) layout.Opener {
	return layout.OpenerFunc(func(context.Context, string) (layout.Document, error) {
		return doc, nil
	})
}

func w(text string, x0, top, x1 float64) layout.Word {
	return layout.NewWord(text, x0, top, x1, top+10)
}

func caption(x0, top float64, unit string) []layout.Word {
	return []layout.Word{
		w("(Dollars", x0, top, x0+40),
		w("in", x0+43, top, x0+53),
		w(unit+")", x0+56, top, x0+110),
	}
}

// budgetPage has a page caption, a dollar row and a headcount row.
func budgetPage() []layout.Word {
	words := caption(50, 20, "Millions")
	return append(words,
		w("Total", 50, 100, 80), w("Obligations", 83, 100, 140), w("1,250", 300, 100, 330),
		w("End", 50, 120, 70), w("Strength", 73, 120, 115), w("340", 300, 120, 320),
		w("Growth", 50, 140, 90), w("12%", 300, 140, 320),
	)
}

// tablePage has a millions caption at the top, a thousands table below it
// and one number under the table.
func tablePage() []layout.Word {
	words := caption(50, 20, "Millions")
	words = append(words, caption(50, 200, "Thousands")...)
	return append(words,
		w("Revenue", 50, 215, 90), w("500", 200, 215, 220), w("600", 350, 215, 370),
		w("Costs", 50, 230, 80), w("100", 200, 230, 220), w("200", 350, 230, 370),
		w("Total", 50, 400, 80), w("spend", 83, 400, 113), w("7", 116, 400, 122),
	)
}

func newPipeline(doc *fakeDoc, finder tables.Finder) *Pipeline {
	return New(Config{PageWorkers: 4}, opener(doc), nil, finder, nil)
}

func scaled(hits []types.NumberHit) []float64 {
	out := make([]float64, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.ScaledValue)
	}
	return out
}

func TestRunDollarsAndHeadcount(t *testing.T) {
	doc := &fakeDoc{pages: [][]layout.Word{budgetPage()}}
	rep, err := newPipeline(doc, nil).Run(context.Background(), "budget.pdf", types.Options{})
	require.NoError(t, err)
	require.Len(t, rep.Hits, 2)
	assert.True(t, doc.closed)

	top := rep.Hits[0]
	assert.Equal(t, "1,250", top.RawText)
	assert.Equal(t, 1250.0, top.RawValue)
	assert.Equal(t, 1.25e9, top.ScaledValue)
	assert.Equal(t, units.Unknown, top.Units)
	assert.Equal(t, scale.Millions, top.Scale)
	assert.Equal(t, "(Dollars in Millions)", top.ScalePhrase)
	require.NotNil(t, top.ScaleBBox)
	assert.Equal(t, 20.0, top.ScaleBBox.Top)
	assert.Nil(t, top.TableBBox)

	people := rep.Hits[1]
	assert.Equal(t, units.People, people.Units)
	assert.Equal(t, 340.0, people.ScaledValue)
	assert.Equal(t, scale.Millions, people.Scale)

	assert.Equal(t, 1, rep.TotalPages)
	assert.Equal(t, 1, rep.PagesScanned)
}

func TestRunTableScopeOverridesPage(t *testing.T) {
	doc := &fakeDoc{pages: [][]layout.Word{tablePage()}}
	rep, err := newPipeline(doc, tables.NewDetector(tables.Config{})).Run(context.Background(), "t.pdf", types.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, rep.TablesFound)
	assert.Equal(t, []float64{7e6, 6e5, 5e5, 2e5, 1e5}, scaled(rep.Hits))
	assert.Nil(t, rep.Hits[0].TableBBox)
	require.NotNil(t, rep.Hits[1].TableBBox)
	assert.Equal(t, scale.Thousands, rep.Hits[1].Scale)
}

func TestRunTableFinderFailureFallsBackToPageScale(t *testing.T) {
	failing := tables.FinderFunc(func([]layout.Word) ([]layout.BBox, error) {
		return nil, errors.New("boom")
	})
	panicking := tables.FinderFunc(func([]layout.Word) ([]layout.BBox, error) {
		panic("bad geometry")
	})

	for name, finder := range map[string]tables.Finder{"error": failing, "panic": panicking} {
		t.Run(name, func(t *testing.T) {
			doc := &fakeDoc{pages: [][]layout.Word{tablePage()}}
			rep, err := newPipeline(doc, finder).Run(context.Background(), "t.pdf", types.Options{})
			require.NoError(t, err)
			assert.Equal(t, 0, rep.TablesFound)
			assert.Equal(t, []float64{6e8, 5e8, 2e8, 1e8, 7e6}, scaled(rep.Hits))
		})
	}
}

func TestRunIsIdempotent(t *testing.T) {
	doc := &fakeDoc{pages: [][]layout.Word{tablePage(), budgetPage(), tablePage()}}
	p := newPipeline(doc, tables.NewDetector(tables.Config{}))

	a, err := p.Run(context.Background(), "x.pdf", types.Options{})
	require.NoError(t, err)
	b, err := p.Run(context.Background(), "x.pdf", types.Options{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRunTiesKeepPageThenExtractionOrder(t *testing.T) {
	doc := &fakeDoc{pages: [][]layout.Word{
		{w("A", 10, 50, 20), w("5", 30, 50, 40), w("B", 10, 10, 20), w("5", 30, 10, 40)},
		{w("C", 10, 10, 20), w("5", 30, 10, 40)},
	}}
	rep, err := newPipeline(doc, nil).Run(context.Background(), "ties.pdf", types.Options{})
	require.NoError(t, err)
	require.Len(t, rep.Hits, 3)

	assert.Equal(t, 1, rep.Hits[0].Page)
	assert.Equal(t, 50.0, rep.Hits[0].BBox.Top)
	assert.Equal(t, 1, rep.Hits[1].Page)
	assert.Equal(t, 10.0, rep.Hits[1].BBox.Top)
	assert.Equal(t, 2, rep.Hits[2].Page)
}

func TestRunPageRange(t *testing.T) {
	pages := make([][]layout.Word, 3)
	for i := range pages {
		pages[i] = []layout.Word{w("Item", 10, 10, 40), w(fmt.Sprint(i+1), 60, 10, 70)}
	}
	doc := &fakeDoc{pages: pages}
	p := newPipeline(doc, nil)

	rep, err := p.Run(context.Background(), "r.pdf", types.Options{StartPage: 2, EndPage: 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, scaled(rep.Hits))
	assert.Equal(t, 1, rep.PagesScanned)

	rep, err = p.Run(context.Background(), "r.pdf", types.Options{StartPage: 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 2}, scaled(rep.Hits))

	rep, err = p.Run(context.Background(), "r.pdf", types.Options{StartPage: 5})
	require.NoError(t, err)
	assert.Empty(t, rep.Hits)
	assert.Equal(t, 0, rep.PagesScanned)
	assert.Equal(t, 3, rep.TotalPages)
}

func TestPageRange(t *testing.T) {
	tests := []struct{ start, end, total, wantStart, wantEnd int }{
		{0, 0, 10, 1, 10},
		{-3, 4, 10, 1, 4},
		{3, 50, 10, 3, 10},
		{8, 2, 10, 8, 2},
		{1, 0, 0, 1, 0},
	}
	for _, tt := range tests {
		s, e := PageRange(tt.start, tt.end, tt.total)
		assert.Equal(t, tt.wantStart, s)
		assert.Equal(t, tt.wantEnd, e)
	}
}

func TestRunFilters(t *testing.T) {
	doc := &fakeDoc{pages: [][]layout.Word{tablePage()}}
	p := newPipeline(doc, tables.NewDetector(tables.Config{}))
	lo, hi := 2e5, 6e5

	rep, err := p.Run(context.Background(), "t.pdf", types.Options{MinScaled: &lo, MaxScaled: &hi})
	require.NoError(t, err)
	assert.Equal(t, []float64{6e5, 5e5, 2e5}, scaled(rep.Hits))

	maxRaw := 10.0
	rep, err = p.Run(context.Background(), "t.pdf", types.Options{MaxRaw: &maxRaw})
	require.NoError(t, err)
	assert.Equal(t, []float64{7e6}, scaled(rep.Hits))
}

func TestRunNoScaling(t *testing.T) {
	doc := &fakeDoc{pages: [][]layout.Word{tablePage(), budgetPage()}}
	rep, err := newPipeline(doc, tables.NewDetector(tables.Config{})).Run(context.Background(), "t.pdf", types.Options{NoScaling: true})
	require.NoError(t, err)

	require.NotEmpty(t, rep.Hits)
	for _, h := range rep.Hits {
		assert.Equal(t, h.RawValue, h.ScaledValue)
		assert.Equal(t, scale.None, h.Scale)
		assert.Nil(t, h.ScaleBBox)
	}
	assert.Equal(t, 1250.0, rep.Hits[0].ScaledValue)
	assert.Equal(t, 0, rep.TablesFound)
}

func TestRunNegativeAndPercent(t *testing.T) {
	doc := &fakeDoc{pages: [][]layout.Word{{
		w("Loss", 10, 10, 40), w("(1,234)", 60, 10, 90), w("12%", 100, 10, 120), w("3", 130, 10, 135),
	}}}
	rep, err := newPipeline(doc, nil).Run(context.Background(), "n.pdf", types.Options{})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, -1234}, scaled(rep.Hits))
}

func TestRunDegradedPages(t *testing.T) {
	doc := &fakeDoc{
		pages: [][]layout.Word{budgetPage(), nil, budgetPage()},
		errs:  map[int]error{3: errors.New("bad content stream")},
	}
	rep, err := newPipeline(doc, nil).Run(context.Background(), "d.pdf", types.Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, rep.TextlessPages)
	assert.Equal(t, []int{3}, rep.FailedPages)
	assert.Equal(t, 3, rep.PagesScanned)
	assert.Len(t, rep.Hits, 2)
}

func TestRunOpenError(t *testing.T) {
	failing := layout.OpenerFunc(func(context.Context, string) (layout.Document, error) {
		return nil, fmt.Errorf("%w missing.pdf: %w", layout.ErrOpen, errors.New("no such file"))
	})
	_, err := New(Config{}, failing, nil, nil, nil).Run(context.Background(), "missing.pdf", types.Options{})
	assert.ErrorIs(t, err, layout.ErrOpen)

	_, err = New(Config{}, layout.NativeOpener{}, nil, nil, nil).Run(context.Background(), "/does/not/exist.pdf", types.Options{})
	assert.ErrorIs(t, err, layout.ErrOpen)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := &fakeDoc{pages: [][]layout.Word{budgetPage()}}
	_, err := newPipeline(doc, nil).Run(ctx, "c.pdf", types.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLargest(t *testing.T) {
	doc := &fakeDoc{pages: [][]layout.Word{budgetPage()}}
	rep, err := newPipeline(doc, nil).Run(context.Background(), "b.pdf", types.Options{})
	require.NoError(t, err)
	h, err := rep.Largest()
	require.NoError(t, err)
	assert.Equal(t, 1.25e9, h.ScaledValue)

	empty := &fakeDoc{pages: [][]layout.Word{{w("No", 10, 10, 20), w("figures", 22, 10, 60)}}}
	rep, err = newPipeline(empty, nil).Run(context.Background(), "e.pdf", types.Options{})
	require.NoError(t, err)
	_, err = rep.Largest()
	assert.ErrorIs(t, err, ErrNoNumbers)
}
