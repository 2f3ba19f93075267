// Package extract runs the page-by-page number extraction and produces a
// ranked list of scaled hits.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/toricodesthings/pdf-scale-finder/internal/layout"
	"github.com/toricodesthings/pdf-scale-finder/internal/lines"
	"github.com/toricodesthings/pdf-scale-finder/internal/numparse"
	"github.com/toricodesthings/pdf-scale-finder/internal/quality"
	"github.com/toricodesthings/pdf-scale-finder/internal/scale"
	"github.com/toricodesthings/pdf-scale-finder/internal/scope"
	"github.com/toricodesthings/pdf-scale-finder/internal/tables"
	"github.com/toricodesthings/pdf-scale-finder/internal/types"
	"github.com/toricodesthings/pdf-scale-finder/internal/units"
)

var ErrNoNumbers = errors.New("no numbers found")

type Config struct {
	PageWorkers      int
	XTolerance       float64
	YTolerance       float64
	LineBucket       float64
	ContainTolerance float64
	LeftContextGap   float64
	MinWords         int
}

func DefaultConfig() Config {
	return Config{
		PageWorkers:      runtime.NumCPU(),
		XTolerance:       3,
		YTolerance:       3,
		LineBucket:       lines.DefaultBucket,
		ContainTolerance: scope.DefaultTolerance,
		LeftContextGap:   units.DefaultGap,
		MinWords:         quality.DefaultMinWords,
	}
}

func withDefaults(c Config) Config {
	def := DefaultConfig()
	if c.PageWorkers <= 0 {
		c.PageWorkers = def.PageWorkers
	}
	if c.XTolerance <= 0 {
		c.XTolerance = def.XTolerance
	}
	if c.YTolerance <= 0 {
		c.YTolerance = def.YTolerance
	}
	if c.LineBucket <= 0 {
		c.LineBucket = def.LineBucket
	}
	if c.ContainTolerance <= 0 {
		c.ContainTolerance = def.ContainTolerance
	}
	if c.LeftContextGap <= 0 {
		c.LeftContextGap = def.LeftContextGap
	}
	if c.MinWords <= 0 {
		c.MinWords = def.MinWords
	}
	return c
}

// Report is the outcome of one run. Hits are filtered and ranked; an empty
// Hits slice means nothing was found, not a failure.
type Report struct {
	Hits          []types.NumberHit
	TotalPages    int
	PagesScanned  int
	TablesFound   int
	TextlessPages []int
	FailedPages   []int
}

type Pipeline struct {
	cfg      Config
	opener   layout.Opener
	detector *scale.Detector
	finder   tables.Finder
	log      *slog.Logger
}

// New wires a pipeline. A nil detector uses the built-in pattern table, a
// nil finder disables table discovery and a nil logger discards output.
func New(cfg Config, opener layout.Opener, detector *scale.Detector, finder tables.Finder, logger *slog.Logger) *Pipeline {
	cfg = withDefaults(cfg)
	if detector == nil {
		detector = scale.NewDetector(nil, cfg.LineBucket)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{cfg: cfg, opener: opener, detector: detector, finder: finder, log: logger}
}

type pageResult struct {
	hits     []types.NumberHit
	tables   int
	textless bool
	failed   bool
}

func (p *Pipeline) Run(ctx context.Context, path string, opts types.Options) (*Report, error) {
	doc, err := p.opener.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	total := doc.PageCount()
	rep := &Report{TotalPages: total, Hits: []types.NumberHit{}}

	start, end := PageRange(opts.StartPage, opts.EndPage, total)
	if start > end {
		return rep, nil
	}

	// Each worker owns one slot; merging in slot order keeps output
	// deterministic regardless of scheduling.
	results := make([]pageResult, end-start+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.PageWorkers)
	for i := range results {
		i := i
		num := start + i
		g.Go(func() error {
			res, err := p.scanPage(gctx, doc, num, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, res := range results {
		num := start + i
		rep.PagesScanned++
		rep.TablesFound += res.tables
		if res.textless {
			rep.TextlessPages = append(rep.TextlessPages, num)
		}
		if res.failed {
			rep.FailedPages = append(rep.FailedPages, num)
		}
		for _, h := range res.hits {
			if opts.Accept(h) {
				rep.Hits = append(rep.Hits, h)
			}
		}
	}

	sortHits(rep.Hits)

	p.log.Debug("extraction complete",
		"path", path,
		"pages", rep.PagesScanned,
		"hits", len(rep.Hits),
		"tables", rep.TablesFound,
	)
	return rep, nil
}

// Largest returns the top-ranked hit, or ErrNoNumbers.
func (r *Report) Largest() (types.NumberHit, error) {
	if len(r.Hits) == 0 {
		return types.NumberHit{}, ErrNoNumbers
	}
	return r.Hits[0], nil
}

// PageRange clamps a 1-based inclusive range to [1, total]. An end of zero
// means the last page. The result is empty (start > end) when nothing is left.
func PageRange(start, end, total int) (int, int) {
	if start < 1 {
		start = 1
	}
	if end <= 0 || end > total {
		end = total
	}
	return start, end
}

// sortHits ranks by scaled value, largest first. Ties keep page order, then
// extraction order within the page.
func sortHits(hits []types.NumberHit) {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].ScaledValue > hits[j].ScaledValue })
}

func (p *Pipeline) scanPage(ctx context.Context, doc layout.Document, num int, opts types.Options) (pageResult, error) {
	if err := ctx.Err(); err != nil {
		return pageResult{}, err
	}
	log := p.log.With("page", num)

	page, err := doc.Page(num)
	if err != nil {
		log.Warn("page unavailable", "err", err)
		return pageResult{failed: true}, nil
	}
	words, err := page.Words(ctx, p.cfg.XTolerance, p.cfg.YTolerance)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return pageResult{}, ctxErr
		}
		log.Warn("word extraction failed", "err", err)
		return pageResult{failed: true}, nil
	}
	words = layout.Normalize(words)

	var res pageResult
	if d := quality.Assess(words, p.cfg.MinWords); d.Textless {
		res.textless = true
		log.Debug("page has no text layer")
		return res, nil
	} else if d.NeedsOCR {
		log.Warn("text layer looks unreliable", "quality", d.Quality, "reasons", d.Reasons)
	}

	grouping := lines.Group(words, p.cfg.LineBucket)

	var resolver *scope.Resolver
	if !opts.NoScaling {
		boxes := p.findTables(log, words)
		resolver = scope.NewResolver(p.detector, words, boxes, p.detector.DetectLines(grouping), p.cfg.ContainTolerance)
		res.tables = len(resolver.Tables())
		if pg := resolver.Page(); pg.Found() || res.tables > 0 {
			log.Debug("scale scope", "page_scale", pg.Unit, "tables", res.tables)
		}
	}

	for _, w := range words {
		raw, ok := numparse.Parse(w.Text)
		if !ok {
			continue
		}
		kind := units.Classify(w, grouping.LineOf(w), p.cfg.LeftContextGap)

		h := types.NumberHit{
			Page:        num,
			RawText:     w.Text,
			RawValue:    raw,
			ScaledValue: raw,
			BBox:        w.BBox(),
			Units:       kind,
		}
		if resolver != nil {
			sc := resolver.Resolve(h.BBox)
			h.Scale = sc.Scale.Unit
			h.ScalePhrase = sc.Scale.Phrase
			h.ScaleBBox = sc.Scale.BBoxPtr()
			h.TableBBox = sc.Table
			if kind.Scales() {
				h.ScaledValue = raw * sc.Scale.Factor()
			}
		}
		res.hits = append(res.hits, h)
	}
	return res, nil
}

// findTables treats any failure of the finder, panics included, as a page
// without tables.
func (p *Pipeline) findTables(log *slog.Logger, words []layout.Word) (boxes []layout.BBox) {
	if p.finder == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			log.Debug("table detection panicked", "err", fmt.Sprint(r))
			boxes = nil
		}
	}()

	boxes, err := p.finder.Find(words)
	if err != nil {
		log.Debug("table detection failed", "err", err)
		return nil
	}
	return boxes
}
