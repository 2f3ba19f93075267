package layout

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/ledongthuc/pdf"
)

const defaultPageHeight = 792.0

// NativeOpener reads PDFs in-process with github.com/ledongthuc/pdf.
type NativeOpener struct{}

func (NativeOpener) Open(ctx context.Context, path string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidatePDFMagic(path); err != nil {
		return nil, openErr(path, err)
	}

	f, r, err := openNative(path)
	if err != nil {
		return nil, openErr(path, err)
	}
	return &nativeDocument{file: f, reader: r}, nil
}

func openNative(path string) (f *os.File, r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("corrupt document: %v", rec)
		}
	}()
	return pdf.Open(path)
}

type nativeDocument struct {
	// The reader shares one file handle and object cache across pages, so
	// page access is serialized.
	mu     sync.Mutex
	file   *os.File
	reader *pdf.Reader
}

func (d *nativeDocument) PageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reader.NumPage()
}

func (d *nativeDocument) Page(n int) (Page, error) {
	if n < 1 || n > d.PageCount() {
		return nil, fmt.Errorf("%w: %d", ErrPageRange, n)
	}
	return &nativePage{doc: d, num: n}, nil
}

func (d *nativeDocument) Close() error {
	return d.file.Close()
}

type nativePage struct {
	doc *nativeDocument
	num int
}

func (p *nativePage) Number() int { return p.num }

func (p *nativePage) Words(ctx context.Context, xTol, yTol float64) (words []Word, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.doc.mu.Lock()
	defer p.doc.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: content stream: %v", p.num, rec)
		}
	}()

	page := p.doc.reader.Page(p.num)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d: missing page object", p.num)
	}
	height := mediaBoxHeight(page.V)
	return Normalize(assembleWords(page.Content().Text, height, xTol, yTol)), nil
}

// mediaBoxHeight walks the page tree for an inherited MediaBox.
func mediaBoxHeight(v pdf.Value) float64 {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			h := math.Abs(box.Index(3).Float64() - box.Index(1).Float64())
			if h > 0 {
				return h
			}
		}
		v = v.Key("Parent")
	}
	return defaultPageHeight
}

type wordBuilder struct {
	text     strings.Builder
	x0, x1   float64
	baseline float64
	size     float64
}

// assembleWords joins glyph runs into words. A run breaks on whitespace, on a
// baseline change larger than yTol, or on a horizontal gap larger than xTol.
// PDF y grows upward, so boxes are flipped against the page height.
func assembleWords(glyphs []pdf.Text, pageHeight, xTol, yTol float64) []Word {
	var (
		words []Word
		cur   *wordBuilder
	)

	flush := func() {
		if cur == nil || cur.text.Len() == 0 {
			cur = nil
			return
		}
		size := cur.size
		if size <= 0 {
			size = 1
		}
		words = append(words, NewWord(
			cur.text.String(),
			cur.x0,
			pageHeight-(cur.baseline+size),
			cur.x1,
			pageHeight-cur.baseline,
		))
		cur = nil
	}

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		if strings.TrimFunc(g.S, unicode.IsSpace) == "" {
			flush()
			continue
		}
		if cur != nil {
			sameLine := math.Abs(g.Y-cur.baseline) <= yTol
			adjacent := g.X-cur.x1 <= xTol && g.X >= cur.x0-xTol
			if !sameLine || !adjacent {
				flush()
			}
		}
		if cur == nil {
			cur = &wordBuilder{x0: g.X, x1: g.X, baseline: g.Y}
		}
		cur.text.WriteString(g.S)
		cur.x1 = math.Max(cur.x1, g.X+g.W)
		cur.size = math.Max(cur.size, g.FontSize)
	}
	flush()

	return words
}
