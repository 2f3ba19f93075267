package layout

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// PopplerOpener shells out to pdfinfo and pdftotext (poppler-utils). Each
// page is its own process, so pages can be read concurrently.
type PopplerOpener struct {
	InfoTimeout time.Duration
	PageTimeout time.Duration
}

var pagesRe = regexp.MustCompile(`(?m)^Pages:\s+(\d+)\s*$`)

func (o PopplerOpener) Open(ctx context.Context, path string) (Document, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return nil, openErr(path, fmt.Errorf("pdftotext not found: install poppler-utils"))
	}
	if err := ValidatePDFMagic(path); err != nil {
		return nil, openErr(path, err)
	}

	n, err := pageCount(ctx, path, orDefault(o.InfoTimeout, 5*time.Second))
	if err != nil {
		return nil, openErr(path, err)
	}
	return &popplerDocument{path: path, pages: n, timeout: orDefault(o.PageTimeout, 10*time.Second)}, nil
}

func pageCount(ctx context.Context, path string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "pdfinfo", path).Output()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: %w", err)
	}
	return parsePageCount(out)
}

func parsePageCount(out []byte) (int, error) {
	m := pagesRe.FindSubmatch(out)
	if len(m) != 2 {
		return 0, fmt.Errorf("pdfinfo: pages not found")
	}
	return strconv.Atoi(string(m[1]))
}

type popplerDocument struct {
	path    string
	pages   int
	timeout time.Duration
}

func (d *popplerDocument) PageCount() int { return d.pages }

func (d *popplerDocument) Page(n int) (Page, error) {
	if n < 1 || n > d.pages {
		return nil, fmt.Errorf("%w: %d", ErrPageRange, n)
	}
	return &popplerPage{doc: d, num: n}, nil
}

func (d *popplerDocument) Close() error { return nil }

type popplerPage struct {
	doc *popplerDocument
	num int
}

func (p *popplerPage) Number() int { return p.num }

// Words runs pdftotext -bbox for this page. pdftotext does its own word
// segmentation, so the tolerances are not used here.
func (p *popplerPage) Words(ctx context.Context, _, _ float64) ([]Word, error) {
	ctx, cancel := context.WithTimeout(ctx, p.doc.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx,
		"pdftotext",
		"-f", strconv.Itoa(p.num),
		"-l", strconv.Itoa(p.num),
		"-bbox",
		"-enc", "UTF-8",
		p.doc.path,
		"-",
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext page %d: %w", p.num, err)
	}
	return parseBBoxWords(out)
}

// parseBBoxWords reads the XHTML written by pdftotext -bbox. The HTML parser
// lower-cases attribute names, hence "xmin" rather than "xMin".
func parseBBoxWords(doc []byte) ([]Word, error) {
	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse bbox output: %w", err)
	}

	var words []Word
	root.Find("word").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		words = append(words, NewWord(text,
			attrFloat(s, "xmin"),
			attrFloat(s, "ymin"),
			attrFloat(s, "xmax"),
			attrFloat(s, "ymax"),
		))
	})
	return words, nil
}

func attrFloat(s *goquery.Selection, name string) float64 {
	v, ok := s.Attr(name)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
