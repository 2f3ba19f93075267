// Package layout turns PDF pages into positioned words. It is the boundary
// between the document backends and the number pipeline: everything past
// this package sees only Word values.
package layout

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

var (
	// ErrOpen wraps every failure to open a document.
	ErrOpen = errors.New("open document")
	// ErrPageRange is returned for page numbers outside 1..PageCount.
	ErrPageRange = errors.New("page out of range")
)

type Document interface {
	PageCount() int
	// Page returns the 1-based page n.
	Page(n int) (Page, error)
	Close() error
}

type Page interface {
	Number() int
	Words(ctx context.Context, xTol, yTol float64) ([]Word, error)
}

type Opener interface {
	Open(ctx context.Context, path string) (Document, error)
}

type OpenerFunc func(ctx context.Context, path string) (Document, error)

func (f OpenerFunc) Open(ctx context.Context, path string) (Document, error) {
	return f(ctx, path)
}

const (
	BackendNative  = "native"
	BackendPoppler = "poppler"
)

// NewOpener selects a backend by name. timeout bounds each poppler process;
// zero keeps the defaults.
func NewOpener(backend string, timeout time.Duration) (Opener, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendNative:
		return NativeOpener{}, nil
	case BackendPoppler:
		return PopplerOpener{InfoTimeout: timeout, PageTimeout: timeout}, nil
	default:
		return nil, fmt.Errorf("unknown layout backend %q (want %s or %s)", backend, BackendNative, BackendPoppler)
	}
}

// ValidatePDFMagic checks that a file starts with %PDF. It catches error
// pages and other non-PDF payloads before a backend sees them.
func ValidatePDFMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, 5)
	n, err := f.Read(header)
	if err != nil || n < 5 {
		return fmt.Errorf("file is too small to be a valid PDF")
	}
	if string(header[:4]) != "%PDF" {
		return fmt.Errorf("file is not a PDF (starts with %q)", string(header[:n]))
	}
	return nil
}

func openErr(path string, err error) error {
	return fmt.Errorf("%w %s: %w", ErrOpen, path, err)
}
