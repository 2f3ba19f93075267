package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/toricodesthings/pdf-scale-finder/internal/layout"
	"github.com/toricodesthings/pdf-scale-finder/internal/version"
)

func newDownloadClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// downloadPDFToTemp fetches url into a fresh temp dir. The caller owns
// cleanup on success; on error the dir is already gone.
func (s *Server) downloadPDFToTemp(ctx context.Context, url string) (path string, cleanup func(), err error) {
	maxBytes := s.cfg.MaxPDFBytes
	if maxBytes <= 0 {
		maxBytes = 200 << 20
	}

	tmpDir, err := os.MkdirTemp("", "scalefind-*")
	if err != nil {
		return "", nil, fmt.Errorf("temp dir: %w", err)
	}
	rm := func() { _ = os.RemoveAll(tmpDir) }
	defer func() {
		if err != nil {
			rm()
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("download: %w", err)
	}
	req.Header.Set("User-Agent", "scalefind/"+version.Version)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	if ct := strings.ToLower(resp.Header.Get("Content-Type")); ct != "" &&
		!strings.Contains(ct, "pdf") && !strings.Contains(ct, "octet-stream") {
		return "", nil, fmt.Errorf("invalid content-type: %s", ct)
	}

	path = filepath.Join(tmpDir, "doc.pdf")
	n, err := copyLimited(path, resp.Body, maxBytes)
	switch {
	case err != nil:
		return "", nil, err
	case n > maxBytes:
		return "", nil, fmt.Errorf("PDF exceeds %dMB limit", maxBytes/(1<<20))
	case n < 100:
		return "", nil, fmt.Errorf("PDF too small (likely invalid)")
	}

	// Storage error pages (XML, HTML) are sometimes served with a 200.
	if err = layout.ValidatePDFMagic(path); err != nil {
		return "", nil, fmt.Errorf("downloaded file rejected: %w", err)
	}
	return path, rm, nil
}

// copyLimited writes at most limit+1 bytes of r to path so callers can
// detect an oversized body.
func copyLimited(path string, r io.Reader, limit int64) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}
	return n, nil
}
