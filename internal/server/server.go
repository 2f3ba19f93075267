// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/toricodesthings/pdf-scale-finder/internal/config"
	"github.com/toricodesthings/pdf-scale-finder/internal/extract"
	"github.com/toricodesthings/pdf-scale-finder/internal/format"
	"github.com/toricodesthings/pdf-scale-finder/internal/layout"
	"github.com/toricodesthings/pdf-scale-finder/internal/types"
	"github.com/toricodesthings/pdf-scale-finder/internal/version"
)

// Extractor is the part of the pipeline the server needs.
type Extractor interface {
	Run(ctx context.Context, path string, opts types.Options) (*extract.Report, error)
}

type Server struct {
	cfg       config.Config
	log       *slog.Logger
	extractor Extractor
	client    *http.Client

	requestSem *semaphore.Weighted
	limiters   *limiterSet
	metrics    *serverMetrics
}

type serverMetrics struct {
	mu            sync.RWMutex
	totalRequests int64
	activeReqs    int64
	hitsReturned  int64
}

func (m *serverMetrics) incActive() {
	m.mu.Lock()
	m.activeReqs++
	m.totalRequests++
	m.mu.Unlock()
}
func (m *serverMetrics) decActive() {
	m.mu.Lock()
	m.activeReqs--
	m.mu.Unlock()
}
func (m *serverMetrics) addHits(n int) {
	m.mu.Lock()
	m.hitsReturned += int64(n)
	m.mu.Unlock()
}
func (m *serverMetrics) get() (total, active, hits int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalRequests, m.activeReqs, m.hitsReturned
}

func New(cfg config.Config, extractor Extractor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	maxReq := cfg.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 15
	}
	return &Server{
		cfg:        cfg,
		log:        logger,
		extractor:  extractor,
		client:     newDownloadClient(cfg.DownloadTimeout),
		requestSem: semaphore.NewWeighted(maxReq),
		limiters:   newLimiterSet(cfg.RateLimitEvery, cfg.RateLimitBurst),
		metrics:    &serverMetrics{},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metrics", s.withInternalAuth(s.handleMetrics))

	mux.HandleFunc("/pdf/numbers",
		s.withInternalAuth(
			s.withRateLimit(
				withMethod("POST",
					s.withConcurrencyLimit(s.handleNumbers)))))

	return s.withRequestID(s.withLogging(s.withRecovery(mux)))
}

// HTTPServer builds an http.Server with the configured timeouts.
func (s *Server) HTTPServer() *http.Server {
	maxHeaderBytes := 1 << 20
	if s.cfg.MaxHeaderBytes > 0 {
		maxHeaderBytes = s.cfg.MaxHeaderBytes
	}
	return &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}
}

// Housekeeping logs runtime stats and resets the per-IP limiters every
// CleanupInterval until ctx ends.
func (s *Server) Housekeeping(ctx context.Context) {
	interval := s.cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		total, active, _ := s.metrics.get()
		s.log.Info("stats",
			"active", active,
			"total", total,
			"goroutines", runtime.NumGoroutine(),
			"memMB", m.Alloc/(1<<20),
		)
		s.limiters.reset()
	}
}

// ---------- Handlers ----------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, active, _ := s.metrics.get()
	status := "healthy"
	code := http.StatusOK

	ratio := s.cfg.HealthDegradeRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.9
	}
	limit := s.cfg.MaxConcurrentRequests
	if limit <= 0 {
		limit = 15
	}

	if active >= int64(float64(limit)*ratio) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"active":  active,
		"version": version.Version,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	total, active, hits := s.metrics.get()

	writeJSON(w, http.StatusOK, map[string]any{
		"activeRequests": active,
		"totalRequests":  total,
		"hitsReturned":   hits,
		"goroutines":     runtime.NumGoroutine(),
		"memAllocMB":     m.Alloc / (1 << 20),
		"memSysMB":       m.Sys / (1 << 20),
	})
}

func (s *Server) handleNumbers(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)

	req, err := parseJSON[types.ExtractRequest](r, s.cfg.MaxJSONBodyBytes)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}

	if err := validateExtractRequest(req, s.cfg.MaxURLLen); err != nil {
		writeErr(w, http.StatusBadRequest, "validation_failed", sanitizeError(err))
		return
	}

	timeout := s.cfg.ExtractTimeout
	if timeout <= 0 {
		timeout = 160 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	pdfPath, cleanup, err := s.downloadPDFToTemp(ctx, req.PresignedURL)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "download_failed", sanitizeError(err))
		return
	}
	defer cleanup()

	rep, err := s.extractor.Run(ctx, pdfPath, req.Options.Options)
	if err != nil {
		s.log.Warn("extraction failed", "requestId", reqID, "err", err)
		switch {
		case errors.Is(err, layout.ErrOpen):
			writeErr(w, http.StatusUnprocessableEntity, "unreadable_pdf", sanitizeError(err))
		case errors.Is(err, context.DeadlineExceeded):
			writeErr(w, http.StatusGatewayTimeout, "timeout", "Extraction timed out")
		default:
			writeErr(w, http.StatusInternalServerError, "extraction_failed", sanitizeError(err))
		}
		return
	}

	top := req.Options.Top
	if top == 0 {
		top = s.cfg.DefaultTop
	}
	hits := types.Records(format.Top(rep.Hits, top))
	s.metrics.addHits(len(hits))

	writeJSON(w, http.StatusOK, types.ExtractResponse{
		Success:       true,
		RequestID:     reqID,
		TotalPages:    rep.TotalPages,
		PagesScanned:  rep.PagesScanned,
		TablesFound:   rep.TablesFound,
		TextlessPages: rep.TextlessPages,
		Hits:          hits,
	})
}
