package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/toricodesthings/pdf-scale-finder/internal/config"
	"github.com/toricodesthings/pdf-scale-finder/internal/extract"
	"github.com/toricodesthings/pdf-scale-finder/internal/layout"
	"github.com/toricodesthings/pdf-scale-finder/internal/server"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	cfg := config.Load()
	if err := cfg.ValidateServer(); err != nil {
		panic(err)
	}
	log := cfg.Logger(os.Stderr)

	opener, err := layout.NewOpener(cfg.LayoutBackend, cfg.PopplerTimeout)
	if err != nil {
		panic(err)
	}

	pipeline, err := extract.FromConfig(cfg, opener, log)
	if err != nil {
		panic(err)
	}

	s := server.New(cfg, pipeline, log)
	srv := s.HTTPServer()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.Housekeeping(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("scalefind server listening",
		"addr", srv.Addr,
		"backend", cfg.LayoutBackend,
		"maxConcurrent", cfg.MaxConcurrentRequests,
		"pageWorkers", cfg.PageWorkers,
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}
