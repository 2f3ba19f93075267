// Package cli implements the scalefind command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/toricodesthings/pdf-scale-finder/internal/config"
	"github.com/toricodesthings/pdf-scale-finder/internal/extract"
	"github.com/toricodesthings/pdf-scale-finder/internal/format"
	"github.com/toricodesthings/pdf-scale-finder/internal/layout"
	"github.com/toricodesthings/pdf-scale-finder/internal/store"
	"github.com/toricodesthings/pdf-scale-finder/internal/types"
	"github.com/toricodesthings/pdf-scale-finder/internal/version"
)

// NoNumbersMessage goes to stderr when a scan finds nothing.
const NoNumbersMessage = "No numbers found in the PDF"

type flags struct {
	top       int
	startPage int
	endPage   int
	minScaled float64
	maxScaled float64
	minRaw    float64
	maxRaw    float64
	json      bool
	noScaling bool
	backend   string
	workers   int
	patterns  string
	store     bool
	verbose   bool
}

// deps are the collaborators a run needs; tests replace them.
type deps struct {
	config    func() config.Config
	newOpener func(backend string, timeout time.Duration) (layout.Opener, error)
	saveRun   func(ctx context.Context, dsn string, run store.Run) (string, error)
}

func defaultDeps() deps {
	return deps{
		config: func() config.Config {
			_ = config.LoadDotEnv()
			return config.Load()
		},
		newOpener: layout.NewOpener,
		saveRun:   saveRun,
	}
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultDeps())
}

func newRootCmd(d deps) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "scalefind [flags] <pdf>",
		Short: "Find the largest reported number in a PDF",
		Long: `scalefind scans a PDF for numbers, applies scale captions such as
"(Dollars in Millions)" and reports the largest values.

Headcount rows (End Strength, FTE, ...) are never multiplied by a scale.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, d, f, args[0])
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&f.top, "top", 1, "Show top N results (0 or less shows all)")
	fl.IntVar(&f.startPage, "start-page", 1, "First page to scan (1-based)")
	fl.IntVar(&f.endPage, "end-page", 0, "Last page to scan (0 = last page)")
	fl.Float64Var(&f.minScaled, "min-scaled", 0, "Minimum scaled value to include")
	fl.Float64Var(&f.maxScaled, "max-scaled", 0, "Maximum scaled value to include")
	fl.Float64Var(&f.minRaw, "min-raw", 0, "Minimum raw value to include")
	fl.Float64Var(&f.maxRaw, "max-raw", 0, "Maximum raw value to include")
	fl.BoolVar(&f.json, "json", false, "Output results as JSON")
	fl.BoolVar(&f.noScaling, "no-scaling", false, "Disable scale phrase detection")
	fl.StringVar(&f.backend, "backend", "", "Layout backend: native or poppler (default from LAYOUT_BACKEND)")
	fl.IntVar(&f.workers, "workers", 0, "Pages processed in parallel (default from PAGE_WORKERS)")
	fl.StringVar(&f.patterns, "patterns", "", "YAML file with scale patterns (default from SCALE_PATTERNS_FILE)")
	fl.BoolVar(&f.store, "store", false, "Save ranked hits to Postgres at DATABASE_URL")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Debug logging on stderr")

	cmd.Version = version.Version
	cmd.SetVersionTemplate(fmt.Sprintf("scalefind %s\n", version.String()))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scalefind %s\n", version.String())
		},
	}
}

func run(cmd *cobra.Command, d deps, f flags, path string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	cfg := d.config()
	if f.backend != "" {
		cfg.LayoutBackend = f.backend
	}
	if f.workers > 0 {
		cfg.PageWorkers = f.workers
	}
	if f.patterns != "" {
		cfg.ScalePatternsFile = f.patterns
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := cfg.Logger(stderr)

	p, err := buildPipeline(cfg, d, logger)
	if err != nil {
		return err
	}

	opts := types.Options{
		StartPage: f.startPage,
		EndPage:   f.endPage,
		NoScaling: f.noScaling,
	}
	fl := cmd.Flags()
	opts.MinScaled = optionalFloat(fl.Changed("min-scaled"), f.minScaled)
	opts.MaxScaled = optionalFloat(fl.Changed("max-scaled"), f.maxScaled)
	opts.MinRaw = optionalFloat(fl.Changed("min-raw"), f.minRaw)
	opts.MaxRaw = optionalFloat(fl.Changed("max-raw"), f.maxRaw)
	if err := opts.Validate(); err != nil {
		return err
	}

	rep, err := p.Run(ctx, path, opts)
	if err != nil {
		return err
	}
	largest, err := rep.Largest()
	if errors.Is(err, extract.ErrNoNumbers) {
		fmt.Fprintln(stderr, NoNumbersMessage)
		return nil
	}
	logger.Debug("largest number", "page", largest.Page, "value", largest.ScaledValue, "scale", largest.Scale)

	shown := format.Top(rep.Hits, f.top)
	if f.store {
		id, err := d.saveRun(ctx, cfg.DatabaseURL, store.Run{
			Document:     path,
			TotalPages:   rep.TotalPages,
			PagesScanned: rep.PagesScanned,
			Hits:         shown,
		})
		if err != nil {
			return err
		}
		logger.Info("hits stored", "run", id, "hits", len(shown))
	}

	if f.json {
		return format.JSON(stdout, rep.Hits, f.top)
	}
	format.Text(stdout, rep.Hits, f.top)
	return nil
}

func buildPipeline(cfg config.Config, d deps, logger *slog.Logger) (*extract.Pipeline, error) {
	opener, err := d.newOpener(cfg.LayoutBackend, cfg.PopplerTimeout)
	if err != nil {
		return nil, err
	}
	return extract.FromConfig(cfg, opener, logger)
}

func saveRun(ctx context.Context, dsn string, run store.Run) (string, error) {
	s, err := store.Open(ctx, dsn)
	if err != nil {
		return "", err
	}
	defer s.Close()

	if err := s.EnsureSchema(ctx); err != nil {
		return "", err
	}
	id, err := s.SaveRun(ctx, run)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func optionalFloat(set bool, v float64) *float64 {
	if !set {
		return nil
	}
	return &v
}

// Execute runs the root command and exits non-zero on fatal errors.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		printErr(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func printErr(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err)
}
