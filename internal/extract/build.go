package extract

import (
	"log/slog"

	"github.com/toricodesthings/pdf-scale-finder/internal/config"
	"github.com/toricodesthings/pdf-scale-finder/internal/layout"
	"github.com/toricodesthings/pdf-scale-finder/internal/scale"
	"github.com/toricodesthings/pdf-scale-finder/internal/tables"
)

// FromConfig wires a pipeline with the configured pattern table and table
// detector.
func FromConfig(cfg config.Config, opener layout.Opener, logger *slog.Logger) (*Pipeline, error) {
	var table *scale.Table
	if cfg.ScalePatternsFile != "" {
		var err error
		if table, err = scale.LoadTable(cfg.ScalePatternsFile); err != nil {
			return nil, err
		}
	}

	detector := scale.NewDetector(table, cfg.LineBucket)
	if logger != nil {
		logger.Debug("scale patterns", "count", detector.Table().Len(), "names", detector.Table().Names())
	}

	// A scale caption just above a table belongs to that table.
	finder := tables.NewDetector(tables.Config{
		LineBucket: cfg.LineBucket,
		ClusterGap: cfg.TableClusterGap,
		CellGap:    cfg.TableCellGap,
		CaptionGap: cfg.TableCaptionGap,
		MaxWords:   cfg.TableMaxWords,
	}).WithCaptions(func(text string) bool {
		return detector.DetectText(text).Found()
	})

	return New(Config{
		PageWorkers:      cfg.PageWorkers,
		XTolerance:       cfg.XTolerance,
		YTolerance:       cfg.YTolerance,
		LineBucket:       cfg.LineBucket,
		ContainTolerance: cfg.ContainTolerance,
		LeftContextGap:   cfg.LeftContextGap,
	}, opener, detector, finder, logger), nil
}
