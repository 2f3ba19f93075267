package types

import (
	"errors"

	"github.com/toricodesthings/pdf-scale-finder/internal/layout"
	"github.com/toricodesthings/pdf-scale-finder/internal/scale"
	"github.com/toricodesthings/pdf-scale-finder/internal/units"
)

// NumberHit is one accepted numeric token with its resolved scale.
// ScaledValue equals RawValue times the scale factor, except for people
// counts which are never scaled.
type NumberHit struct {
	Page        int
	RawText     string
	RawValue    float64
	ScaledValue float64
	BBox        layout.BBox
	Units       units.Kind
	Scale       scale.Unit
	ScalePhrase string
	ScaleBBox   *layout.BBox
	TableBBox   *layout.BBox
}

// Options narrows a run. Pages are 1-based and inclusive; zero means open.
// Nil bounds are not applied.
type Options struct {
	StartPage int      `json:"startPage"`
	EndPage   int      `json:"endPage"`
	MinScaled *float64 `json:"minScaled"`
	MaxScaled *float64 `json:"maxScaled"`
	MinRaw    *float64 `json:"minRaw"`
	MaxRaw    *float64 `json:"maxRaw"`
	NoScaling bool     `json:"noScaling"`
}

// Accept reports whether a hit falls inside every configured bound.
func (o Options) Accept(h NumberHit) bool {
	return within(h.ScaledValue, o.MinScaled, o.MaxScaled) && within(h.RawValue, o.MinRaw, o.MaxRaw)
}

// Validate rejects negative page numbers and inverted value bounds.
func (o Options) Validate() error {
	switch {
	case o.StartPage < 0 || o.EndPage < 0:
		return errors.New("page numbers must not be negative")
	case inverted(o.MinScaled, o.MaxScaled):
		return errors.New("min scaled value exceeds max scaled value")
	case inverted(o.MinRaw, o.MaxRaw):
		return errors.New("min raw value exceeds max raw value")
	}
	return nil
}

func inverted(lo, hi *float64) bool {
	return lo != nil && hi != nil && *lo > *hi
}

func within(v float64, lo, hi *float64) bool {
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}

type RequestOptions struct {
	Options
	Top int `json:"top"`
}

type ExtractRequest struct {
	PresignedURL string         `json:"presignedUrl"`
	Options      RequestOptions `json:"options"`
}

// HitRecord is the wire form of a ranked hit, shared by the CLI and the
// HTTP service.
type HitRecord struct {
	Rank        int          `json:"rank"`
	ScaledValue float64      `json:"scaled_value"`
	RawValue    float64      `json:"raw_value"`
	RawText     string       `json:"raw_text"`
	Page        int          `json:"page"`
	Units       units.Kind   `json:"units"`
	ScaleName   *string      `json:"scale_name"`
	ScalePhrase *string      `json:"scale_phrase"`
	BBox        layout.BBox  `json:"bbox"`
	ScaleBBox   *layout.BBox `json:"scale_bbox,omitempty"`
	TableBBox   *layout.BBox `json:"table_bbox,omitempty"`
}

// ScaleName is the scale unit, or "none" when no phrase applied.
func ScaleName(u scale.Unit) string {
	if u == scale.None {
		return "none"
	}
	return string(u)
}

// optional maps "" to nil so absent scales encode as null.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func Records(hits []NumberHit) []HitRecord {
	out := make([]HitRecord, 0, len(hits))
	for i, h := range hits {
		out = append(out, HitRecord{
			Rank:        i + 1,
			ScaledValue: h.ScaledValue,
			RawValue:    h.RawValue,
			RawText:     h.RawText,
			Page:        h.Page,
			Units:       h.Units,
			ScaleName:   optional(string(h.Scale)),
			ScalePhrase: optional(h.ScalePhrase),
			BBox:        h.BBox,
			ScaleBBox:   h.ScaleBBox,
			TableBBox:   h.TableBBox,
		})
	}
	return out
}

type ExtractResponse struct {
	Success       bool        `json:"success"`
	RequestID     string      `json:"requestId"`
	TotalPages    int         `json:"totalPages"`
	PagesScanned  int         `json:"pagesScanned"`
	TablesFound   int         `json:"tablesFound"`
	TextlessPages []int       `json:"textlessPages"`
	Hits          []HitRecord `json:"hits"`
	Error         *string     `json:"error,omitempty"`
}
