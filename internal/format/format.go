// Package format renders ranked hits for people (text) and programs (JSON).
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/toricodesthings/pdf-scale-finder/internal/types"
)

var printer = message.NewPrinter(language.English)

// Top returns the first n hits; n <= 0 keeps all of them.
func Top(hits []types.NumberHit, n int) []types.NumberHit {
	if n <= 0 || n >= len(hits) {
		return hits
	}
	return hits[:n]
}

// Dollars formats v rounded to whole units with thousands separators.
func Dollars(v float64) string {
	return "$" + printer.Sprintf("%.0f", v)
}

func raw(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	value lipgloss.Style
	dim   lipgloss.Style
}

// newStyles binds styles to w so plain writers get no escape codes.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true),
		label: r.NewStyle().Foreground(lipgloss.Color("240")),
		value: r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		dim:   r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Text writes the human report. top == 1 prints a detail block for the
// largest hit; anything else prints a ranked list.
func Text(w io.Writer, hits []types.NumberHit, top int) {
	shown := Top(hits, top)
	if len(shown) == 0 {
		return
	}
	st := newStyles(w)

	if top == 1 {
		h := shown[0]
		fmt.Fprintf(w, "%s %s\n", st.title.Render("Largest number:"), st.value.Render(Dollars(h.ScaledValue)))
		fmt.Fprintf(w, "  %s %s ('%s')\n", st.label.Render("Raw value:"), raw(h.RawValue), h.RawText)
		fmt.Fprintf(w, "  %s %d\n", st.label.Render("Page:"), h.Page)
		if h.ScalePhrase != "" {
			fmt.Fprintf(w, "  %s %s (%s)\n", st.label.Render("Scale:"), types.ScaleName(h.Scale), h.ScalePhrase)
		} else {
			fmt.Fprintf(w, "  %s none\n", st.label.Render("Scale:"))
		}
		fmt.Fprintf(w, "  %s %s\n", st.label.Render("Units:"), h.Units)
		return
	}

	fmt.Fprintln(w, st.title.Render(fmt.Sprintf("Top %d numbers found:", len(shown))))
	for i, h := range shown {
		scaleInfo := ""
		if h.ScalePhrase != "" {
			scaleInfo = st.dim.Render(fmt.Sprintf(" (scale: %s)", types.ScaleName(h.Scale)))
		}
		fmt.Fprintf(w, "  #%d: %s - '%s' on page %d%s\n", i+1, st.value.Render(Dollars(h.ScaledValue)), h.RawText, h.Page, scaleInfo)
	}
}

// JSON writes the top hits as an indented array of ranked records.
func JSON(w io.Writer, hits []types.NumberHit, top int) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(types.Records(Top(hits, top))); err != nil {
		return fmt.Errorf("encode hits: %w", err)
	}
	return nil
}
