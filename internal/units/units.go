// Package units tags a number as a headcount, a money amount, or unknown
// from the words printed to its left on the same line.
package units

import (
	"regexp"
	"strings"

	"github.com/toricodesthings/pdf-scale-finder/internal/layout"
)

type Kind string

const (
	People  Kind = "people"
	Money   Kind = "money"
	Unknown Kind = "unknown"
)

// DefaultGap is how far a word's right edge must sit left of the number.
const DefaultGap = 2.0

var (
	headcountRe = regexp.MustCompile(`(?i)\b(end\s*strength|work[-\s]*years?|workyears?|fte|headcount|person(n)?el|` +
		`items\s*managed|quantity|issues|receipts|requisitions|contracts|units?)\b`)
	moneyRe = regexp.MustCompile(`(?i)\$|\b(?:usd|dollars?)\b|\(\s*\$?\s*(?:in\s+)?(?:K|M|B)\s*\)`)
)

// LeftContext joins the text of line words ending at least gap units left of
// the number, in line order.
func LeftContext(number layout.Word, line []layout.Word, gap float64) string {
	parts := make([]string, 0, len(line))
	for _, w := range line {
		if w.X1 <= number.X0-gap {
			parts = append(parts, w.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Classify checks headcount vocabulary before money vocabulary, so a row
// label mentioning both counts as people.
func Classify(number layout.Word, line []layout.Word, gap float64) Kind {
	return ClassifyText(LeftContext(number, line, gap))
}

func ClassifyText(left string) Kind {
	switch {
	case left == "":
		return Unknown
	case headcountRe.MatchString(left):
		return People
	case moneyRe.MatchString(left):
		return Money
	}
	return Unknown
}

// Scales reports whether a detected scale factor applies to this kind.
// Headcounts are never multiplied by a dollar magnitude.
func (k Kind) Scales() bool { return k != People }
