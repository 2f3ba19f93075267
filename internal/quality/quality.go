// Package quality judges whether a page's text layer is usable for number
// extraction. Pages that fail are reported, never OCR'd.
package quality

import (
	"math"
	"strings"
	"unicode"

	"github.com/toricodesthings/pdf-scale-finder/internal/layout"
)

type Decision struct {
	Quality   float64
	Textless  bool // no words at all
	NeedsOCR  bool // words exist but look like a broken text layer
	Reasons   []string
	WordCount int
}

// DefaultMinWords is the word count below which a page is marked sparse.
const DefaultMinWords = 5

func Assess(words []layout.Word, minWords int) Decision {
	if minWords <= 0 {
		minWords = DefaultMinWords
	}
	wc := len(words)
	if wc == 0 {
		return Decision{NeedsOCR: true, Textless: true, Reasons: []string{"empty_text"}}
	}

	var b strings.Builder
	single := 0
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w.Text)
		if len([]rune(w.Text)) == 1 {
			single++
		}
	}
	text := b.String()

	total := float64(len([]rune(text)))
	alpha := float64(countIf(text, unicode.IsLetter))
	digits := float64(countIf(text, unicode.IsDigit))
	garbage := float64(countGarbage(text))

	alphaNumRatio := safeDiv(alpha+digits, total)
	garbageRatio := safeDiv(garbage, total)
	scrambledRatio := safeDiv(float64(single), float64(wc))

	score := 1.0
	reasons := []string{}

	if wc < minWords {
		score -= 0.30
		reasons = append(reasons, "low_word_count")
	}

	// Garbage characters are always bad.
	if garbageRatio > 0.01 {
		score -= math.Min(0.50, garbageRatio*50)
		reasons = append(reasons, "garbage_chars")
	}

	if alphaNumRatio < 0.30 {
		score -= 0.35
		reasons = append(reasons, "low_alnum_ratio")
	}

	// Financial tables carry many "$" and dash-only cells, so the bar is high.
	if wc > 10 && scrambledRatio > 0.60 {
		score -= 0.25
		reasons = append(reasons, "scrambled_text")
	}

	if digits > 0 && alpha > 0 {
		score += 0.10
		reasons = append(reasons, "mixed_content")
	}

	score = clamp(score, 0, 1)
	return Decision{
		Quality:   score,
		NeedsOCR:  score < 0.50,
		Reasons:   reasons,
		WordCount: wc,
	}
}

func countIf(s string, pred func(rune) bool) int {
	n := 0
	for _, r := range s {
		if pred(r) {
			n++
		}
	}
	return n
}

func countGarbage(s string) int {
	n := 0
	for _, r := range s {
		// Unicode replacement char or control chars (excluding newline/tab)
		if r == '\uFFFD' || (unicode.IsControl(r) && r != '\n' && r != '\t') {
			n++
		}
	}
	return n
}

func safeDiv(a, b float64) float64 {
	if b <= 0 {
		return 0
	}
	return a / b
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
