// Package numparse recognizes numeric tokens as they appear in financial
// tables: grouped digits, accounting negatives, currency prefixes and
// trailing footnote marks.
package numparse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Grouping separators: comma, no-break space, thin space.
const groupSeps = `,\x{00A0}\x{2009}`

var numRe = regexp.MustCompile(
	`^\s*([$(]?)\s*` +
		`((?:\d{1,3}(?:[` + groupSeps + `]\d{3})+|\d+)(?:\.\d+)?|\.\d+)` +
		`\s*([%)]?)` +
		`([*\x{2020}\x{2021}\x{00B9}\x{00B2}\x{00B3}\x{2070}-\x{2079}]*)\s*$`,
)

var sepStripper = strings.NewReplacer(",", "", "\u00a0", "", "\u2009", "")

// Parse returns the value of token and whether it is a rankable number.
// Percentages are rejected, "(1,234)" is -1234, and trailing footnote marks
// such as "*" or "†" are ignored.
func Parse(token string) (float64, bool) {
	m := numRe.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return 0, false
	}
	prefix, digits, suffix := m[1], m[2], m[3]

	if suffix == "%" {
		return 0, false
	}

	v, err := strconv.ParseFloat(sepStripper.Replace(digits), 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}

	if prefix == "(" && suffix == ")" {
		v = -v
	}
	return v, true
}
