package scale

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"
)

// Pattern is one entry of the phrase table. Capture group 1 of Expr must
// hold the scale word or its abbreviation.
type Pattern struct {
	Name string
	re   *regexp.Regexp
}

// Table is an ordered, immutable list of scale phrase patterns plus the
// abbreviation lookup used for K/M/B style captures. Order decides ties
// between patterns matching the same line.
type Table struct {
	patterns []Pattern
	abbr     map[string]Unit
}

type patternSpec struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

type tableFile struct {
	Patterns      []patternSpec     `yaml:"patterns"`
	Abbreviations map[string]string `yaml:"abbreviations"`
}

var defaultSpecs = []patternSpec{
	{"paren-in", `\(\s*\$?\s*in\s*(thousands|millions|billions)\s*\)`},
	{"amounts-in", `\b(?:amounts?|figures?|values?)\s+in\s+(thousands|millions|billions)\b`},
	{"in-of-dollars", `\b(?:in|reported in)\s+(thousands|millions|billions)\s+of\s+(?:dollars|usd)\b`},
	{"paren-dollars-in", `\(\s*(?:dollars|usd)\s+in\s+(thousands|millions|billions)\s*\)`},
	{"dollars-in", `\b(?:dollars|usd)\s+in\s+(thousands|millions|billions)\b`},
	{"paren-scale", `\(\s*\$?\s*(thousands|millions|billions)\s*\)`},
	{"paren-abbr", `\(\s*\$?\s*(?:in\s+)?(K|M|B)\s*\)`},
}

var defaultAbbr = map[string]string{"K": "thousands", "M": "millions", "B": "billions"}

// DefaultTable returns the built-in phrase table.
func DefaultTable() *Table {
	t, err := compileTable(tableFile{Patterns: defaultSpecs, Abbreviations: defaultAbbr})
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTable reads an ordered phrase table from YAML:
//
//	patterns:
//	  - name: paren-in
//	    expr: '\(\s*\$?\s*in\s*(thousands|millions|billions)\s*\)'
//	abbreviations:
//	  K: thousands
//
// Abbreviations default to K/M/B when the file has none.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scale patterns: %w", err)
	}
	return ParseTable(data)
}

func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse scale patterns: %w", err)
	}
	if len(f.Patterns) == 0 {
		return nil, fmt.Errorf("parse scale patterns: no patterns")
	}
	if len(f.Abbreviations) == 0 {
		f.Abbreviations = defaultAbbr
	}
	return compileTable(f)
}

func compileTable(f tableFile) (*Table, error) {
	t := &Table{abbr: make(map[string]Unit, len(f.Abbreviations))}

	for k, v := range f.Abbreviations {
		u, ok := ParseUnit(v)
		if !ok || u == None {
			return nil, fmt.Errorf("abbreviation %q: unknown scale %q", k, v)
		}
		t.abbr[strings.ToUpper(k)] = u
	}

	for i, spec := range f.Patterns {
		re, err := regexp.Compile(`(?i)` + spec.Expr)
		if err != nil {
			return nil, fmt.Errorf("pattern %d (%s): %w", i, spec.Name, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("pattern %d (%s): needs a capture group for the scale word", i, spec.Name)
		}
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("pattern-%d", i)
		}
		t.patterns = append(t.patterns, Pattern{Name: name, re: re})
	}
	return t, nil
}

func (t *Table) Len() int { return len(t.patterns) }

// Names lists pattern names in table order.
func (t *Table) Names() []string {
	out := make([]string, len(t.patterns))
	for i, p := range t.patterns {
		out[i] = p.Name
	}
	return out
}

// unitFor maps a captured scale word to a Unit, expanding abbreviations.
func (t *Table) unitFor(captured string) Unit {
	if u, ok := t.abbr[strings.ToUpper(captured)]; ok {
		return u
	}
	u, _ := ParseUnit(captured)
	return u
}
