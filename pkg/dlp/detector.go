// Package dlp scans de-identified tables for identifiers that survived
// column removal, typically inside free-text fields.
package dlp

import (
	"regexp"
	"sort"

	"github.com/synaptica-ai/curator/pkg/tabular"
)

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

type Detector struct {
	rules []compiledRule
}

// Findings counts matches per PHI type and remembers which columns carried them.
type Findings struct {
	Counts  map[string]int
	Columns map[string][]string
}

func (f Findings) Detected() bool {
	return len(f.Counts) > 0
}

// Types returns the detected PHI types in sorted order.
func (f Findings) Types() []string {
	out := make([]string, 0, len(f.Counts))
	for t := range f.Counts {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func NewDetector(cfg RulesConfig) (*Detector, error) {
	var compiled []compiledRule
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}
	return &Detector{rules: compiled}, nil
}

// Scan reports matches without modifying the table. Columns listed in skip
// are not inspected.
func (d *Detector) Scan(table *tabular.Table, skip ...string) Findings {
	findings := Findings{Counts: map[string]int{}, Columns: map[string][]string{}}
	if d == nil || table == nil {
		return findings
	}

	skipped := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		skipped[s] = struct{}{}
	}

	for col, name := range table.Columns {
		if _, ok := skipped[name]; ok {
			continue
		}
		hit := make(map[string]struct{})
		for _, row := range table.Rows {
			if col >= len(row) || row[col] == "" {
				continue
			}
			for _, rule := range d.rules {
				n := len(rule.re.FindAllStringIndex(row[col], -1))
				if n == 0 {
					continue
				}
				findings.Counts[rule.rule.Type] += n
				hit[rule.rule.Type] = struct{}{}
			}
		}
		for phiType := range hit {
			findings.Columns[phiType] = append(findings.Columns[phiType], name)
		}
	}
	return findings
}
