package deid

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/synaptica-ai/curator/pkg/common/logger"
	"github.com/synaptica-ai/curator/pkg/dlp"
	"github.com/synaptica-ai/curator/pkg/tabular"
)

// Report summarizes what Apply changed.
type Report struct {
	DroppedColumns   []string
	Pseudonymized    int
	ResidualPHITypes []string
}

type Filter struct {
	policy  Policy
	direct  map[string]struct{}
	salt    string
	scanner *dlp.Detector
}

type Option func(*Filter)

// WithScanner enables a read-only scan of the remaining cells for
// identifiers the column policy did not catch.
func WithScanner(d *dlp.Detector) Option {
	return func(f *Filter) {
		f.scanner = d
	}
}

func NewFilter(policy Policy, salt string, opts ...Option) *Filter {
	if strings.TrimSpace(policy.IdentifierColumn) == "" {
		policy.IdentifierColumn = DefaultIdentifierColumn
	}
	f := &Filter{policy: policy, direct: policy.directSet(), salt: salt}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Pseudonymize returns the hex SHA-256 digest of salt followed by value.
func (f *Filter) Pseudonymize(value string) string {
	h := sha256.New()
	h.Write([]byte(f.salt))
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

// Apply returns a filtered copy of table; the input is not modified. Empty
// identifier cells stay empty instead of becoming the digest of an empty
// string, so rows without an identifier never share a pseudonym; they are
// not counted in Report.Pseudonymized.
func (f *Filter) Apply(table *tabular.Table) (*tabular.Table, Report) {
	var report Report

	var keep []int
	for i, col := range table.Columns {
		if _, drop := f.direct[strings.ToLower(col)]; drop {
			report.DroppedColumns = append(report.DroppedColumns, col)
			continue
		}
		keep = append(keep, i)
	}

	cols := make([]string, len(keep))
	for j, src := range keep {
		cols[j] = table.Columns[src]
	}
	out := tabular.New(cols...)
	idCol := out.Index(f.policy.IdentifierColumn)

	for _, row := range table.Rows {
		cells := make([]string, len(keep))
		for j, src := range keep {
			if src < len(row) {
				cells[j] = row[src]
			}
		}
		if idCol >= 0 && cells[idCol] != "" {
			cells[idCol] = f.Pseudonymize(cells[idCol])
			report.Pseudonymized++
		}
		out.Rows = append(out.Rows, cells)
	}

	if f.scanner != nil {
		findings := f.scanner.Scan(out, f.policy.IdentifierColumn)
		if findings.Detected() {
			report.ResidualPHITypes = findings.Types()
			logger.Log.WithFields(map[string]interface{}{
				"phi_types": report.ResidualPHITypes,
				"columns":   findings.Columns,
			}).Warn("possible identifiers remain after de-identification")
		}
	}

	return out, report
}
