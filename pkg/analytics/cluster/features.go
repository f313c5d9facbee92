package cluster

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/synaptica-ai/curator/pkg/normalizer"
	"github.com/synaptica-ai/curator/pkg/tabular"
)

const (
	MaxAge = 120

	FeatureAge        = "age"
	FeatureGender     = "gender_idx"
	FeatureObsCount   = "obs_count"
	FeatureCondUnique = "cond_nunique"
)

// Column names accepted for each input, current name first.
var (
	genderColumns        = []string{"gender_code", "gender_concept_code"}
	birthColumns         = []string{"birth_timestamp", "birth_datetime", "year_of_birth"}
	conditionCodeColumns = []string{"condition_code", "condition_concept_code"}
)

var genderIndex = map[string]float64{
	normalizer.GenderMale:    0,
	normalizer.GenderFemale:  1,
	normalizer.GenderOther:   2,
	normalizer.GenderUnknown: 3,
}

// PersonFeatures is one row of the clustering matrix.
type PersonFeatures struct {
	PersonID    string
	Age         float64
	GenderIndex float64
	ObsCount    float64
	CondUnique  float64
}

func (p PersonFeatures) Vector() []float64 {
	return []float64{p.Age, p.GenderIndex, p.ObsCount, p.CondUnique}
}

func (p PersonFeatures) Map() map[string]float64 {
	return map[string]float64{
		FeatureAge:        p.Age,
		FeatureGender:     p.GenderIndex,
		FeatureObsCount:   p.ObsCount,
		FeatureCondUnique: p.CondUnique,
	}
}

// BuildFeatures derives one feature row per distinct person, in first-seen
// order. Missing ages take the median of known ages, or 0 when none is known.
// Person rows with an empty person_id are excluded: with no identifier they
// cannot be told apart, so they get no feature row and no cluster assignment.
func BuildFeatures(person, condition, observation *tabular.Table, referenceYear int) []PersonFeatures {
	idCol := person.Index("person_id")
	genderCol := firstColumn(person, genderColumns)
	birthCol := firstColumn(person, birthColumns)

	obsCounts := countRows(observation)
	condSets := distinctCodes(condition)

	var (
		out   []PersonFeatures
		ages  []*float64
		known []float64
		seen  = make(map[string]struct{})
	)
	for _, row := range person.Rows {
		pid := cell(row, idCol)
		if pid == "" {
			continue
		}
		if _, dup := seen[pid]; dup {
			continue
		}
		seen[pid] = struct{}{}

		gender, ok := genderIndex[strings.ToUpper(strings.TrimSpace(cell(row, genderCol)))]
		if !ok {
			gender = genderIndex[normalizer.GenderUnknown]
		}

		age := ageFrom(cell(row, birthCol), referenceYear)
		if age != nil {
			known = append(known, *age)
		}
		ages = append(ages, age)

		out = append(out, PersonFeatures{
			PersonID:    pid,
			GenderIndex: gender,
			ObsCount:    float64(obsCounts[pid]),
			CondUnique:  float64(len(condSets[pid])),
		})
	}

	fill := median(known)
	for i := range out {
		if ages[i] != nil {
			out[i].Age = *ages[i]
		} else {
			out[i].Age = fill
		}
	}
	return out
}

// ageFrom accepts a birth timestamp, a date or a bare year.
func ageFrom(raw string, referenceYear int) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	year := 0
	if ts, err := time.Parse(normalizer.BirthTimestampLayout, raw); err == nil {
		year = ts.Year()
	} else if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		year = ts.Year()
	} else if ts, err := time.Parse("2006-01-02", raw); err == nil {
		year = ts.Year()
	} else if v, err := strconv.ParseFloat(raw, 64); err == nil {
		year = int(v)
	} else {
		return nil
	}

	if year <= 0 || year > referenceYear {
		return nil
	}
	age := float64(referenceYear - year)
	if age < 0 || age > MaxAge {
		return nil
	}
	return &age
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func countRows(table *tabular.Table) map[string]int {
	counts := make(map[string]int)
	if table == nil {
		return counts
	}
	idCol := table.Index("person_id")
	for _, row := range table.Rows {
		if pid := cell(row, idCol); pid != "" {
			counts[pid]++
		}
	}
	return counts
}

func distinctCodes(table *tabular.Table) map[string]map[string]struct{} {
	sets := make(map[string]map[string]struct{})
	if table == nil {
		return sets
	}
	idCol := table.Index("person_id")
	codeCol := firstColumn(table, conditionCodeColumns)
	for _, row := range table.Rows {
		pid, code := cell(row, idCol), cell(row, codeCol)
		if pid == "" || code == "" {
			continue
		}
		if sets[pid] == nil {
			sets[pid] = make(map[string]struct{})
		}
		sets[pid][code] = struct{}{}
	}
	return sets
}

func firstColumn(table *tabular.Table, names []string) int {
	for _, name := range names {
		if idx := table.Index(name); idx >= 0 {
			return idx
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
