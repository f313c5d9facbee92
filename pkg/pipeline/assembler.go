package pipeline

import (
	"strconv"

	"github.com/synaptica-ai/curator/pkg/fhir"
	"github.com/synaptica-ai/curator/pkg/normalizer"
	"github.com/synaptica-ai/curator/pkg/tabular"
)

// Column order of the curated tables. It does not depend on row count.
var (
	PersonColumns      = []string{"person_id", "gender_code", "birth_timestamp"}
	ConditionColumns   = []string{"person_id", "condition_code", "condition_start_date"}
	ObservationColumns = []string{"person_id", "observation_code", "value", "notes_keywords"}
)

type Frames struct {
	Person      *tabular.Table
	Condition   *tabular.Table
	Observation *tabular.Table

	Patients     []fhir.Patient
	Conditions   []fhir.Condition
	Observations []fhir.Observation
}

func newFrames() *Frames {
	return &Frames{
		Person:       tabular.New(PersonColumns...),
		Condition:    tabular.New(ConditionColumns...),
		Observation:  tabular.New(ObservationColumns...),
		Patients:     []fhir.Patient{},
		Conditions:   []fhir.Condition{},
		Observations: []fhir.Observation{},
	}
}

// Assemble collects per-row bundles into the curated tables and FHIR
// collections, preserving row order.
func Assemble(bundles []normalizer.Bundle) *Frames {
	f := newFrames()
	for _, b := range bundles {
		f.Person.Append(b.Person.PersonID, b.Person.GenderCode, b.Person.BirthTimestampString())
		f.Patients = append(f.Patients, b.Patient)

		if b.Condition != nil && b.FHIRCondition != nil {
			f.Condition.Append(b.Condition.PersonID, b.Condition.ConditionCode, deref(b.Condition.ConditionStartDate))
			f.Conditions = append(f.Conditions, *b.FHIRCondition)
		}

		if b.Observation != nil && b.FHIRObservation != nil {
			f.Observation.Append(
				b.Observation.PersonID,
				b.Observation.ObservationCode,
				formatValue(b.Observation.Value),
				deref(b.Observation.NotesKeywords),
			)
			f.Observations = append(f.Observations, *b.FHIRObservation)
		}
	}
	return f
}

// Transform runs the builder over every row and assembles the result.
func Transform(builder *normalizer.Builder, rows []map[string]interface{}) *Frames {
	bundles := make([]normalizer.Bundle, 0, len(rows))
	for _, row := range rows {
		bundles = append(bundles, builder.Build(normalizer.Row(row)))
	}
	return Assemble(bundles)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
