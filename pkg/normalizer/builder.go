package normalizer

import (
	"time"

	"github.com/synaptica-ai/curator/pkg/fhir"
)

const BirthTimestampLayout = "2006-01-02T15:04:05Z"

// Row is one de-identified input row. A missing key is a null value.
type Row map[string]interface{}

// Columns names the input fields the builder reads.
type Columns struct {
	PersonID        string
	Gender          string
	YearOfBirth     string
	ConditionCode   string
	ConditionDate   string
	ObservationCode string
	Value           string
	Notes           string
}

func DefaultColumns() Columns {
	return Columns{
		PersonID:        "person_id",
		Gender:          "gender",
		YearOfBirth:     "year_of_birth",
		ConditionCode:   "condition_code",
		ConditionDate:   "condition_date",
		ObservationCode: "observation_code",
		Value:           "value_as_number",
		Notes:           "notes",
	}
}

type PersonRecord struct {
	PersonID       string
	GenderCode     string
	BirthTimestamp *time.Time
}

type ConditionRecord struct {
	PersonID           string
	ConditionCode      string
	ConditionStartDate *string
}

type ObservationRecord struct {
	PersonID        string
	ObservationCode string
	Value           *float64
	NotesKeywords   *string
}

// Bundle is everything one row contributes. Person and Patient are always
// set; the condition and observation pairs are either both set or both nil.
type Bundle struct {
	Person          PersonRecord
	Patient         fhir.Patient
	Condition       *ConditionRecord
	FHIRCondition   *fhir.Condition
	Observation     *ObservationRecord
	FHIRObservation *fhir.Observation
}

type Builder struct {
	columns Columns
}

func NewBuilder(columns Columns) *Builder {
	return &Builder{columns: columns}
}

// Build never fails: malformed fields degrade to absent values.
func (b *Builder) Build(row Row) Bundle {
	c := b.columns
	pid := SafeString(row[c.PersonID])

	bundle := Bundle{
		Person:  PersonRecord{PersonID: pid, GenderCode: NormalizeGender(row[c.Gender])},
		Patient: fhir.Patient{ID: pid},
	}
	bundle.Patient.Gender = fhir.GenderFromCode(bundle.Person.GenderCode)
	if ts, ok := YearToBirthTimestamp(row[c.YearOfBirth]); ok {
		bundle.Person.BirthTimestamp = &ts
		bundle.Patient.BirthDate = ts.Format("2006-01-02")
	}

	if code := SafeString(row[c.ConditionCode]); code != "" {
		cond := &ConditionRecord{PersonID: pid, ConditionCode: code}
		if start := SafeString(row[c.ConditionDate]); start != "" {
			cond.ConditionStartDate = &start
		}
		bundle.Condition = cond
		bundle.FHIRCondition = &fhir.Condition{
			ID:      fhir.ConditionID(pid),
			Subject: fhir.PatientReference(pid),
			Code:    fhir.Concept(fhir.SystemSNOMED, code),
		}
	}

	if code := SafeString(row[c.ObservationCode]); code != "" {
		obs := &ObservationRecord{PersonID: pid, ObservationCode: code}
		subject := fhir.PatientReference(pid)
		fhirObs := &fhir.Observation{
			ID:      fhir.ObservationID(pid),
			Subject: &subject,
			Code:    fhir.Concept(fhir.SystemLOINC, code),
		}
		if value, ok := ParseNumber(row[c.Value]); ok {
			obs.Value = &value
			fhirObs.ValueQuantity = fhir.NewQuantity(value)
		}
		if keywords, ok := ExtractKeywords(row[c.Notes]); ok {
			obs.NotesKeywords = &keywords
			fhirObs.Note = []fhir.Annotation{{Text: SafeString(row[c.Notes]), TextKeywords: keywords}}
		}
		bundle.Observation = obs
		bundle.FHIRObservation = fhirObs
	}

	return bundle
}

func (p PersonRecord) BirthTimestampString() string {
	if p.BirthTimestamp == nil {
		return ""
	}
	return p.BirthTimestamp.UTC().Format(BirthTimestampLayout)
}
