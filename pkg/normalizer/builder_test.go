package normalizer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFullRow(t *testing.T) {
	b := NewBuilder(DefaultColumns())
	bundle := b.Build(Row{
		"person_id":        "abc",
		"gender":           "female",
		"year_of_birth":    "1971.0",
		"condition_code":   "44054006",
		"condition_date":   "2020-03-04",
		"observation_code": "2339-0",
		"value_as_number":  "7.2",
		"notes":            "Elevated glucose noted during fasting panel",
	})

	assert.Equal(t, "abc", bundle.Person.PersonID)
	assert.Equal(t, "F", bundle.Person.GenderCode)
	assert.Equal(t, "1971-01-01T00:00:00Z", bundle.Person.BirthTimestampString())
	assert.Equal(t, "female", bundle.Patient.Gender)
	assert.Equal(t, "1971-01-01", bundle.Patient.BirthDate)

	require.NotNil(t, bundle.Condition)
	require.NotNil(t, bundle.FHIRCondition)
	assert.Equal(t, "44054006", bundle.Condition.ConditionCode)
	require.NotNil(t, bundle.Condition.ConditionStartDate)
	assert.Equal(t, "2020-03-04", *bundle.Condition.ConditionStartDate)
	assert.Equal(t, "cond-abc", bundle.FHIRCondition.ID)
	assert.Equal(t, "Patient/abc", bundle.FHIRCondition.Subject.Reference)
	assert.Equal(t, "http://snomed.info/sct", bundle.FHIRCondition.Code.Coding[0].System)

	require.NotNil(t, bundle.Observation)
	require.NotNil(t, bundle.FHIRObservation)
	require.NotNil(t, bundle.Observation.Value)
	assert.Equal(t, 7.2, *bundle.Observation.Value)
	require.NotNil(t, bundle.FHIRObservation.ValueQuantity)
	assert.Equal(t, *bundle.Observation.Value, bundle.FHIRObservation.ValueQuantity.Value)
	require.NotNil(t, bundle.Observation.NotesKeywords)
	assert.Equal(t, "during,elevated,fasting,glucose,noted,panel", *bundle.Observation.NotesKeywords)
	require.Len(t, bundle.FHIRObservation.Note, 1)
	assert.Equal(t, *bundle.Observation.NotesKeywords, bundle.FHIRObservation.Note[0].TextKeywords)
	assert.Equal(t, "http://loinc.org", bundle.FHIRObservation.Code.Coding[0].System)
	assert.Equal(t, "obs-abc", bundle.FHIRObservation.ID)
}

func TestBuildSuppressesMissingCodes(t *testing.T) {
	b := NewBuilder(DefaultColumns())

	for _, row := range []Row{
		{"person_id": "1"},
		{"person_id": "1", "condition_code": "", "observation_code": ""},
		{"person_id": "1", "condition_code": nil, "observation_code": nil},
	} {
		bundle := b.Build(row)
		assert.Equal(t, "1", bundle.Person.PersonID)
		assert.Equal(t, "UNK", bundle.Person.GenderCode)
		assert.Nil(t, bundle.Person.BirthTimestamp)
		assert.Nil(t, bundle.Condition)
		assert.Nil(t, bundle.FHIRCondition)
		assert.Nil(t, bundle.Observation)
		assert.Nil(t, bundle.FHIRObservation)
	}
}

func TestBuildObservationOptionalParts(t *testing.T) {
	b := NewBuilder(DefaultColumns())
	bundle := b.Build(Row{
		"person_id":        "p9",
		"observation_code": "8867-4",
		"value_as_number":  "not-a-number",
		"notes":            "ok",
	})

	require.NotNil(t, bundle.Observation)
	assert.Nil(t, bundle.Observation.Value)
	assert.Nil(t, bundle.Observation.NotesKeywords)
	assert.Nil(t, bundle.FHIRObservation.ValueQuantity)
	assert.Empty(t, bundle.FHIRObservation.Note)

	raw, err := json.Marshal(bundle.FHIRObservation)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.NotContains(t, decoded, "valueQuantity")
	assert.NotContains(t, decoded, "note")
	assert.Equal(t, "Observation", decoded["resourceType"])
}

func TestBuildPatientGenderRemap(t *testing.T) {
	b := NewBuilder(DefaultColumns())
	cases := map[string]string{"M": "male", "F": "female", "O": "other", "": "unknown", "x": "unknown"}
	for in, want := range cases {
		bundle := b.Build(Row{"person_id": "p", "gender": in})
		assert.Equal(t, want, bundle.Patient.Gender, "gender %q", in)
		assert.NotEqual(t, bundle.Person.GenderCode, bundle.Patient.Gender)
	}
}

func TestBuildCustomColumns(t *testing.T) {
	cols := DefaultColumns()
	cols.ConditionCode = "dx"
	b := NewBuilder(cols)

	bundle := b.Build(Row{"person_id": "p", "dx": "E11"})
	require.NotNil(t, bundle.Condition)
	assert.Equal(t, "E11", bundle.Condition.ConditionCode)
	assert.Nil(t, bundle.Condition.ConditionStartDate)
}
