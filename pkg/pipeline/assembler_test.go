package pipeline

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/curator/pkg/normalizer"
)

func newBuilder() *normalizer.Builder {
	return normalizer.NewBuilder(normalizer.DefaultColumns())
}

func TestTransformSingleRow(t *testing.T) {
	frames := Transform(newBuilder(), []map[string]interface{}{{
		"person_id":        "1",
		"gender":           "M",
		"year_of_birth":    "1980",
		"condition_code":   "E11",
		"observation_code": "",
		"value_as_number":  "",
		"notes":            "",
	}})

	require.Equal(t, 1, frames.Person.Len())
	assert.Equal(t, "M", frames.Person.Rows[0][1])
	assert.Equal(t, "1980-01-01T00:00:00Z", frames.Person.Rows[0][2])

	require.Equal(t, 1, frames.Condition.Len())
	assert.Equal(t, "E11", frames.Condition.Rows[0][1])
	assert.Equal(t, 0, frames.Observation.Len())

	assert.Len(t, frames.Patients, 1)
	assert.Len(t, frames.Conditions, 1)
	assert.Len(t, frames.Observations, 0)
}

func TestAssembleKeepsHeadersWhenEmpty(t *testing.T) {
	for _, frames := range []*Frames{
		Assemble(nil),
		Transform(newBuilder(), []map[string]interface{}{{"person_id": "9"}}),
	} {
		assert.Equal(t, ConditionColumns, frames.Condition.Columns)
		assert.Equal(t, ObservationColumns, frames.Observation.Columns)
		assert.Equal(t, 0, frames.Condition.Len())

		out, err := frames.Condition.EncodeCSV()
		require.NoError(t, err)
		assert.Equal(t, "person_id,condition_code,condition_start_date\n", string(out))
	}
}

func TestAssembleRowOrderAndPairing(t *testing.T) {
	frames := Transform(newBuilder(), []map[string]interface{}{
		{"person_id": "a", "condition_code": "E11", "observation_code": "8867-4", "value_as_number": "5.0"},
		{"person_id": "b"},
		{"person_id": "c", "condition_code": "I10"},
	})

	assert.Equal(t, 3, frames.Person.Len())
	assert.Equal(t, []string{"a", "b", "c"}, []string{frames.Person.Rows[0][0], frames.Person.Rows[1][0], frames.Person.Rows[2][0]})
	assert.Equal(t, frames.Condition.Len(), len(frames.Conditions))
	assert.Equal(t, frames.Observation.Len(), len(frames.Observations))
	assert.Equal(t, "cond-c", frames.Conditions[1].ID)
	assert.Equal(t, []string{"a", "8867-4", "5", ""}, frames.Observation.Rows[0])
}

func goldenRows() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"person_id":        "1",
			"gender":           "M",
			"year_of_birth":    "1980",
			"condition_code":   "E11",
			"condition_date":   "2021-05-01",
			"observation_code": "8867-4",
			"value_as_number":  "72",
			"notes":            "Patient reports mild headache overnight",
		},
		{"person_id": "2", "gender": "female", "observation_code": "2339-0"},
		{"person_id": "3", "gender": "xyz", "year_of_birth": "1750", "condition_code": "I10"},
	}
}

func TestArtifactsGolden(t *testing.T) {
	artifacts, err := Transform(newBuilder(), goldenRows()).Artifacts(FlatLayout())
	require.NoError(t, err)
	require.Len(t, artifacts, 6)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, a := range artifacts {
		g.Assert(t, a.Key, a.Data)
	}
}
