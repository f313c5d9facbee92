package pipeline

import (
	"fmt"
	"path"

	"github.com/synaptica-ai/curator/pkg/fhir"
	"github.com/synaptica-ai/curator/pkg/storage"
	"github.com/synaptica-ai/curator/pkg/tabular"
)

const (
	PersonTable      = "person"
	ConditionTable   = "condition_occurrence"
	ObservationTable = "observation"
)

// Layout decides where artifacts land. Nested puts each table and resource
// type in its own folder under the curated and FHIR prefixes; flat writes the
// same file names side by side at the root.
type Layout struct {
	Nested        bool
	CuratedPrefix string
	FHIRPrefix    string
}

func NestedLayout(curatedPrefix, fhirPrefix string) Layout {
	return Layout{Nested: true, CuratedPrefix: curatedPrefix, FHIRPrefix: fhirPrefix}
}

func FlatLayout() Layout {
	return Layout{}
}

// TableKey is the key of a curated CSV table.
func (l Layout) TableKey(table string) string {
	name := table + ".csv"
	if !l.Nested {
		return name
	}
	return path.Join(l.CuratedPrefix, table, name)
}

// ResourceKey is the key of a FHIR NDJSON file.
func (l Layout) ResourceKey(resourceType string) string {
	name := resourceType + ".ndjson"
	if !l.Nested {
		return name
	}
	return path.Join(l.FHIRPrefix, resourceType, name)
}

// Artifacts serializes the three curated tables and the three FHIR
// collections. Empty inputs still produce all six files.
func (f *Frames) Artifacts(layout Layout) ([]storage.Artifact, error) {
	artifacts := make([]storage.Artifact, 0, 6)

	tables := []struct {
		name  string
		table *tabular.Table
	}{
		{PersonTable, f.Person},
		{ConditionTable, f.Condition},
		{ObservationTable, f.Observation},
	}
	for _, t := range tables {
		data, err := t.table.EncodeCSV()
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", t.name, err)
		}
		artifacts = append(artifacts, storage.Artifact{
			Key:         layout.TableKey(t.name),
			Data:        data,
			ContentType: storage.ContentTypeCSV,
		})
	}

	patients, err := fhir.EncodeNDJSON(f.Patients)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", fhir.ResourcePatient, err)
	}
	conditions, err := fhir.EncodeNDJSON(f.Conditions)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", fhir.ResourceCondition, err)
	}
	observations, err := fhir.EncodeNDJSON(f.Observations)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", fhir.ResourceObservation, err)
	}

	for _, r := range []struct {
		resourceType string
		data         []byte
	}{
		{fhir.ResourcePatient, patients},
		{fhir.ResourceCondition, conditions},
		{fhir.ResourceObservation, observations},
	} {
		artifacts = append(artifacts, storage.Artifact{
			Key:         layout.ResourceKey(r.resourceType),
			Data:        r.data,
			ContentType: storage.ContentTypeNDJSON,
		})
	}
	return artifacts, nil
}
