// Package fhir holds the FHIR-style resource shapes emitted next to the
// curated tables. Every shape serializes through an explicit MarshalJSON that
// lists which members are omitted when absent; absent members are never
// written as null.
package fhir

import (
	"encoding/json"
	"strings"
)

const (
	SystemSNOMED = "http://snomed.info/sct"
	SystemLOINC  = "http://loinc.org"

	ResourcePatient     = "Patient"
	ResourceCondition   = "Condition"
	ResourceObservation = "Observation"

	conditionIDPrefix   = "cond-"
	observationIDPrefix = "obs-"
	quantityUnit        = "1"
)

// Resource is any shape that can be written to an NDJSON collection.
type Resource interface {
	json.Marshaler
	ResourceType() string
}

type Coding struct {
	System string
	Code   string
}

// MarshalJSON always writes system and code.
func (c Coding) MarshalJSON() ([]byte, error) {
	o := newObject()
	o.field("system", c.System)
	o.field("code", c.Code)
	return o.bytes()
}

type CodeableConcept struct {
	Coding []Coding
	Text   string
}

// MarshalJSON always writes coding (possibly empty); text is omitted when empty.
func (c CodeableConcept) MarshalJSON() ([]byte, error) {
	coding := c.Coding
	if coding == nil {
		coding = []Coding{}
	}
	o := newObject()
	o.field("coding", coding)
	o.stringIfSet("text", c.Text)
	return o.bytes()
}

type Reference struct {
	Reference string
}

func (r Reference) MarshalJSON() ([]byte, error) {
	o := newObject()
	o.field("reference", r.Reference)
	return o.bytes()
}

type Quantity struct {
	Value float64
	Unit  string
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	o := newObject()
	o.field("value", q.Value)
	o.field("unit", q.Unit)
	return o.bytes()
}

// Annotation carries the raw note plus the keywords extracted from it.
type Annotation struct {
	Text         string
	TextKeywords string
}

// MarshalJSON always writes text; text_keywords is omitted when empty.
func (a Annotation) MarshalJSON() ([]byte, error) {
	o := newObject()
	o.field("text", a.Text)
	o.stringIfSet("text_keywords", a.TextKeywords)
	return o.bytes()
}

type Patient struct {
	ID        string
	Gender    string
	BirthDate string
}

func (Patient) ResourceType() string { return ResourcePatient }

// MarshalJSON omits gender and birthDate when empty.
func (p Patient) MarshalJSON() ([]byte, error) {
	o := newObject()
	o.field("resourceType", ResourcePatient)
	o.field("id", p.ID)
	o.stringIfSet("gender", p.Gender)
	o.stringIfSet("birthDate", p.BirthDate)
	return o.bytes()
}

type Condition struct {
	ID      string
	Subject Reference
	Code    CodeableConcept
}

func (Condition) ResourceType() string { return ResourceCondition }

// MarshalJSON writes every member; a Condition has no optional fields.
func (c Condition) MarshalJSON() ([]byte, error) {
	o := newObject()
	o.field("resourceType", ResourceCondition)
	o.field("id", c.ID)
	o.field("subject", c.Subject)
	o.field("code", c.Code)
	return o.bytes()
}

type Observation struct {
	ID            string
	Subject       *Reference
	Code          CodeableConcept
	ValueQuantity *Quantity
	Note          []Annotation
}

func (Observation) ResourceType() string { return ResourceObservation }

// MarshalJSON omits subject and valueQuantity when nil and note when empty.
func (ob Observation) MarshalJSON() ([]byte, error) {
	o := newObject()
	o.field("resourceType", ResourceObservation)
	o.field("id", ob.ID)
	if ob.Subject != nil {
		o.field("subject", *ob.Subject)
	}
	o.field("code", ob.Code)
	if ob.ValueQuantity != nil {
		o.field("valueQuantity", *ob.ValueQuantity)
	}
	if len(ob.Note) > 0 {
		o.field("note", ob.Note)
	}
	return o.bytes()
}

// GenderFromCode maps the internal M/F/O/UNK code onto the FHIR
// administrative gender vocabulary.
func GenderFromCode(code string) string {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "M":
		return "male"
	case "F":
		return "female"
	case "O":
		return "other"
	default:
		return "unknown"
	}
}

func PatientReference(personID string) Reference {
	return Reference{Reference: ResourcePatient + "/" + personID}
}

func ConditionID(personID string) string {
	return conditionIDPrefix + personID
}

func ObservationID(personID string) string {
	return observationIDPrefix + personID
}

func NewQuantity(value float64) *Quantity {
	return &Quantity{Value: value, Unit: quantityUnit}
}

// Concept builds a single-coding concept whose text repeats the code.
func Concept(system, code string) CodeableConcept {
	return CodeableConcept{
		Coding: []Coding{{System: system, Code: code}},
		Text:   code,
	}
}
