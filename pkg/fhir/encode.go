package fhir

import (
	"bytes"
	"encoding/json"
)

// object writes JSON members in declaration order. Callers decide which
// members to skip; nothing is dropped implicitly.
type object struct {
	buf bytes.Buffer
	n   int
	err error
}

func newObject() *object {
	o := &object{}
	o.buf.WriteByte('{')
	return o
}

func (o *object) field(name string, value interface{}) {
	if o.err != nil {
		return
	}
	encoded, err := marshal(value)
	if err != nil {
		o.err = err
		return
	}
	if o.n > 0 {
		o.buf.WriteByte(',')
	}
	key, _ := marshal(name)
	o.buf.Write(key)
	o.buf.WriteByte(':')
	o.buf.Write(encoded)
	o.n++
}

func (o *object) stringIfSet(name, value string) {
	if value != "" {
		o.field(name, value)
	}
}

func (o *object) bytes() ([]byte, error) {
	if o.err != nil {
		return nil, o.err
	}
	o.buf.WriteByte('}')
	return o.buf.Bytes(), nil
}

// marshal is json.Marshal without HTML escaping, so note text such as
// "BP < 120 & stable" is written as is.
func marshal(value interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
