package fhir

import (
	"bufio"
	"bytes"
	"io"
)

// NDJSONWriter writes one compact JSON object per line with no enclosing
// array, as used by FHIR bulk data files.
type NDJSONWriter struct {
	w *bufio.Writer
}

func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{w: bufio.NewWriter(w)}
}

func (n *NDJSONWriter) WriteResource(resource Resource) error {
	data, err := marshal(resource)
	if err != nil {
		return err
	}
	if _, err := n.w.Write(data); err != nil {
		return err
	}
	return n.w.WriteByte('\n')
}

func (n *NDJSONWriter) Flush() error {
	return n.w.Flush()
}

// EncodeNDJSON renders a whole collection. An empty collection yields an
// empty body.
func EncodeNDJSON[T Resource](resources []T) ([]byte, error) {
	var buf bytes.Buffer
	writer := NewNDJSONWriter(&buf)
	for _, r := range resources {
		if err := writer.WriteResource(r); err != nil {
			return nil, err
		}
	}
	if err := writer.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
