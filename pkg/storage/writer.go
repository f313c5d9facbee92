package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/synaptica-ai/curator/pkg/common/logger"
)

// Destination is a named ObjectStore the writer fans artifacts out to.
type Destination struct {
	Name  string
	Store ObjectStore
}

// WriteResult reports the outcome per destination.
type WriteResult struct {
	Written int
	Failed  map[string]error
}

type Writer struct {
	destinations []Destination
}

func NewWriter(destinations ...Destination) *Writer {
	return &Writer{destinations: destinations}
}

func (w *Writer) Destinations() []Destination {
	return w.destinations
}

// Write attempts every artifact on every destination. A failing destination
// does not stop the others; an error is returned only when no destination
// received the full artifact set.
func (w *Writer) Write(ctx context.Context, artifacts []Artifact) (WriteResult, error) {
	result := WriteResult{Failed: make(map[string]error)}
	if len(w.destinations) == 0 {
		return result, errors.New("no output destinations configured")
	}

	var errs []error
	for _, dest := range w.destinations {
		if err := writeAll(ctx, dest.Store, artifacts); err != nil {
			logger.Log.WithError(err).WithField("destination", dest.Name).Error("Failed to write artifacts")
			result.Failed[dest.Name] = err
			errs = append(errs, fmt.Errorf("%s: %w", dest.Name, err))
			continue
		}
		result.Written += len(artifacts)
		logger.Log.WithFields(map[string]interface{}{
			"destination": dest.Name,
			"artifacts":   len(artifacts),
		}).Info("Artifacts written")
	}

	if len(errs) == len(w.destinations) {
		return result, errors.Join(errs...)
	}
	return result, nil
}

func writeAll(ctx context.Context, store ObjectStore, artifacts []Artifact) error {
	for _, a := range artifacts {
		if err := store.Put(ctx, a.Key, a.Data, a.ContentType); err != nil {
			return fmt.Errorf("writing %s: %w", a.Key, err)
		}
	}
	return nil
}
