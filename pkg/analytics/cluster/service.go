// Package cluster groups curated persons with k-means over a few derived
// features. It is a downstream consumer of the curated tables and never
// feeds back into curation.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/synaptica-ai/curator/pkg/common/logger"
	"github.com/synaptica-ai/curator/pkg/common/models"
	"github.com/synaptica-ai/curator/pkg/ml/kmeans"
	"github.com/synaptica-ai/curator/pkg/pipeline"
	"github.com/synaptica-ai/curator/pkg/storage"
	"github.com/synaptica-ai/curator/pkg/tabular"
)

var AssignmentColumns = []string{"person_id", "cluster_id"}

const featureVersion = 1

type Options struct {
	K             int
	ReferenceYear int
	CuratedPrefix string
	OutputKey     string
	LocalPath     string
}

// FeatureSink receives the derived features, e.g. a Redis feature store.
type FeatureSink interface {
	MaterializeFeatures(ctx context.Context, sets []models.FeatureSet) error
}

type Assignment struct {
	PersonID  string
	ClusterID int
}

type Result struct {
	K           int
	Assignments []Assignment
	Sizes       []int
}

type Service struct {
	store    storage.ObjectStore
	local    storage.ObjectStore
	features FeatureSink
	out      io.Writer
	opts     Options
}

type Option func(*Service)

// WithLocalCopy also writes the assignment table to local at opts.LocalPath.
func WithLocalCopy(local storage.ObjectStore) Option {
	return func(s *Service) {
		s.local = local
	}
}

func WithFeatureSink(sink FeatureSink) Option {
	return func(s *Service) {
		s.features = sink
	}
}

// WithSummary prints per-cluster sizes to w.
func WithSummary(w io.Writer) Option {
	return func(s *Service) {
		s.out = w
	}
}

func NewService(store storage.ObjectStore, opts Options, options ...Option) *Service {
	if opts.ReferenceYear <= 0 {
		opts.ReferenceYear = time.Now().UTC().Year()
	}
	s := &Service{store: store, opts: opts}
	for _, o := range options {
		o(s)
	}
	return s
}

// Run reads the curated tables, clusters persons and writes the assignment
// table.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	person, err := s.readTable(ctx, pipeline.PersonTable, true)
	if err != nil {
		return nil, err
	}
	condition, err := s.readTable(ctx, pipeline.ConditionTable, false)
	if err != nil {
		return nil, err
	}
	observation, err := s.readTable(ctx, pipeline.ObservationTable, false)
	if err != nil {
		return nil, err
	}

	features := BuildFeatures(person, condition, observation, s.opts.ReferenceYear)
	if s.features != nil {
		if err := s.features.MaterializeFeatures(ctx, featureSets(features)); err != nil {
			logger.Log.WithError(err).Warn("Failed to cache clustering features")
		}
	}

	result := Assign(features, s.opts.K)
	data, err := EncodeAssignments(result.Assignments)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, s.opts.OutputKey, data, storage.ContentTypeCSV); err != nil {
		return nil, fmt.Errorf("writing %s: %w", s.opts.OutputKey, err)
	}
	logger.Log.WithField("key", s.opts.OutputKey).Info("Cluster assignments written")

	if s.local != nil && s.opts.LocalPath != "" {
		if err := s.local.Put(ctx, s.opts.LocalPath, data, storage.ContentTypeCSV); err != nil {
			return nil, fmt.Errorf("writing local copy %s: %w", s.opts.LocalPath, err)
		}
	}

	if s.out != nil {
		WriteSummary(s.out, result)
	}
	return result, nil
}

// readTable tries the nested layout first and falls back to the flat one.
// Only the person table is required.
func (s *Service) readTable(ctx context.Context, name string, required bool) (*tabular.Table, error) {
	nested := pipeline.NestedLayout(s.opts.CuratedPrefix, "").TableKey(name)
	flat := pipeline.FlatLayout().TableKey(name)

	for _, key := range []string{nested, flat} {
		data, err := s.store.Get(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		table, err := tabular.DecodeCSV(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", key, err)
		}
		return table, nil
	}

	if required {
		return nil, fmt.Errorf("%s table: %w", name, storage.ErrNotFound)
	}
	logger.Log.WithField("table", name).Warn("Curated table not found; treating as empty")
	return tabular.New(), nil
}

// Assign standardizes the features and runs k-means with k clamped to
// [1, number of persons].
func Assign(features []PersonFeatures, k int) *Result {
	n := len(features)
	k = kmeans.ClampK(k, n)

	samples := make([][]float64, n)
	for i, f := range features {
		samples[i] = f.Vector()
	}
	kmeans.Standardize(samples)
	fit := kmeans.Fit(samples, kmeans.Options{K: k})

	result := &Result{K: k, Assignments: make([]Assignment, n), Sizes: make([]int, k)}
	for i, f := range features {
		c := fit.Assignments[i]
		result.Assignments[i] = Assignment{PersonID: f.PersonID, ClusterID: c}
		result.Sizes[c]++
	}
	return result
}

func EncodeAssignments(assignments []Assignment) ([]byte, error) {
	table := tabular.New(AssignmentColumns...)
	for _, a := range assignments {
		table.Append(a.PersonID, strconv.Itoa(a.ClusterID))
	}
	return table.EncodeCSV()
}

func WriteSummary(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Cluster sizes:")
	fmt.Fprintln(w, "cluster_id  n")
	for c, size := range result.Sizes {
		fmt.Fprintf(w, "%10d  %d\n", c, size)
	}
}

func featureSets(features []PersonFeatures) []models.FeatureSet {
	now := time.Now().UTC()
	sets := make([]models.FeatureSet, len(features))
	for i, f := range features {
		sets[i] = models.FeatureSet{
			PersonID:   f.PersonID,
			Features:   f.Map(),
			Version:    featureVersion,
			ComputedAt: now,
		}
	}
	return sets
}
