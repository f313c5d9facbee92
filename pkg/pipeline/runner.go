package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/synaptica-ai/curator/pkg/common/logger"
	"github.com/synaptica-ai/curator/pkg/common/models"
	"github.com/synaptica-ai/curator/pkg/deid"
	"github.com/synaptica-ai/curator/pkg/ingestion"
	"github.com/synaptica-ai/curator/pkg/normalizer"
	"github.com/synaptica-ai/curator/pkg/observability/metrics"
	"github.com/synaptica-ai/curator/pkg/storage"
	"github.com/synaptica-ai/curator/pkg/tabular"
)

const (
	EventCurated = "curate"
	eventSource  = "curation-service"
)

// Ledger records the lifecycle of every input key.
type Ledger interface {
	Accept(ctx context.Context, runID, key string) (string, error)
	Complete(ctx context.Context, id string, summary models.FileSummary) error
	Fail(ctx context.Context, id string, cause error) error
	Latest(ctx context.Context, key string) (*ingestion.Record, error)
}

// Publisher announces curated files to downstream consumers.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

type Runner struct {
	input     storage.ObjectStore
	filter    *deid.Filter
	builder   *normalizer.Builder
	writer    *storage.Writer
	layout    Layout
	bucket    string
	rawPrefix string
	ledger    Ledger
	publisher Publisher
}

type RunnerOption func(*Runner)

func WithLedger(l Ledger) RunnerOption {
	return func(r *Runner) {
		r.ledger = l
	}
}

func WithPublisher(p Publisher) RunnerOption {
	return func(r *Runner) {
		r.publisher = p
	}
}

// WithTriggerScope sets the bucket and raw prefix notifications must match.
func WithTriggerScope(bucket, rawPrefix string) RunnerOption {
	return func(r *Runner) {
		r.bucket = bucket
		r.rawPrefix = rawPrefix
	}
}

func NewRunner(input storage.ObjectStore, filter *deid.Filter, builder *normalizer.Builder, writer *storage.Writer, layout Layout, opts ...RunnerOption) *Runner {
	r := &Runner{
		input:   input,
		filter:  filter,
		builder: builder,
		writer:  writer,
		layout:  layout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Curate runs de-identification, record building and assembly over one
// decoded table.
func (r *Runner) Curate(table *tabular.Table) (*Frames, deid.Report) {
	clean, report := r.filter.Apply(table)
	return Transform(r.builder, clean.Records()), report
}

// ProcessFile reads, curates and writes one input.
func (r *Runner) ProcessFile(ctx context.Context, key string) (models.FileSummary, error) {
	summary := models.FileSummary{Key: key}

	data, err := r.input.Get(ctx, key)
	if err != nil {
		return summary, fmt.Errorf("reading %s: %w", key, err)
	}
	table, err := tabular.Decode(key, data)
	if err != nil {
		return summary, fmt.Errorf("decoding %s: %w", key, err)
	}

	frames, report := r.Curate(table)
	artifacts, err := frames.Artifacts(r.layout)
	if err != nil {
		return summary, fmt.Errorf("serializing %s: %w", key, err)
	}

	result, err := r.writer.Write(ctx, artifacts)
	metrics.ObserveDestinationFailures(len(result.Failed))
	if err != nil {
		return summary, fmt.Errorf("writing outputs for %s: %w", key, err)
	}

	summary.Rows = table.Len()
	summary.Persons = frames.Person.Len()
	summary.Conditions = frames.Condition.Len()
	summary.Observations = frames.Observation.Len()
	summary.DroppedColumns = report.DroppedColumns
	summary.Pseudonymized = report.Pseudonymized
	summary.ResidualPHITypes = report.ResidualPHITypes
	summary.ArtifactsWritten = result.Written
	for name, destErr := range result.Failed {
		summary.DestinationErrors = append(summary.DestinationErrors, name+": "+destErr.Error())
	}

	if len(report.ResidualPHITypes) > 0 {
		metrics.ObserveResidualPHI()
	}
	metrics.ObserveFile(summary.Rows, summary.Persons, summary.Conditions, summary.Observations)
	return summary, nil
}

// Run processes keys one after another. A failing key is logged and
// skipped; it never stops the batch.
func (r *Runner) Run(ctx context.Context, keys []string) models.ProcessResponse {
	resp := models.ProcessResponse{RunID: uuid.New().String(), Requested: len(keys)}
	log := logger.Log.WithField("run_id", resp.RunID)

	if len(keys) == 0 {
		log.Warn("No keys to process")
		return resp
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			log.WithError(err).Warn("Run cancelled before all keys were processed")
			break
		}

		entryID := r.accept(ctx, resp.RunID, key)
		summary, err := r.ProcessFile(ctx, key)
		if err != nil {
			metrics.ObserveFailure()
			log.WithError(err).WithField("key", key).Error("Failed to process input")
			r.fail(ctx, entryID, err)
			continue
		}

		resp.Processed++
		r.complete(ctx, entryID, summary)
		r.publish(ctx, resp.RunID, summary)
		log.WithFields(map[string]interface{}{
			"key":          key,
			"rows":         summary.Rows,
			"conditions":   summary.Conditions,
			"observations": summary.Observations,
		}).Info("Input curated")
	}

	if resp.Processed == 0 {
		log.WithField("requested", len(keys)).Warn("No inputs were processed successfully")
	}
	return resp
}

// ProcessKeys returns the number of keys processed successfully.
func (r *Runner) ProcessKeys(ctx context.Context, keys []string) int {
	return r.Run(ctx, keys).Processed
}

func (r *Runner) HandleTrigger(ctx context.Context, event models.TriggerEvent) int {
	return r.ProcessKeys(ctx, CollectKeys(event, r.bucket, r.rawPrefix))
}

// Status returns the latest ledger entry for key.
func (r *Runner) Status(ctx context.Context, key string) (*ingestion.Record, error) {
	if r.ledger == nil {
		return nil, ingestion.ErrNotFound
	}
	return r.ledger.Latest(ctx, key)
}

func (r *Runner) accept(ctx context.Context, runID, key string) string {
	if r.ledger == nil {
		return ""
	}
	id, err := r.ledger.Accept(ctx, runID, key)
	if err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("Failed to record accepted input")
		return ""
	}
	return id
}

func (r *Runner) complete(ctx context.Context, id string, summary models.FileSummary) {
	if r.ledger == nil || id == "" {
		return
	}
	if err := r.ledger.Complete(ctx, id, summary); err != nil {
		logger.Log.WithError(err).WithField("key", summary.Key).Warn("Failed to record processed input")
	}
}

func (r *Runner) fail(ctx context.Context, id string, cause error) {
	if r.ledger == nil || id == "" {
		return
	}
	if err := r.ledger.Fail(ctx, id, cause); err != nil {
		logger.Log.WithError(err).Warn("Failed to record failed input")
	}
}

func (r *Runner) publish(ctx context.Context, runID string, summary models.FileSummary) {
	if r.publisher == nil {
		return
	}
	data := map[string]interface{}{
		"run_id":       runID,
		"key":          summary.Key,
		"persons":      summary.Persons,
		"conditions":   summary.Conditions,
		"observations": summary.Observations,
	}
	if err := r.publisher.PublishEvent(ctx, EventCurated, eventSource, data); err != nil {
		logger.Log.WithError(err).WithField("key", summary.Key).Warn("Failed to publish curate event")
	}
}
