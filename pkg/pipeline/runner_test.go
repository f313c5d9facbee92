package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/curator/pkg/common/logger"
	"github.com/synaptica-ai/curator/pkg/common/models"
	"github.com/synaptica-ai/curator/pkg/deid"
	"github.com/synaptica-ai/curator/pkg/ingestion"
	"github.com/synaptica-ai/curator/pkg/storage"
)

const sampleCSV = "person_id,name,gender,year_of_birth,condition_code,condition_date,observation_code,value_as_number,notes\n" +
	"1,Jane Roe,F,1980,E11,2021-05-01,8867-4,72,Patient reports mild headache overnight\n" +
	"2,John Roe,M,1975,,,2339-0,5.4,\n"

type fakeLedger struct {
	mu       sync.Mutex
	statuses map[string]string
	keys     map[string]string
	failures map[string]string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{statuses: map[string]string{}, keys: map[string]string{}, failures: map[string]string{}}
}

func (f *fakeLedger) Accept(_ context.Context, _ string, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "entry-" + key
	f.statuses[id] = ingestion.StatusAccepted
	f.keys[key] = id
	return id, nil
}

func (f *fakeLedger) Complete(_ context.Context, id string, _ models.FileSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = ingestion.StatusProcessed
	return nil
}

func (f *fakeLedger) Fail(_ context.Context, id string, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = ingestion.StatusFailed
	f.failures[id] = cause.Error()
	return nil
}

func (f *fakeLedger) Latest(_ context.Context, key string) (*ingestion.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.keys[key]
	if !ok {
		return nil, ingestion.ErrNotFound
	}
	return &ingestion.Record{ID: id, ObjectKey: key, Status: f.statuses[id]}, nil
}

type fakePublisher struct {
	events []map[string]interface{}
}

func (p *fakePublisher) PublishEvent(_ context.Context, eventType, _ string, data map[string]interface{}) error {
	if eventType != EventCurated {
		return errors.New("unexpected event type")
	}
	p.events = append(p.events, data)
	return nil
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("offline") }
func (brokenStore) Put(context.Context, string, []byte, string) error {
	return errors.New("offline")
}

type runnerFixture struct {
	runner    *Runner
	input     *storage.MemoryStore
	output    *storage.MemoryStore
	ledger    *fakeLedger
	publisher *fakePublisher
}

func newRunnerFixture(t *testing.T, destinations ...storage.Destination) runnerFixture {
	t.Helper()
	logger.Silence()

	input := storage.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, input.Put(ctx, "raw/sample.csv", []byte(sampleCSV), storage.ContentTypeCSV))
	require.NoError(t, input.Put(ctx, "raw/empty.csv", nil, storage.ContentTypeCSV))

	output := storage.NewMemoryStore()
	if len(destinations) == 0 {
		destinations = []storage.Destination{{Name: "memory", Store: output}}
	}

	ledger := newFakeLedger()
	publisher := &fakePublisher{}
	runner := NewRunner(
		input,
		deid.NewFilter(deid.DefaultPolicy(), "demo-salt"),
		newBuilder(),
		storage.NewWriter(destinations...),
		NestedLayout("curated/", "fhir/"),
		WithLedger(ledger),
		WithPublisher(publisher),
		WithTriggerScope("curation-bucket", "raw/"),
	)
	return runnerFixture{runner: runner, input: input, output: output, ledger: ledger, publisher: publisher}
}

func TestProcessKeysIsolatesFailures(t *testing.T) {
	fx := newRunnerFixture(t)
	ctx := context.Background()

	processed := fx.runner.ProcessKeys(ctx, []string{"raw/missing.csv", "raw/empty.csv", "raw/sample.csv"})
	assert.Equal(t, 1, processed)

	assert.Equal(t, ingestion.StatusFailed, fx.ledger.statuses["entry-raw/missing.csv"])
	assert.Equal(t, ingestion.StatusFailed, fx.ledger.statuses["entry-raw/empty.csv"])
	assert.Contains(t, fx.ledger.failures["entry-raw/empty.csv"], "no header row")
	assert.Equal(t, ingestion.StatusProcessed, fx.ledger.statuses["entry-raw/sample.csv"])

	require.Len(t, fx.publisher.events, 1)
	assert.Equal(t, "raw/sample.csv", fx.publisher.events[0]["key"])
	assert.Equal(t, 1, fx.publisher.events[0]["conditions"])

	assert.Len(t, fx.output.Keys(""), 6)
}

func TestProcessFileDeidentifiesBeforeBuilding(t *testing.T) {
	fx := newRunnerFixture(t)
	ctx := context.Background()

	summary, err := fx.runner.ProcessFile(ctx, "raw/sample.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Rows)
	assert.Equal(t, 2, summary.Persons)
	assert.Equal(t, 1, summary.Conditions)
	assert.Equal(t, 2, summary.Observations)
	assert.Equal(t, []string{"name"}, summary.DroppedColumns)
	assert.Equal(t, 2, summary.Pseudonymized)
	assert.Equal(t, 6, summary.ArtifactsWritten)

	person, err := fx.output.Get(ctx, "curated/person/person.csv")
	require.NoError(t, err)
	pseudonym := deid.NewFilter(deid.DefaultPolicy(), "demo-salt").Pseudonymize("1")
	assert.Contains(t, string(person), pseudonym+",F,1980-01-01T00:00:00Z")
	assert.NotContains(t, string(person), "Jane")

	patients, err := fx.output.Get(ctx, "fhir/Patient/Patient.ndjson")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(patients), "\n"))
	assert.Equal(t, storage.ContentTypeNDJSON, fx.output.ContentType("fhir/Patient/Patient.ndjson"))
}

func TestProcessKeysSurvivesOneBrokenDestination(t *testing.T) {
	output := storage.NewMemoryStore()
	fx := newRunnerFixture(t,
		storage.Destination{Name: "remote", Store: brokenStore{}},
		storage.Destination{Name: "local", Store: output},
	)

	summary, err := fx.runner.ProcessFile(context.Background(), "raw/sample.csv")
	require.NoError(t, err)
	require.Len(t, summary.DestinationErrors, 1)
	assert.True(t, strings.HasPrefix(summary.DestinationErrors[0], "remote: "))
	assert.Len(t, output.Keys("curated/"), 3)
}

func TestProcessKeysAllDestinationsFail(t *testing.T) {
	fx := newRunnerFixture(t, storage.Destination{Name: "remote", Store: brokenStore{}})

	assert.Equal(t, 0, fx.runner.ProcessKeys(context.Background(), []string{"raw/sample.csv"}))
	assert.Equal(t, ingestion.StatusFailed, fx.ledger.statuses["entry-raw/sample.csv"])
	assert.Empty(t, fx.publisher.events)
}

func TestProcessKeysEmptyAndCancelled(t *testing.T) {
	fx := newRunnerFixture(t)
	assert.Equal(t, 0, fx.runner.ProcessKeys(context.Background(), nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := fx.runner.Run(ctx, []string{"raw/sample.csv"})
	assert.Equal(t, 0, resp.Processed)
	assert.Equal(t, 1, resp.Requested)
	assert.NotEmpty(t, resp.RunID)
}

func TestHandleTrigger(t *testing.T) {
	fx := newRunnerFixture(t)
	event := models.TriggerEvent{
		Records: []models.NotificationRecord{{
			EventSource: "aws:s3",
			S3: models.NotificationS3{
				Bucket: models.NotificationBucket{Name: "curation-bucket"},
				Object: models.NotificationObject{Key: "raw/sample.csv"},
			},
		}},
		Keys: []string{"raw/empty.csv"},
	}
	assert.Equal(t, 1, fx.runner.HandleTrigger(context.Background(), event))
}
