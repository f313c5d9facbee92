// Package ingestion keeps a Postgres ledger of every input key the curation
// runner has accepted, with its outcome and file summary.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/synaptica-ai/curator/pkg/common/models"
	"gorm.io/datatypes"
)

type Ledger struct {
	repo *Repository
}

func NewLedger(repo *Repository) *Ledger {
	return &Ledger{repo: repo}
}

// Accept records that key is about to be processed and returns the entry id.
func (l *Ledger) Accept(ctx context.Context, runID, key string) (string, error) {
	rec := &Record{
		ID:        uuid.New().String(),
		RunID:     runID,
		ObjectKey: key,
		Status:    StatusAccepted,
	}
	if err := l.repo.Create(ctx, rec); err != nil {
		return "", fmt.Errorf("persisting ledger record: %w", err)
	}
	return rec.ID, nil
}

func (l *Ledger) Complete(ctx context.Context, id string, summary models.FileSummary) error {
	encoded, err := summaryMap(summary)
	if err != nil {
		return err
	}
	return l.repo.UpdateStatus(ctx, id, StatusProcessed, "", encoded)
}

func (l *Ledger) Fail(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return l.repo.UpdateStatus(ctx, id, StatusFailed, msg, nil)
}

func (l *Ledger) Latest(ctx context.Context, key string) (*Record, error) {
	return l.repo.LatestByKey(ctx, key)
}

func summaryMap(summary models.FileSummary) (datatypes.JSONMap, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("encoding file summary: %w", err)
	}
	var out datatypes.JSONMap
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("encoding file summary: %w", err)
	}
	return out, nil
}
