package ingestion

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusAccepted  = "accepted"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// Record is one attempt at curating one input key.
type Record struct {
	ID        string            `json:"id" gorm:"primaryKey;column:id"`
	RunID     string            `json:"run_id" gorm:"column:run_id;index"`
	ObjectKey string            `json:"object_key" gorm:"column:object_key;index"`
	Status    string            `json:"status" gorm:"column:status"`
	Summary   datatypes.JSONMap `json:"summary,omitempty" gorm:"column:summary"`
	Error     string            `json:"error,omitempty" gorm:"column:error"`
	CreatedAt time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time         `json:"updated_at" gorm:"column:updated_at"`
}

func (Record) TableName() string {
	return "curation_ledger"
}
