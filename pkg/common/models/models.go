package models

import (
	"time"
)

// Event bus envelope
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // curate, cluster
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// TriggerEvent is either an object-store notification (Records) or a manual
// invoke payload naming the keys directly, e.g.
// {"bucket":"my-bucket","keys":["raw/sample_rwd.csv"]}.
type TriggerEvent struct {
	Records []NotificationRecord `json:"Records,omitempty"`
	Bucket  string               `json:"bucket,omitempty"`
	Keys    []string             `json:"keys,omitempty"`
}

type NotificationRecord struct {
	EventSource string         `json:"eventSource"`
	EventName   string         `json:"eventName,omitempty"`
	S3          NotificationS3 `json:"s3"`
}

type NotificationS3 struct {
	Bucket NotificationBucket `json:"bucket"`
	Object NotificationObject `json:"object"`
}

type NotificationBucket struct {
	Name string `json:"name"`
}

type NotificationObject struct {
	Key  string `json:"key"`
	Size int64  `json:"size,omitempty"`
}

type ProcessResponse struct {
	RunID     string `json:"run_id"`
	Processed int    `json:"processed"`
	Requested int    `json:"requested"`
}

// FileSummary describes one successfully curated input.
type FileSummary struct {
	Key               string   `json:"key"`
	Rows              int      `json:"rows"`
	Persons           int      `json:"persons"`
	Conditions        int      `json:"conditions"`
	Observations      int      `json:"observations"`
	DroppedColumns    []string `json:"dropped_columns,omitempty"`
	Pseudonymized     int      `json:"pseudonymized"`
	ResidualPHITypes  []string `json:"residual_phi_types,omitempty"`
	ArtifactsWritten  int      `json:"artifacts_written"`
	DestinationErrors []string `json:"destination_errors,omitempty"`
}

// FeatureSet is the derived clustering feature vector for one person.
type FeatureSet struct {
	PersonID   string             `json:"person_id"`
	Features   map[string]float64 `json:"features"`
	Version    int                `json:"version"`
	ComputedAt time.Time          `json:"computed_at"`
}
