// Package monitor reports on objects scheduled for lifecycle expiry and on
// recent deletions seen in the audit trail.
package monitor

import (
	"encoding/json"
	"time"
)

// TaggedObject is an object carrying the deletion tag.
type TaggedObject struct {
	Key               string            `json:"key"`
	Size              int64             `json:"size"`
	LastModified      time.Time         `json:"last_modified"`
	DeletionDate      time.Time         `json:"deletion_date"`
	DaysUntilDeletion int               `json:"days_until_deletion"`
	Tags              map[string]string `json:"tags"`
}

// Deletion is one DeleteObject event from the audit trail.
type Deletion struct {
	ObjectKey       string          `json:"object_key"`
	DeletionTime    time.Time       `json:"deletion_time"`
	UserIdentity    json.RawMessage `json:"user_identity,omitempty"`
	SourceIPAddress string          `json:"source_ip_address,omitempty"`
	EventID         string          `json:"event_id"`
}

type Summary struct {
	TotalObjectsTagged int     `json:"total_objects_tagged_for_deletion"`
	TotalSizeTaggedMB  float64 `json:"total_size_tagged_mb"`
	ObjectsDeleted     int     `json:"objects_deleted_last_24h"`
	LookbackHours      int     `json:"lookback_hours"`
	DueToday           int     `json:"objects_due_today"`
}

// DaySchedule groups pending objects expiring on the same day.
type DaySchedule struct {
	Count   int      `json:"count"`
	SizeMB  float64  `json:"size_mb"`
	Objects []string `json:"objects"`
}

type Report struct {
	GeneratedAt      time.Time              `json:"generated_at"`
	BucketName       string                 `json:"bucket_name"`
	Summary          Summary                `json:"summary"`
	DeletionSchedule map[string]DaySchedule `json:"deletion_schedule"`
	RecentDeletions  []Deletion             `json:"recent_deletions"`
	PendingObjects   []TaggedObject         `json:"objects_to_be_deleted"`
	Errors           []string               `json:"errors,omitempty"`
}
