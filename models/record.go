// backend/models/record.go
package models

import "time"

// UpdateStatus is the lifecycle state of an UpdateCheckRecord.
type UpdateStatus string

const (
	// StatusChecked is the state every record is born in. A record with
	// UpdateAvailable=false is terminal here; with true it awaits approval.
	StatusChecked UpdateStatus = "checked"
	// StatusApproved means an admin signed off and acquisition is underway.
	StatusApproved UpdateStatus = "approved"
	// StatusCompleted and StatusFailed are terminal outcomes of acquisition.
	StatusCompleted UpdateStatus = "completed"
	StatusFailed    UpdateStatus = "failed"
)

// CanTransition reports whether the status edge from -> to is legal.
// checked -> approved is only legal for update-available records; that extra
// condition is enforced by the history store, which sees the record.
func CanTransition(from, to UpdateStatus) bool {
	switch from {
	case StatusChecked:
		return to == StatusApproved
	case StatusApproved:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

// UpdateCheckRecord is one row of the append-only update history. Created by
// the conditional check; only the status, approver, execution and notes
// fields ever mutate afterwards, and only through HistoryStore.Transition.
type UpdateCheckRecord struct {
	ID              int64        `db:"id" json:"id"`
	DatasetType     DatasetType  `db:"data_type" json:"data_type"`
	CheckedAt       time.Time    `db:"checked_at" json:"checked_at"`
	LastModified    string       `db:"last_modified" json:"last_modified,omitempty"`
	ETag            string       `db:"etag" json:"etag,omitempty"`
	ContentHash     string       `db:"content_hash" json:"content_hash,omitempty"`
	UpdateAvailable bool         `db:"update_available" json:"update_available"`
	Status          UpdateStatus `db:"status" json:"status"`
	ApprovedBy      string       `db:"approved_by" json:"approved_by,omitempty"`
	ExecutedAt      *time.Time   `db:"executed_at" json:"executed_at,omitempty"`
	Notes           string       `db:"notes" json:"notes,omitempty"`
}

// Pending reports whether the record is an update-available check still
// waiting for admin approval.
func (r *UpdateCheckRecord) Pending() bool {
	return r.Status == StatusChecked && r.UpdateAvailable
}

// BackupSnapshot is a completed point-in-time copy of the reference store.
// Snapshots are write-once; retention and cleanup are handled elsewhere.
type BackupSnapshot struct {
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
