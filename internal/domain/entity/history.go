package entity

import "time"

// HistoryEntry is an append-only record of a mutation to a task or an
// approval decision. History has its own lifecycle: entries are never
// updated or deleted, and writes are best-effort.
type HistoryEntry struct {
	ID         int64  `json:"id"`
	TaskID     int64  `json:"task_id"`
	ApprovalID *int64 `json:"approval_id,omitempty"`

	ChangeType   string `json:"change_type"`
	FieldName    string `json:"field_name,omitempty"`
	OldValue     string `json:"old_value,omitempty"`
	NewValue     string `json:"new_value,omitempty"`
	ChangeReason string `json:"change_reason,omitempty"`

	ChangedBy int64     `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`

	// Joined display field, populated on reads.
	ChangedByName string `json:"changed_by_name,omitempty"`
}
