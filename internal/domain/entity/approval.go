package entity

import "time"

// Approval represents an approval request for a task. At most one request
// exists per (task, level) pair; a request is decided exactly once.
type Approval struct {
	ID            int64          `json:"id"`
	TaskID        int64          `json:"task_id"`
	ApproverID    int64          `json:"approver_id"`
	ApprovalLevel ApprovalLevel  `json:"approval_level"`
	Status        ApprovalStatus `json:"status"`

	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	ApproverNotes   string     `json:"approver_notes,omitempty"`

	RequestedAt time.Time `json:"requested_at"`
	// Deadline is an ISO-8601 date string (YYYY-MM-DD), empty when unset.
	Deadline    string `json:"deadline,omitempty"`
	IsEscalated bool   `json:"is_escalated"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joined display fields, populated on reads.
	ApproverName     string  `json:"approver_name,omitempty"`
	ApproverUsername string  `json:"approver_username,omitempty"`
	TaskCode         string  `json:"task_code,omitempty"`
	TaskTitle        string  `json:"task_title,omitempty"`
	TaskProgress     float64 `json:"task_progress,omitempty"`
	AssigneeName     string  `json:"assignee_name,omitempty"`
	TeamName         string  `json:"team_name,omitempty"`
	TeamCode         string  `json:"team_code,omitempty"`
}

// PendingFilters narrows pending-approval queries.
type PendingFilters struct {
	ApproverID *int64
	Level      ApprovalLevel
	TeamID     *int64
}

// BulkError records a single failed item of a bulk operation.
type BulkError struct {
	ApprovalID int64  `json:"approval_id"`
	Error      string `json:"error"`
}

// BulkResult accumulates per-item outcomes of a bulk decision. One item's
// failure never aborts the rest of the batch.
type BulkResult struct {
	Processed []int64     `json:"processed"`
	Errors    []BulkError `json:"errors"`
}

// ApprovalStatistics aggregates approval requests for dashboards.
type ApprovalStatistics struct {
	Total             int     `json:"total"`
	Pending           int     `json:"pending"`
	Approved          int     `json:"approved"`
	Rejected          int     `json:"rejected"`
	Overdue           int     `json:"overdue"`
	AvgProcessingDays float64 `json:"avg_processing_days"`
}

// ApprovalStatsFilters narrows approval statistics queries.
type ApprovalStatsFilters struct {
	TeamID     *int64
	ApproverID *int64
	DateFrom   string
	DateTo     string
}
