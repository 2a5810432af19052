package entity

import "time"

// Task represents a node in the task hierarchy.
// Top-level "task" entries own "monthly" children, which own "personal"
// children. Deleted tasks are marked inactive, never removed.
type Task struct {
	ID           int64     `json:"id"`
	TaskCode     string    `json:"task_code"`
	ParentTaskID *int64    `json:"parent_task_id,omitempty"`
	TaskLevel    TaskLevel `json:"task_level"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CategoryID  *int64 `json:"category_id,omitempty"`

	AssignedTo int64  `json:"assigned_to"`
	CreatedBy  int64  `json:"created_by"`
	UpdatedBy  *int64 `json:"updated_by,omitempty"`
	TeamID     int64  `json:"team_id"`

	ProgressPercentage float64    `json:"progress_percentage"`
	Status             TaskStatus `json:"status"`

	// Dates are ISO-8601 date strings (YYYY-MM-DD); actual dates stay empty
	// until work begins/ends.
	PlannedStartDate string `json:"planned_start_date,omitempty"`
	PlannedEndDate   string `json:"planned_end_date,omitempty"`
	ActualStartDate  string `json:"actual_start_date,omitempty"`
	ActualEndDate    string `json:"actual_end_date,omitempty"`

	Priority Priority `json:"priority"`
	Notes    string   `json:"notes,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joined display fields, populated on reads.
	AssignedToName     string `json:"assigned_to_name,omitempty"`
	AssignedToUsername string `json:"assigned_to_username,omitempty"`
	TeamName           string `json:"team_name,omitempty"`
	TeamCode           string `json:"team_code,omitempty"`
	CategoryName       string `json:"category_name,omitempty"`
	CreatedByName      string `json:"created_by_name,omitempty"`
}

// TaskFilters narrows task list queries.
type TaskFilters struct {
	TeamID     *int64
	AssignedTo *int64
	Status     TaskStatus
	TaskLevel  TaskLevel

	// ParentTaskID filters by parent. TopLevelOnly selects tasks with no
	// parent; the two are mutually exclusive.
	ParentTaskID *int64
	TopLevelOnly bool

	IncludeInactive bool
}

// TaskPatch carries the mutable fields of an update. Nil pointers are
// left untouched.
type TaskPatch struct {
	Title            *string
	Description      *string
	CategoryID       *int64
	AssignedTo       *int64
	TeamID           *int64
	PlannedStartDate *string
	PlannedEndDate   *string
	ActualStartDate  *string
	ActualEndDate    *string
	Priority         *Priority
	Notes            *string
}

// IsEmpty reports whether the patch carries no recognized fields.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.CategoryID == nil &&
		p.AssignedTo == nil && p.TeamID == nil &&
		p.PlannedStartDate == nil && p.PlannedEndDate == nil &&
		p.ActualStartDate == nil && p.ActualEndDate == nil &&
		p.Priority == nil && p.Notes == nil
}

// TaskTreeNode is a task annotated with its depth and children for
// hierarchy views. Depth is zero-based from the traversal root.
type TaskTreeNode struct {
	Task
	Depth    int             `json:"depth"`
	Children []*TaskTreeNode `json:"children,omitempty"`
}

// TaskStatistics aggregates the task set for dashboards.
type TaskStatistics struct {
	Total           int     `json:"total"`
	NotStarted      int     `json:"not_started"`
	InProgress      int     `json:"in_progress"`
	Completed       int     `json:"completed"`
	PendingApproval int     `json:"pending_approval"`
	Approved        int     `json:"approved"`
	Rejected        int     `json:"rejected"`
	AvgProgress     float64 `json:"avg_progress"`
}

// StatsFilters narrows statistics queries.
type StatsFilters struct {
	TeamID *int64
	UserID *int64
}
