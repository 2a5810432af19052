package port

import (
	"context"

	"github.com/kpicloud/taskflow/internal/domain/entity"
)

// TaskRepository defines persistence operations for Task
type TaskRepository interface {
	// Create inserts a new task and sets its ID
	Create(ctx context.Context, task *entity.Task) error

	// GetByID retrieves an active task by its ID (nil when missing)
	GetByID(ctx context.Context, id int64) (*entity.Task, error)

	// GetByCode retrieves an active task by its unique task code
	GetByCode(ctx context.Context, code string) (*entity.Task, error)

	// List retrieves tasks matching the filters, newest first
	List(ctx context.Context, filters entity.TaskFilters) ([]*entity.Task, error)

	// ListChildren retrieves active direct children of a task, ordered by task code
	ListChildren(ctx context.Context, parentID int64) ([]*entity.Task, error)

	// Update applies a field patch to a task
	Update(ctx context.Context, id int64, patch entity.TaskPatch, updatedBy int64) error

	// UpdateProgress sets progress percentage, notes and status in one write
	UpdateProgress(ctx context.Context, id int64, percentage float64, notes string, status entity.TaskStatus, updatedBy int64) error

	// UpdateStatus sets the task status
	UpdateStatus(ctx context.Context, id int64, status entity.TaskStatus) error

	// SoftDelete marks a task inactive
	SoftDelete(ctx context.Context, id int64, deletedBy int64) error

	// ListCompletedWithoutApproval retrieves active tasks at 100% progress,
	// completed status and the given levels that have no approval row
	ListCompletedWithoutApproval(ctx context.Context, levels []entity.TaskLevel) ([]*entity.Task, error)

	// Statistics aggregates task counts per status and mean progress
	Statistics(ctx context.Context, filters entity.StatsFilters) (*entity.TaskStatistics, error)
}

// ApprovalRepository defines persistence operations for Approval
type ApprovalRepository interface {
	// Create inserts a new approval request and sets its ID
	Create(ctx context.Context, approval *entity.Approval) error

	// GetByID retrieves an approval by its ID (nil when missing)
	GetByID(ctx context.Context, id int64) (*entity.Approval, error)

	// ListByTask retrieves all approvals for a task, newest request first
	ListByTask(ctx context.Context, taskID int64) ([]*entity.Approval, error)

	// ExistsForTaskLevel reports whether an approval row exists for the pair
	ExistsForTaskLevel(ctx context.Context, taskID int64, level entity.ApprovalLevel) (bool, error)

	// ListPending retrieves pending approvals of active tasks, oldest
	// request first
	ListPending(ctx context.Context, filters entity.PendingFilters) ([]*entity.Approval, error)

	// Decide sets the decision fields of an approval
	Decide(ctx context.Context, id int64, status entity.ApprovalStatus, notes, rejectionReason string) error

	// EscalateOverdue flags pending, unescalated approvals past the deadline
	// and returns how many were flagged
	EscalateOverdue(ctx context.Context, today string) (int64, error)

	// Statistics aggregates approval counts, overdue count and mean
	// processing days
	Statistics(ctx context.Context, filters entity.ApprovalStatsFilters, today string) (*entity.ApprovalStatistics, error)
}

// HistoryRepository defines persistence operations for HistoryEntry
type HistoryRepository interface {
	// Create appends a history entry
	Create(ctx context.Context, entry *entity.HistoryEntry) error

	// ListByTask retrieves history entries for a task, newest first
	ListByTask(ctx context.Context, taskID int64) ([]*entity.HistoryEntry, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	// GetByID retrieves a user by ID (nil when missing)
	GetByID(ctx context.Context, id int64) (*entity.User, error)

	// GetByUsername retrieves a user by username (nil when missing)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)

	// FindApprover picks the active user with the lowest ID holding one of
	// the role codes; teamID of zero means any team
	FindApprover(ctx context.Context, roleCodes []string, teamID int64) (*entity.User, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
