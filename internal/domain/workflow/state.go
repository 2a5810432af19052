package workflow

import "github.com/kpicloud/taskflow/internal/domain/entity"

// State is a workflow state. Task statuses and approval statuses are both
// expressed as states so the same machine mechanics govern both lifecycles.
type State string

// Task status states.
const (
	StateNotStarted      = State(entity.StatusNotStarted)
	StateInProgress      = State(entity.StatusInProgress)
	StateCompleted       = State(entity.StatusCompleted)
	StatePendingApproval = State(entity.StatusPendingApproval)
	StateApproved        = State(entity.StatusApproved)
	StateRejected        = State(entity.StatusRejected)
)

// Approval decision states.
const (
	StateApprovalPending  = State(entity.ApprovalPending)
	StateApprovalApproved = State(entity.ApprovalApproved)
	StateApprovalRejected = State(entity.ApprovalRejected)
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}
