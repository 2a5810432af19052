package entity

// TaskLevel is the hierarchy tier of a task.
type TaskLevel string

const (
	LevelTask     TaskLevel = "task"
	LevelMonthly  TaskLevel = "monthly"
	LevelPersonal TaskLevel = "personal"
)

var taskLevels = map[TaskLevel]bool{
	LevelTask:     true,
	LevelMonthly:  true,
	LevelPersonal: true,
}

// IsValid returns true if the level is a known hierarchy tier.
func (l TaskLevel) IsValid() bool {
	return taskLevels[l]
}

// ChildLevel returns the tier directly below this one.
// Personal-level tasks have no children.
func (l TaskLevel) ChildLevel() (TaskLevel, bool) {
	switch l {
	case LevelTask:
		return LevelMonthly, true
	case LevelMonthly:
		return LevelPersonal, true
	default:
		return "", false
	}
}

// TaskStatus is the lifecycle status of a task.
type TaskStatus string

const (
	StatusNotStarted      TaskStatus = "not_started"
	StatusInProgress      TaskStatus = "in_progress"
	StatusCompleted       TaskStatus = "completed"
	StatusPendingApproval TaskStatus = "pending_approval"
	StatusApproved        TaskStatus = "approved"
	StatusRejected        TaskStatus = "rejected"
)

var taskStatuses = map[TaskStatus]bool{
	StatusNotStarted:      true,
	StatusInProgress:      true,
	StatusCompleted:       true,
	StatusPendingApproval: true,
	StatusApproved:        true,
	StatusRejected:        true,
}

// IsValid returns true if the status is a known task status.
func (s TaskStatus) IsValid() bool {
	return taskStatuses[s]
}

// Priority of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorities = map[Priority]bool{
	PriorityLow:    true,
	PriorityMedium: true,
	PriorityHigh:   true,
	PriorityUrgent: true,
}

// IsValid returns true if the priority is a known value.
func (p Priority) IsValid() bool {
	return priorities[p]
}

// ApprovalLevel identifies who must decide an approval request.
type ApprovalLevel string

const (
	ApprovalLevelPMPO  ApprovalLevel = "pm_po"
	ApprovalLevelCPO   ApprovalLevel = "cpo"
	ApprovalLevelAdmin ApprovalLevel = "admin"
)

var approvalLevels = map[ApprovalLevel]bool{
	ApprovalLevelPMPO:  true,
	ApprovalLevelCPO:   true,
	ApprovalLevelAdmin: true,
}

// IsValid returns true if the level is a known approval level.
func (l ApprovalLevel) IsValid() bool {
	return approvalLevels[l]
}

// ApprovalStatus is the decision state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ApprovalAction is a decision submitted by an approver.
type ApprovalAction string

const (
	ActionApprove ApprovalAction = "approve"
	ActionReject  ApprovalAction = "reject"
)

// Change type constants for history entries.
const (
	ChangeCreate         = "CREATE"
	ChangeUpdate         = "UPDATE"
	ChangeDelete         = "DELETE"
	ChangeStatusChange   = "STATUS_CHANGE"
	ChangeProgressUpdate = "PROGRESS_UPDATE"
	ChangeRequest        = "REQUEST"
	ChangeApprove        = "APPROVE"
	ChangeReject         = "REJECT"
	ChangeImport         = "IMPORT"
)

// Auto-approval deadlines per task level.
const (
	PersonalApprovalDeadlineDays = 3
	MonthlyApprovalDeadlineDays  = 5
)
