package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kpicloud/taskflow/internal/application/history"
	"github.com/kpicloud/taskflow/internal/application/port"
	"github.com/kpicloud/taskflow/internal/domain/entity"
	"github.com/kpicloud/taskflow/internal/domain/permission"
	"github.com/kpicloud/taskflow/internal/domain/workflow"
)

const dateLayout = "2006-01-02"

// CreateRequestInput carries an approval request. Approver, level and
// deadline are optional; unset fields are derived from the task level.
type CreateRequestInput struct {
	TaskID     int64
	ApproverID *int64
	Level      entity.ApprovalLevel
	Deadline   string
}

// ApprovalService runs the approval workflow for completed tasks
type ApprovalService interface {
	// CreateRequest opens an approval request for a task
	CreateRequest(ctx context.Context, actor entity.Identity, input CreateRequestInput) (*entity.Approval, error)

	// Process decides a single pending request
	Process(ctx context.Context, actor entity.Identity, approvalID int64, action entity.ApprovalAction, notes, rejectionReason string) (*entity.Approval, error)

	// BulkProcess decides many requests, isolating per-item failures
	BulkProcess(ctx context.Context, actor entity.Identity, approvalIDs []int64, action entity.ApprovalAction, notes, rejectionReason string) (*entity.BulkResult, error)

	// Pending lists open requests visible to the actor, oldest first
	Pending(ctx context.Context, actor entity.Identity, filters entity.PendingFilters) ([]*entity.Approval, error)

	// ListForTask lists all requests ever opened for a task
	ListForTask(ctx context.Context, actor entity.Identity, taskID int64) ([]*entity.Approval, error)

	// AutoCreateRequests opens requests for completed tasks that have none
	AutoCreateRequests(ctx context.Context) (int, error)

	// EscalateOverdue flags pending requests past their deadline
	EscalateOverdue(ctx context.Context) (int64, error)

	// Statistics aggregates approvals visible to the actor
	Statistics(ctx context.Context, actor entity.Identity, filters entity.ApprovalStatsFilters) (*entity.ApprovalStatistics, error)
}

type approvalServiceImpl struct {
	approvalRepo port.ApprovalRepository
	taskRepo     port.TaskRepository
	userRepo     port.UserRepository
	txManager    port.TransactionManager
	recorder     *history.Recorder
	logger       Logger
	now          func() time.Time
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	approvalRepo port.ApprovalRepository,
	taskRepo port.TaskRepository,
	userRepo port.UserRepository,
	txManager port.TransactionManager,
	recorder *history.Recorder,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		approvalRepo: approvalRepo,
		taskRepo:     taskRepo,
		userRepo:     userRepo,
		txManager:    txManager,
		recorder:     recorder,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateRequest opens a request for a task. Routing defaults come from the
// task level; the caller may name the approver, level and deadline instead.
func (s *approvalServiceImpl) CreateRequest(ctx context.Context, actor entity.Identity, input CreateRequestInput) (*entity.Approval, error) {
	if !permission.Authorize(actor, permission.ActionView) {
		return nil, fmt.Errorf("%w: role %s cannot request approvals", entity.ErrUnauthorized, actor.RoleCode)
	}

	if input.Level != "" && !input.Level.IsValid() {
		return nil, fmt.Errorf("%w: unknown approval level %q", entity.ErrValidation, input.Level)
	}
	if input.Deadline != "" {
		if _, err := time.Parse(dateLayout, input.Deadline); err != nil {
			return nil, fmt.Errorf("%w: deadline must be YYYY-MM-DD", entity.ErrValidation)
		}
	}

	task, err := s.taskRepo.GetByID(ctx, input.TaskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task %d", entity.ErrNotFound, input.TaskID)
	}

	return s.openRequest(ctx, task, actor.UserID, input)
}

// openRequest resolves level, approver and deadline for the task, honoring
// caller overrides, and writes the request and the task status flip in one
// transaction.
func (s *approvalServiceImpl) openRequest(ctx context.Context, task *entity.Task, requestedBy int64, input CreateRequestInput) (*entity.Approval, error) {
	level, deadlineDays := approvalRouting(task.TaskLevel)
	if input.Level != "" {
		level = input.Level
	}

	deadline := input.Deadline
	if deadline == "" {
		deadline = s.now().AddDate(0, 0, deadlineDays).Format(dateLayout)
	}

	approver, err := s.resolveApprover(ctx, input.ApproverID, level, task.TeamID)
	if err != nil {
		return nil, err
	}

	exists, err := s.approvalRepo.ExistsForTaskLevel(ctx, task.ID, level)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: approval already requested for task %d at level %s",
			entity.ErrConflict, task.ID, level)
	}

	approval := &entity.Approval{
		TaskID:        task.ID,
		ApproverID:    approver.ID,
		ApprovalLevel: level,
		Status:        entity.ApprovalPending,
		Deadline:      deadline,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.approvalRepo.Create(txCtx, approval); err != nil {
			return err
		}
		return s.taskRepo.UpdateStatus(txCtx, task.ID, entity.StatusPendingApproval)
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, &entity.HistoryEntry{
		TaskID:       task.ID,
		ApprovalID:   &approval.ID,
		ChangeType:   entity.ChangeRequest,
		ChangeReason: fmt.Sprintf("Approval requested at level %s", level),
		ChangedBy:    requestedBy,
	})

	s.logger.Info("Approval request created",
		"approval_id", approval.ID, "task_id", task.ID,
		"level", string(level), "approver_id", approver.ID)

	created, err := s.approvalRepo.GetByID(ctx, approval.ID)
	if err != nil || created == nil {
		return approval, nil
	}
	return created, nil
}

// approvalRouting maps a task level to its approval level and deadline.
func approvalRouting(level entity.TaskLevel) (entity.ApprovalLevel, int) {
	switch level {
	case entity.LevelPersonal:
		return entity.ApprovalLevelPMPO, entity.PersonalApprovalDeadlineDays
	case entity.LevelMonthly:
		return entity.ApprovalLevelCPO, entity.MonthlyApprovalDeadlineDays
	default:
		return entity.ApprovalLevelAdmin, entity.MonthlyApprovalDeadlineDays
	}
}

// resolveApprover validates a caller-named approver or falls back to the
// routing table.
func (s *approvalServiceImpl) resolveApprover(ctx context.Context, approverID *int64, level entity.ApprovalLevel, teamID int64) (*entity.User, error) {
	if approverID == nil {
		return s.findApprover(ctx, level, teamID)
	}

	approver, err := s.userRepo.GetByID(ctx, *approverID)
	if err != nil {
		return nil, err
	}
	if approver == nil || !approver.IsActive {
		return nil, fmt.Errorf("%w: approver %d not found or inactive", entity.ErrValidation, *approverID)
	}
	return approver, nil
}

// findApprover picks the designated approver for a level. Personal-level
// requests go to a PM or PO of the task's team; monthly to the CPO. When no
// role holder exists the request falls back to an administrator.
func (s *approvalServiceImpl) findApprover(ctx context.Context, level entity.ApprovalLevel, teamID int64) (*entity.User, error) {
	var approver *entity.User
	var err error

	switch level {
	case entity.ApprovalLevelPMPO:
		approver, err = s.userRepo.FindApprover(ctx, []string{"PM", "PO"}, teamID)
	case entity.ApprovalLevelCPO:
		approver, err = s.userRepo.FindApprover(ctx, []string{"CPO"}, 0)
	}
	if err != nil {
		return nil, err
	}

	if approver == nil {
		approver, err = s.userRepo.FindApprover(ctx, []string{"ADMIN"}, 0)
		if err != nil {
			return nil, err
		}
	}
	if approver == nil {
		return nil, fmt.Errorf("%w: no approver available for level %s", entity.ErrValidation, level)
	}
	return approver, nil
}

// Process decides one pending request. The decision and the task status
// flip commit together or not at all.
func (s *approvalServiceImpl) Process(ctx context.Context, actor entity.Identity, approvalID int64, action entity.ApprovalAction, notes, rejectionReason string) (*entity.Approval, error) {
	if action != entity.ActionApprove && action != entity.ActionReject {
		return nil, fmt.Errorf("%w: unknown action %q", entity.ErrValidation, action)
	}
	if action == entity.ActionReject && rejectionReason == "" {
		return nil, fmt.Errorf("%w: rejection requires a reason", entity.ErrValidation)
	}

	var taskID int64
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		approval, err := s.approvalRepo.GetByID(txCtx, approvalID)
		if err != nil {
			return err
		}
		if approval == nil {
			return fmt.Errorf("%w: approval %d", entity.ErrNotFound, approvalID)
		}
		if approval.Status != entity.ApprovalPending {
			return fmt.Errorf("%w: approval %d is already %s",
				entity.ErrAlreadyProcessed, approvalID, approval.Status)
		}
		if actor.UserID != approval.ApproverID && actor.RoleCode != string(permission.RoleAdmin) {
			return fmt.Errorf("%w: user %d is not the designated approver",
				entity.ErrUnauthorized, actor.UserID)
		}

		machine := workflow.NewApprovalMachine(workflow.State(approval.Status))
		trigger := workflow.TriggerApprove
		status := entity.ApprovalApproved
		taskStatus := entity.StatusApproved
		if action == entity.ActionReject {
			trigger = workflow.TriggerReject
			status = entity.ApprovalRejected
			taskStatus = entity.StatusRejected
		}
		if err := machine.Fire(txCtx, trigger); err != nil {
			return err
		}

		if err := s.approvalRepo.Decide(txCtx, approvalID, status, notes, rejectionReason); err != nil {
			return err
		}
		taskID = approval.TaskID
		return s.taskRepo.UpdateStatus(txCtx, approval.TaskID, taskStatus)
	})
	if err != nil {
		return nil, err
	}

	changeType := entity.ChangeApprove
	reason := notes
	if action == entity.ActionReject {
		changeType = entity.ChangeReject
		reason = rejectionReason
	}
	s.recorder.Record(ctx, &entity.HistoryEntry{
		TaskID:       taskID,
		ApprovalID:   &approvalID,
		ChangeType:   changeType,
		ChangeReason: reason,
		ChangedBy:    actor.UserID,
	})

	s.logger.Info("Approval processed",
		"approval_id", approvalID, "task_id", taskID, "action", string(action))

	return s.approvalRepo.GetByID(ctx, approvalID)
}

// BulkProcess decides each request independently. A failed item is reported
// in the result and never aborts the rest of the batch.
func (s *approvalServiceImpl) BulkProcess(ctx context.Context, actor entity.Identity, approvalIDs []int64, action entity.ApprovalAction, notes, rejectionReason string) (*entity.BulkResult, error) {
	if len(approvalIDs) == 0 {
		return nil, fmt.Errorf("%w: no approval ids given", entity.ErrValidation)
	}

	result := &entity.BulkResult{}
	for _, id := range approvalIDs {
		if _, err := s.Process(ctx, actor, id, action, notes, rejectionReason); err != nil {
			result.Errors = append(result.Errors, entity.BulkError{
				ApprovalID: id,
				Error:      err.Error(),
			})
			continue
		}
		result.Processed = append(result.Processed, id)
	}

	s.logger.Info("Bulk approval processed",
		"requested", len(approvalIDs), "processed", len(result.Processed), "failed", len(result.Errors))
	return result, nil
}

// Pending lists open requests oldest first. Approvers outside the all scope
// see only requests routed to them.
func (s *approvalServiceImpl) Pending(ctx context.Context, actor entity.Identity, filters entity.PendingFilters) ([]*entity.Approval, error) {
	if !permission.Authorize(actor, permission.ActionApprove) {
		return nil, fmt.Errorf("%w: role %s cannot review approvals", entity.ErrUnauthorized, actor.RoleCode)
	}

	profile := permission.Resolve(permission.Role(actor.RoleCode))
	if profile.Scope != permission.ScopeAll {
		approverID := actor.UserID
		filters.ApproverID = &approverID
	}

	return s.approvalRepo.ListPending(ctx, filters)
}

// ListForTask returns the full approval trail of one task
func (s *approvalServiceImpl) ListForTask(ctx context.Context, actor entity.Identity, taskID int64) ([]*entity.Approval, error) {
	if !permission.Authorize(actor, permission.ActionView) {
		return nil, fmt.Errorf("%w: role %s cannot view approvals", entity.ErrUnauthorized, actor.RoleCode)
	}

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task %d", entity.ErrNotFound, taskID)
	}

	return s.approvalRepo.ListByTask(ctx, taskID)
}

// AutoCreateRequests sweeps completed monthly and personal tasks that have
// no approval row yet and opens one for each. A failure on one task is
// logged and the sweep continues.
func (s *approvalServiceImpl) AutoCreateRequests(ctx context.Context) (int, error) {
	tasks, err := s.taskRepo.ListCompletedWithoutApproval(ctx, []entity.TaskLevel{
		entity.LevelMonthly, entity.LevelPersonal,
	})
	if err != nil {
		return 0, err
	}

	created := 0
	for _, task := range tasks {
		approval, err := s.openRequest(ctx, task, task.AssignedTo, CreateRequestInput{})
		if err != nil {
			s.logger.Error("Auto approval request failed",
				"task_id", task.ID, "error", err.Error())
			continue
		}
		created++
		s.logger.Info("Auto approval request created",
			"approval_id", approval.ID, "task_id", task.ID)
	}

	return created, nil
}

// EscalateOverdue flags pending requests whose deadline has passed. The
// flag only marks the request for attention; the designated approver does
// not change.
func (s *approvalServiceImpl) EscalateOverdue(ctx context.Context) (int64, error) {
	today := s.now().Format(dateLayout)
	escalated, err := s.approvalRepo.EscalateOverdue(ctx, today)
	if err != nil {
		return 0, err
	}
	if escalated > 0 {
		s.logger.Info("Overdue approvals escalated", "count", escalated)
	}
	return escalated, nil
}

// Statistics aggregates approvals, narrowed to the actor's scope.
func (s *approvalServiceImpl) Statistics(ctx context.Context, actor entity.Identity, filters entity.ApprovalStatsFilters) (*entity.ApprovalStatistics, error) {
	if !permission.Authorize(actor, permission.ActionView) {
		return nil, fmt.Errorf("%w: role %s cannot view approvals", entity.ErrUnauthorized, actor.RoleCode)
	}

	profile := permission.Resolve(permission.Role(actor.RoleCode))
	switch profile.Scope {
	case permission.ScopeTeam, permission.ScopeFunction:
		teamID := actor.TeamID
		filters.TeamID = &teamID
	case permission.ScopeOwn:
		approverID := actor.UserID
		filters.ApproverID = &approverID
	}

	return s.approvalRepo.Statistics(ctx, filters, s.now().Format(dateLayout))
}
