package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kpicloud/taskflow/internal/application/history"
	"github.com/kpicloud/taskflow/internal/application/port"
	"github.com/kpicloud/taskflow/internal/domain/entity"
	"github.com/kpicloud/taskflow/internal/domain/permission"
	"github.com/kpicloud/taskflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// maxHierarchyDepth bounds hierarchy traversal to the three known tiers
// (task, monthly, personal).
const maxHierarchyDepth = 3

// CreateTaskInput carries the fields accepted when creating a task.
type CreateTaskInput struct {
	TaskCode         string           `json:"task_code"`
	ParentTaskID     *int64           `json:"parent_task_id"`
	TaskLevel        entity.TaskLevel `json:"task_level"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	CategoryID       *int64           `json:"category_id"`
	AssignedTo       int64            `json:"assigned_to"`
	TeamID           int64            `json:"team_id"`
	PlannedStartDate string           `json:"planned_start_date"`
	PlannedEndDate   string           `json:"planned_end_date"`
	Priority         entity.Priority  `json:"priority"`
	Notes            string           `json:"notes"`
}

// TaskService manages the task hierarchy
type TaskService interface {
	List(ctx context.Context, actor entity.Identity, filters entity.TaskFilters) ([]*entity.Task, error)
	Get(ctx context.Context, actor entity.Identity, id int64) (*entity.Task, error)
	Create(ctx context.Context, actor entity.Identity, input CreateTaskInput) (*entity.Task, error)
	Update(ctx context.Context, actor entity.Identity, id int64, patch entity.TaskPatch) (*entity.Task, error)
	UpdateProgress(ctx context.Context, actor entity.Identity, id int64, percentage float64, notes string) (*entity.Task, error)
	Delete(ctx context.Context, actor entity.Identity, id int64) error
	Hierarchy(ctx context.Context, actor entity.Identity, rootID *int64) ([]*entity.TaskTreeNode, error)
	Statistics(ctx context.Context, actor entity.Identity, filters entity.StatsFilters) (*entity.TaskStatistics, error)
	History(ctx context.Context, actor entity.Identity, taskID int64) ([]*entity.HistoryEntry, error)
}

type taskServiceImpl struct {
	taskRepo  port.TaskRepository
	txManager port.TransactionManager
	recorder  *history.Recorder
	logger    Logger
}

// NewTaskService creates a new TaskService
func NewTaskService(
	taskRepo port.TaskRepository,
	txManager port.TransactionManager,
	recorder *history.Recorder,
	logger Logger,
) TaskService {
	return &taskServiceImpl{
		taskRepo:  taskRepo,
		txManager: txManager,
		recorder:  recorder,
		logger:    logger,
	}
}

// List retrieves tasks the actor is allowed to see, narrowed to the
// actor's scope.
func (s *taskServiceImpl) List(ctx context.Context, actor entity.Identity, filters entity.TaskFilters) ([]*entity.Task, error) {
	if !permission.Authorize(actor, permission.ActionView) {
		return nil, fmt.Errorf("%w: role %s cannot view tasks", entity.ErrUnauthorized, actor.RoleCode)
	}

	filters = permission.ScopeFilter(actor, filters)
	return s.taskRepo.List(ctx, filters)
}

// Get retrieves a single active task
func (s *taskServiceImpl) Get(ctx context.Context, actor entity.Identity, id int64) (*entity.Task, error) {
	if !permission.Authorize(actor, permission.ActionView) {
		return nil, fmt.Errorf("%w: role %s cannot view tasks", entity.ErrUnauthorized, actor.RoleCode)
	}

	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task %d", entity.ErrNotFound, id)
	}
	return task, nil
}

// Create validates input, enforces the parent-level rule and inserts the
// task with its defaults.
func (s *taskServiceImpl) Create(ctx context.Context, actor entity.Identity, input CreateTaskInput) (*entity.Task, error) {
	if !permission.Authorize(actor, permission.ActionCreate) {
		return nil, fmt.Errorf("%w: role %s cannot create tasks", entity.ErrUnauthorized, actor.RoleCode)
	}

	if input.TaskCode == "" || input.Title == "" {
		return nil, fmt.Errorf("%w: task_code and title are required", entity.ErrValidation)
	}
	if !input.TaskLevel.IsValid() {
		return nil, fmt.Errorf("%w: unknown task level %q", entity.ErrValidation, input.TaskLevel)
	}
	if input.AssignedTo == 0 || input.TeamID == 0 {
		return nil, fmt.Errorf("%w: assigned_to and team_id are required", entity.ErrValidation)
	}

	priority := input.Priority
	if priority == "" {
		priority = entity.PriorityMedium
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: unknown priority %q", entity.ErrValidation, priority)
	}

	if err := s.checkParentLevel(ctx, input.ParentTaskID, input.TaskLevel); err != nil {
		return nil, err
	}

	task := &entity.Task{
		TaskCode:         input.TaskCode,
		ParentTaskID:     input.ParentTaskID,
		TaskLevel:        input.TaskLevel,
		Title:            input.Title,
		Description:      input.Description,
		CategoryID:       input.CategoryID,
		AssignedTo:       input.AssignedTo,
		CreatedBy:        actor.UserID,
		TeamID:           input.TeamID,
		Status:           entity.StatusNotStarted,
		PlannedStartDate: input.PlannedStartDate,
		PlannedEndDate:   input.PlannedEndDate,
		Priority:         priority,
		Notes:            input.Notes,
		IsActive:         true,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, &entity.HistoryEntry{
		TaskID:       task.ID,
		ChangeType:   entity.ChangeCreate,
		ChangeReason: "Task created",
		ChangedBy:    actor.UserID,
	})

	s.logger.Info("Task created",
		"id", task.ID, "task_code", task.TaskCode, "level", string(task.TaskLevel))

	created, err := s.taskRepo.GetByID(ctx, task.ID)
	if err != nil || created == nil {
		return task, nil
	}
	return created, nil
}

// Update applies a whitelisted field patch
func (s *taskServiceImpl) Update(ctx context.Context, actor entity.Identity, id int64, patch entity.TaskPatch) (*entity.Task, error) {
	if !permission.Authorize(actor, permission.ActionEdit) {
		return nil, fmt.Errorf("%w: role %s cannot edit tasks", entity.ErrUnauthorized, actor.RoleCode)
	}

	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: no recognized fields in update", entity.ErrValidation)
	}
	if patch.Priority != nil && !patch.Priority.IsValid() {
		return nil, fmt.Errorf("%w: unknown priority %q", entity.ErrValidation, *patch.Priority)
	}

	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task %d", entity.ErrNotFound, id)
	}

	if err := s.taskRepo.Update(ctx, id, patch, actor.UserID); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, &entity.HistoryEntry{
		TaskID:       id,
		ChangeType:   entity.ChangeUpdate,
		ChangeReason: "Task updated",
		ChangedBy:    actor.UserID,
	})

	return s.taskRepo.GetByID(ctx, id)
}

// UpdateProgress sets a new progress percentage, moving the status along
// the task lifecycle when a boundary is crossed.
func (s *taskServiceImpl) UpdateProgress(ctx context.Context, actor entity.Identity, id int64, percentage float64, notes string) (*entity.Task, error) {
	if !permission.Authorize(actor, permission.ActionEdit) {
		return nil, fmt.Errorf("%w: role %s cannot edit tasks", entity.ErrUnauthorized, actor.RoleCode)
	}

	if percentage < 0 || percentage > 100 {
		return nil, fmt.Errorf("%w: progress must be between 0 and 100, got %v", entity.ErrValidation, percentage)
	}

	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task %d", entity.ErrNotFound, id)
	}

	status := s.nextStatus(ctx, task.Status, percentage)

	if err := s.taskRepo.UpdateProgress(ctx, id, percentage, notes, status, actor.UserID); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, &entity.HistoryEntry{
		TaskID:       id,
		ChangeType:   entity.ChangeProgressUpdate,
		FieldName:    "progress_percentage",
		OldValue:     strconv.FormatFloat(task.ProgressPercentage, 'f', -1, 64),
		NewValue:     strconv.FormatFloat(percentage, 'f', -1, 64),
		ChangeReason: "Progress updated",
		ChangedBy:    actor.UserID,
	})

	return s.taskRepo.GetByID(ctx, id)
}

// nextStatus advances the task status machine for the new percentage.
// Statuses that permit no matching trigger stay as they are.
func (s *taskServiceImpl) nextStatus(ctx context.Context, current entity.TaskStatus, percentage float64) entity.TaskStatus {
	machine := workflow.NewTaskStatusMachine(workflow.State(current))

	var trigger workflow.Trigger
	switch {
	case percentage == 100:
		trigger = workflow.TriggerComplete
	case percentage > 0:
		trigger = workflow.TriggerStart
	default:
		return current
	}

	if !machine.CanFire(trigger) {
		return current
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		return current
	}
	return entity.TaskStatus(machine.State())
}

// Delete soft-deletes a task and every active descendant in one
// transaction, so a parent never disappears while its subtree stays
// visible.
func (s *taskServiceImpl) Delete(ctx context.Context, actor entity.Identity, id int64) error {
	if !permission.Authorize(actor, permission.ActionDelete) {
		return fmt.Errorf("%w: role %s cannot delete tasks", entity.ErrUnauthorized, actor.RoleCode)
	}

	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: task %d", entity.ErrNotFound, id)
	}

	subtree, err := s.collectSubtree(ctx, id)
	if err != nil {
		return err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, taskID := range subtree {
			if err := s.taskRepo.SoftDelete(txCtx, taskID, actor.UserID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, taskID := range subtree {
		s.recorder.Record(ctx, &entity.HistoryEntry{
			TaskID:       taskID,
			ChangeType:   entity.ChangeDelete,
			ChangeReason: "Task deleted",
			ChangedBy:    actor.UserID,
		})
	}

	s.logger.Info("Task deleted", "id", id, "cascaded", len(subtree)-1)
	return nil
}

// collectSubtree gathers the ids of a task and its active descendants,
// bounded by the hierarchy depth and guarded against parent cycles.
func (s *taskServiceImpl) collectSubtree(ctx context.Context, rootID int64) ([]int64, error) {
	visited := map[int64]bool{rootID: true}
	ids := []int64{rootID}
	frontier := []int64{rootID}

	for depth := 1; depth < maxHierarchyDepth && len(frontier) > 0; depth++ {
		var next []int64
		for _, parentID := range frontier {
			children, err := s.taskRepo.ListChildren(ctx, parentID)
			if err != nil {
				return nil, err
			}
			for _, child := range children {
				if visited[child.ID] {
					continue
				}
				visited[child.ID] = true
				ids = append(ids, child.ID)
				next = append(next, child.ID)
			}
		}
		frontier = next
	}

	return ids, nil
}

// Hierarchy expands the task tree from a root (or all top-level tasks),
// annotating nodes with a zero-based depth. Traversal is bounded to three
// levels and skips any node seen before, so a corrupt parent link cannot
// loop it.
func (s *taskServiceImpl) Hierarchy(ctx context.Context, actor entity.Identity, rootID *int64) ([]*entity.TaskTreeNode, error) {
	if !permission.Authorize(actor, permission.ActionView) {
		return nil, fmt.Errorf("%w: role %s cannot view tasks", entity.ErrUnauthorized, actor.RoleCode)
	}

	var roots []*entity.Task
	if rootID != nil {
		root, err := s.taskRepo.GetByID(ctx, *rootID)
		if err != nil {
			return nil, err
		}
		if root == nil {
			return nil, fmt.Errorf("%w: task %d", entity.ErrNotFound, *rootID)
		}
		roots = []*entity.Task{root}
	} else {
		var err error
		roots, err = s.taskRepo.List(ctx, entity.TaskFilters{TopLevelOnly: true})
		if err != nil {
			return nil, err
		}
	}

	visited := make(map[int64]bool)
	nodes := make([]*entity.TaskTreeNode, 0, len(roots))
	for _, root := range roots {
		node, err := s.expandNode(ctx, root, 0, visited)
		if err != nil {
			return nil, err
		}
		if node != nil {
			nodes = append(nodes, node)
		}
	}

	return nodes, nil
}

func (s *taskServiceImpl) expandNode(ctx context.Context, task *entity.Task, depth int, visited map[int64]bool) (*entity.TaskTreeNode, error) {
	if visited[task.ID] {
		// Revisiting a node means a corrupt parent link
		s.logger.Error("Cycle detected in task hierarchy", "task_id", task.ID)
		return nil, nil
	}
	visited[task.ID] = true

	node := &entity.TaskTreeNode{Task: *task, Depth: depth}

	if depth+1 >= maxHierarchyDepth {
		return node, nil
	}

	children, err := s.taskRepo.ListChildren(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		childNode, err := s.expandNode(ctx, child, depth+1, visited)
		if err != nil {
			return nil, err
		}
		if childNode != nil {
			node.Children = append(node.Children, childNode)
		}
	}

	return node, nil
}

// Statistics aggregates tasks for dashboards, narrowed to the actor's scope.
func (s *taskServiceImpl) Statistics(ctx context.Context, actor entity.Identity, filters entity.StatsFilters) (*entity.TaskStatistics, error) {
	if !permission.Authorize(actor, permission.ActionView) {
		return nil, fmt.Errorf("%w: role %s cannot view tasks", entity.ErrUnauthorized, actor.RoleCode)
	}

	profile := permission.Resolve(permission.Role(actor.RoleCode))
	switch profile.Scope {
	case permission.ScopeTeam, permission.ScopeFunction:
		teamID := actor.TeamID
		filters.TeamID = &teamID
	case permission.ScopeOwn:
		userID := actor.UserID
		filters.UserID = &userID
	}

	return s.taskRepo.Statistics(ctx, filters)
}

// History reads back the audit trail for a task
func (s *taskServiceImpl) History(ctx context.Context, actor entity.Identity, taskID int64) ([]*entity.HistoryEntry, error) {
	if !permission.Authorize(actor, permission.ActionView) {
		return nil, fmt.Errorf("%w: role %s cannot view tasks", entity.ErrUnauthorized, actor.RoleCode)
	}

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task %d", entity.ErrNotFound, taskID)
	}

	return s.recorder.ListByTask(ctx, taskID)
}

// checkParentLevel enforces that a parent reference points at an active
// task exactly one level up (task -> monthly -> personal).
func (s *taskServiceImpl) checkParentLevel(ctx context.Context, parentID *int64, level entity.TaskLevel) error {
	if parentID == nil {
		if level != entity.LevelTask {
			return fmt.Errorf("%w: %s-level tasks require a parent", entity.ErrValidation, level)
		}
		return nil
	}

	if level == entity.LevelTask {
		return fmt.Errorf("%w: top-level tasks cannot have a parent", entity.ErrValidation)
	}

	parent, err := s.taskRepo.GetByID(ctx, *parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("%w: parent task %d", entity.ErrNotFound, *parentID)
	}

	childLevel, ok := parent.TaskLevel.ChildLevel()
	if !ok || childLevel != level {
		return fmt.Errorf("%w: %s-level task cannot be a child of %s-level task %d",
			entity.ErrValidation, level, parent.TaskLevel, parent.ID)
	}

	return nil
}
