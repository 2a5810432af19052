package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/kpicloud/taskflow/internal/application/history"
	"github.com/kpicloud/taskflow/internal/domain/entity"
)

// Mock repositories
type mockTaskRepo struct {
	createFunc              func(ctx context.Context, task *entity.Task) error
	getByIDFunc             func(ctx context.Context, id int64) (*entity.Task, error)
	getByCodeFunc           func(ctx context.Context, code string) (*entity.Task, error)
	listFunc                func(ctx context.Context, filters entity.TaskFilters) ([]*entity.Task, error)
	listChildrenFunc        func(ctx context.Context, parentID int64) ([]*entity.Task, error)
	updateFunc              func(ctx context.Context, id int64, patch entity.TaskPatch, updatedBy int64) error
	updateProgressFunc      func(ctx context.Context, id int64, percentage float64, notes string, status entity.TaskStatus, updatedBy int64) error
	updateStatusFunc        func(ctx context.Context, id int64, status entity.TaskStatus) error
	softDeleteFunc          func(ctx context.Context, id int64, deletedBy int64) error
	listWithoutApprovalFunc func(ctx context.Context, levels []entity.TaskLevel) ([]*entity.Task, error)
	statisticsFunc          func(ctx context.Context, filters entity.StatsFilters) (*entity.TaskStatistics, error)
}

func (m *mockTaskRepo) Create(ctx context.Context, task *entity.Task) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, task)
	}
	task.ID = 1 // Set ID for created task
	return nil
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.Task{
		ID: id, TaskCode: "T-1", TaskLevel: entity.LevelTask,
		Title: "Test task", AssignedTo: 2, TeamID: 1,
		Status: entity.StatusNotStarted, IsActive: true,
	}, nil
}

func (m *mockTaskRepo) GetByCode(ctx context.Context, code string) (*entity.Task, error) {
	if m.getByCodeFunc != nil {
		return m.getByCodeFunc(ctx, code)
	}
	return nil, nil
}

func (m *mockTaskRepo) List(ctx context.Context, filters entity.TaskFilters) ([]*entity.Task, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filters)
	}
	return []*entity.Task{}, nil
}

func (m *mockTaskRepo) ListChildren(ctx context.Context, parentID int64) ([]*entity.Task, error) {
	if m.listChildrenFunc != nil {
		return m.listChildrenFunc(ctx, parentID)
	}
	return []*entity.Task{}, nil
}

func (m *mockTaskRepo) Update(ctx context.Context, id int64, patch entity.TaskPatch, updatedBy int64) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, patch, updatedBy)
	}
	return nil
}

func (m *mockTaskRepo) UpdateProgress(ctx context.Context, id int64, percentage float64, notes string, status entity.TaskStatus, updatedBy int64) error {
	if m.updateProgressFunc != nil {
		return m.updateProgressFunc(ctx, id, percentage, notes, status, updatedBy)
	}
	return nil
}

func (m *mockTaskRepo) UpdateStatus(ctx context.Context, id int64, status entity.TaskStatus) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *mockTaskRepo) SoftDelete(ctx context.Context, id int64, deletedBy int64) error {
	if m.softDeleteFunc != nil {
		return m.softDeleteFunc(ctx, id, deletedBy)
	}
	return nil
}

func (m *mockTaskRepo) ListCompletedWithoutApproval(ctx context.Context, levels []entity.TaskLevel) ([]*entity.Task, error) {
	if m.listWithoutApprovalFunc != nil {
		return m.listWithoutApprovalFunc(ctx, levels)
	}
	return []*entity.Task{}, nil
}

func (m *mockTaskRepo) Statistics(ctx context.Context, filters entity.StatsFilters) (*entity.TaskStatistics, error) {
	if m.statisticsFunc != nil {
		return m.statisticsFunc(ctx, filters)
	}
	return &entity.TaskStatistics{}, nil
}

type mockApprovalRepo struct {
	createFunc        func(ctx context.Context, approval *entity.Approval) error
	getByIDFunc       func(ctx context.Context, id int64) (*entity.Approval, error)
	listByTaskFunc    func(ctx context.Context, taskID int64) ([]*entity.Approval, error)
	existsFunc        func(ctx context.Context, taskID int64, level entity.ApprovalLevel) (bool, error)
	listPendingFunc   func(ctx context.Context, filters entity.PendingFilters) ([]*entity.Approval, error)
	decideFunc        func(ctx context.Context, id int64, status entity.ApprovalStatus, notes, rejectionReason string) error
	escalateFunc      func(ctx context.Context, today string) (int64, error)
	statisticsFunc    func(ctx context.Context, filters entity.ApprovalStatsFilters, today string) (*entity.ApprovalStatistics, error)
}

func (m *mockApprovalRepo) Create(ctx context.Context, approval *entity.Approval) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, approval)
	}
	approval.ID = 1
	return nil
}

func (m *mockApprovalRepo) GetByID(ctx context.Context, id int64) (*entity.Approval, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.Approval{
		ID: id, TaskID: 1, ApproverID: 10,
		ApprovalLevel: entity.ApprovalLevelPMPO, Status: entity.ApprovalPending,
	}, nil
}

func (m *mockApprovalRepo) ListByTask(ctx context.Context, taskID int64) ([]*entity.Approval, error) {
	if m.listByTaskFunc != nil {
		return m.listByTaskFunc(ctx, taskID)
	}
	return []*entity.Approval{}, nil
}

func (m *mockApprovalRepo) ExistsForTaskLevel(ctx context.Context, taskID int64, level entity.ApprovalLevel) (bool, error) {
	if m.existsFunc != nil {
		return m.existsFunc(ctx, taskID, level)
	}
	return false, nil
}

func (m *mockApprovalRepo) ListPending(ctx context.Context, filters entity.PendingFilters) ([]*entity.Approval, error) {
	if m.listPendingFunc != nil {
		return m.listPendingFunc(ctx, filters)
	}
	return []*entity.Approval{}, nil
}

func (m *mockApprovalRepo) Decide(ctx context.Context, id int64, status entity.ApprovalStatus, notes, rejectionReason string) error {
	if m.decideFunc != nil {
		return m.decideFunc(ctx, id, status, notes, rejectionReason)
	}
	return nil
}

func (m *mockApprovalRepo) EscalateOverdue(ctx context.Context, today string) (int64, error) {
	if m.escalateFunc != nil {
		return m.escalateFunc(ctx, today)
	}
	return 0, nil
}

func (m *mockApprovalRepo) Statistics(ctx context.Context, filters entity.ApprovalStatsFilters, today string) (*entity.ApprovalStatistics, error) {
	if m.statisticsFunc != nil {
		return m.statisticsFunc(ctx, filters, today)
	}
	return &entity.ApprovalStatistics{}, nil
}

type mockHistoryRepo struct {
	createFunc func(ctx context.Context, entry *entity.HistoryEntry) error
	entries    []*entity.HistoryEntry
}

func (m *mockHistoryRepo) Create(ctx context.Context, entry *entity.HistoryEntry) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, entry)
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockHistoryRepo) ListByTask(ctx context.Context, taskID int64) ([]*entity.HistoryEntry, error) {
	return m.entries, nil
}

type mockUserRepo struct {
	getByIDFunc       func(ctx context.Context, id int64) (*entity.User, error)
	getByUsernameFunc func(ctx context.Context, username string) (*entity.User, error)
	findApproverFunc  func(ctx context.Context, roleCodes []string, teamID int64) (*entity.User, error)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.User{ID: id, Username: "user", RoleCode: "DEV", TeamID: 1, IsActive: true}, nil
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	if m.getByUsernameFunc != nil {
		return m.getByUsernameFunc(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) FindApprover(ctx context.Context, roleCodes []string, teamID int64) (*entity.User, error) {
	if m.findApproverFunc != nil {
		return m.findApproverFunc(ctx, roleCodes, teamID)
	}
	return &entity.User{ID: 10, Username: "approver", RoleCode: roleCodes[0], TeamID: teamID, IsActive: true}, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

func newTestRecorder(repo *mockHistoryRepo) *history.Recorder {
	return history.NewRecorder(repo, zap.NewNop())
}

// Identities used across the service tests.
var (
	adminActor = entity.Identity{UserID: 1, RoleCode: "ADMIN", TeamID: 1}
	pmActor    = entity.Identity{UserID: 10, RoleCode: "PM", TeamID: 1}
	devActor   = entity.Identity{UserID: 2, RoleCode: "DEV", TeamID: 1}
)
