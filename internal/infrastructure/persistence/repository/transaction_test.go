package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kpicloud/taskflow/internal/domain/entity"
	"github.com/kpicloud/taskflow/internal/infrastructure/persistence/sqlite"
)

func TestTransactionRollsBackAllWrites(t *testing.T) {
	rawDB := openTestDB(t)
	db := sqlite.NewDB(rawDB, zap.NewNop())
	taskRepo := newTaskRepo(rawDB)
	approvalRepo := newApprovalRepo(rawDB)
	ctx := context.Background()

	assignee := seedUser(t, rawDB, "alice", "DEV", 1)
	approver := seedUser(t, rawDB, "paula", "PM", 1)

	task := seedTask(t, taskRepo, "T-001-M1", entity.LevelMonthly, nil, assignee, 1)
	require.NoError(t, taskRepo.UpdateProgress(ctx, task.ID, 100, "", entity.StatusCompleted, assignee))

	boom := errors.New("boom")
	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := approvalRepo.Create(txCtx, &entity.Approval{
			TaskID:        task.ID,
			ApproverID:    approver,
			ApprovalLevel: entity.ApprovalLevelPMPO,
			Deadline:      "2025-06-13",
		}); err != nil {
			return err
		}
		if err := taskRepo.UpdateStatus(txCtx, task.ID, entity.StatusPendingApproval); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Neither write survived the rollback.
	exists, err := approvalRepo.ExistsForTaskLevel(ctx, task.ID, entity.ApprovalLevelPMPO)
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := taskRepo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, got.Status)
}

func TestTransactionCommitsAllWrites(t *testing.T) {
	rawDB := openTestDB(t)
	db := sqlite.NewDB(rawDB, zap.NewNop())
	taskRepo := newTaskRepo(rawDB)
	approvalRepo := newApprovalRepo(rawDB)
	ctx := context.Background()

	assignee := seedUser(t, rawDB, "alice", "DEV", 1)
	approver := seedUser(t, rawDB, "paula", "PM", 1)

	task := seedTask(t, taskRepo, "T-001-M1", entity.LevelMonthly, nil, assignee, 1)
	require.NoError(t, taskRepo.UpdateProgress(ctx, task.ID, 100, "", entity.StatusCompleted, assignee))

	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := approvalRepo.Create(txCtx, &entity.Approval{
			TaskID:        task.ID,
			ApproverID:    approver,
			ApprovalLevel: entity.ApprovalLevelPMPO,
			Deadline:      "2025-06-13",
		}); err != nil {
			return err
		}
		return taskRepo.UpdateStatus(txCtx, task.ID, entity.StatusPendingApproval)
	})
	require.NoError(t, err)

	exists, err := approvalRepo.ExistsForTaskLevel(ctx, task.ID, entity.ApprovalLevelPMPO)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := taskRepo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingApproval, got.Status)
}

func TestTransactionNestedReusesOuter(t *testing.T) {
	rawDB := openTestDB(t)
	db := sqlite.NewDB(rawDB, zap.NewNop())
	taskRepo := newTaskRepo(rawDB)
	ctx := context.Background()

	assignee := seedUser(t, rawDB, "alice", "DEV", 1)

	boom := errors.New("boom")
	err := db.WithTransaction(ctx, func(outerCtx context.Context) error {
		if err := taskRepo.Create(outerCtx, &entity.Task{
			TaskCode:   "T-001",
			TaskLevel:  entity.LevelTask,
			Title:      "Outer",
			AssignedTo: assignee,
			CreatedBy:  assignee,
			TeamID:     1,
			Status:     entity.StatusNotStarted,
			Priority:   entity.PriorityMedium,
		}); err != nil {
			return err
		}
		// The inner call joins the outer transaction instead of opening
		// its own, so the outer failure discards its write too.
		return db.WithTransaction(outerCtx, func(innerCtx context.Context) error {
			if err := taskRepo.Create(innerCtx, &entity.Task{
				TaskCode:   "T-002",
				TaskLevel:  entity.LevelTask,
				Title:      "Inner",
				AssignedTo: assignee,
				CreatedBy:  assignee,
				TeamID:     1,
				Status:     entity.StatusNotStarted,
				Priority:   entity.PriorityMedium,
			}); err != nil {
				return err
			}
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	tasks, err := taskRepo.List(ctx, entity.TaskFilters{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
