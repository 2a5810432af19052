package repository

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kpicloud/taskflow/internal/domain/entity"
	"github.com/kpicloud/taskflow/pkg/database"
)

// openTestDB opens an in-memory database with the real migrations applied.
// A single connection keeps every query on the same memory store.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.Run("../../../../migrations"))

	return db
}

// seedUser inserts a user and returns its id. The reference teams are
// seeded by the migrations; team ids start at 1.
func seedUser(t *testing.T, db *sql.DB, username, roleCode string, teamID int64) int64 {
	t.Helper()

	result, err := db.Exec(`
		INSERT INTO users (username, password_hash, full_name, role_code, team_id)
		VALUES (?, 'x', ?, ?, ?)`,
		username, "User "+username, roleCode, teamID)
	require.NoError(t, err)

	id, err := result.LastInsertId()
	require.NoError(t, err)
	return id
}

// seedTask inserts a task through the repository and returns it.
func seedTask(t *testing.T, repo *TaskRepository, code string, level entity.TaskLevel, parentID *int64, userID, teamID int64) *entity.Task {
	t.Helper()

	task := &entity.Task{
		TaskCode:     code,
		ParentTaskID: parentID,
		TaskLevel:    level,
		Title:        "Task " + code,
		AssignedTo:   userID,
		CreatedBy:    userID,
		TeamID:       teamID,
		Status:       entity.StatusNotStarted,
		Priority:     entity.PriorityMedium,
	}
	require.NoError(t, repo.Create(context.Background(), task))
	return task
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(s string) *string { return &s }

func newTaskRepo(db *sql.DB) *TaskRepository {
	return NewTaskRepository(db, zap.NewNop()).(*TaskRepository)
}

func newApprovalRepo(db *sql.DB) *ApprovalRepository {
	return NewApprovalRepository(db, zap.NewNop()).(*ApprovalRepository)
}

func newHistoryRepo(db *sql.DB) *HistoryRepository {
	return NewHistoryRepository(db, zap.NewNop()).(*HistoryRepository)
}

func newUserRepo(db *sql.DB) *UserRepository {
	return NewUserRepository(db, zap.NewNop()).(*UserRepository)
}
