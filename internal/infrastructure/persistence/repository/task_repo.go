package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kpicloud/taskflow/internal/application/port"
	"github.com/kpicloud/taskflow/internal/domain/entity"
)

// taskColumns are the joined columns selected for every task read.
const taskColumns = `
	t.id, t.task_code, t.parent_task_id, t.task_level,
	t.title, t.description, t.category_id,
	t.assigned_to, t.created_by, t.updated_by, t.team_id,
	t.progress_percentage, t.status,
	t.planned_start_date, t.planned_end_date, t.actual_start_date, t.actual_end_date,
	t.priority, t.notes, t.is_active, t.created_at, t.updated_at,
	u.full_name, u.username,
	tm.team_name, tm.team_code,
	c.category_name,
	creator.full_name`

const taskJoins = `
	FROM tasks t
	LEFT JOIN users u ON t.assigned_to = u.id
	LEFT JOIN teams tm ON t.team_id = tm.id
	LEFT JOIN task_categories c ON t.category_id = c.id
	LEFT JOIN users creator ON t.created_by = creator.id`

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new task
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	query := `
		INSERT INTO tasks (
			task_code, parent_task_id, task_level, title, description,
			category_id, assigned_to, created_by, updated_by, team_id,
			progress_percentage, status, planned_start_date, planned_end_date,
			priority, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		task.TaskCode,
		task.ParentTaskID,
		task.TaskLevel,
		task.Title,
		nullString(task.Description),
		task.CategoryID,
		task.AssignedTo,
		task.CreatedBy,
		task.UpdatedBy,
		task.TeamID,
		task.ProgressPercentage,
		task.Status,
		nullString(task.PlannedStartDate),
		nullString(task.PlannedEndDate),
		task.Priority,
		nullString(task.Notes),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: task code %q already exists", entity.ErrConflict, task.TaskCode)
		}
		r.logger.Error("Failed to create task",
			zap.String("task_code", task.TaskCode),
			zap.Error(err))
		return fmt.Errorf("%w: create task: %v", entity.ErrStorage, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: last insert id: %v", entity.ErrStorage, err)
	}

	task.ID = id
	return nil
}

// GetByID retrieves an active task by ID
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	query := `SELECT` + taskColumns + taskJoins + ` WHERE t.id = ? AND t.is_active = TRUE`

	task, err := r.scanTask(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get task by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: get task: %v", entity.ErrStorage, err)
	}

	return task, nil
}

// GetByCode retrieves an active task by task code
func (r *TaskRepository) GetByCode(ctx context.Context, code string) (*entity.Task, error) {
	query := `SELECT` + taskColumns + taskJoins + ` WHERE t.task_code = ? AND t.is_active = TRUE`

	task, err := r.scanTask(getExecutor(ctx, r.db).QueryRowContext(ctx, query, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get task by code", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("%w: get task: %v", entity.ErrStorage, err)
	}

	return task, nil
}

// List retrieves tasks matching the filters. Ordering is newest-created
// first with id as a tie-break so pagination stays deterministic.
func (r *TaskRepository) List(ctx context.Context, filters entity.TaskFilters) ([]*entity.Task, error) {
	var b strings.Builder
	b.WriteString(`SELECT` + taskColumns + taskJoins + ` WHERE 1=1`)

	var params []interface{}

	if !filters.IncludeInactive {
		b.WriteString(" AND t.is_active = TRUE")
	}
	if filters.TeamID != nil {
		b.WriteString(" AND t.team_id = ?")
		params = append(params, *filters.TeamID)
	}
	if filters.AssignedTo != nil {
		b.WriteString(" AND t.assigned_to = ?")
		params = append(params, *filters.AssignedTo)
	}
	if filters.Status != "" {
		b.WriteString(" AND t.status = ?")
		params = append(params, filters.Status)
	}
	if filters.TaskLevel != "" {
		b.WriteString(" AND t.task_level = ?")
		params = append(params, filters.TaskLevel)
	}
	if filters.TopLevelOnly {
		b.WriteString(" AND t.parent_task_id IS NULL")
	} else if filters.ParentTaskID != nil {
		b.WriteString(" AND t.parent_task_id = ?")
		params = append(params, *filters.ParentTaskID)
	}

	b.WriteString(" ORDER BY t.created_at DESC, t.id DESC")

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, b.String(), params...)
	if err != nil {
		r.logger.Error("Failed to list tasks", zap.Error(err))
		return nil, fmt.Errorf("%w: list tasks: %v", entity.ErrStorage, err)
	}
	defer rows.Close()

	return r.scanTasks(rows)
}

// ListChildren retrieves active direct children of a task
func (r *TaskRepository) ListChildren(ctx context.Context, parentID int64) ([]*entity.Task, error) {
	query := `SELECT` + taskColumns + taskJoins + `
		WHERE t.parent_task_id = ? AND t.is_active = TRUE
		ORDER BY t.task_code`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, parentID)
	if err != nil {
		r.logger.Error("Failed to list child tasks",
			zap.Int64("parent_id", parentID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: list children: %v", entity.ErrStorage, err)
	}
	defer rows.Close()

	return r.scanTasks(rows)
}

// Update applies a field patch to a task
func (r *TaskRepository) Update(ctx context.Context, id int64, patch entity.TaskPatch, updatedBy int64) error {
	var fields []string
	var params []interface{}

	appendField := func(name string, value interface{}) {
		fields = append(fields, name+" = ?")
		params = append(params, value)
	}

	if patch.Title != nil {
		appendField("title", *patch.Title)
	}
	if patch.Description != nil {
		appendField("description", *patch.Description)
	}
	if patch.CategoryID != nil {
		appendField("category_id", *patch.CategoryID)
	}
	if patch.AssignedTo != nil {
		appendField("assigned_to", *patch.AssignedTo)
	}
	if patch.TeamID != nil {
		appendField("team_id", *patch.TeamID)
	}
	if patch.PlannedStartDate != nil {
		appendField("planned_start_date", *patch.PlannedStartDate)
	}
	if patch.PlannedEndDate != nil {
		appendField("planned_end_date", *patch.PlannedEndDate)
	}
	if patch.ActualStartDate != nil {
		appendField("actual_start_date", *patch.ActualStartDate)
	}
	if patch.ActualEndDate != nil {
		appendField("actual_end_date", *patch.ActualEndDate)
	}
	if patch.Priority != nil {
		appendField("priority", *patch.Priority)
	}
	if patch.Notes != nil {
		appendField("notes", *patch.Notes)
	}

	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields to update", entity.ErrValidation)
	}

	appendField("updated_by", updatedBy)
	fields = append(fields, "updated_at = CURRENT_TIMESTAMP")
	params = append(params, id)

	query := "UPDATE tasks SET " + strings.Join(fields, ", ") + " WHERE id = ?"

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query, params...)
	if err != nil {
		r.logger.Error("Failed to update task", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("%w: update task: %v", entity.ErrStorage, err)
	}

	return nil
}

// UpdateProgress sets progress percentage, notes and status in one write
func (r *TaskRepository) UpdateProgress(ctx context.Context, id int64, percentage float64, notes string, status entity.TaskStatus, updatedBy int64) error {
	query := `
		UPDATE tasks
		SET progress_percentage = ?, notes = ?, status = ?, updated_by = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query, percentage, nullString(notes), status, updatedBy, id)
	if err != nil {
		r.logger.Error("Failed to update task progress",
			zap.Int64("id", id),
			zap.Float64("percentage", percentage),
			zap.Error(err))
		return fmt.Errorf("%w: update progress: %v", entity.ErrStorage, err)
	}

	return nil
}

// UpdateStatus sets the task status
func (r *TaskRepository) UpdateStatus(ctx context.Context, id int64, status entity.TaskStatus) error {
	query := `UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update task status",
			zap.Int64("id", id),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("%w: update status: %v", entity.ErrStorage, err)
	}

	return nil
}

// SoftDelete marks a task inactive
func (r *TaskRepository) SoftDelete(ctx context.Context, id int64, deletedBy int64) error {
	query := `
		UPDATE tasks
		SET is_active = FALSE, updated_by = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query, deletedBy, id)
	if err != nil {
		r.logger.Error("Failed to soft-delete task", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("%w: delete task: %v", entity.ErrStorage, err)
	}

	return nil
}

// ListCompletedWithoutApproval retrieves completed tasks still lacking an
// approval row. Used by the auto-request scan.
func (r *TaskRepository) ListCompletedWithoutApproval(ctx context.Context, levels []entity.TaskLevel) ([]*entity.Task, error) {
	if len(levels) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(levels)), ", ")
	query := `SELECT` + taskColumns + taskJoins + `
		LEFT JOIN task_approvals ta ON t.id = ta.task_id
		WHERE t.progress_percentage = 100
		AND t.status = 'completed'
		AND t.task_level IN (` + placeholders + `)
		AND ta.id IS NULL
		AND t.is_active = TRUE
		ORDER BY t.id`

	params := make([]interface{}, len(levels))
	for i, level := range levels {
		params[i] = level
	}

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, params...)
	if err != nil {
		r.logger.Error("Failed to list completed tasks without approval", zap.Error(err))
		return nil, fmt.Errorf("%w: list completed tasks: %v", entity.ErrStorage, err)
	}
	defer rows.Close()

	return r.scanTasks(rows)
}

// Statistics aggregates task counts per status and mean progress
func (r *TaskRepository) Statistics(ctx context.Context, filters entity.StatsFilters) (*entity.TaskStatistics, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT
			COUNT(*),
			SUM(CASE WHEN status = 'not_started' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'pending_approval' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END),
			COALESCE(AVG(progress_percentage), 0)
		FROM tasks
		WHERE is_active = TRUE`)

	var params []interface{}
	if filters.TeamID != nil {
		b.WriteString(" AND team_id = ?")
		params = append(params, *filters.TeamID)
	}
	if filters.UserID != nil {
		b.WriteString(" AND assigned_to = ?")
		params = append(params, *filters.UserID)
	}

	var stats entity.TaskStatistics
	var notStarted, inProgress, completed, pendingApproval, approved, rejected sql.NullInt64

	err := getExecutor(ctx, r.db).QueryRowContext(ctx, b.String(), params...).Scan(
		&stats.Total,
		&notStarted,
		&inProgress,
		&completed,
		&pendingApproval,
		&approved,
		&rejected,
		&stats.AvgProgress,
	)
	if err != nil {
		r.logger.Error("Failed to aggregate task statistics", zap.Error(err))
		return nil, fmt.Errorf("%w: task statistics: %v", entity.ErrStorage, err)
	}

	stats.NotStarted = int(notStarted.Int64)
	stats.InProgress = int(inProgress.Int64)
	stats.Completed = int(completed.Int64)
	stats.PendingApproval = int(pendingApproval.Int64)
	stats.Approved = int(approved.Int64)
	stats.Rejected = int(rejected.Int64)

	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanTask scans a single task row with its joined display columns.
func (r *TaskRepository) scanTaskRow(row rowScanner) (*entity.Task, error) {
	var task entity.Task
	var description, plannedStart, plannedEnd, actualStart, actualEnd, notes sql.NullString
	var assignedName, assignedUsername, teamName, teamCode, categoryName, creatorName sql.NullString

	err := row.Scan(
		&task.ID,
		&task.TaskCode,
		&task.ParentTaskID,
		&task.TaskLevel,
		&task.Title,
		&description,
		&task.CategoryID,
		&task.AssignedTo,
		&task.CreatedBy,
		&task.UpdatedBy,
		&task.TeamID,
		&task.ProgressPercentage,
		&task.Status,
		&plannedStart,
		&plannedEnd,
		&actualStart,
		&actualEnd,
		&task.Priority,
		&notes,
		&task.IsActive,
		&task.CreatedAt,
		&task.UpdatedAt,
		&assignedName,
		&assignedUsername,
		&teamName,
		&teamCode,
		&categoryName,
		&creatorName,
	)
	if err != nil {
		return nil, err
	}

	task.Description = description.String
	task.PlannedStartDate = plannedStart.String
	task.PlannedEndDate = plannedEnd.String
	task.ActualStartDate = actualStart.String
	task.ActualEndDate = actualEnd.String
	task.Notes = notes.String
	task.AssignedToName = assignedName.String
	task.AssignedToUsername = assignedUsername.String
	task.TeamName = teamName.String
	task.TeamCode = teamCode.String
	task.CategoryName = categoryName.String
	task.CreatedByName = creatorName.String

	return &task, nil
}

func (r *TaskRepository) scanTask(row *sql.Row) (*entity.Task, error) {
	return r.scanTaskRow(row)
}

func (r *TaskRepository) scanTasks(rows *sql.Rows) ([]*entity.Task, error) {
	var tasks []*entity.Task
	for rows.Next() {
		task, err := r.scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan task: %v", entity.ErrStorage, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// nullString maps an empty string to NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Verify interface compliance
var _ port.TaskRepository = (*TaskRepository)(nil)
