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

const approvalColumns = `
	ta.id, ta.task_id, ta.approver_id, ta.approval_level, ta.status,
	ta.approved_at, ta.rejection_reason, ta.approver_notes,
	ta.requested_at, ta.deadline, ta.is_escalated,
	ta.created_at, ta.updated_at,
	u.full_name, u.username,
	t.task_code, t.title, t.progress_percentage,
	assignee.full_name,
	tm.team_name, tm.team_code`

const approvalJoins = `
	FROM task_approvals ta
	JOIN tasks t ON ta.task_id = t.id
	JOIN users u ON ta.approver_id = u.id
	JOIN users assignee ON t.assigned_to = assignee.id
	JOIN teams tm ON t.team_id = tm.id`

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new approval request. The (task_id, approval_level)
// unique constraint turns duplicates into ErrConflict.
func (r *ApprovalRepository) Create(ctx context.Context, approval *entity.Approval) error {
	query := `
		INSERT INTO task_approvals (task_id, approver_id, approval_level, status, deadline)
		VALUES (?, ?, ?, ?, ?)
	`

	status := approval.Status
	if status == "" {
		status = entity.ApprovalPending
	}

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		approval.TaskID,
		approval.ApproverID,
		approval.ApprovalLevel,
		status,
		nullString(approval.Deadline),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: approval already exists for task %d at level %s",
				entity.ErrConflict, approval.TaskID, approval.ApprovalLevel)
		}
		r.logger.Error("Failed to create approval request",
			zap.Int64("task_id", approval.TaskID),
			zap.String("level", string(approval.ApprovalLevel)),
			zap.Error(err))
		return fmt.Errorf("%w: create approval: %v", entity.ErrStorage, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: last insert id: %v", entity.ErrStorage, err)
	}

	approval.ID = id
	approval.Status = status
	return nil
}

// GetByID retrieves an approval by ID
func (r *ApprovalRepository) GetByID(ctx context.Context, id int64) (*entity.Approval, error) {
	query := `SELECT` + approvalColumns + approvalJoins + ` WHERE ta.id = ?`

	approval, err := r.scanApprovalRow(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: get approval: %v", entity.ErrStorage, err)
	}

	return approval, nil
}

// ListByTask retrieves all approvals for a task, newest request first
func (r *ApprovalRepository) ListByTask(ctx context.Context, taskID int64) ([]*entity.Approval, error) {
	query := `SELECT` + approvalColumns + approvalJoins + `
		WHERE ta.task_id = ?
		ORDER BY ta.requested_at DESC, ta.id DESC`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, taskID)
	if err != nil {
		r.logger.Error("Failed to list approvals by task",
			zap.Int64("task_id", taskID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: list approvals: %v", entity.ErrStorage, err)
	}
	defer rows.Close()

	return r.scanApprovals(rows)
}

// ExistsForTaskLevel reports whether an approval row exists for the pair
func (r *ApprovalRepository) ExistsForTaskLevel(ctx context.Context, taskID int64, level entity.ApprovalLevel) (bool, error) {
	query := `SELECT 1 FROM task_approvals WHERE task_id = ? AND approval_level = ?`

	var one int
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, taskID, level).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: check approval existence: %v", entity.ErrStorage, err)
	}

	return true, nil
}

// ListPending retrieves pending approvals of active tasks. Ordering is
// oldest request first so long-waiting items never starve.
func (r *ApprovalRepository) ListPending(ctx context.Context, filters entity.PendingFilters) ([]*entity.Approval, error) {
	var b strings.Builder
	b.WriteString(`SELECT` + approvalColumns + approvalJoins + `
		WHERE ta.status = 'pending' AND t.is_active = TRUE`)

	var params []interface{}
	if filters.ApproverID != nil {
		b.WriteString(" AND ta.approver_id = ?")
		params = append(params, *filters.ApproverID)
	}
	if filters.Level != "" {
		b.WriteString(" AND ta.approval_level = ?")
		params = append(params, filters.Level)
	}
	if filters.TeamID != nil {
		b.WriteString(" AND t.team_id = ?")
		params = append(params, *filters.TeamID)
	}

	b.WriteString(" ORDER BY ta.requested_at ASC, ta.id ASC")

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, b.String(), params...)
	if err != nil {
		r.logger.Error("Failed to list pending approvals", zap.Error(err))
		return nil, fmt.Errorf("%w: list pending approvals: %v", entity.ErrStorage, err)
	}
	defer rows.Close()

	return r.scanApprovals(rows)
}

// Decide sets the decision fields of an approval
func (r *ApprovalRepository) Decide(ctx context.Context, id int64, status entity.ApprovalStatus, notes, rejectionReason string) error {
	var query string
	var params []interface{}

	switch status {
	case entity.ApprovalApproved:
		query = `
			UPDATE task_approvals
			SET status = 'approved', approved_at = CURRENT_TIMESTAMP,
				approver_notes = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`
		params = []interface{}{nullString(notes), id}
	case entity.ApprovalRejected:
		query = `
			UPDATE task_approvals
			SET status = 'rejected', rejection_reason = ?,
				approver_notes = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`
		params = []interface{}{nullString(rejectionReason), nullString(notes), id}
	default:
		return fmt.Errorf("%w: decision status must be approved or rejected", entity.ErrValidation)
	}

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query, params...)
	if err != nil {
		r.logger.Error("Failed to decide approval",
			zap.Int64("id", id),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("%w: decide approval: %v", entity.ErrStorage, err)
	}

	return nil
}

// EscalateOverdue flags pending, unescalated approvals past the deadline.
// Already-escalated rows are excluded, which makes repeated runs safe.
func (r *ApprovalRepository) EscalateOverdue(ctx context.Context, today string) (int64, error) {
	query := `
		UPDATE task_approvals
		SET is_escalated = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE status = 'pending'
		AND deadline IS NOT NULL
		AND deadline < ?
		AND is_escalated = FALSE
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, today)
	if err != nil {
		r.logger.Error("Failed to escalate overdue approvals", zap.Error(err))
		return 0, fmt.Errorf("%w: escalate overdue: %v", entity.ErrStorage, err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", entity.ErrStorage, err)
	}

	return count, nil
}

// Statistics aggregates approval requests
func (r *ApprovalRepository) Statistics(ctx context.Context, filters entity.ApprovalStatsFilters, today string) (*entity.ApprovalStatistics, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT
			COUNT(*),
			SUM(CASE WHEN ta.status = 'pending' THEN 1 ELSE 0 END),
			SUM(CASE WHEN ta.status = 'approved' THEN 1 ELSE 0 END),
			SUM(CASE WHEN ta.status = 'rejected' THEN 1 ELSE 0 END),
			SUM(CASE WHEN ta.deadline IS NOT NULL AND ta.deadline < ? AND ta.status = 'pending' THEN 1 ELSE 0 END),
			COALESCE(AVG(CASE WHEN ta.status != 'pending'
				THEN julianday(ta.updated_at) - julianday(ta.requested_at)
				ELSE NULL END), 0)
		FROM task_approvals ta
		JOIN tasks t ON ta.task_id = t.id
		WHERE t.is_active = TRUE`)

	params := []interface{}{today}

	if filters.TeamID != nil {
		b.WriteString(" AND t.team_id = ?")
		params = append(params, *filters.TeamID)
	}
	if filters.ApproverID != nil {
		b.WriteString(" AND ta.approver_id = ?")
		params = append(params, *filters.ApproverID)
	}
	if filters.DateFrom != "" {
		b.WriteString(" AND ta.requested_at >= ?")
		params = append(params, filters.DateFrom)
	}
	if filters.DateTo != "" {
		b.WriteString(" AND ta.requested_at <= ?")
		params = append(params, filters.DateTo)
	}

	var stats entity.ApprovalStatistics
	var pending, approved, rejected, overdue sql.NullInt64

	err := getExecutor(ctx, r.db).QueryRowContext(ctx, b.String(), params...).Scan(
		&stats.Total,
		&pending,
		&approved,
		&rejected,
		&overdue,
		&stats.AvgProcessingDays,
	)
	if err != nil {
		r.logger.Error("Failed to aggregate approval statistics", zap.Error(err))
		return nil, fmt.Errorf("%w: approval statistics: %v", entity.ErrStorage, err)
	}

	stats.Pending = int(pending.Int64)
	stats.Approved = int(approved.Int64)
	stats.Rejected = int(rejected.Int64)
	stats.Overdue = int(overdue.Int64)

	return &stats, nil
}

// scanApprovalRow scans a single approval row with joined display columns.
func (r *ApprovalRepository) scanApprovalRow(row rowScanner) (*entity.Approval, error) {
	var approval entity.Approval
	var rejectionReason, approverNotes, deadline sql.NullString
	var approverName, approverUsername, taskCode, taskTitle, assigneeName, teamName, teamCode sql.NullString
	var taskProgress sql.NullFloat64

	err := row.Scan(
		&approval.ID,
		&approval.TaskID,
		&approval.ApproverID,
		&approval.ApprovalLevel,
		&approval.Status,
		&approval.ApprovedAt,
		&rejectionReason,
		&approverNotes,
		&approval.RequestedAt,
		&deadline,
		&approval.IsEscalated,
		&approval.CreatedAt,
		&approval.UpdatedAt,
		&approverName,
		&approverUsername,
		&taskCode,
		&taskTitle,
		&taskProgress,
		&assigneeName,
		&teamName,
		&teamCode,
	)
	if err != nil {
		return nil, err
	}

	approval.RejectionReason = rejectionReason.String
	approval.ApproverNotes = approverNotes.String
	approval.Deadline = deadline.String
	approval.ApproverName = approverName.String
	approval.ApproverUsername = approverUsername.String
	approval.TaskCode = taskCode.String
	approval.TaskTitle = taskTitle.String
	approval.TaskProgress = taskProgress.Float64
	approval.AssigneeName = assigneeName.String
	approval.TeamName = teamName.String
	approval.TeamCode = teamCode.String

	return &approval, nil
}

func (r *ApprovalRepository) scanApprovals(rows *sql.Rows) ([]*entity.Approval, error) {
	var approvals []*entity.Approval
	for rows.Next() {
		approval, err := r.scanApprovalRow(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan approval: %v", entity.ErrStorage, err)
		}
		approvals = append(approvals, approval)
	}
	return approvals, rows.Err()
}

// Verify interface compliance
var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
