package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/kpicloud/taskflow/internal/application/port"
	"github.com/kpicloud/taskflow/internal/domain/entity"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history entry
func (r *HistoryRepository) Create(ctx context.Context, entry *entity.HistoryEntry) error {
	query := `
		INSERT INTO task_history (
			task_id, approval_id, change_type, field_name,
			old_value, new_value, change_reason, changed_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		entry.TaskID,
		entry.ApprovalID,
		entry.ChangeType,
		nullString(entry.FieldName),
		nullString(entry.OldValue),
		nullString(entry.NewValue),
		nullString(entry.ChangeReason),
		entry.ChangedBy,
	)
	if err != nil {
		r.logger.Error("Failed to create history entry",
			zap.Int64("task_id", entry.TaskID),
			zap.String("change_type", entry.ChangeType),
			zap.Error(err))
		return fmt.Errorf("%w: create history: %v", entity.ErrStorage, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: last insert id: %v", entity.ErrStorage, err)
	}

	entry.ID = id
	return nil
}

// ListByTask retrieves history entries for a task, newest first
func (r *HistoryRepository) ListByTask(ctx context.Context, taskID int64) ([]*entity.HistoryEntry, error) {
	query := `
		SELECT h.id, h.task_id, h.approval_id, h.change_type, h.field_name,
			h.old_value, h.new_value, h.change_reason, h.changed_by, h.changed_at,
			u.full_name
		FROM task_history h
		LEFT JOIN users u ON h.changed_by = u.id
		WHERE h.task_id = ?
		ORDER BY h.changed_at DESC, h.id DESC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, taskID)
	if err != nil {
		r.logger.Error("Failed to list history by task",
			zap.Int64("task_id", taskID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: list history: %v", entity.ErrStorage, err)
	}
	defer rows.Close()

	var entries []*entity.HistoryEntry
	for rows.Next() {
		var entry entity.HistoryEntry
		var fieldName, oldValue, newValue, changeReason, changedByName sql.NullString

		err := rows.Scan(
			&entry.ID,
			&entry.TaskID,
			&entry.ApprovalID,
			&entry.ChangeType,
			&fieldName,
			&oldValue,
			&newValue,
			&changeReason,
			&entry.ChangedBy,
			&entry.ChangedAt,
			&changedByName,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scan history entry: %v", entity.ErrStorage, err)
		}

		entry.FieldName = fieldName.String
		entry.OldValue = oldValue.String
		entry.NewValue = newValue.String
		entry.ChangeReason = changeReason.String
		entry.ChangedByName = changedByName.String

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
