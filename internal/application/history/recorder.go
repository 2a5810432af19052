// Package history provides best-effort audit logging. Recording a change
// never fails the primary operation: write errors are logged and dropped.
package history

import (
	"context"

	"go.uber.org/zap"

	"github.com/kpicloud/taskflow/internal/application/port"
	"github.com/kpicloud/taskflow/internal/domain/entity"
)

// Recorder writes audit entries fire-and-forget.
type Recorder struct {
	repo   port.HistoryRepository
	logger *zap.Logger
}

// NewRecorder creates a new Recorder
func NewRecorder(repo port.HistoryRepository, logger *zap.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger,
	}
}

// Record appends an audit entry. Failures are logged, never returned, so a
// history outage cannot abort the mutation being recorded. The entry is
// written outside any caller transaction.
func (r *Recorder) Record(ctx context.Context, entry *entity.HistoryEntry) {
	if err := r.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		r.logger.Error("Failed to record history entry",
			zap.Int64("task_id", entry.TaskID),
			zap.String("change_type", entry.ChangeType),
			zap.Error(err))
	}
}

// ListByTask reads back the audit trail for a task. Reads propagate errors
// normally.
func (r *Recorder) ListByTask(ctx context.Context, taskID int64) ([]*entity.HistoryEntry, error) {
	return r.repo.ListByTask(ctx, taskID)
}
