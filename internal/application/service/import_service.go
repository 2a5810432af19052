package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kpicloud/taskflow/internal/application/history"
	"github.com/kpicloud/taskflow/internal/application/port"
	"github.com/kpicloud/taskflow/internal/domain/entity"
	"github.com/kpicloud/taskflow/internal/domain/permission"
)

// Spreadsheet column order for task imports. The first row is a header and
// is skipped.
const (
	colTaskCode = iota
	colTaskLevel
	colTitle
	colParentCode
	colAssignee
	colPlannedStart
	colPlannedEnd
	colPriority
	colDescription
	colNotes
)

// ImportError records a single rejected spreadsheet row. Row numbers are
// 1-based as shown in the sheet.
type ImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportResult accumulates per-row outcomes of a spreadsheet import.
type ImportResult struct {
	Imported int           `json:"imported"`
	Errors   []ImportError `json:"errors,omitempty"`
}

// ImportService loads tasks in bulk from spreadsheets
type ImportService interface {
	// ImportTasks reads an .xlsx workbook and creates one task per row.
	// A bad row is reported and skipped; it never aborts the rest.
	ImportTasks(ctx context.Context, actor entity.Identity, r io.Reader) (*ImportResult, error)
}

type importServiceImpl struct {
	taskRepo port.TaskRepository
	userRepo port.UserRepository
	recorder *history.Recorder
	logger   Logger
}

// NewImportService creates a new ImportService
func NewImportService(
	taskRepo port.TaskRepository,
	userRepo port.UserRepository,
	recorder *history.Recorder,
	logger Logger,
) ImportService {
	return &importServiceImpl{
		taskRepo: taskRepo,
		userRepo: userRepo,
		recorder: recorder,
		logger:   logger,
	}
}

func (s *importServiceImpl) ImportTasks(ctx context.Context, actor entity.Identity, r io.Reader) (*ImportResult, error) {
	if !permission.Authorize(actor, permission.ActionImport) {
		return nil, fmt.Errorf("%w: role %s cannot import tasks", entity.ErrUnauthorized, actor.RoleCode)
	}

	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open workbook: %v", entity.ErrValidation, err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", entity.ErrValidation)
	}

	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read sheet %s: %v", entity.ErrValidation, sheets[0], err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("%w: workbook has no data rows", entity.ErrValidation)
	}

	result := &ImportResult{}
	for i, row := range rows[1:] {
		rowNum := i + 2
		task, err := s.buildTask(ctx, actor, row)
		if err != nil {
			result.Errors = append(result.Errors, ImportError{Row: rowNum, Error: err.Error()})
			continue
		}

		if err := s.taskRepo.Create(ctx, task); err != nil {
			result.Errors = append(result.Errors, ImportError{Row: rowNum, Error: err.Error()})
			continue
		}

		s.recorder.Record(ctx, &entity.HistoryEntry{
			TaskID:       task.ID,
			ChangeType:   entity.ChangeImport,
			ChangeReason: fmt.Sprintf("Imported from spreadsheet row %d", rowNum),
			ChangedBy:    actor.UserID,
		})
		result.Imported++
	}

	s.logger.Info("Task import finished",
		"imported", result.Imported, "rejected", len(result.Errors))
	return result, nil
}

// buildTask validates one spreadsheet row and resolves its references
// (parent code, assignee username) against the database.
func (s *importServiceImpl) buildTask(ctx context.Context, actor entity.Identity, row []string) (*entity.Task, error) {
	taskCode := cell(row, colTaskCode)
	title := cell(row, colTitle)
	if taskCode == "" || title == "" {
		return nil, fmt.Errorf("task_code and title are required")
	}

	level := entity.TaskLevel(cell(row, colTaskLevel))
	if !level.IsValid() {
		return nil, fmt.Errorf("unknown task level %q", cell(row, colTaskLevel))
	}

	var parentID *int64
	if parentCode := cell(row, colParentCode); parentCode != "" {
		parent, err := s.taskRepo.GetByCode(ctx, parentCode)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("parent task %q not found", parentCode)
		}
		childLevel, ok := parent.TaskLevel.ChildLevel()
		if !ok || childLevel != level {
			return nil, fmt.Errorf("%s-level task cannot be a child of %s-level task %q",
				level, parent.TaskLevel, parentCode)
		}
		parentID = &parent.ID
	} else if level != entity.LevelTask {
		return nil, fmt.Errorf("%s-level tasks require a parent", level)
	}

	username := cell(row, colAssignee)
	if username == "" {
		return nil, fmt.Errorf("assignee username is required")
	}
	assignee, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if assignee == nil {
		return nil, fmt.Errorf("assignee %q not found", username)
	}

	priority := entity.Priority(cell(row, colPriority))
	if priority == "" {
		priority = entity.PriorityMedium
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("unknown priority %q", cell(row, colPriority))
	}

	return &entity.Task{
		TaskCode:         taskCode,
		ParentTaskID:     parentID,
		TaskLevel:        level,
		Title:            title,
		Description:      cell(row, colDescription),
		AssignedTo:       assignee.ID,
		CreatedBy:        actor.UserID,
		TeamID:           assignee.TeamID,
		Status:           entity.StatusNotStarted,
		PlannedStartDate: cell(row, colPlannedStart),
		PlannedEndDate:   cell(row, colPlannedEnd),
		Priority:         priority,
		Notes:            cell(row, colNotes),
		IsActive:         true,
	}, nil
}

// cell reads a column value, tolerating short rows.
func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
