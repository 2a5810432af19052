package service

import (
	"context"
	"errors"
	"testing"

	"github.com/kpicloud/taskflow/internal/domain/entity"
)

func newTaskService(taskRepo *mockTaskRepo, historyRepo *mockHistoryRepo) TaskService {
	return NewTaskService(taskRepo, &mockTxManager{}, newTestRecorder(historyRepo), &mockLogger{})
}

func TestTaskService_Create(t *testing.T) {
	monthlyParent := int64(5)

	tests := []struct {
		name        string
		actor       entity.Identity
		input       CreateTaskInput
		getByIDFunc func(ctx context.Context, id int64) (*entity.Task, error)
		wantErr     error
	}{
		{
			name:  "top-level task",
			actor: adminActor,
			input: CreateTaskInput{
				TaskCode: "T-100", TaskLevel: entity.LevelTask,
				Title: "Quarterly goal", AssignedTo: 2, TeamID: 1,
			},
		},
		{
			name:  "viewer role cannot create",
			actor: devActor,
			input: CreateTaskInput{
				TaskCode: "T-101", TaskLevel: entity.LevelTask,
				Title: "Nope", AssignedTo: 2, TeamID: 1,
			},
			wantErr: entity.ErrUnauthorized,
		},
		{
			name:  "missing title",
			actor: adminActor,
			input: CreateTaskInput{
				TaskCode: "T-102", TaskLevel: entity.LevelTask,
				AssignedTo: 2, TeamID: 1,
			},
			wantErr: entity.ErrValidation,
		},
		{
			name:  "unknown level",
			actor: adminActor,
			input: CreateTaskInput{
				TaskCode: "T-103", TaskLevel: "weekly",
				Title: "Bad level", AssignedTo: 2, TeamID: 1,
			},
			wantErr: entity.ErrValidation,
		},
		{
			name:  "monthly task without parent",
			actor: adminActor,
			input: CreateTaskInput{
				TaskCode: "T-104", TaskLevel: entity.LevelMonthly,
				Title: "Orphan", AssignedTo: 2, TeamID: 1,
			},
			wantErr: entity.ErrValidation,
		},
		{
			name:  "personal task under top-level parent",
			actor: adminActor,
			input: CreateTaskInput{
				TaskCode: "T-105", ParentTaskID: &monthlyParent,
				TaskLevel: entity.LevelPersonal,
				Title:     "Skipped a tier", AssignedTo: 2, TeamID: 1,
			},
			getByIDFunc: func(ctx context.Context, id int64) (*entity.Task, error) {
				return &entity.Task{ID: id, TaskLevel: entity.LevelTask, IsActive: true}, nil
			},
			wantErr: entity.ErrValidation,
		},
		{
			name:  "monthly task under top-level parent",
			actor: pmActor,
			input: CreateTaskInput{
				TaskCode: "T-106", ParentTaskID: &monthlyParent,
				TaskLevel: entity.LevelMonthly,
				Title:     "June plan", AssignedTo: 2, TeamID: 1,
			},
			getByIDFunc: func(ctx context.Context, id int64) (*entity.Task, error) {
				return &entity.Task{ID: id, TaskLevel: entity.LevelTask, IsActive: true}, nil
			},
		},
		{
			name:  "parent not found",
			actor: adminActor,
			input: CreateTaskInput{
				TaskCode: "T-107", ParentTaskID: &monthlyParent,
				TaskLevel: entity.LevelMonthly,
				Title:     "No parent", AssignedTo: 2, TeamID: 1,
			},
			getByIDFunc: func(ctx context.Context, id int64) (*entity.Task, error) {
				return nil, nil
			},
			wantErr: entity.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			taskRepo := &mockTaskRepo{getByIDFunc: tt.getByIDFunc}
			historyRepo := &mockHistoryRepo{}
			service := newTaskService(taskRepo, historyRepo)

			task, err := service.Create(context.Background(), tt.actor, tt.input)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("Create() error = %v", err)
				return
			}
			if task == nil {
				t.Errorf("Create() returned nil task")
				return
			}
			if task.Status != entity.StatusNotStarted {
				t.Errorf("Create() status = %v, want %v", task.Status, entity.StatusNotStarted)
			}
			if len(historyRepo.entries) != 1 || historyRepo.entries[0].ChangeType != entity.ChangeCreate {
				t.Errorf("Create() did not record a CREATE history entry")
			}
		})
	}
}

func TestTaskService_CreateDefaultsPriority(t *testing.T) {
	var created *entity.Task
	taskRepo := &mockTaskRepo{
		createFunc: func(ctx context.Context, task *entity.Task) error {
			task.ID = 7
			created = task
			return nil
		},
	}
	service := newTaskService(taskRepo, &mockHistoryRepo{})

	_, err := service.Create(context.Background(), adminActor, CreateTaskInput{
		TaskCode: "T-1", TaskLevel: entity.LevelTask,
		Title: "Defaults", AssignedTo: 2, TeamID: 1,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Priority != entity.PriorityMedium {
		t.Errorf("Create() priority = %v, want %v", created.Priority, entity.PriorityMedium)
	}
	if created.CreatedBy != adminActor.UserID {
		t.Errorf("Create() created_by = %v, want %v", created.CreatedBy, adminActor.UserID)
	}
}

func TestTaskService_UpdateProgress(t *testing.T) {
	tests := []struct {
		name       string
		percentage float64
		current    entity.TaskStatus
		wantStatus entity.TaskStatus
		wantErr    error
	}{
		{name: "start work", percentage: 30, current: entity.StatusNotStarted, wantStatus: entity.StatusInProgress},
		{name: "finish work", percentage: 100, current: entity.StatusInProgress, wantStatus: entity.StatusCompleted},
		{name: "progress without boundary", percentage: 60, current: entity.StatusInProgress, wantStatus: entity.StatusInProgress},
		{name: "approved task keeps status", percentage: 100, current: entity.StatusApproved, wantStatus: entity.StatusApproved},
		{name: "negative percentage", percentage: -1, current: entity.StatusInProgress, wantErr: entity.ErrValidation},
		{name: "over one hundred", percentage: 101, current: entity.StatusInProgress, wantErr: entity.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotStatus entity.TaskStatus
			taskRepo := &mockTaskRepo{
				getByIDFunc: func(ctx context.Context, id int64) (*entity.Task, error) {
					return &entity.Task{ID: id, Status: tt.current, IsActive: true}, nil
				},
				updateProgressFunc: func(ctx context.Context, id int64, percentage float64, notes string, status entity.TaskStatus, updatedBy int64) error {
					gotStatus = status
					return nil
				},
			}
			service := newTaskService(taskRepo, &mockHistoryRepo{})

			_, err := service.UpdateProgress(context.Background(), pmActor, 1, tt.percentage, "")

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("UpdateProgress() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("UpdateProgress() error = %v", err)
				return
			}
			if gotStatus != tt.wantStatus {
				t.Errorf("UpdateProgress() status = %v, want %v", gotStatus, tt.wantStatus)
			}
		})
	}
}

func TestTaskService_UpdateProgressRecordsOldAndNew(t *testing.T) {
	taskRepo := &mockTaskRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Task, error) {
			return &entity.Task{ID: id, ProgressPercentage: 40, Status: entity.StatusInProgress, IsActive: true}, nil
		},
	}
	historyRepo := &mockHistoryRepo{}
	service := newTaskService(taskRepo, historyRepo)

	if _, err := service.UpdateProgress(context.Background(), pmActor, 1, 75, "steady"); err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}

	if len(historyRepo.entries) != 1 {
		t.Fatalf("UpdateProgress() recorded %d history entries, want 1", len(historyRepo.entries))
	}
	entry := historyRepo.entries[0]
	if entry.ChangeType != entity.ChangeProgressUpdate {
		t.Errorf("history change_type = %v, want %v", entry.ChangeType, entity.ChangeProgressUpdate)
	}
	if entry.OldValue != "40" || entry.NewValue != "75" {
		t.Errorf("history values = %q -> %q, want 40 -> 75", entry.OldValue, entry.NewValue)
	}
}

func TestTaskService_Update(t *testing.T) {
	title := "Renamed"

	t.Run("empty patch rejected", func(t *testing.T) {
		service := newTaskService(&mockTaskRepo{}, &mockHistoryRepo{})
		_, err := service.Update(context.Background(), adminActor, 1, entity.TaskPatch{})
		if !errors.Is(err, entity.ErrValidation) {
			t.Errorf("Update() error = %v, want %v", err, entity.ErrValidation)
		}
	})

	t.Run("missing task", func(t *testing.T) {
		taskRepo := &mockTaskRepo{
			getByIDFunc: func(ctx context.Context, id int64) (*entity.Task, error) { return nil, nil },
		}
		service := newTaskService(taskRepo, &mockHistoryRepo{})
		_, err := service.Update(context.Background(), adminActor, 99, entity.TaskPatch{Title: &title})
		if !errors.Is(err, entity.ErrNotFound) {
			t.Errorf("Update() error = %v, want %v", err, entity.ErrNotFound)
		}
	})

	t.Run("patch applied", func(t *testing.T) {
		var gotPatch entity.TaskPatch
		taskRepo := &mockTaskRepo{
			updateFunc: func(ctx context.Context, id int64, patch entity.TaskPatch, updatedBy int64) error {
				gotPatch = patch
				return nil
			},
		}
		historyRepo := &mockHistoryRepo{}
		service := newTaskService(taskRepo, historyRepo)

		if _, err := service.Update(context.Background(), pmActor, 1, entity.TaskPatch{Title: &title}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if gotPatch.Title == nil || *gotPatch.Title != title {
			t.Errorf("Update() patch title = %v, want %q", gotPatch.Title, title)
		}
		if len(historyRepo.entries) != 1 || historyRepo.entries[0].ChangeType != entity.ChangeUpdate {
			t.Errorf("Update() did not record an UPDATE history entry")
		}
	})
}

func TestTaskService_DeleteCascades(t *testing.T) {
	parent := int64(1)
	children := map[int64][]*entity.Task{
		1: {{ID: 2, ParentTaskID: &parent, TaskLevel: entity.LevelMonthly, IsActive: true}},
		2: {{ID: 3, TaskLevel: entity.LevelPersonal, IsActive: true}},
	}

	var deleted []int64
	taskRepo := &mockTaskRepo{
		listChildrenFunc: func(ctx context.Context, parentID int64) ([]*entity.Task, error) {
			return children[parentID], nil
		},
		softDeleteFunc: func(ctx context.Context, id int64, deletedBy int64) error {
			deleted = append(deleted, id)
			return nil
		},
	}
	historyRepo := &mockHistoryRepo{}
	service := newTaskService(taskRepo, historyRepo)

	if err := service.Delete(context.Background(), adminActor, 1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if len(deleted) != 3 {
		t.Fatalf("Delete() removed %d tasks, want 3 (parent plus subtree)", len(deleted))
	}
	if deleted[0] != 1 {
		t.Errorf("Delete() removed %v first, want the parent", deleted[0])
	}
	if len(historyRepo.entries) != 3 {
		t.Errorf("Delete() recorded %d history entries, want 3", len(historyRepo.entries))
	}
}

func TestTaskService_DeleteRollsBackOnFailure(t *testing.T) {
	parent := int64(1)
	boom := errors.New("disk full")

	taskRepo := &mockTaskRepo{
		listChildrenFunc: func(ctx context.Context, parentID int64) ([]*entity.Task, error) {
			if parentID == 1 {
				return []*entity.Task{{ID: 2, ParentTaskID: &parent, IsActive: true}}, nil
			}
			return nil, nil
		},
		softDeleteFunc: func(ctx context.Context, id int64, deletedBy int64) error {
			if id == 2 {
				return boom
			}
			return nil
		},
	}
	historyRepo := &mockHistoryRepo{}
	service := newTaskService(taskRepo, historyRepo)

	err := service.Delete(context.Background(), adminActor, 1)
	if !errors.Is(err, boom) {
		t.Fatalf("Delete() error = %v, want %v", err, boom)
	}
	if len(historyRepo.entries) != 0 {
		t.Errorf("Delete() recorded history for a failed delete")
	}
}

func TestTaskService_Hierarchy(t *testing.T) {
	root := &entity.Task{ID: 1, TaskCode: "T-1", TaskLevel: entity.LevelTask, IsActive: true}
	children := map[int64][]*entity.Task{
		1: {{ID: 2, TaskCode: "T-1-M1", TaskLevel: entity.LevelMonthly, IsActive: true}},
		2: {{ID: 3, TaskCode: "T-1-M1-P1", TaskLevel: entity.LevelPersonal, IsActive: true}},
		// A child below the personal tier must not be expanded.
		3: {{ID: 4, TaskCode: "T-ghost", IsActive: true}},
	}

	taskRepo := &mockTaskRepo{
		listFunc: func(ctx context.Context, filters entity.TaskFilters) ([]*entity.Task, error) {
			if !filters.TopLevelOnly {
				t.Errorf("Hierarchy() listed without TopLevelOnly")
			}
			return []*entity.Task{root}, nil
		},
		listChildrenFunc: func(ctx context.Context, parentID int64) ([]*entity.Task, error) {
			return children[parentID], nil
		},
	}
	service := newTaskService(taskRepo, &mockHistoryRepo{})

	nodes, err := service.Hierarchy(context.Background(), devActor, nil)
	if err != nil {
		t.Fatalf("Hierarchy() error = %v", err)
	}

	if len(nodes) != 1 {
		t.Fatalf("Hierarchy() returned %d roots, want 1", len(nodes))
	}
	monthly := nodes[0].Children
	if len(monthly) != 1 || monthly[0].Depth != 1 {
		t.Fatalf("Hierarchy() monthly tier = %+v, want one node at depth 1", monthly)
	}
	personal := monthly[0].Children
	if len(personal) != 1 || personal[0].Depth != 2 {
		t.Fatalf("Hierarchy() personal tier = %+v, want one node at depth 2", personal)
	}
	if len(personal[0].Children) != 0 {
		t.Errorf("Hierarchy() expanded below the personal tier")
	}
}

func TestTaskService_HierarchyBreaksCycle(t *testing.T) {
	a := &entity.Task{ID: 1, TaskCode: "T-A", TaskLevel: entity.LevelTask, IsActive: true}
	b := &entity.Task{ID: 2, TaskCode: "T-B", TaskLevel: entity.LevelMonthly, IsActive: true}
	// Corrupt data: each task is the other's child.
	children := map[int64][]*entity.Task{1: {b}, 2: {a}}

	taskRepo := &mockTaskRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Task, error) { return a, nil },
		listChildrenFunc: func(ctx context.Context, parentID int64) ([]*entity.Task, error) {
			return children[parentID], nil
		},
	}
	service := newTaskService(taskRepo, &mockHistoryRepo{})

	rootID := int64(1)
	nodes, err := service.Hierarchy(context.Background(), adminActor, &rootID)
	if err != nil {
		t.Fatalf("Hierarchy() error = %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("Hierarchy() returned %d roots, want 1", len(nodes))
	}
	if len(nodes[0].Children) != 1 || len(nodes[0].Children[0].Children) != 0 {
		t.Errorf("Hierarchy() did not stop at the revisited node")
	}
}

func TestTaskService_ListScopesFilters(t *testing.T) {
	var gotFilters entity.TaskFilters
	taskRepo := &mockTaskRepo{
		listFunc: func(ctx context.Context, filters entity.TaskFilters) ([]*entity.Task, error) {
			gotFilters = filters
			return []*entity.Task{}, nil
		},
	}
	service := newTaskService(taskRepo, &mockHistoryRepo{})

	if _, err := service.List(context.Background(), devActor, entity.TaskFilters{}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if gotFilters.AssignedTo == nil || *gotFilters.AssignedTo != devActor.UserID {
		t.Errorf("List() for own-scope role did not pin the assignee filter")
	}

	if _, err := service.List(context.Background(), pmActor, entity.TaskFilters{}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if gotFilters.TeamID == nil || *gotFilters.TeamID != pmActor.TeamID {
		t.Errorf("List() for team-scope role did not pin the team filter")
	}

	if _, err := service.List(context.Background(), adminActor, entity.TaskFilters{}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if gotFilters.TeamID != nil || gotFilters.AssignedTo != nil {
		t.Errorf("List() for all-scope role narrowed the filters")
	}
}

func TestTaskService_History(t *testing.T) {
	historyRepo := &mockHistoryRepo{
		entries: []*entity.HistoryEntry{{ID: 1, TaskID: 1, ChangeType: entity.ChangeCreate}},
	}
	service := newTaskService(&mockTaskRepo{}, historyRepo)

	entries, err := service.History(context.Background(), devActor, 1)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("History() returned %d entries, want 1", len(entries))
	}

	missingRepo := &mockTaskRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Task, error) { return nil, nil },
	}
	service = newTaskService(missingRepo, historyRepo)
	if _, err := service.History(context.Background(), devActor, 99); !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("History() error = %v, want %v", err, entity.ErrNotFound)
	}
}
