package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kpicloud/taskflow/internal/application/service"
	"github.com/kpicloud/taskflow/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	authService     service.AuthService
	taskService     service.TaskService
	approvalService service.ApprovalService
	importService   service.ImportService
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	authService service.AuthService,
	taskService service.TaskService,
	approvalService service.ApprovalService,
	importService service.ImportService,
	logger Logger,
) *Handlers {
	return &Handlers{
		authService:     authService,
		taskService:     taskService,
		approvalService: approvalService,
		importService:   importService,
		logger:          logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// respondError maps error kinds to HTTP status codes. Denied permissions
// surface as 403; a missing or invalid token is already rejected with 401
// by the auth middleware.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entity.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, entity.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrConflict), errors.Is(err, entity.ErrAlreadyProcessed):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(status, Response{Success: false, Error: "internal error"})
		return
	}

	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid id"})
		return 0, false
	}
	return id, true
}

func queryInt64(c *gin.Context, name string) *int64 {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// LoginRequest represents the login payload
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a successful login
type LoginResponse struct {
	Token string       `json:"token"`
	User  *entity.User `json:"user"`
}

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "username and password are required"})
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, entity.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "invalid credentials"})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: LoginResponse{Token: token, User: user}})
}

// taskFiltersFromQuery binds the task list query parameters.
func taskFiltersFromQuery(c *gin.Context) entity.TaskFilters {
	return entity.TaskFilters{
		TeamID:          queryInt64(c, "team_id"),
		AssignedTo:      queryInt64(c, "assigned_to"),
		ParentTaskID:    queryInt64(c, "parent_task_id"),
		Status:          entity.TaskStatus(c.Query("status")),
		TaskLevel:       entity.TaskLevel(c.Query("task_level")),
		TopLevelOnly:    c.Query("top_level") == "true",
		IncludeInactive: c.Query("include_inactive") == "true",
	}
}

// ListTasks handles GET /api/v1/tasks
func (h *Handlers) ListTasks(c *gin.Context) {
	tasks, err := h.taskService.List(c.Request.Context(), callerIdentity(c), taskFiltersFromQuery(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: tasks})
}

// GetTask handles GET /api/v1/tasks/:id
func (h *Handlers) GetTask(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	task, err := h.taskService.Get(c.Request.Context(), callerIdentity(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: task})
}

// CreateTask handles POST /api/v1/tasks
func (h *Handlers) CreateTask(c *gin.Context) {
	var input service.CreateTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), callerIdentity(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: task})
}

// UpdateTaskRequest represents the mutable fields of a task update
type UpdateTaskRequest struct {
	Title            *string          `json:"title"`
	Description      *string          `json:"description"`
	CategoryID       *int64           `json:"category_id"`
	AssignedTo       *int64           `json:"assigned_to"`
	TeamID           *int64           `json:"team_id"`
	PlannedStartDate *string          `json:"planned_start_date"`
	PlannedEndDate   *string          `json:"planned_end_date"`
	ActualStartDate  *string          `json:"actual_start_date"`
	ActualEndDate    *string          `json:"actual_end_date"`
	Priority         *entity.Priority `json:"priority"`
	Notes            *string          `json:"notes"`
}

// UpdateTask handles PUT /api/v1/tasks/:id
func (h *Handlers) UpdateTask(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	patch := entity.TaskPatch{
		Title:            req.Title,
		Description:      req.Description,
		CategoryID:       req.CategoryID,
		AssignedTo:       req.AssignedTo,
		TeamID:           req.TeamID,
		PlannedStartDate: req.PlannedStartDate,
		PlannedEndDate:   req.PlannedEndDate,
		ActualStartDate:  req.ActualStartDate,
		ActualEndDate:    req.ActualEndDate,
		Priority:         req.Priority,
		Notes:            req.Notes,
	}

	task, err := h.taskService.Update(c.Request.Context(), callerIdentity(c), id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: task})
}

// UpdateProgressRequest represents a progress update
type UpdateProgressRequest struct {
	ProgressPercentage *float64 `json:"progress_percentage" binding:"required"`
	Notes              string   `json:"notes"`
}

// UpdateTaskProgress handles PUT /api/v1/tasks/:id/progress
func (h *Handlers) UpdateTaskProgress(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "progress_percentage is required"})
		return
	}

	task, err := h.taskService.UpdateProgress(c.Request.Context(), callerIdentity(c), id, *req.ProgressPercentage, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: task})
}

// DeleteTask handles DELETE /api/v1/tasks/:id
func (h *Handlers) DeleteTask(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.taskService.Delete(c.Request.Context(), callerIdentity(c), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// TaskHierarchy handles GET /api/v1/tasks/hierarchy
func (h *Handlers) TaskHierarchy(c *gin.Context) {
	nodes, err := h.taskService.Hierarchy(c.Request.Context(), callerIdentity(c), queryInt64(c, "root_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: nodes})
}

// TaskStatistics handles GET /api/v1/tasks/statistics
func (h *Handlers) TaskStatistics(c *gin.Context) {
	filters := entity.StatsFilters{
		TeamID: queryInt64(c, "team_id"),
		UserID: queryInt64(c, "user_id"),
	}

	stats, err := h.taskService.Statistics(c.Request.Context(), callerIdentity(c), filters)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: stats})
}

// TaskHistory handles GET /api/v1/tasks/:id/history
func (h *Handlers) TaskHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	entries, err := h.taskService.History(c.Request.Context(), callerIdentity(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// TaskApprovals handles GET /api/v1/tasks/:id/approvals
func (h *Handlers) TaskApprovals(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	approvals, err := h.approvalService.ListForTask(c.Request.Context(), callerIdentity(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: approvals})
}

// ImportTasks handles POST /api/v1/tasks/import
func (h *Handlers) ImportTasks(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "file field is required"})
		return
	}
	defer file.Close()

	result, err := h.importService.ImportTasks(c.Request.Context(), callerIdentity(c), file)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// PendingApprovals handles GET /api/v1/approvals/pending
func (h *Handlers) PendingApprovals(c *gin.Context) {
	filters := entity.PendingFilters{
		TeamID: queryInt64(c, "team_id"),
		Level:  entity.ApprovalLevel(c.Query("level")),
	}

	approvals, err := h.approvalService.Pending(c.Request.Context(), callerIdentity(c), filters)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: approvals})
}

// ApprovalStatistics handles GET /api/v1/approvals/statistics
func (h *Handlers) ApprovalStatistics(c *gin.Context) {
	filters := entity.ApprovalStatsFilters{
		TeamID:     queryInt64(c, "team_id"),
		ApproverID: queryInt64(c, "approver_id"),
		DateFrom:   c.Query("date_from"),
		DateTo:     c.Query("date_to"),
	}

	stats, err := h.approvalService.Statistics(c.Request.Context(), callerIdentity(c), filters)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: stats})
}

// CreateApprovalRequestBody represents the approval request payload.
// Approver, level and deadline are optional overrides of the default
// routing for the task's level.
type CreateApprovalRequestBody struct {
	TaskID        int64                `json:"task_id" binding:"required"`
	ApproverID    *int64               `json:"approver_id"`
	ApprovalLevel entity.ApprovalLevel `json:"approval_level"`
	Deadline      string               `json:"deadline"`
}

// CreateApprovalRequest handles POST /api/v1/approvals/request
func (h *Handlers) CreateApprovalRequest(c *gin.Context) {
	var req CreateApprovalRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "task_id is required"})
		return
	}

	approval, err := h.approvalService.CreateRequest(c.Request.Context(), callerIdentity(c), service.CreateRequestInput{
		TaskID:     req.TaskID,
		ApproverID: req.ApproverID,
		Level:      req.ApprovalLevel,
		Deadline:   req.Deadline,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: approval})
}

// ProcessApprovalRequest represents a single approval decision
type ProcessApprovalRequest struct {
	Action          entity.ApprovalAction `json:"action" binding:"required"`
	Notes           string                `json:"notes"`
	RejectionReason string                `json:"rejection_reason"`
}

// ProcessApproval handles POST /api/v1/approvals/:id/process
func (h *Handlers) ProcessApproval(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req ProcessApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "action is required"})
		return
	}

	approval, err := h.approvalService.Process(c.Request.Context(), callerIdentity(c), id, req.Action, req.Notes, req.RejectionReason)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: approval})
}

// BulkProcessRequest represents a batch of approval decisions
type BulkProcessRequest struct {
	ApprovalIDs     []int64               `json:"approval_ids" binding:"required"`
	Action          entity.ApprovalAction `json:"action" binding:"required"`
	Notes           string                `json:"notes"`
	RejectionReason string                `json:"rejection_reason"`
}

// BulkProcessApprovals handles POST /api/v1/approvals/bulk
func (h *Handlers) BulkProcessApprovals(c *gin.Context) {
	var req BulkProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "approval_ids and action are required"})
		return
	}

	result, err := h.approvalService.BulkProcess(c.Request.Context(), callerIdentity(c), req.ApprovalIDs, req.Action, req.Notes, req.RejectionReason)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// requireAdmin guards maintenance endpoints.
func (h *Handlers) requireAdmin(c *gin.Context) bool {
	if callerIdentity(c).RoleCode != "ADMIN" {
		c.JSON(http.StatusForbidden, Response{Success: false, Error: "administrator role required"})
		return false
	}
	return true
}

// AutoCreateApprovals handles POST /api/v1/approvals/auto-create
func (h *Handlers) AutoCreateApprovals(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	created, err := h.approvalService.AutoCreateRequests(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"created": created}})
}

// EscalateApprovals handles POST /api/v1/approvals/escalate
func (h *Handlers) EscalateApprovals(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	escalated, err := h.approvalService.EscalateOverdue(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"escalated": escalated}})
}
