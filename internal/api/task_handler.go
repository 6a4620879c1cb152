// Package api implements the HTTP surface of the task lifecycle interface.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/docpolish/docpolish-api/internal/api/shared"
	"github.com/docpolish/docpolish-api/internal/domain"
	"github.com/docpolish/docpolish-api/internal/service"
)

// PipelineTrigger starts one dequeue-and-execute cycle. Execution proceeds
// asynchronously from the caller's perspective.
type PipelineTrigger interface {
	TriggerOnce(ctx context.Context) (*domain.Task, error)
}

// CreateTaskRequest represents the request body for creating a task.
type CreateTaskRequest struct {
	DocumentID      string                  `json:"document_id"`
	OutputFormat    string                  `json:"output_format" validate:"required"`
	Requirements    string                  `json:"requirements"`
	InlineHTML      string                  `json:"inline_html"`
	ColorizedImages []ColorizedImageRequest `json:"colorized_images"`
}

// ColorizedImageRequest describes one pre-colorized image replacement.
type ColorizedImageRequest struct {
	OriginalSrc   string `json:"original_src"   validate:"required"`
	ColorizedPath string `json:"colorized_path" validate:"required"`
}

// TaskResponse represents the response data for a task.
type TaskResponse struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"`
	Progress  int                `json:"progress"`
	Result    *domain.TaskResult `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	ExpiresAt time.Time          `json:"expires_at"`
}

// DequeueResponse acknowledges a claimed task, or reports no pending work.
type DequeueResponse struct {
	Claimed  bool   `json:"claimed"`
	TaskID   string `json:"task_id,omitempty"`
	TaskType string `json:"task_type,omitempty"`
}

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	taskService *service.TaskService
	trigger     PipelineTrigger
	validator   *validator.Validate
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService *service.TaskService, trigger PipelineTrigger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		trigger:     trigger,
		validator:   validator.New(),
	}
}

// CreateTask handles POST /api/tasks requests.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	payload := domain.TaskPayload{
		DocumentID:   req.DocumentID,
		OutputFormat: req.OutputFormat,
		Requirements: req.Requirements,
		InlineHTML:   req.InlineHTML,
	}
	for _, img := range req.ColorizedImages {
		payload.ColorizedImages = append(payload.ColorizedImages, domain.ColorizedImage{
			OriginalSrc:   img.OriginalSrc,
			ColorizedPath: img.ColorizedPath,
		})
	}

	task, err := h.taskService.CreateTask(r.Context(), payload)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task payload")
			return
		}
		slog.Error("failed to create task", "error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to create task")
		return
	}

	// 202: processing happens asynchronously.
	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(task, 0))
}

// GetTask handles GET /api/tasks/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskIDFromURL(w, r)
	if !ok {
		return
	}

	task, progress, err := h.taskService.GetTask(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		slog.Error("failed to get task", "task_id", id, "error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to get task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task, progress))
}

// CancelTask handles POST /api/tasks/{id}/cancel requests.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.taskService.CancelTask(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrTaskNotFound):
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		case errors.Is(err, service.ErrTaskNotCancellable):
			shared.RespondWithError(w, r, http.StatusConflict, "Task is already finished")
		default:
			slog.Error("failed to cancel task", "task_id", id, "error", err)
			shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to cancel task")
		}
		return
	}

	task, progress, err := h.taskService.GetTask(r.Context(), id)
	if err != nil {
		slog.Error("failed to reload cancelled task", "task_id", id, "error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to cancel task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task, progress))
}

// Dequeue handles POST /api/tasks/dequeue requests: the external scheduler
// trigger. Returns an acknowledgement with the claimed task's id and type,
// or a no-op response when no pending task exists.
func (h *TaskHandler) Dequeue(w http.ResponseWriter, r *http.Request) {
	task, err := h.trigger.TriggerOnce(r.Context())
	if err != nil {
		slog.Error("dequeue trigger failed", "error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to dequeue task")
		return
	}

	if task == nil {
		shared.RespondWithJSON(w, r, http.StatusOK, DequeueResponse{Claimed: false})
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, DequeueResponse{
		Claimed:  true,
		TaskID:   task.ID.String(),
		TaskType: domain.TaskTypeBeautify,
	})
}

func (h *TaskHandler) taskIDFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return uuid.Nil, false
	}
	return id, true
}

// taskToResponse converts a domain.Task to a TaskResponse.
func taskToResponse(task *domain.Task, progress int) TaskResponse {
	return TaskResponse{
		ID:        task.ID.String(),
		Status:    string(task.Status),
		Progress:  progress,
		Result:    task.Result,
		Error:     task.ErrorMessage,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
		ExpiresAt: task.ExpiresAt,
	}
}
