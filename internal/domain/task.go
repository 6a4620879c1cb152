package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the processing state of a beautification task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Task type constants
const (
	// TaskTypeBeautify represents the document beautification task type.
	TaskTypeBeautify = "document_beautify"
)

// MaxErrorMessageLength caps the persisted, user-visible error string.
// Diagnostic detail beyond this is logged, never surfaced.
const MaxErrorMessageLength = 500

// Common validation errors for Task
var (
	ErrEmptyTaskID      = errors.New("task ID cannot be empty")
	ErrEmptyTaskPayload = errors.New("task payload cannot be empty")
)

// Task represents one beautification job and its persisted lifecycle record.
// A task is created pending, claimed into processing by the scheduler, and
// finished by the worker or the timeout watchdog. Records expire a fixed
// retention window after creation.
type Task struct {
	ID           uuid.UUID   `json:"id"`
	Status       TaskStatus  `json:"status"`
	Payload      TaskPayload `json:"payload"`
	Result       *TaskResult `json:"result,omitempty"`
	ErrorMessage string      `json:"error,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

// NewTask creates a pending Task from the given payload, assigning a fresh ID
// and stamping creation, update, and expiry times. Returns an error if
// validation fails.
func NewTask(payload TaskPayload, retention time.Duration) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.New(),
		Status:    TaskStatusPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(retention),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if !IsValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	return t.Payload.Validate()
}

// IsTerminal reports whether the task is in a state from which no further
// transition is permitted.
func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// IsTerminal reports whether the status is terminal.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the state machine permits moving from the
// current status to the target status. Re-applying the current terminal
// status is allowed so that racing terminal writers stay idempotent.
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	if s == target {
		return true
	}

	switch s {
	case TaskStatusPending:
		return target == TaskStatusProcessing || target == TaskStatusCancelled
	case TaskStatusProcessing:
		return target == TaskStatusCompleted ||
			target == TaskStatusFailed ||
			target == TaskStatusCancelled
	default:
		// Terminal states admit nothing new.
		return false
	}
}

// IsValidTaskStatus checks if the given status is a known TaskStatus.
func IsValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// CapErrorMessage trims a failure description to the persisted length limit.
func CapErrorMessage(msg string) string {
	if len(msg) <= MaxErrorMessageLength {
		return msg
	}
	return msg[:MaxErrorMessageLength]
}
