package models

import "time"

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskSkipped    TaskStatus = "skipped"
)

// Active reports whether the task still counts against workflow
// completion: end events only complete the instance when no task
// anywhere in the graph is active.
func (s TaskStatus) Active() bool {
	return s == TaskPending || s == TaskInProgress
}

type TaskType string

const (
	TaskTypeUser   TaskType = "user_task"
	TaskTypeSystem TaskType = "system_task"
)

// WorkflowTask is a unit of work created when a task-type element
// executes. Tasks are never removed, only transitioned; stop() forces
// still-active tasks to skipped.
type WorkflowTask struct {
	ID                string         `json:"id"`
	InstanceID        string         `json:"instance_id"`
	ElementID         string         `json:"element_id"`
	TaskName          string         `json:"task_name"`
	TaskType          TaskType       `json:"task_type"`
	AssignedContactID *string        `json:"assigned_contact_id,omitempty"`
	Status            TaskStatus     `json:"status"`
	Input             map[string]any `json:"input,omitempty"`
	Output            map[string]any `json:"output,omitempty"`
	StartedAt         *time.Time     `json:"started_at,omitempty"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	DueDate           *time.Time     `json:"due_date,omitempty"`
	Notes             string         `json:"notes,omitempty"`
}
