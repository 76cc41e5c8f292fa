package models

import "time"

// TaskExecution is the externally visible view of one task inside an
// execution snapshot.
type TaskExecution struct {
	TaskID      string         `json:"task_id"`
	ElementID   string         `json:"element_id"`
	TaskName    string         `json:"task_name"`
	TaskType    TaskType       `json:"task_type"`
	Status      TaskStatus     `json:"status"`
	AssignedTo  *string        `json:"assigned_to,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	Notes       string         `json:"notes,omitempty"`
}

// WorkflowExecution is the immutable snapshot returned by the executor.
// It shares no memory with engine-internal state: the polling monitor
// can hold or mutate it freely.
type WorkflowExecution struct {
	InstanceID   string          `json:"instance_id"`
	WorkflowID   string          `json:"workflow_id"`
	Status       InstanceStatus  `json:"status"`
	CurrentStep  string          `json:"current_step,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Variables    map[string]any  `json:"variables,omitempty"`
	Tasks        []TaskExecution `json:"tasks"`
	History      []HistoryEntry  `json:"history"`
}
