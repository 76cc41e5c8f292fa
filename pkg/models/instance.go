package models

import "time"

type InstanceStatus string

const (
	InstancePending   InstanceStatus = "pending"
	InstanceRunning   InstanceStatus = "running"
	InstancePaused    InstanceStatus = "paused"
	InstanceCompleted InstanceStatus = "completed"
	InstanceCancelled InstanceStatus = "cancelled"
	InstanceFailed    InstanceStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
// A failed or cancelled instance is abandoned; retrying means creating
// a new instance.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceCompleted || s == InstanceCancelled || s == InstanceFailed
}

// CanTransition reports whether moving from s to next is a legal step of
// the instance state machine: pending→running, running→paused/completed/
// cancelled/failed, paused→running/cancelled, and stop of a never-started
// instance (pending→cancelled).
func (s InstanceStatus) CanTransition(next InstanceStatus) bool {
	switch s {
	case InstancePending:
		return next == InstanceRunning || next == InstanceCancelled
	case InstanceRunning:
		return next == InstancePaused || next == InstanceCompleted ||
			next == InstanceCancelled || next == InstanceFailed
	case InstancePaused:
		return next == InstanceRunning || next == InstanceCancelled
	}
	return false
}

// WorkflowInstance is one execution of a workflow definition. The record
// is created and persisted by the caller; the executor mutates it in
// place but never owns its disposal.
type WorkflowInstance struct {
	ID           string         `json:"id" db:"id"`
	WorkflowID   string         `json:"workflow_id" db:"workflow_id"`
	Status       InstanceStatus `json:"status" db:"status"`
	Variables    map[string]any `json:"variables,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty" db:"started_at"`
	PausedAt     *time.Time     `json:"paused_at,omitempty" db:"paused_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	ErrorMessage string         `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}
