package models

import "time"

// Audit action labels appended by the executor. The history is pure
// observability; the engine never reads it back to make decisions.
const (
	ActionWorkflowStarted   = "workflow_started"
	ActionWorkflowPaused    = "workflow_paused"
	ActionWorkflowResumed   = "workflow_resumed"
	ActionWorkflowStopped   = "workflow_stopped"
	ActionWorkflowCompleted = "workflow_completed"
	ActionElementStarted    = "element_started"
	ActionElementCompleted  = "element_completed"
	ActionElementFailed     = "element_failed"
	ActionTaskCreated       = "task_created"
	ActionTaskCompleted     = "task_completed"
)

// HistoryEntry is one line of the append-only audit trail. Entries are
// insertion-ordered and timestamps are monotonically non-decreasing
// within one instance.
type HistoryEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	ElementID string         `json:"element_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}
