package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ElementType identifies the kind of node in the workflow graph.
// The set is closed: definitions carrying any other value are rejected
// when they are validated, before execution ever starts.
type ElementType string

const (
	StartEvent      ElementType = "start_event"
	EndEvent        ElementType = "end_event"
	UserTask        ElementType = "user_task"
	SystemTask      ElementType = "system_task"
	DecisionGateway ElementType = "decision_gateway"
)

// KnownElementType reports whether t is one of the supported element types.
func KnownElementType(t ElementType) bool {
	switch t {
	case StartEvent, EndEvent, UserTask, SystemTask, DecisionGateway:
		return true
	}
	return false
}

// BpmnElement is a node in the workflow graph. Properties is free-form:
// user tasks read "assignee" from it, everything else is carried through
// untouched for collaborators (e.g. requiredSkills for the contact directory).
type BpmnElement struct {
	ID         string         `json:"id" validate:"required"`
	Type       ElementType    `json:"type" validate:"required"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
}

// BpmnConnection is a directed edge between two elements. A connection
// without a condition is the default/fallback edge out of a gateway.
type BpmnConnection struct {
	ID        string `json:"id" validate:"required"`
	SourceID  string `json:"sourceId" validate:"required"`
	TargetID  string `json:"targetId" validate:"required"`
	Condition string `json:"condition,omitempty"`
}

// WorkflowDefinition is the process graph authored by the canvas editor.
// It is immutable once an instance starts executing against it.
type WorkflowDefinition struct {
	ID          string           `json:"id" db:"id" validate:"required"`
	Name        string           `json:"name"`
	Elements    []BpmnElement    `json:"elements" validate:"required,min=1,dive"`
	Connections []BpmnConnection `json:"connections" validate:"dive"`
	Variables   map[string]any   `json:"variables,omitempty"`
	Version     int              `json:"version" db:"version"`
}

var validate = validator.New()

// Validate checks the struct-level constraints and the graph invariants:
// element ids unique, every connection endpoint resolves to an element,
// every element type known.
func (d *WorkflowDefinition) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid definition %q: %w", d.ID, err)
	}
	seen := make(map[string]struct{}, len(d.Elements))
	for _, el := range d.Elements {
		if _, dup := seen[el.ID]; dup {
			return fmt.Errorf("invalid definition %q: duplicate element id %q", d.ID, el.ID)
		}
		seen[el.ID] = struct{}{}
		if !KnownElementType(el.Type) {
			return fmt.Errorf("invalid definition %q: element %q has unsupported type %q", d.ID, el.ID, el.Type)
		}
	}
	for _, conn := range d.Connections {
		if _, ok := seen[conn.SourceID]; !ok {
			return fmt.Errorf("invalid definition %q: connection %q references unknown source %q", d.ID, conn.ID, conn.SourceID)
		}
		if _, ok := seen[conn.TargetID]; !ok {
			return fmt.Errorf("invalid definition %q: connection %q references unknown target %q", d.ID, conn.ID, conn.TargetID)
		}
	}
	return nil
}

// ElementByID returns the element with the given id, if present.
func (d *WorkflowDefinition) ElementByID(id string) (BpmnElement, bool) {
	for _, el := range d.Elements {
		if el.ID == id {
			return el, true
		}
	}
	return BpmnElement{}, false
}

// Outgoing returns the connections leaving the given element, in
// definition order. Gateway routing relies on that ordering.
func (d *WorkflowDefinition) Outgoing(sourceID string) []BpmnConnection {
	var out []BpmnConnection
	for _, conn := range d.Connections {
		if conn.SourceID == sourceID {
			out = append(out, conn)
		}
	}
	return out
}
