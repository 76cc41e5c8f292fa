// Package condition evaluates gateway branch conditions against the
// variables of a workflow instance.
//
// Conditions are ordinary expr expressions ("approved", "amount > 1000",
// "approved && !escalated"). They are compiled once when the definition
// is loaded; a condition that does not parse rejects the definition up
// front instead of failing mid-traversal. A reference to a variable the
// instance does not carry evaluates to nil, which is falsy — only real
// evaluation failures surface as errors.
package condition

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/models"
)

// EvalError reports a condition that failed to evaluate at gateway time.
type EvalError struct {
	ConnectionID string
	Condition    string
	Err          error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("condition %q on connection %s: %v", e.Condition, e.ConnectionID, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// Evaluator holds the compiled condition programs for one definition.
type Evaluator struct {
	programs map[string]*vm.Program // keyed by connection id; absent for condition-less edges
}

// NewEvaluator compiles every connection condition in the definition.
// An empty condition is always-taken and compiles to nothing.
func NewEvaluator(def *models.WorkflowDefinition) (*Evaluator, error) {
	ev := &Evaluator{programs: make(map[string]*vm.Program)}
	for _, conn := range def.Connections {
		if conn.Condition == "" {
			continue
		}
		program, err := expr.Compile(conn.Condition)
		if err != nil {
			return nil, fmt.Errorf("compile condition %q on connection %s: %w", conn.Condition, conn.ID, err)
		}
		ev.programs[conn.ID] = program
	}
	return ev, nil
}

// Evaluate runs the compiled condition for the given connection against
// the variables map and reports its truthiness. Connections without a
// condition evaluate to true.
func (ev *Evaluator) Evaluate(conn models.BpmnConnection, variables map[string]any) (bool, error) {
	program, ok := ev.programs[conn.ID]
	if !ok {
		return true, nil
	}
	env := variables
	if env == nil {
		env = map[string]any{}
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, &EvalError{ConnectionID: conn.ID, Condition: conn.Condition, Err: err}
	}
	return Truthy(out), nil
}

// Truthy converts an arbitrary expression result to a branch decision,
// mirroring how the canvas editor's preview treats condition values:
// nil, false, zero numbers and empty strings are false, everything else
// is true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case float32:
		return t != 0
	default:
		return true
	}
}
