package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies executor failures surfaced through the snapshot.
type ErrorKind string

const (
	// KindUnsupportedElement should not occur for validated definitions;
	// it remains as the dispatch-level backstop.
	KindUnsupportedElement ErrorKind = "unsupported_element"
	// KindConditionEvaluation marks a gateway condition that failed to
	// evaluate. Evaluation failures fail the instance instead of being
	// silently treated as false.
	KindConditionEvaluation ErrorKind = "condition_evaluation"
	// KindExecutionFailure covers any other error raised while executing
	// an element.
	KindExecutionFailure ErrorKind = "execution_failure"
	// KindInvalidTransition is returned to callers of the control API
	// when the instance state machine forbids the requested move. It is
	// the only kind handed back directly rather than recorded on the
	// instance.
	KindInvalidTransition ErrorKind = "invalid_transition"
)

// ExecutionError carries the error kind, the offending element and a
// message. Element failures are recorded as instance state (status
// failed plus errorMessage), not thrown back to control-API callers.
type ExecutionError struct {
	Kind      ErrorKind
	ElementID string
	Message   string
}

func (e *ExecutionError) Error() string {
	if e.ElementID == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s at element %s: %s", e.Kind, e.ElementID, e.Message)
}

// ErrExecutorClosed is returned by control calls issued after Close.
var ErrExecutorClosed = errors.New("executor closed")
