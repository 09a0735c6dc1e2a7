package graph

import (
	"errors"
	"fmt"
)

// ErrMaxStepsExceeded reports runaway routing: the engine hit its step bound
// before reaching a terminal state. Fatal for the request.
var ErrMaxStepsExceeded = errors.New("maximum workflow steps exceeded")

// PlanningError reports that the planner LLM produced an unparsable or
// invalid plan. Fatal: an invalid plan is never silently replaced by an
// empty one.
type PlanningError struct {
	Reason string
	Err    error
}

func (e *PlanningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("planning failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("planning failed: %s", e.Reason)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// RetrievalError reports a failed retrieval step. Recovered locally: the
// supervisor continues with partial evidence.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string { return fmt.Sprintf("retrieval failed: %v", e.Err) }
func (e *RetrievalError) Unwrap() error { return e.Err }

// ToolError reports a failed tool step. Recovered locally like RetrievalError.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string { return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err) }
func (e *ToolError) Unwrap() error { return e.Err }

// GenerationError reports that the final synthesis call failed after
// evidence was gathered. Fatal: there is no partial answer to fall back to.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation failed: %v", e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

// IsFatal reports whether err aborts the whole request. Step-level failures
// (retrieval, tool) are not fatal; node-entry failures and the step bound are.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var pe *PlanningError
	var ge *GenerationError
	return errors.As(err, &pe) || errors.As(err, &ge) || errors.Is(err, ErrMaxStepsExceeded)
}
