package graph

import (
	"context"
	"fmt"
	"log"
)

// runTool executes one tool plan step through the tool invocation layer.
// A failing tool marks the step failed; the supervisor proceeds with the
// remaining plan and the generator works from partial evidence.
func (e *Engine) runTool(ctx context.Context, s *State, stepIdx int) error {
	step := s.Plan[stepIdx]
	step.Status = StepRunning
	s.Status = StatusToolCall

	toolName, _ := step.Parameters["tool"].(string)
	if toolName == "" {
		// Legacy plans name the tool under "name".
		toolName, _ = step.Parameters["name"].(string)
	}
	if toolName == "" {
		step.Status = StepFailed
		return &ToolError{Tool: "?", Err: fmt.Errorf("step %d names no tool", stepIdx)}
	}

	args := make(map[string]interface{}, len(step.Parameters))
	for k, v := range step.Parameters {
		if k == "tool" || k == "name" {
			continue
		}
		args[k] = v
	}

	result, err := e.Tools.Invoke(ctx, toolName, args)
	if err != nil {
		step.Status = StepFailed
		return &ToolError{Tool: toolName, Err: err}
	}
	log.Printf("[Tool] Step %d: %s returned %d bytes", stepIdx, toolName, len(result))

	step.Status = StepDone
	step.Result = result
	s.StepOutputs = append(s.StepOutputs, StepOutput{
		StepIndex: stepIdx,
		Output:    fmt.Sprintf("[%s] %s", toolName, result),
	})
	s.Status = StatusRouting
	return nil
}
