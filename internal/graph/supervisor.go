package graph

// Node identifies the workflow node the supervisor routes to next.
type Node string

const (
	NodeRetrieval Node = "retrieval"
	NodeTool      Node = "tool"
	NodeGenerator Node = "generator"
	NodeEnd       Node = "end"
)

// Route is the supervisor's decision: which node runs next and, when it
// executes a plan step, that step's index (-1 otherwise).
type Route struct {
	Node Node
	Step int
}

// NextRoute is a pure routing function over the current state. Steps execute
// in declared plan order, never reordered or parallelized, since later steps
// may reference earlier outputs. Failed steps are skipped so the generator
// still runs with whatever evidence was gathered; the request degrades
// rather than aborting.
func NextRoute(s *State) Route {
	if s.Terminal() || s.Status == StatusCached {
		return Route{Node: NodeEnd, Step: -1}
	}

	for i, step := range s.Plan {
		if step.Status != StepPending {
			continue
		}
		switch step.Kind {
		case StepRetrieval:
			return Route{Node: NodeRetrieval, Step: i}
		case StepTool:
			return Route{Node: NodeTool, Step: i}
		case StepGenerate:
			return Route{Node: NodeGenerator, Step: i}
		}
	}

	// Plan exhausted. If the answer was already generated we are done,
	// otherwise synthesize a best-effort answer from partial outputs.
	if s.FinalAnswer != "" {
		return Route{Node: NodeEnd, Step: -1}
	}
	return Route{Node: NodeGenerator, Step: -1}
}
