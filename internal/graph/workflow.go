package graph

import (
	"context"
	"log"
	"time"
)

// Engine sequences planner, supervisor, and the execution nodes over one
// request's state. It holds only external clients and configuration; all
// per-request state lives in State, so concurrent requests never share
// mutable data.
type Engine struct {
	LLM      LLM
	Embedder Embedder
	Cache    SemanticCache
	Index    VectorIndex
	Tools    ToolInvoker

	CacheThreshold float32
	CacheTTL       time.Duration
	TopK           int
	MaxSteps       int
}

// Run executes the full workflow for one chat request and returns the final
// state. The returned error is non-nil only for fatal failures; step-level
// failures degrade the answer instead.
func (e *Engine) Run(ctx context.Context, userID, query string) (*State, error) {
	return e.run(ctx, userID, query, nil)
}

// RunStream behaves like Run but forwards generated answer tokens to stream
// as they arrive. On a cache hit the full cached answer is delivered in a
// single call, since there is nothing to stream-generate.
func (e *Engine) RunStream(ctx context.Context, userID, query string, stream func(ctx context.Context, chunk []byte) error) (*State, error) {
	return e.run(ctx, userID, query, stream)
}

func (e *Engine) run(ctx context.Context, userID, query string, stream func(ctx context.Context, chunk []byte) error) (*State, error) {
	s := NewState(userID, query)

	if err := e.timed(ctx, "planner", func() error { return e.runPlanner(ctx, s) }); err != nil {
		s.Status = StatusFailed
		workflowRequestsTotal.WithLabelValues("failed").Inc()
		return s, err
	}

	// Only the planner may declare a terminal short-circuit, and only on a
	// cache hit.
	if s.CacheHit {
		if stream != nil {
			if err := stream(ctx, []byte(s.CachedAnswer)); err != nil {
				log.Printf("[Workflow] Stream delivery of cached answer failed: %v", err)
			}
		}
		s.Status = StatusDone
		workflowRequestsTotal.WithLabelValues("cached").Inc()
		return s, nil
	}

	steps := 0
	for !s.Terminal() {
		if err := ctx.Err(); err != nil {
			s.Status = StatusFailed
			workflowRequestsTotal.WithLabelValues("cancelled").Inc()
			return s, err
		}
		steps++
		if steps > e.MaxSteps {
			s.Status = StatusFailed
			workflowRequestsTotal.WithLabelValues("failed").Inc()
			return s, ErrMaxStepsExceeded
		}

		route := NextRoute(s)
		var err error
		switch route.Node {
		case NodeRetrieval:
			err = e.timed(ctx, "retrieval", func() error { return e.runRetrieval(ctx, s, route.Step) })
		case NodeTool:
			err = e.timed(ctx, "tool", func() error { return e.runTool(ctx, s, route.Step) })
		case NodeGenerator:
			err = e.timed(ctx, "generator", func() error { return e.runGenerator(ctx, s, route.Step, stream) })
		case NodeEnd:
			s.Status = StatusDone
		}

		if err != nil {
			if IsFatal(err) {
				s.Status = StatusFailed
				workflowRequestsTotal.WithLabelValues("failed").Inc()
				return s, err
			}
			// Step-level failure: the supervisor proceeds with partial
			// evidence and the user sees degraded quality, not an error.
			log.Printf("[Workflow] Step failure recovered: %v", err)
			s.Status = StatusRouting
		}
	}

	workflowRequestsTotal.WithLabelValues("done").Inc()
	return s, nil
}

func (e *Engine) timed(ctx context.Context, node string, fn func() error) error {
	start := time.Now()
	err := fn()
	nodeDurationSeconds.WithLabelValues(node).Observe(time.Since(start).Seconds())
	return err
}
