package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// runPlanner embeds the query, consults the semantic cache, and on a miss
// asks the LLM for a step plan. A cache hit is a terminal short-circuit:
// the engine skips straight to done without routing.
func (e *Engine) runPlanner(ctx context.Context, s *State) error {
	emb, err := e.Embedder.Embed(ctx, s.Query)
	if err != nil {
		return &PlanningError{Reason: "query embedding", Err: err}
	}
	s.queryEmbedding = emb

	answer, hit, err := e.Cache.Lookup(ctx, emb, e.CacheThreshold)
	switch {
	case err != nil:
		// Unreachable cache is a forced miss, not a request failure.
		log.Printf("[Planner] Cache unavailable, proceeding without it: %v", err)
		cacheLookupsTotal.WithLabelValues("error").Inc()
	case hit:
		log.Printf("[Planner] Cache hit for user %s", s.UserID)
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		s.CacheHit = true
		s.CachedAnswer = answer
		s.Status = StatusCached
		return nil
	default:
		cacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	toolsJSON := e.toolCatalog(ctx)
	raw, err := e.LLM.Generate(ctx, planningPrompt(s.Query, toolsJSON))
	if err != nil {
		return &PlanningError{Reason: "planner LLM call", Err: err}
	}

	plan, err := parsePlan(raw)
	if err != nil {
		return &PlanningError{Reason: "invalid plan", Err: err}
	}
	log.Printf("[Planner] Generated plan with %d steps", len(plan))

	s.Plan = plan
	s.Status = StatusRouting
	return nil
}

// toolCatalog returns a JSON summary of the available tools for the planning
// prompt. Tool servers being down just shrinks the catalog.
func (e *Engine) toolCatalog(ctx context.Context) string {
	infos, err := e.Tools.List(ctx)
	if err != nil || len(infos) == 0 {
		return "[]"
	}
	data, err := json.Marshal(infos)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// parsePlan decodes the planner LLM's JSON output into validated plan steps.
// Unknown step kinds are rejected here rather than at execution time. An
// explicitly empty plan is valid and routes straight to the generator.
func parsePlan(raw string) ([]*PlanStep, error) {
	cleaned := stripCodeFence(raw)

	var payload struct {
		Steps []*PlanStep `json:"steps"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("decode plan JSON: %w", err)
	}

	for i, step := range payload.Steps {
		if step == nil {
			return nil, fmt.Errorf("step %d is null", i)
		}
		switch step.Kind {
		case StepTool, StepRetrieval, StepGenerate:
		default:
			return nil, fmt.Errorf("step %d has unrecognized kind %q", i, step.Kind)
		}
		step.Status = StepPending
	}
	return payload.Steps, nil
}

// stripCodeFence removes a surrounding markdown fence, which chat models add
// around JSON even when told not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
