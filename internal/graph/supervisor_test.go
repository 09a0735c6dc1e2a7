package graph

import "testing"

func TestNextRouteFollowsPlanOrder(t *testing.T) {
	s := NewState("u1", "q")
	s.Status = StatusRouting
	s.Plan = []*PlanStep{
		{Kind: StepRetrieval, Status: StepPending},
		{Kind: StepTool, Status: StepPending},
		{Kind: StepGenerate, Status: StepPending},
	}

	r := NextRoute(s)
	if r.Node != NodeRetrieval || r.Step != 0 {
		t.Fatalf("expected retrieval step 0, got %+v", r)
	}

	s.Plan[0].Status = StepDone
	r = NextRoute(s)
	if r.Node != NodeTool || r.Step != 1 {
		t.Fatalf("expected tool step 1, got %+v", r)
	}

	s.Plan[1].Status = StepDone
	r = NextRoute(s)
	if r.Node != NodeGenerator || r.Step != 2 {
		t.Fatalf("expected generator step 2, got %+v", r)
	}
}

func TestNextRouteSkipsFailedSteps(t *testing.T) {
	s := NewState("u1", "q")
	s.Status = StatusRouting
	s.Plan = []*PlanStep{
		{Kind: StepTool, Status: StepFailed},
		{Kind: StepRetrieval, Status: StepPending},
	}

	r := NextRoute(s)
	if r.Node != NodeRetrieval || r.Step != 1 {
		t.Fatalf("expected to skip the failed step, got %+v", r)
	}
}

func TestNextRouteExhaustedPlanWithoutAnswerGoesToGenerator(t *testing.T) {
	s := NewState("u1", "q")
	s.Status = StatusRouting
	s.Plan = []*PlanStep{
		{Kind: StepTool, Status: StepFailed},
		{Kind: StepRetrieval, Status: StepDone},
	}

	r := NextRoute(s)
	if r.Node != NodeGenerator || r.Step != -1 {
		t.Fatalf("expected best-effort generation, got %+v", r)
	}
}

func TestNextRouteEmptyPlanGoesToGenerator(t *testing.T) {
	s := NewState("u1", "q")
	s.Status = StatusRouting

	if r := NextRoute(s); r.Node != NodeGenerator || r.Step != -1 {
		t.Fatalf("expected generator for empty plan, got %+v", r)
	}
}

func TestNextRouteEndsAfterAnswer(t *testing.T) {
	s := NewState("u1", "q")
	s.Status = StatusRouting
	s.FinalAnswer = "done"
	s.Plan = []*PlanStep{{Kind: StepGenerate, Status: StepDone}}

	if r := NextRoute(s); r.Node != NodeEnd {
		t.Fatalf("expected end after final answer, got %+v", r)
	}
}

func TestNextRouteEndsOnTerminalStatus(t *testing.T) {
	for _, status := range []Status{StatusDone, StatusFailed, StatusCached} {
		s := NewState("u1", "q")
		s.Status = status
		if r := NextRoute(s); r.Node != NodeEnd {
			t.Errorf("status %s: expected end, got %+v", status, r)
		}
	}
}
