package graph

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// runGenerator synthesizes the final answer from the accumulated evidence
// and writes the result into the semantic cache. Evidence ordering is
// deterministic (plan order for step outputs, similarity-descending for
// chunks) so identical inputs always produce identical prompts. stepIdx is
// the generate step being executed, or -1 when the plan was exhausted.
func (e *Engine) runGenerator(ctx context.Context, s *State, stepIdx int, stream func(ctx context.Context, chunk []byte) error) error {
	if stepIdx >= 0 {
		s.Plan[stepIdx].Status = StepRunning
	}
	s.Status = StatusGenerating

	outputs := make([]StepOutput, len(s.StepOutputs))
	copy(outputs, s.StepOutputs)
	sort.SliceStable(outputs, func(i, j int) bool { return outputs[i].StepIndex < outputs[j].StepIndex })
	evidence := make([]string, len(outputs))
	for i, o := range outputs {
		evidence[i] = o.Output
	}

	chunks := make([]RetrievedChunk, len(s.RetrievedChunks))
	copy(chunks, s.RetrievedChunks)
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	docs := make([]string, len(chunks))
	for i, c := range chunks {
		docs[i] = fmt.Sprintf("Document %d (score %.3f):\n%s", i+1, c.Score, c.Text)
	}

	prompt := generationPrompt(s.Query, evidence, docs)

	var (
		answer string
		err    error
	)
	if stream != nil {
		answer, err = e.LLM.GenerateStream(ctx, prompt, stream)
	} else {
		answer, err = e.LLM.Generate(ctx, prompt)
	}
	if err != nil {
		if stepIdx >= 0 {
			s.Plan[stepIdx].Status = StepFailed
		}
		return &GenerationError{Err: err}
	}
	if answer == "" {
		if stepIdx >= 0 {
			s.Plan[stepIdx].Status = StepFailed
		}
		return &GenerationError{Err: fmt.Errorf("model returned an empty answer")}
	}

	if stepIdx >= 0 {
		s.Plan[stepIdx].Status = StepDone
		s.Plan[stepIdx].Result = answer
	}
	s.FinalAnswer = answer
	s.Status = StatusDone

	// The only cache write path. A failed write costs a future hit, nothing
	// more, so it never fails the request.
	if err := e.Cache.Store(ctx, s.queryEmbedding, answer, e.CacheTTL); err != nil {
		log.Printf("[Generator] Cache write failed: %v", err)
	}
	return nil
}
