package graph

import (
	"context"
	"fmt"
	"log"
)

// runRetrieval executes one retrieval plan step: embed the step's refined
// query, fetch the top-K most similar chunks, and append them to the state,
// deduplicating by chunk ID. Backend failures mark the step failed and are
// recovered by the supervisor, never aborting the request.
func (e *Engine) runRetrieval(ctx context.Context, s *State, stepIdx int) error {
	step := s.Plan[stepIdx]
	step.Status = StepRunning
	s.Status = StatusRetrieving

	query := s.Query
	if refined, ok := step.Parameters["query"].(string); ok && refined != "" {
		query = refined
	}

	emb, err := e.Embedder.Embed(ctx, query)
	if err != nil {
		step.Status = StepFailed
		return &RetrievalError{Err: fmt.Errorf("embed retrieval query: %w", err)}
	}

	chunks, err := e.Index.Query(ctx, emb, e.TopK)
	if err != nil {
		step.Status = StepFailed
		return &RetrievalError{Err: err}
	}

	added := 0
	seen := make(map[string]bool, len(s.RetrievedChunks))
	for _, c := range s.RetrievedChunks {
		seen[c.ChunkID] = true
	}
	for _, c := range chunks {
		if seen[c.ChunkID] {
			continue
		}
		seen[c.ChunkID] = true
		s.RetrievedChunks = append(s.RetrievedChunks, c)
		added++
	}
	log.Printf("[Retrieval] Step %d: %d chunks retrieved, %d new", stepIdx, len(chunks), added)

	step.Status = StepDone
	step.Result = fmt.Sprintf("retrieved %d documents", added)
	s.Status = StatusRouting
	return nil
}
