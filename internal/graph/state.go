// Package graph implements the agentic chat workflow: a planner, a pure
// routing supervisor, retrieval/tool/generator nodes, and the engine that
// sequences them over one request's shared state.
package graph

import (
	"context"
	"time"
)

// Status is the workflow lifecycle state.
type Status string

const (
	StatusPlanning   Status = "planning"
	StatusRouting    Status = "routing"
	StatusRetrieving Status = "retrieving"
	StatusToolCall   Status = "tool_call"
	StatusGenerating Status = "generating"
	StatusCached     Status = "cached"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// StepKind is the closed set of plan step variants. Anything else coming out
// of the planner LLM is rejected at validation time.
type StepKind string

const (
	StepTool      StepKind = "tool"
	StepRetrieval StepKind = "retrieval"
	StepGenerate  StepKind = "generate"
)

// StepStatus tracks one plan step's execution.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepFailed  StepStatus = "failed"
)

// PlanStep is one unit of work produced by planning. Steps are appended
// during planning and mutated in place during execution, never deleted.
type PlanStep struct {
	Kind       StepKind               `json:"kind"`
	Goal       string                 `json:"goal,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Status     StepStatus             `json:"-"`
	Result     string                 `json:"-"`
}

// StepOutput records one executed step's result in insertion order.
type StepOutput struct {
	StepIndex int
	Output    string
}

// RetrievedChunk is one document fragment returned by the vector index.
type RetrievedChunk struct {
	ChunkID  string
	Text     string
	Score    float32
	Metadata map[string]string
}

// State is the single mutable object threaded through every node. It is
// owned exclusively by one in-flight request and discarded afterwards.
type State struct {
	UserID string
	Query  string

	Plan            []*PlanStep
	StepOutputs     []StepOutput
	RetrievedChunks []RetrievedChunk

	CacheHit     bool
	CachedAnswer string
	FinalAnswer  string

	Status Status

	// queryEmbedding is computed once by the planner and reused by the
	// generator for the cache write so both sides key the same vector.
	queryEmbedding []float32
}

// NewState creates a request-scoped state in the initial planning status.
func NewState(userID, query string) *State {
	return &State{
		UserID: userID,
		Query:  query,
		Status: StatusPlanning,
	}
}

// Answer returns whichever of the cached and generated answers is populated.
// Exactly one is set once the state reaches done.
func (s *State) Answer() string {
	if s.CacheHit {
		return s.CachedAnswer
	}
	return s.FinalAnswer
}

// Terminal reports whether the workflow has finished.
func (s *State) Terminal() bool {
	return s.Status == StatusDone || s.Status == StatusFailed
}

// Interfaces over the external collaborators. The engine accepts these and
// holds no global mutable state of its own.

// LLM produces text completions.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string, fn func(ctx context.Context, chunk []byte) error) (string, error)
}

// Embedder maps text into the shared embedding space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SemanticCache maps query embeddings to previously generated answers.
type SemanticCache interface {
	Lookup(ctx context.Context, emb []float32, threshold float32) (answer string, ok bool, err error)
	Store(ctx context.Context, emb []float32, answer string, ttl time.Duration) error
}

// VectorIndex retrieves the chunks most similar to an embedding.
type VectorIndex interface {
	Query(ctx context.Context, emb []float32, topK int) ([]RetrievedChunk, error)
}

// ToolInfo describes one callable tool for planner prompts.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ToolInvoker calls external tools through a uniform protocol.
type ToolInvoker interface {
	Invoke(ctx context.Context, toolName string, params map[string]interface{}) (string, error)
	List(ctx context.Context) ([]ToolInfo, error)
}
