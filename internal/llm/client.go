package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// EmbeddingDim is the fixed dimension of the embedding space. Query and
// chunk embeddings must share it or similarity scores are meaningless.
const EmbeddingDim = 1536

// Config holds provider settings for the chat and embedding models.
type Config struct {
	APIKey         string
	BaseURL        string // optional, for OpenAI-compatible gateways
	ChatModel      string
	EmbeddingModel string
}

// Client wraps a single OpenAI-compatible provider for both chat completion
// and text embedding.
type Client struct {
	model *openai.LLM
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: API key is required")
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.ChatModel),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: init provider: %w", err)
	}
	return &Client{model: model}, nil
}

// Generate runs a single-prompt completion and returns the full text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt)
	if err != nil {
		return "", fmt.Errorf("llm: generate: %w", err)
	}
	return out, nil
}

// GenerateStream runs a completion, forwarding each token chunk to fn as it
// arrives. The full text is returned once the stream completes.
func (c *Client) GenerateStream(ctx context.Context, prompt string, fn func(ctx context.Context, chunk []byte) error) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, llms.WithStreamingFunc(fn))
	if err != nil {
		return "", fmt.Errorf("llm: generate stream: %w", err)
	}
	return out, nil
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("llm: cannot embed empty text")
	}
	vecs, err := c.model.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("llm: embed: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("llm: expected 1 embedding, got %d", len(vecs))
	}
	if len(vecs[0]) != EmbeddingDim {
		return nil, fmt.Errorf("llm: expected embedding dim %d, got %d", EmbeddingDim, len(vecs[0]))
	}
	return vecs[0], nil
}

// Ping verifies provider connectivity with a minimal embedding call.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Embed(ctx, "ping")
	return err
}
