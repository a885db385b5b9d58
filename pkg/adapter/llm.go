package adapter

import (
	"context"

	"github.com/thatamjad/cf-ai-amjad/pkg/model"
	"google.golang.org/genai"
)

// GenerateOptions controls one inference call. A zero value uses the
// client's defaults. Model overrides the client's configured model and is
// how the agent switches to its fallback model.
type GenerateOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// LLM is the inference collaborator. Implementations must be safe for
// concurrent use.
type LLM interface {
	// Generate produces a full completion for the given prompt segments
	Generate(ctx context.Context, segments []model.Segment, opts GenerateOptions) (string, error)

	// GenerateStream produces a completion incrementally, invoking fn for
	// each chunk in order, and returns the full concatenated text. An error
	// from fn aborts the stream.
	GenerateStream(ctx context.Context, segments []model.Segment, opts GenerateOptions, fn func(chunk string) error) (string, error)
}

// ToolCall is one function invocation requested by the model
type ToolCall struct {
	Name string
	Args map[string]any
}

// ToolResponse is one executed tool outcome fed back to the model
type ToolResponse struct {
	Name   string
	Result map[string]any
}

// ToolRound pairs the calls the model requested with the responses the
// tools produced, in request order
type ToolRound struct {
	Calls     []ToolCall
	Responses []ToolResponse
}

// ToolTurn is one inference round against a tool-equipped model: either
// final text or further calls to dispatch
type ToolTurn struct {
	Text  string
	Calls []ToolCall
}

// FunctionCaller is implemented by LLM clients with native function
// calling. Prior rounds replay the call and response exchange so the
// model can continue from the tool outcomes.
type FunctionCaller interface {
	GenerateWithTools(ctx context.Context, segments []model.Segment, declarations []*genai.FunctionDeclaration, rounds []ToolRound, opts GenerateOptions) (*ToolTurn, error)
}

// Embedder is the embedding collaborator
type Embedder interface {
	// Embedding converts text into a float vector
	Embedding(ctx context.Context, text string) ([]float32, error)

	// EmbeddingBatch converts multiple texts in one round trip
	EmbeddingBatch(ctx context.Context, texts []string) ([][]float32, error)
}
