package adapter

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
	"google.golang.org/genai"
)

// GeminiClient implements LLM and Embedder using the Gemini API via Vertex AI
type GeminiClient struct {
	client          *genai.Client
	generativeModel string
	embeddingModel  string
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(m string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = m
	}
}

func WithEmbeddingModel(m string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = m
	}
}

// NewGemini creates a new Gemini client
func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// buildRequest converts prompt segments into genai contents. System segments
// are folded into the system instruction; user/assistant segments become the
// conversation contents.
func buildRequest(segments []model.Segment, opts GenerateOptions) ([]*genai.Content, *genai.GenerateContentConfig) {
	var systemParts []string
	contents := make([]*genai.Content, 0, len(segments))

	for _, seg := range segments {
		switch seg.Role {
		case model.RoleSystem:
			systemParts = append(systemParts, seg.Content)
		case model.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(seg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(seg.Content, genai.RoleUser))
		}
	}

	config := &genai.GenerateContentConfig{}
	if len(systemParts) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(systemParts, "\n\n"), "")
	}
	if opts.Temperature > 0 {
		temp := float32(opts.Temperature)
		config.Temperature = &temp
	}
	if opts.TopP > 0 {
		topP := float32(opts.TopP)
		config.TopP = &topP
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}

	return contents, config
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
	}
	return sb.String()
}

// Generate produces a full completion for the given prompt segments
func (g *GeminiClient) Generate(ctx context.Context, segments []model.Segment, opts GenerateOptions) (string, error) {
	contents, config := buildRequest(segments, opts)

	modelID := g.generativeModel
	if opts.Model != "" {
		modelID = opts.Model
	}

	resp, err := g.client.Models.GenerateContent(ctx, modelID, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content", goerr.V("model", modelID))
	}

	return responseText(resp), nil
}

// GenerateStream produces a completion incrementally via the Gemini
// streaming API and returns the full concatenated text
func (g *GeminiClient) GenerateStream(ctx context.Context, segments []model.Segment, opts GenerateOptions, fn func(chunk string) error) (string, error) {
	contents, config := buildRequest(segments, opts)

	modelID := g.generativeModel
	if opts.Model != "" {
		modelID = opts.Model
	}

	var sb strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, modelID, contents, config) {
		if err != nil {
			return "", goerr.Wrap(err, "failed to stream content", goerr.V("model", modelID))
		}

		chunk := responseText(resp)
		if chunk == "" {
			continue
		}
		sb.WriteString(chunk)
		if err := fn(chunk); err != nil {
			return "", goerr.Wrap(err, "stream consumer aborted")
		}
	}

	return sb.String(), nil
}

// GenerateWithTools runs one function-calling round. The declarations
// are offered to the model; prior rounds replay earlier calls and their
// responses so the model continues from the tool outcomes.
func (g *GeminiClient) GenerateWithTools(ctx context.Context, segments []model.Segment, declarations []*genai.FunctionDeclaration, rounds []ToolRound, opts GenerateOptions) (*ToolTurn, error) {
	contents, config := buildRequest(segments, opts)
	if len(declarations) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	for _, round := range rounds {
		callParts := make([]*genai.Part, 0, len(round.Calls))
		for _, call := range round.Calls {
			callParts = append(callParts, &genai.Part{FunctionCall: &genai.FunctionCall{
				Name: call.Name,
				Args: call.Args,
			}})
		}
		contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: callParts})

		respParts := make([]*genai.Part, 0, len(round.Responses))
		for _, resp := range round.Responses {
			respParts = append(respParts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				Name:     resp.Name,
				Response: resp.Result,
			}})
		}
		contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: respParts})
	}

	modelID := g.generativeModel
	if opts.Model != "" {
		modelID = opts.Model
	}

	resp, err := g.client.Models.GenerateContent(ctx, modelID, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content with tools", goerr.V("model", modelID))
	}

	turn := &ToolTurn{Text: responseText(resp)}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.FunctionCall != nil {
				turn.Calls = append(turn.Calls, ToolCall{
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				})
			}
		}
	}

	return turn, nil
}

// Embedding converts text into a float vector
func (g *GeminiClient) Embedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content")
	}

	if len(resp.Embeddings) == 0 {
		return nil, goerr.New("no embedding returned")
	}

	return resp.Embeddings[0].Values, nil
}

// EmbeddingBatch converts multiple texts in one round trip
func (g *GeminiClient) EmbeddingBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, &genai.EmbedContentConfig{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed contents")
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("want", len(texts)), goerr.V("got", len(resp.Embeddings)))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}

	return vectors, nil
}
