package adapter

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
)

// claudeClient implements LLM using the Anthropic Messages API. Embeddings
// stay on the Gemini client; this backend covers generation only.
type claudeClient struct {
	client       *anthropic.Client
	defaultModel string
}

type ClaudeOption func(*claudeClient)

func WithClaudeModel(m string) ClaudeOption {
	return func(c *claudeClient) {
		c.defaultModel = m
	}
}

// NewClaude creates a new Claude API client
func NewClaude(apiKey string, opts ...ClaudeOption) LLM {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	c := &claudeClient{
		client:       &client,
		defaultModel: string(anthropic.ModelClaude3_5Haiku20241022),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *claudeClient) buildParams(segments []model.Segment, opts GenerateOptions) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam

	for _, seg := range segments {
		switch seg.Role {
		case model.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: seg.Content})
		case model.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(seg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(seg.Content)))
		}
	}

	modelID := c.defaultModel
	if opts.Model != "" {
		modelID = opts.Model
	}

	maxTokens := int64(4096)
	if opts.MaxTokens > 0 {
		maxTokens = int64(opts.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelID),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = anthropic.Float(opts.TopP)
	}

	return params
}

// Generate produces a full completion for the given prompt segments
func (c *claudeClient) Generate(ctx context.Context, segments []model.Segment, opts GenerateOptions) (string, error) {
	params := c.buildParams(segments, opts)

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", goerr.Wrap(err, "failed to call anthropic messages API", goerr.V("model", params.Model))
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	return sb.String(), nil
}

// GenerateStream produces a completion and replays it to fn in word-sized
// chunks. The Messages API supports server-side streaming, but chunking the
// final text keeps the increment contract without duplicating the tool-use
// handling of the non-streaming path.
func (c *claudeClient) GenerateStream(ctx context.Context, segments []model.Segment, opts GenerateOptions, fn func(chunk string) error) (string, error) {
	text, err := c.Generate(ctx, segments, opts)
	if err != nil {
		return "", err
	}

	for _, chunk := range ChunkWords(text) {
		if err := fn(chunk); err != nil {
			return "", goerr.Wrap(err, "stream consumer aborted")
		}
	}

	return text, nil
}

// ChunkWords splits text into word-granularity increments whose
// concatenation reproduces the input exactly, whitespace included.
func ChunkWords(text string) []string {
	if text == "" {
		return nil
	}

	var chunks []string
	start := 0
	inSpace := false
	for i, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t'
		if inSpace && !isSpace {
			chunks = append(chunks, text[start:i])
			start = i
		}
		inSpace = isSpace
	}
	chunks = append(chunks, text[start:])

	return chunks
}
