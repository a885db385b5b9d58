package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/gt"
	"github.com/thatamjad/cf-ai-amjad/pkg/adapter"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
	"github.com/thatamjad/cf-ai-amjad/pkg/repository"
	"github.com/thatamjad/cf-ai-amjad/pkg/server"
	"github.com/thatamjad/cf-ai-amjad/pkg/tool"
	"github.com/thatamjad/cf-ai-amjad/pkg/usecase/agent"
	"github.com/urfave/cli/v3"
)

type stubLLM struct {
	reply string
	fail  bool
}

func (s *stubLLM) Generate(ctx context.Context, segments []model.Segment, opts adapter.GenerateOptions) (string, error) {
	if s.fail {
		return "", errors.New("inference unavailable")
	}
	return s.reply, nil
}

func (s *stubLLM) GenerateStream(ctx context.Context, segments []model.Segment, opts adapter.GenerateOptions, fn func(chunk string) error) (string, error) {
	content, err := s.Generate(ctx, segments, opts)
	if err != nil {
		return "", err
	}
	for _, chunk := range adapter.ChunkWords(content) {
		if err := fn(chunk); err != nil {
			return "", err
		}
	}
	return content, nil
}

type stubEmbedder struct{}

func (s *stubEmbedder) Embedding(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (s *stubEmbedder) EmbeddingBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type pingTool struct{}

func (p *pingTool) Spec() *tool.Spec {
	return &tool.Spec{
		Name:        "ping",
		Description: "Reply with pong",
		Parameters: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"payload": {Type: "string"},
			},
			Required: []string{"payload"},
		},
	}
}

func (p *pingTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	return map[string]any{"pong": args["payload"]}, nil
}

func (p *pingTool) Init(ctx context.Context, client *tool.Client) (bool, error) { return true, nil }
func (p *pingTool) Prompt(ctx context.Context) string                           { return "" }
func (p *pingTool) Flags() []cli.Flag                                           { return nil }

func newServer(t *testing.T) *server.Server {
	t.Helper()
	repo := repository.NewMemory()
	registry := tool.New()
	gt.NoError(t, registry.Register(&pingTool{}))

	agents := agent.NewManager(repo, &stubLLM{reply: "hello from the agent"}, &stubEmbedder{}, agent.Config{
		RetryBase: time.Millisecond,
	}, agent.WithTools(registry))
	t.Cleanup(agents.Close)

	return server.New(agents, registry)
}

func request(t *testing.T, srv *server.Server, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		gt.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.App().Test(req, -1)
	gt.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateAgent(t *testing.T) {
	srv := newServer(t)

	resp := request(t, srv, http.MethodPost, "/api/agents", nil)
	gt.V(t, resp.StatusCode).Equal(http.StatusCreated)

	body := decode[map[string]string](t, resp)
	gt.NotEqual(t, body["conversationId"], "")

	// Explicit id is honored
	resp = request(t, srv, http.MethodPost, "/api/agents", map[string]string{"conversationId": "conv-7"})
	gt.V(t, resp.StatusCode).Equal(http.StatusCreated)
	body = decode[map[string]string](t, resp)
	gt.V(t, body["conversationId"]).Equal("conv-7")
}

func TestMessageRoundTrip(t *testing.T) {
	srv := newServer(t)

	resp := request(t, srv, http.MethodPost, "/api/agents/conv-1/messages", map[string]string{
		"content": "Hello",
		"userId":  "user-1",
	})
	gt.V(t, resp.StatusCode).Equal(http.StatusOK)

	msg := decode[model.Message](t, resp)
	gt.V(t, msg.Role).Equal(model.RoleAssistant)
	gt.V(t, msg.Content).Equal("hello from the agent")

	// History shows both turns
	resp = request(t, srv, http.MethodGet, "/api/agents/conv-1/history", nil)
	gt.V(t, resp.StatusCode).Equal(http.StatusOK)
	history := decode[struct {
		Messages []*model.Message `json:"messages"`
		Count    int              `json:"count"`
	}](t, resp)
	gt.V(t, history.Count).Equal(2)
	gt.V(t, history.Messages[0].Role).Equal(model.RoleUser)
}

func TestEmptyMessageRejected(t *testing.T) {
	srv := newServer(t)

	resp := request(t, srv, http.MethodPost, "/api/agents/conv-1/messages", map[string]string{
		"content": "<>",
	})
	gt.V(t, resp.StatusCode).Equal(http.StatusBadRequest)
}

func TestClearHistory(t *testing.T) {
	srv := newServer(t)

	resp := request(t, srv, http.MethodPost, "/api/agents/conv-1/messages", map[string]string{"content": "Hello"})
	gt.V(t, resp.StatusCode).Equal(http.StatusOK)

	resp = request(t, srv, http.MethodDelete, "/api/agents/conv-1/history", nil)
	gt.V(t, resp.StatusCode).Equal(http.StatusNoContent)

	resp = request(t, srv, http.MethodGet, "/api/agents/conv-1/history", nil)
	history := decode[struct {
		Count int `json:"count"`
	}](t, resp)
	gt.V(t, history.Count).Equal(0)
}

func TestContextPreview(t *testing.T) {
	srv := newServer(t)

	resp := request(t, srv, http.MethodGet, "/api/agents/conv-1/context?input=what+is+up", nil)
	gt.V(t, resp.StatusCode).Equal(http.StatusOK)

	preview := decode[struct {
		Segments      []model.Segment `json:"segments"`
		TokenEstimate int             `json:"tokenEstimate"`
	}](t, resp)
	gt.A(t, preview.Segments).Longer(1)
	gt.V(t, preview.Segments[0].Role).Equal(model.RoleSystem)
	gt.True(t, preview.TokenEstimate > 0)
}

func TestWorkflowEndpoints(t *testing.T) {
	srv := newServer(t)

	resp := request(t, srv, http.MethodPost, "/api/agents/conv-1/workflows", map[string]any{
		"name":   "report",
		"params": map[string]any{"day": "monday"},
	})
	gt.V(t, resp.StatusCode).Equal(http.StatusCreated)
	created := decode[map[string]string](t, resp)
	workflowID := created["workflowId"]
	gt.NotEqual(t, workflowID, "")

	resp = request(t, srv, http.MethodPut, "/api/agents/conv-1/workflows/"+workflowID, map[string]any{
		"status": "running",
	})
	gt.V(t, resp.StatusCode).Equal(http.StatusNoContent)

	// Unknown workflow id maps to 404
	resp = request(t, srv, http.MethodPut, "/api/agents/conv-1/workflows/nope", map[string]any{
		"status": "running",
	})
	gt.V(t, resp.StatusCode).Equal(http.StatusNotFound)

	// Invalid transition maps to 400
	resp = request(t, srv, http.MethodPut, "/api/agents/conv-1/workflows/"+workflowID, map[string]any{
		"status": "pending",
	})
	gt.V(t, resp.StatusCode).Equal(http.StatusBadRequest)

	resp = request(t, srv, http.MethodGet, "/api/agents/conv-1/workflows", nil)
	workflows := decode[struct {
		Workflows []*model.WorkflowRecord `json:"workflows"`
	}](t, resp)
	gt.A(t, workflows.Workflows).Length(1)
	gt.V(t, workflows.Workflows[0].Status).Equal(model.WorkflowRunning)
}

func TestToolEndpoints(t *testing.T) {
	srv := newServer(t)

	resp := request(t, srv, http.MethodGet, "/api/tools", nil)
	gt.V(t, resp.StatusCode).Equal(http.StatusOK)
	tools := decode[struct {
		Tools []map[string]any `json:"tools"`
	}](t, resp)
	gt.A(t, tools.Tools).Length(1)
	gt.V(t, tools.Tools[0]["name"]).Equal("ping")

	resp = request(t, srv, http.MethodPost, "/api/tools/ping/execute", map[string]any{"payload": "hi"})
	gt.V(t, resp.StatusCode).Equal(http.StatusOK)
	result := decode[model.ToolResult](t, resp)
	gt.True(t, result.Success)

	// Validation failure still returns a structured result, not an error status
	resp = request(t, srv, http.MethodPost, "/api/tools/ping/execute", map[string]any{})
	gt.V(t, resp.StatusCode).Equal(http.StatusOK)
	result = decode[model.ToolResult](t, resp)
	gt.False(t, result.Success)
	gt.S(t, result.Error).Contains("required")

	resp = request(t, srv, http.MethodGet, "/api/tools/ping/stats", nil)
	gt.V(t, resp.StatusCode).Equal(http.StatusOK)
	stats := decode[model.ToolStats](t, resp)
	gt.V(t, stats.Calls).Equal(int64(2))

	resp = request(t, srv, http.MethodGet, "/api/tools/missing/stats", nil)
	gt.V(t, resp.StatusCode).Equal(http.StatusNotFound)
}
