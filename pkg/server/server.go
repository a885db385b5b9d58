package server

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
	"github.com/thatamjad/cf-ai-amjad/pkg/tool"
	"github.com/thatamjad/cf-ai-amjad/pkg/usecase/agent"
	"github.com/thatamjad/cf-ai-amjad/pkg/utils/logging"
	"github.com/valyala/fasthttp"
)

// Server is the thin HTTP adapter over the agent manager and tool registry
type Server struct {
	app      *fiber.App
	agents   *agent.Manager
	registry *tool.Registry
}

// New builds the fiber app and mounts all routes
func New(agents *agent.Manager, registry *tool.Registry) *Server {
	s := &Server{
		agents:   agents,
		registry: registry,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "agent-server",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	api := s.app.Group("/api")
	api.Post("/agents", s.createAgent)
	api.Post("/agents/:id/messages", s.postMessage)
	api.Get("/agents/:id/stream", s.streamEvents)
	api.Get("/agents/:id/history", s.getHistory)
	api.Delete("/agents/:id/history", s.clearHistory)
	api.Get("/agents/:id/context", s.previewContext)
	api.Post("/agents/:id/workflows", s.triggerWorkflow)
	api.Put("/agents/:id/workflows/:workflowID", s.updateWorkflow)
	api.Get("/agents/:id/workflows", s.listWorkflows)
	api.Get("/tools", s.listTools)
	api.Post("/tools/:name/execute", s.executeTool)
	api.Get("/tools/:name/stats", s.toolStats)
	api.Get("/tools/log", s.toolLog)

	return s
}

// App returns the underlying fiber app, used by tests via app.Test()
func (s *Server) App() *fiber.App { return s.app }

// Listen serves HTTP on the given address until shutdown
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// errorHandler maps the error taxonomy onto HTTP statuses
func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, model.ErrRateLimit):
		status = fiber.StatusTooManyRequests
	case errors.Is(err, model.ErrDependency):
		status = fiber.StatusBadGateway
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
	}

	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) createAgent(c *fiber.Ctx) error {
	var req struct {
		ConversationID string `json:"conversationId"`
	}
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	id := model.ConversationID(req.ConversationID)
	if id == "" {
		id = model.NewConversationID()
	}

	a, err := s.agents.Get(c.Context(), id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"conversationId": a.ID(),
	})
}

func (s *Server) postMessage(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
		UserID  string `json:"userId"`
		Stream  bool   `json:"stream"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	a, err := s.agents.Get(c.Context(), model.ConversationID(c.Params("id")))
	if err != nil {
		return err
	}

	var msg *model.Message
	if req.Stream {
		msg, err = a.ProcessMessageStream(c.Context(), req.Content, req.UserID)
	} else {
		msg, err = a.ProcessMessage(c.Context(), req.Content, req.UserID)
	}
	if err != nil {
		return err
	}

	return c.JSON(msg)
}

func (s *Server) streamEvents(c *fiber.Ctx) error {
	a, err := s.agents.Get(c.Context(), model.ConversationID(c.Params("id")))
	if err != nil {
		return err
	}

	conn := a.Attach()
	logger := logging.From(c.Context())

	ctx := c.Context()
	ctx.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")

	ctx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer a.Detach(conn.ID())

		for ev := range conn.Events() {
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, ev.Encode()); err != nil {
				logger.Debug("stream consumer disconnected", "client_id", conn.ID())
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))

	return nil
}

func (s *Server) getHistory(c *fiber.Ctx) error {
	a, err := s.agents.Get(c.Context(), model.ConversationID(c.Params("id")))
	if err != nil {
		return err
	}

	limit := c.QueryInt("limit", 0)
	history, err := a.GetHistory(c.Context(), limit)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"messages": history,
		"count":    len(history),
	})
}

func (s *Server) clearHistory(c *fiber.Ctx) error {
	a, err := s.agents.Get(c.Context(), model.ConversationID(c.Params("id")))
	if err != nil {
		return err
	}

	if err := a.ClearHistory(c.Context()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) previewContext(c *fiber.Ctx) error {
	a, err := s.agents.Get(c.Context(), model.ConversationID(c.Params("id")))
	if err != nil {
		return err
	}

	input := c.Query("input")
	segments, err := a.ContextPreview(c.Context(), input)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"segments":      segments,
		"tokenEstimate": model.EstimateSegmentTokens(segments),
	})
}

func (s *Server) triggerWorkflow(c *fiber.Ctx) error {
	var req struct {
		Name   string         `json:"name"`
		Params map[string]any `json:"params"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	a, err := s.agents.Get(c.Context(), model.ConversationID(c.Params("id")))
	if err != nil {
		return err
	}

	id, err := a.TriggerWorkflow(c.Context(), req.Name, req.Params)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"workflowId": id})
}

func (s *Server) updateWorkflow(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status"`
		Result any    `json:"result"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	a, err := s.agents.Get(c.Context(), model.ConversationID(c.Params("id")))
	if err != nil {
		return err
	}

	if err := a.UpdateWorkflowStatus(c.Context(),
		model.WorkflowID(c.Params("workflowID")),
		model.WorkflowStatus(req.Status),
		req.Result,
	); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) listWorkflows(c *fiber.Ctx) error {
	a, err := s.agents.Get(c.Context(), model.ConversationID(c.Params("id")))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"workflows": a.Workflows()})
}

func (s *Server) listTools(c *fiber.Ctx) error {
	specs := s.registry.Specs()
	out := make([]fiber.Map, 0, len(specs))
	for _, spec := range specs {
		out = append(out, fiber.Map{
			"name":        spec.Name,
			"description": spec.Description,
			"parameters":  spec.Parameters,
		})
	}
	return c.JSON(fiber.Map{"tools": out})
}

func (s *Server) executeTool(c *fiber.Ctx) error {
	var args map[string]any
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&args); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	result := s.registry.Execute(c.Context(), c.Params("name"), args)
	return c.JSON(result)
}

func (s *Server) toolStats(c *fiber.Ctx) error {
	stats, err := s.registry.Stats(c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (s *Server) toolLog(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	return c.JSON(fiber.Map{"entries": s.registry.Log(limit)})
}
