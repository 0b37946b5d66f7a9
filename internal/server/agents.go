package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/cowrite/internal/agent/core"
	"github.com/mohammad-safakhou/cowrite/internal/agent/schemas"
	"github.com/mohammad-safakhou/cowrite/internal/queue"
)

type runAgentRequest struct {
	Agent       string   `json:"agent"`
	Prompt      string   `json:"prompt"`
	SchemaKind  string   `json:"schema_kind,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

type runAgentResponse struct {
	Agent     string         `json:"agent"`
	Data      map[string]any `json:"data"`
	RawOutput string         `json:"raw_output,omitempty"`
	Typed     any            `json:"typed,omitempty"`
}

func (s *Server) runAgent(c echo.Context) error {
	if s.deps.Agents == nil {
		return unavailable("agent runtime")
	}
	var req runAgentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body: %v", err)
	}
	if strings.TrimSpace(req.Agent) == "" || strings.TrimSpace(req.Prompt) == "" {
		return badRequest("agent and prompt are required")
	}

	cfg := core.RunConfig{
		AgentName:   req.Agent,
		Prompt:      req.Prompt,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	kind := schemas.Kind(req.SchemaKind)
	if kind != "" {
		schema, ok := schemas.For(kind)
		if !ok {
			return badRequest("unknown schema_kind %q", req.SchemaKind)
		}
		cfg.Schema = schema
	}

	ctx := c.Request().Context()
	res, err := queue.Do(ctx, s.deps.Queues.Generation, func(ctx context.Context) (*core.RunResult, error) {
		return s.deps.Agents.Run(ctx, cfg)
	})
	if err != nil {
		return err
	}

	out := runAgentResponse{Agent: res.Agent, Data: res.Data, RawOutput: res.RawOutput}
	if kind != "" {
		typed, err := schemas.Narrow(kind, res.Data)
		if err != nil {
			return err
		}
		out.Typed = typed
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) runRaw(c echo.Context) error {
	if s.deps.Agents == nil {
		return unavailable("agent runtime")
	}
	var req core.RawConfig
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body: %v", err)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return badRequest("prompt is required")
	}
	res, err := queue.Do(c.Request().Context(), s.deps.Queues.Generation, func(ctx context.Context) (*core.RawResult, error) {
		return s.deps.Agents.RunRaw(ctx, req)
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
