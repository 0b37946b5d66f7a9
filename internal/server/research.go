package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/cowrite/internal/research"
)

func (s *Server) bindResearch(c echo.Context) (research.Request, error) {
	var req research.Request
	if err := c.Bind(&req); err != nil {
		return req, badRequest("invalid body: %v", err)
	}
	return req, nil
}

func (s *Server) runResearch(c echo.Context) error {
	if s.deps.Research == nil {
		return unavailable("research pipeline")
	}
	req, err := s.bindResearch(c)
	if err != nil {
		return err
	}
	res, err := s.deps.Research.Run(c.Request().Context(), req, nil)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// streamResearch reports each stage as one SSE data frame. Failures after
// the stream started arrive as an error stage, not as an HTTP status.
func (s *Server) streamResearch(c echo.Context) error {
	if s.deps.Research == nil {
		return unavailable("research pipeline")
	}
	req, err := s.bindResearch(c)
	if err != nil {
		return err
	}

	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	// Once ctx is done no frame is written, the error stage included. That
	// covers client disconnects; a server-side stream deadline would need its
	// own context for writes.
	send := func(ev research.Event) {
		if ctx.Err() != nil {
			return
		}
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Warn("encode research event", zap.String("stage", string(ev.Stage)), zap.Error(err))
			return
		}
		if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			s.logger.Debug("research stream write", zap.Error(err))
			return
		}
		flusher.Flush()
	}

	if _, err := s.deps.Research.Run(ctx, req, send); err != nil {
		s.logger.Info("research stream ended with error", zap.Error(err))
	}
	return nil
}

func (s *Server) getResearch(c echo.Context) error {
	if s.deps.Research == nil {
		return unavailable("research pipeline")
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return badRequest("id is required")
	}
	res, err := s.deps.Research.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
