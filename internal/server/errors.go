package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/cowrite/internal/agent/core"
	"github.com/mohammad-safakhou/cowrite/internal/agent/schemas"
	"github.com/mohammad-safakhou/cowrite/internal/helpers"
	"github.com/mohammad-safakhou/cowrite/internal/queue"
	"github.com/mohammad-safakhou/cowrite/internal/research"
	"github.com/mohammad-safakhou/cowrite/internal/sources"
	"github.com/mohammad-safakhou/cowrite/internal/store"
)

// statusOf maps a handler error to its HTTP status. Validation failures are
// checked before AgentError since the runtime wraps them.
func statusOf(err error) int {
	var (
		he      *echo.HTTPError
		missing *core.MissingFieldError
		agent   *core.AgentError
		invoke  *core.InvokeError
		status  *helpers.HTTPStatusError
	)
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.As(err, &missing), errors.Is(err, core.ErrValidationFailed):
		return http.StatusUnprocessableEntity
	case errors.As(err, &agent), errors.As(err, &invoke):
		return http.StatusBadGateway
	case errors.Is(err, research.ErrMissingRequirements),
		errors.Is(err, sources.ErrInvalidURL),
		errors.Is(err, schemas.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, sources.ErrNotHTML):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrNotAdmitted), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.As(err, &status):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := statusOf(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Message != nil {
		msg = fmt.Sprint(he.Message)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"error": msg})
}

func badRequest(format string, args ...any) error {
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

func unavailable(what string) error {
	return echo.NewHTTPError(http.StatusServiceUnavailable, what+" is not configured")
}
