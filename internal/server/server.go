// Package server exposes the agent runtime, the research pipeline and the
// materials engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/cowrite/config"
	"github.com/mohammad-safakhou/cowrite/internal/agent/core"
	"github.com/mohammad-safakhou/cowrite/internal/materials"
	"github.com/mohammad-safakhou/cowrite/internal/queue"
	"github.com/mohammad-safakhou/cowrite/internal/research"
	"github.com/mohammad-safakhou/cowrite/internal/sources"
)

const defaultRequestTimeout = 2 * time.Minute

// Agents is the part of the agent runtime served over HTTP.
type Agents interface {
	Run(ctx context.Context, cfg core.RunConfig) (*core.RunResult, error)
	RunRaw(ctx context.Context, cfg core.RawConfig) (*core.RawResult, error)
}

// Extractor turns a URL into readable text.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) (*sources.Page, error)
}

// Deps are the collaborators behind the routes. Nil members disable the
// routes that need them; they answer 503.
type Deps struct {
	Agents    Agents
	Research  *research.Pipeline
	Ranker    *materials.Ranker
	Extractor Extractor
	Library   *sources.Library
	Queues    *queue.Queues
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
}

type Server struct {
	echo    *echo.Echo
	deps    Deps
	logger  *zap.Logger
	timeout time.Duration
}

func New(cfg config.ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Queues == nil {
		deps.Queues = queue.NewUnboundedSet()
	}
	if deps.Ranker == nil {
		deps.Ranker = materials.NewRanker(nil)
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		echo:    echo.New(),
		deps:    deps,
		logger:  deps.Logger,
		timeout: cfg.RequestTimeout,
	}
	if s.timeout <= 0 {
		s.timeout = defaultRequestTimeout
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger())

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api")
	api.POST("/agents/run", s.runAgent, s.withTimeout)
	api.POST("/llm/raw", s.runRaw, s.withTimeout)

	api.POST("/research", s.runResearch, s.withTimeout)
	api.POST("/research/stream", s.streamResearch)
	api.GET("/research/:id", s.getResearch, s.withTimeout)

	api.POST("/materials/clean", s.cleanMaterials)
	api.POST("/materials/rerank", s.rerankMaterials, s.withTimeout)
	api.POST("/materials/extract", s.extractPage, s.withTimeout)

	api.POST("/library", s.addToLibrary)
	api.GET("/library/search", s.searchLibrary, s.withTimeout)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// withTimeout bounds the request context of non-streaming routes.
func (s *Server) withTimeout(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), s.timeout)
		defer cancel()
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("request_id", v.RequestID),
			}
			switch {
			case v.Error != nil && v.Status >= http.StatusInternalServerError:
				s.logger.Error("request failed", append(fields, zap.Error(v.Error))...)
			case v.Error != nil:
				s.logger.Warn("request rejected", append(fields, zap.Error(v.Error))...)
			default:
				s.logger.Info("request", fields...)
			}
			return nil
		},
	})
}
