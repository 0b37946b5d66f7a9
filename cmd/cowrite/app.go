package main

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/cowrite/config"
	"github.com/mohammad-safakhou/cowrite/internal/agent/core"
	"github.com/mohammad-safakhou/cowrite/internal/embedding"
	"github.com/mohammad-safakhou/cowrite/internal/helpers"
	"github.com/mohammad-safakhou/cowrite/internal/materials"
	"github.com/mohammad-safakhou/cowrite/internal/queue"
	"github.com/mohammad-safakhou/cowrite/internal/research"
	"github.com/mohammad-safakhou/cowrite/internal/server"
	"github.com/mohammad-safakhou/cowrite/internal/sources"
	"github.com/mohammad-safakhou/cowrite/internal/store"
)

const (
	searchRetries = 2
	searchBackoff = 500 * time.Millisecond
)

// app holds the process-wide dependencies of the serve command.
type app struct {
	server  *server.Server
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newRuntime(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger, metrics *core.Metrics) (*core.Runtime, *core.Invoker, error) {
	strategies, err := core.NewStrategies(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	inv := core.NewInvoker(strategies,
		core.WithInvokerLogger(logger.Named("invoker")),
		core.WithInvokerMetrics(metrics))
	return core.NewDefaultRuntime(inv, cfg.RepairModel, logger.Named("runtime"), metrics), inv, nil
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}
	reg := prometheus.DefaultRegisterer
	metrics := core.NewMetrics(reg)

	rt, _, err := newRuntime(ctx, cfg.LLM, logger, metrics)
	if err != nil {
		return nil, err
	}
	queues := queue.NewSet(cfg.Queues, queue.WithLogger(logger.Named("queue")), queue.WithRegisterer(reg))

	emb, err := embedding.New(ctx, cfg.Embedding, logger.Named("embedding"))
	if err != nil {
		return nil, err
	}
	if hc, ok := emb.(embedding.HealthChecker); ok {
		if err := hc.Health(ctx); err != nil {
			logger.Warn("embedding service unhealthy; reranking may fall back to keywords", zap.Error(err))
		}
	}
	ranker := materials.NewRanker(emb,
		materials.WithConcurrency(cfg.Materials.EmbeddingConcurrency),
		materials.WithLogger(logger.Named("ranker")))

	library, err := sources.NewLibrary()
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, library.Close)

	sink, pub, closeStore, err := store.Open(ctx, cfg.Redis)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	client := helpers.NewHTTPClient(cfg.Search.Timeout, searchRetries, searchBackoff)
	pipeline := research.New(rt, queues, ranker, cfg.Materials, cfg.Search,
		research.WithSources(
			sources.NewScholar(cfg.Search, client),
			sources.NewOpenAlex(cfg.Search, client),
			sources.NewNews(cfg.Search, client),
			sources.NewWeb(cfg.Search, client),
			library,
		),
		research.WithSink(sink),
		research.WithPublisher(pub),
		research.WithLogger(logger.Named("research")))

	a.server = server.New(cfg.Server, server.Deps{
		Agents:    rt,
		Research:  pipeline,
		Ranker:    ranker,
		Extractor: sources.NewExtractor(cfg.Search.Timeout),
		Library:   library,
		Queues:    queues,
		Gatherer:  prometheus.DefaultGatherer,
		Logger:    logger.Named("http"),
	})
	return a, nil
}
