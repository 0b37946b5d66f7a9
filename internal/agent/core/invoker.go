package core

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/cowrite/provider"
)

var coreTracer = otel.Tracer("cowrite/agent/core")

// Generator produces raw text for a request. *Invoker is the production
// implementation; tests substitute scripted fakes.
type Generator interface {
	Invoke(ctx context.Context, req provider.Request) (string, error)
}

// Strategy is one entry of the ordered provider list. DefaultModel replaces a
// blank Request.Model for this strategy only.
type Strategy struct {
	Name         string
	Provider     provider.Provider
	DefaultModel string
}

// FirstSuccess runs attempt for each strategy in order and returns the first
// success. When every strategy fails the result is an *InvokeError carrying
// each failure in order. Each strategy is tried exactly once.
func FirstSuccess[T any](ctx context.Context, strategies []Strategy, attempt func(context.Context, Strategy) (T, error)) (T, error) {
	var zero T
	if len(strategies) == 0 {
		return zero, ErrNoStrategies
	}
	failures := make([]*StrategyError, 0, len(strategies))
	for _, s := range strategies {
		out, err := attempt(ctx, s)
		if err == nil {
			return out, nil
		}
		failures = append(failures, &StrategyError{Strategy: s.Name, Err: err})
	}
	return zero, &InvokeError{Attempts: failures}
}

// Invoker sends a request to the primary provider and fails over to the next
// strategy on any error. It holds no per-call state.
type Invoker struct {
	strategies []Strategy
	logger     *zap.Logger
	metrics    *Metrics
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithInvokerLogger sets the logger used for failover diagnostics.
func WithInvokerLogger(l *zap.Logger) InvokerOption {
	return func(i *Invoker) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithInvokerMetrics records attempt counters and latency.
func WithInvokerMetrics(m *Metrics) InvokerOption {
	return func(i *Invoker) { i.metrics = m }
}

// NewInvoker creates an Invoker over strategies, tried in the given order.
func NewInvoker(strategies []Strategy, opts ...InvokerOption) *Invoker {
	i := &Invoker{
		strategies: append([]Strategy(nil), strategies...),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Strategies returns the configured strategy names in order.
func (i *Invoker) Strategies() []string {
	names := make([]string, len(i.strategies))
	for idx, s := range i.strategies {
		names[idx] = s.Name
	}
	return names
}

// Invoke returns the text of the first provider that succeeds.
func (i *Invoker) Invoke(ctx context.Context, req provider.Request) (string, error) {
	return FirstSuccess(ctx, i.strategies, func(ctx context.Context, s Strategy) (string, error) {
		attemptReq := req
		if attemptReq.Model == "" {
			attemptReq.Model = s.DefaultModel
		}
		ctx, span := coreTracer.Start(ctx, "llm.invoke", trace.WithAttributes(
			attribute.String("llm.strategy", s.Name),
			attribute.String("llm.model", attemptReq.Model),
			attribute.Int("llm.prompt_chars", len(attemptReq.Prompt)),
		))
		defer span.End()

		started := time.Now()
		out, err := s.Provider.Generate(ctx, attemptReq)
		i.metrics.observeInvocation(s.Name, started, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			i.logger.Warn("provider attempt failed",
				zap.String("strategy", s.Name),
				zap.String("model", attemptReq.Model),
				zap.Duration("elapsed", time.Since(started)),
				zap.Error(err),
			)
			return "", err
		}
		span.SetAttributes(attribute.Int("llm.output_chars", len(out)))
		return out, nil
	})
}
