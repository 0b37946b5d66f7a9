package core

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/cowrite/internal/helpers"
	"github.com/mohammad-safakhou/cowrite/provider"
)

const defaultBatchLimit = 5

// Runtime composes generation, envelope parsing and schema validation into a
// single call that either returns a validated object or an *AgentError.
type Runtime struct {
	gen        Generator
	parser     *EnvelopeParser
	logger     *zap.Logger
	metrics    *Metrics
	batchLimit int
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeLogger sets the runtime logger.
func WithRuntimeLogger(l *zap.Logger) RuntimeOption {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRuntimeMetrics records per-agent outcomes.
func WithRuntimeMetrics(m *Metrics) RuntimeOption {
	return func(r *Runtime) { r.metrics = m }
}

// WithBatchLimit caps how many RunBatch entries run at once.
func WithBatchLimit(n int) RuntimeOption {
	return func(r *Runtime) {
		if n > 0 {
			r.batchLimit = n
		}
	}
}

// NewRuntime creates a Runtime from its parts.
func NewRuntime(gen Generator, parser *EnvelopeParser, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		gen:        gen,
		parser:     parser,
		logger:     zap.NewNop(),
		batchLimit: defaultBatchLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDefaultRuntime wires an Invoker, a Repairer that shares it and an
// EnvelopeParser into a Runtime.
func NewDefaultRuntime(inv *Invoker, repairModel string, logger *zap.Logger, metrics *Metrics) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	repairer := NewRepairer(inv, repairModel, logger.Named("repair"), metrics)
	parser := NewEnvelopeParser(repairer, logger.Named("envelope"))
	return NewRuntime(inv, parser, WithRuntimeLogger(logger), WithRuntimeMetrics(metrics))
}

// Run invokes the model, recovers the object from its output and validates it
// against cfg.Schema when one is given.
func (r *Runtime) Run(ctx context.Context, cfg RunConfig) (result *RunResult, err error) {
	ctx, span := coreTracer.Start(ctx, "agent.run", trace.WithAttributes(attribute.String("agent.name", cfg.AgentName)))
	started := time.Now()
	defer func() {
		r.metrics.observeAgentRun(cfg.AgentName, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.logger.Warn("agent run failed", zap.String("agent", cfg.AgentName), zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		} else {
			r.logger.Debug("agent run finished", zap.String("agent", cfg.AgentName), zap.Duration("elapsed", time.Since(started)))
		}
		span.End()
	}()

	raw, err := r.gen.Invoke(ctx, provider.Request{
		Prompt:      cfg.Prompt,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return nil, &AgentError{Agent: cfg.AgentName, Err: err}
	}

	data, err := r.parser.Parse(ctx, raw)
	if err != nil {
		return nil, &AgentError{Agent: cfg.AgentName, Err: err}
	}

	if cfg.Schema != nil {
		if data, err = cfg.Schema.Apply(data); err != nil {
			return nil, &AgentError{Agent: cfg.AgentName, Err: err}
		}
	}

	return &RunResult{Agent: cfg.AgentName, Data: data, RawOutput: raw}, nil
}

// RunRaw invokes the model and returns the raw, normalised and (when the
// output looks like it contains an object) parsed forms. Parse failures are
// reported in RawResult.ParseError; only invocation failures are returned.
func (r *Runtime) RunRaw(ctx context.Context, cfg RawConfig) (*RawResult, error) {
	raw, err := r.gen.Invoke(ctx, provider.Request{
		Prompt:      cfg.Prompt,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	res := &RawResult{RawOutput: raw, Normalized: helpers.NormalizeLLMOutput(raw)}
	if (cfg.ParseEnvelope == nil || *cfg.ParseEnvelope) && helpers.LooksLikeJSONObject(raw) {
		parsed, perr := r.parser.Parse(ctx, raw)
		if perr != nil {
			res.ParseError = perr.Error()
		} else {
			res.Parsed = parsed
		}
	}
	return res, nil
}

// RunBatch runs every config concurrently and returns the successful results
// in input order. Failures are logged and dropped.
// Concurrency is bounded by WithBatchLimit only; callers that share the
// generation queue should submit each Run through it instead.
func (r *Runtime) RunBatch(ctx context.Context, cfgs []RunConfig) []*RunResult {
	results := make([]*RunResult, len(cfgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.batchLimit)
	for i, cfg := range cfgs {
		g.Go(func() error {
			res, err := r.Run(gctx, cfg)
			if err != nil {
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*RunResult, 0, len(results))
	for _, res := range results {
		if res != nil {
			out = append(out, res)
		}
	}
	if dropped := len(cfgs) - len(out); dropped > 0 {
		r.logger.Warn("agent batch finished with failures", zap.Int("failed", dropped), zap.Int("total", len(cfgs)))
	}
	return out
}
