// Package research runs the retrieval flow behind a writing session: a
// planner agent proposes queries, the sources are searched through the
// search queue, and the results are cleaned and reranked.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/cowrite/config"
	"github.com/mohammad-safakhou/cowrite/internal/agent/core"
	"github.com/mohammad-safakhou/cowrite/internal/agent/schemas"
	"github.com/mohammad-safakhou/cowrite/internal/helpers"
	"github.com/mohammad-safakhou/cowrite/internal/materials"
	"github.com/mohammad-safakhou/cowrite/internal/queue"
	"github.com/mohammad-safakhou/cowrite/internal/sources"
	"github.com/mohammad-safakhou/cowrite/internal/store"
)

const (
	// PlanAgent is the agent name used for the search plan call.
	PlanAgent = "researchRetrievalAgent"

	DefaultPlanModel  = "gemini-2.5-flash"
	planTemperature   = 0.7
	defaultMaxQueries = 2
)

var tracer = otel.Tracer("cowrite/research")

// searchOrder fixes the order sources are searched and results are merged.
var searchOrder = []materials.SourceType{
	materials.Academic,
	materials.News,
	materials.Web,
	materials.UserLibrary,
}

// Agent runs one structured agent call.
type Agent interface {
	Run(ctx context.Context, cfg core.RunConfig) (*core.RunResult, error)
}

// Pipeline is safe for concurrent runs.
type Pipeline struct {
	agent      Agent
	queues     *queue.Queues
	ranker     *materials.Ranker
	sources    map[materials.SourceType][]sources.Source
	sink       store.Sink
	publisher  store.Publisher
	materials  config.MaterialsConfig
	maxQueries int
	sinceYear  int
	model      string
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSources registers srcs under their own SourceType.
func WithSources(srcs ...sources.Source) Option {
	return func(p *Pipeline) {
		for _, s := range srcs {
			if s == nil {
				continue
			}
			p.sources[s.SourceType()] = append(p.sources[s.SourceType()], s)
		}
	}
}

// WithSink stores every finished result under its run id.
func WithSink(s store.Sink) Option {
	return func(p *Pipeline) { p.sink = s }
}

// WithPublisher mirrors progress events to an event stream.
func WithPublisher(pub store.Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithPlanModel overrides the model used by the planner.
func WithPlanModel(model string) Option {
	return func(p *Pipeline) {
		if model != "" {
			p.model = model
		}
	}
}

// New builds a pipeline. A nil ranker ranks by keywords only.
func New(agent Agent, queues *queue.Queues, ranker *materials.Ranker, mat config.MaterialsConfig, search config.SearchConfig, opts ...Option) *Pipeline {
	if queues == nil {
		queues = queue.NewUnboundedSet()
	}
	if ranker == nil {
		ranker = materials.NewRanker(nil)
	}
	p := &Pipeline{
		agent:      agent,
		queues:     queues,
		ranker:     ranker,
		sources:    make(map[materials.SourceType][]sources.Source),
		materials:  mat.Normalize(),
		maxQueries: search.MaxQueriesPerKind,
		sinceYear:  search.ScholarSinceYear,
		model:      DefaultPlanModel,
		logger:     zap.NewNop(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	if p.maxQueries <= 0 {
		p.maxQueries = defaultMaxQueries
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one research run. progress may be nil. The error stage is
// reported before a non-nil error is returned.
func (p *Pipeline) Run(ctx context.Context, req Request, progress ProgressFunc) (result *Result, err error) {
	runID := p.newID()
	ctx, span := tracer.Start(ctx, "research.run", trace.WithAttributes(attribute.String("research.run_id", runID)))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			p.emit(ctx, runID, progress, Event{Stage: StageError, Message: err.Error()})
			p.logger.Warn("research run failed", zap.String("run_id", runID), zap.Error(err))
		} else {
			p.logger.Info("research run finished",
				zap.String("run_id", runID),
				zap.Int("ranked", len(result.Ranked)),
				zap.Int("failures", len(result.Failures)),
				zap.Duration("elapsed", time.Since(start)))
		}
		span.End()
	}()

	requirements, err := req.requirementsText()
	if err != nil {
		return nil, err
	}

	p.emit(ctx, runID, progress, Event{Stage: StagePlan, Message: "generating search plan"})
	plan, err := p.plan(ctx, requirements)
	if err != nil {
		return nil, err
	}
	p.emit(ctx, runID, progress, Event{Stage: StagePlan, Data: plan, Message: "search plan ready"})

	p.emit(ctx, runID, progress, Event{Stage: StageSearching, Message: "searching sources"})
	found, failures, err := p.search(ctx, plan)
	if err != nil {
		return nil, err
	}

	cleaned := p.clean(found)
	query := plan.SearchSummary.InterpretedTopic
	ranked := p.ranker.Rerank(ctx, cleaned, query, plan.SearchSummary.KeyDimensions, materials.RerankOptions{
		TopN:             p.materials.TopN,
		MaxContentLength: p.materials.MaxContentLength,
	})
	if len(ranked) >= 3 {
		p.emit(ctx, runID, progress, Event{Stage: StageTop3, Data: map[string]any{"top3": highlights(ranked)}, Message: "key findings"})
	}

	result = &Result{
		RunID:     runID,
		Plan:      plan,
		Ranked:    ranked,
		Failures:  failures,
		CreatedAt: p.now().UTC(),
	}
	result.group()

	if p.sink != nil {
		if err := p.sink.Put(ctx, runID, result); err != nil {
			p.logger.Warn("store research result", zap.String("run_id", runID), zap.Error(err))
		}
	}

	p.emit(ctx, runID, progress, Event{Stage: StageFinal, Data: result, Message: "search complete"})
	p.emit(ctx, runID, progress, Event{Stage: StageDone, Message: "all stages complete"})
	return result, nil
}

// Get loads a stored result.
func (p *Pipeline) Get(ctx context.Context, runID string) (*Result, error) {
	if p.sink == nil {
		return nil, store.ErrNotFound
	}
	var res Result
	if err := p.sink.Get(ctx, runID, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (p *Pipeline) plan(ctx context.Context, requirements string) (schemas.SearchPlan, error) {
	schema, _ := schemas.For(schemas.KindSearchPlan)
	temp := planTemperature
	cfg := core.RunConfig{
		AgentName:   PlanAgent,
		Prompt:      planPrompt(p.now(), p.sinceYear, requirements),
		Schema:      schema,
		Model:       p.model,
		Temperature: &temp,
	}
	res, err := queue.Do(ctx, p.queues.Generation, func(ctx context.Context) (*core.RunResult, error) {
		return p.agent.Run(ctx, cfg)
	})
	if err != nil {
		return schemas.SearchPlan{}, fmt.Errorf("search plan: %w", err)
	}
	out, err := schemas.Narrow(schemas.KindSearchPlan, res.Data)
	if err != nil {
		return schemas.SearchPlan{}, fmt.Errorf("search plan: %w", err)
	}
	plan := out.(schemas.SearchPlan)
	fillEmpty(&plan)
	return plan, nil
}

func fillEmpty(plan *schemas.SearchPlan) {
	for _, l := range []*[]string{
		&plan.SearchSummary.KeyDimensions,
		&plan.AcademicQueries,
		&plan.NewsQueries,
		&plan.WebQueries,
		&plan.UserLibraryQueries,
	} {
		if *l == nil {
			*l = []string{}
		}
	}
}

func queriesFor(plan schemas.SearchPlan, t materials.SourceType) []string {
	switch t {
	case materials.Academic:
		return plan.AcademicQueries
	case materials.News:
		return plan.NewsQueries
	case materials.Web:
		return plan.WebQueries
	case materials.UserLibrary:
		return plan.UserLibraryQueries
	}
	return nil
}

type searchJob struct {
	kind  materials.SourceType
	src   sources.Source
	query string
}

type searchOutcome struct {
	docs    []materials.Document
	failure *Failure
}

func (p *Pipeline) jobs(plan schemas.SearchPlan) []searchJob {
	var jobs []searchJob
	for _, kind := range searchOrder {
		srcs := p.sources[kind]
		if len(srcs) == 0 {
			continue
		}
		taken := 0
		for _, q := range queriesFor(plan, kind) {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}
			if taken == p.maxQueries {
				break
			}
			taken++
			for _, src := range srcs {
				jobs = append(jobs, searchJob{kind: kind, src: src, query: q})
			}
		}
	}
	return jobs
}

// search fans the plan out to the sources. A failing query is reported in
// the failures list; only cancellation of ctx aborts the search.
func (p *Pipeline) search(ctx context.Context, plan schemas.SearchPlan) (map[materials.SourceType][]materials.Document, []Failure, error) {
	jobs := p.jobs(plan)
	outcomes := make([]searchOutcome, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			docs, err := queue.Do(gctx, p.queues.Search, func(ctx context.Context) ([]materials.Document, error) {
				return job.src.Search(ctx, sources.Query{Text: job.query})
			})
			switch {
			case err == nil:
				outcomes[i].docs = docs
			case errors.Is(err, sources.ErrNotConfigured):
				p.logger.Debug("source not configured", zap.String("source", job.src.Name()))
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				serr := &sources.SourceError{Source: job.src.Name(), Query: job.query, Err: err}
				p.logger.Warn("source search failed", zap.Error(serr))
				outcomes[i].failure = &Failure{Source: job.src.Name(), Query: job.query, Error: err.Error()}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	found := make(map[materials.SourceType][]materials.Document)
	var failures []Failure
	for i, job := range jobs {
		if f := outcomes[i].failure; f != nil {
			failures = append(failures, *f)
		}
		for _, d := range outcomes[i].docs {
			if d.SourceType == "" {
				d.SourceType = job.kind
			}
			found[job.kind] = append(found[job.kind], d)
		}
	}
	for kind, docs := range found {
		found[kind] = limit(uniqueByURL(docs), p.materials.PerSourceLimit)
	}
	return found, failures, nil
}

func (p *Pipeline) clean(found map[materials.SourceType][]materials.Document) []materials.RankedDocument {
	var all []materials.RankedDocument
	for _, kind := range searchOrder {
		opts := materials.OptionsFor(kind)
		opts.Now = p.now
		kept := materials.Clean(found[kind], opts)
		p.logger.Debug("cleaned materials",
			zap.String("source_type", string(kind)),
			zap.Int("in", len(found[kind])),
			zap.Int("kept", len(kept)))
		all = append(all, kept...)
	}
	return all
}

// uniqueByURL keeps the first document per URL. Documents without a URL
// are kept as they are.
func uniqueByURL(docs []materials.Document) []materials.Document {
	seen := make(map[string]struct{}, len(docs))
	out := docs[:0:0]
	for _, d := range docs {
		key := helpers.URLDedupKey(d.URL)
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, d)
	}
	return out
}

func limit(docs []materials.Document, n int) []materials.Document {
	if n > 0 && len(docs) > n {
		return docs[:n]
	}
	return docs
}

func (p *Pipeline) emit(ctx context.Context, runID string, progress ProgressFunc, ev Event) {
	ev.RunID = runID
	if progress != nil {
		progress(ev)
	}
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(context.WithoutCancel(ctx), runID, string(ev.Stage), ev); err != nil {
		p.logger.Warn("publish research event",
			zap.String("run_id", runID),
			zap.String("stage", string(ev.Stage)),
			zap.Error(err))
	}
}
