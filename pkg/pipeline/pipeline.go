// Package pipeline answers natural-language questions about the graph
// end to end: two planning model calls turn a question into an
// executable plan, the executor fans the plan out against the tool
// server, and the synthesizer writes a grounded reply from the
// top-ranked profiles.
//
// A Pipeline is wired once and reused. Every Run owns a fresh State, so
// concurrent runs share nothing but the provider and the graph client.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/usegrapevine/grapevine/pkg/config"
	"github.com/usegrapevine/grapevine/pkg/executor"
	"github.com/usegrapevine/grapevine/pkg/graph"
	"github.com/usegrapevine/grapevine/pkg/llms"
	"github.com/usegrapevine/grapevine/pkg/observability"
	"github.com/usegrapevine/grapevine/pkg/planner"
	"github.com/usegrapevine/grapevine/pkg/synthesizer"
)

// Caller is the slice of the graph client the stages share.
type Caller interface {
	Call(ctx context.Context, tool string, params map[string]any) (*graph.CallResult, error)
}

// Query is one question for the pipeline.
type Query struct {
	Text string `json:"query"`

	// DesiredCount asks for that many people in the answer. Zero means
	// the configured default; values above the cap are clamped.
	DesiredCount int `json:"desired_count,omitempty"`
}

// Result is what a run hands back to the caller.
type Result struct {
	FinalResponse string `json:"final_response"`

	// Matches pairs the presented people with their names. Always a
	// subset of RankedIDs.
	Matches []synthesizer.Match `json:"matches"`

	RankedIDs []int            `json:"ranked_ids"`
	Filters   planner.Filters  `json:"filters"`
	Strategy  planner.Strategy `json:"strategy,omitempty"`
	Status    Status           `json:"status"`
	Errors    []Error          `json:"errors,omitempty"`
	Metadata  Metadata         `json:"metadata"`
}

// Pipeline wires the four stages around one model provider and one graph
// caller. Safe for concurrent use.
type Pipeline struct {
	decomposer  *planner.Decomposer
	generator   *planner.SubQueryGenerator
	executor    *executor.Executor
	synthesizer *synthesizer.Synthesizer
	registry    *graph.Registry
	events      Events
	cfg         config.PipelineConfig
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEvents installs an observer for stage callbacks.
func WithEvents(events Events) Option {
	return func(p *Pipeline) {
		if events != nil {
			p.events = events
		}
	}
}

// WithRegistry substitutes the tool registry, for trimmed catalogs.
func WithRegistry(registry *graph.Registry) Option {
	return func(p *Pipeline) {
		if registry != nil {
			p.registry = registry
		}
	}
}

// New builds a Pipeline. Gaps in cfg are filled with defaults.
func New(provider llms.Provider, caller Caller, cfg config.PipelineConfig, opts ...Option) *Pipeline {
	cfg.SetDefaults()

	p := &Pipeline{
		registry: graph.NewRegistry(),
		events:   NoopEvents(),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.decomposer = planner.NewDecomposer(provider, cfg.Planner)
	p.generator = planner.NewSubQueryGenerator(provider, p.registry, cfg.Planner)
	p.executor = executor.New(caller, p.registry, cfg.MaxConcurrency)
	p.synthesizer = synthesizer.New(provider, caller, cfg.Synthesis)
	return p
}

// Run answers one question. The Result is non-nil even when the run
// fails, so callers can inspect partial progress and the error log; the
// error return is non-nil exactly when Result.Status is ERROR.
func (p *Pipeline) Run(ctx context.Context, q Query) (*Result, error) {
	started := time.Now()

	tracer := observability.GetTracer("grapevine.pipeline")
	ctx, span := tracer.Start(ctx, observability.SpanPipelineRun)
	defer span.End()

	state := newState(q.Text, p.desiredCount(q))
	slog.Info("pipeline run started", "desired_count", state.DesiredCount, "query", q.Text)

	err := p.runStages(ctx, state)

	state.Metadata.Duration = time.Since(started)
	span.SetAttributes(
		attribute.String(observability.AttrPipelineStatus, string(state.Status)),
		attribute.String(observability.AttrQueryStrategy, string(state.Plan.Strategy)),
	)
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordPipelineRun(ctx, string(state.Status), state.Metadata.Duration)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("pipeline run failed",
			"status", state.Status,
			"duration", state.Metadata.Duration,
			"error", err)
		return state.result(), err
	}

	span.SetStatus(codes.Ok, "success")
	slog.Info("pipeline run complete",
		"status", state.Status,
		"matches", len(state.Matches),
		"total_matches", state.TotalMatches,
		"errors", len(state.Errors),
		"duration", state.Metadata.Duration)
	return state.result(), nil
}

func (p *Pipeline) runStages(ctx context.Context, state *State) error {
	if err := p.plan(ctx, state); err != nil {
		return err
	}
	if err := p.execute(ctx, state); err != nil {
		return err
	}
	return p.synthesize(ctx, state)
}

// plan runs the two planning model calls. Neither failing is fatal:
// extraction failures leave empty filters, generation failures leave an
// empty plan, and both are recorded. Only cancellation stops the run
// here.
func (p *Pipeline) plan(ctx context.Context, state *State) error {
	tracer := observability.GetTracer("grapevine.pipeline")
	ctx, span := tracer.Start(ctx, observability.SpanPlanning)
	defer span.End()
	started := time.Now()

	state.advance(StatusPlanning)
	p.events.PlanningStarted(ctx, state.Query)

	dec, err := p.decomposer.Decompose(ctx, state.Query)
	if err != nil {
		recordStage(ctx, "planning", time.Since(started), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return p.fail(ctx, state, Error{Kind: KindCancelled, Message: "planning cancelled: " + err.Error()})
	}
	state.Filters = dec.Filters
	state.Metadata.Planning.DecompositionDuration = dec.Duration
	state.Metadata.Planning.DecompositionAttempts = dec.Attempts
	state.Metadata.Planning.Tokens.Add(dec.Usage)
	if dec.Err != nil {
		state.record(Error{Kind: KindDecomposition, Message: dec.Err.Error()})
	}

	gen, err := p.generator.Generate(ctx, state.Query, state.Filters)
	if err != nil {
		recordStage(ctx, "planning", time.Since(started), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return p.fail(ctx, state, Error{Kind: KindCancelled, Message: "planning cancelled: " + err.Error()})
	}
	state.Plan = gen.Plan
	state.Metadata.Planning.GenerationDuration = gen.Duration
	state.Metadata.Planning.GenerationAttempts = gen.Attempts
	state.Metadata.Planning.Tokens.Add(gen.Usage)
	if gen.Err != nil {
		state.record(Error{Kind: KindPlanning, Message: gen.Err.Error()})
	}

	state.advance(StatusPlanningComplete)
	p.events.PlanningComplete(ctx, state.Filters, state.Plan)
	recordStage(ctx, "planning", time.Since(started), nil)

	slog.Debug("planning complete",
		"sub_queries", len(state.Plan.SubQueries),
		"strategy", state.Plan.Strategy)
	return nil
}

// execute fans the plan out and ranks the survivors. An empty plan falls
// through without dispatching anything; the machine still walks
// EXECUTING so the lifecycle stays uniform. Individual call failures are
// recorded and tolerated.
func (p *Pipeline) execute(ctx context.Context, state *State) error {
	tracer := observability.GetTracer("grapevine.pipeline")
	ctx, span := tracer.Start(ctx, observability.SpanExecution,
		trace.WithAttributes(attribute.String(observability.AttrQueryStrategy, string(state.Plan.Strategy))),
	)
	defer span.End()
	started := time.Now()

	state.advance(StatusExecuting)

	outcome, err := p.executor.Execute(ctx, state.Plan, state.DesiredCount)
	state.ToolResults = outcome.Results
	state.RankedIDs = outcome.RankedIDs
	state.TotalMatches = outcome.TotalMatches
	state.Metadata.Execution = ExecutionMetadata{
		Duration:   outcome.Duration,
		SubQueries: len(state.Plan.SubQueries),
		Warnings:   outcome.Warnings,
	}

	for _, result := range outcome.Results {
		if result.Error != nil {
			idx := result.SubQueryIndex
			state.record(Error{
				Kind:          KindSubQuery,
				Message:       result.Error.Message,
				Tool:          result.Tool,
				SubQueryIndex: &idx,
			})
		}
		p.events.SubQueryDone(ctx, result)
	}

	recordStage(ctx, "execution", time.Since(started), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		kind := KindSubQuery
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			kind = KindCancelled
		}
		return p.fail(ctx, state, Error{Kind: kind, Message: err.Error()})
	}

	state.advance(StatusToolsComplete)
	p.events.ExecutionComplete(ctx, state.RankedIDs, state.TotalMatches)

	slog.Debug("execution complete",
		"ranked", len(state.RankedIDs),
		"total_matches", state.TotalMatches)
	return nil
}

// synthesize fetches the top profiles and writes the reply. The two
// deterministic answers (no ranked ids, no retrievable profiles) come
// back without a model call. A failed composing call is fatal.
func (p *Pipeline) synthesize(ctx context.Context, state *State) error {
	tracer := observability.GetTracer("grapevine.pipeline")
	ctx, span := tracer.Start(ctx, observability.SpanSynthesis)
	defer span.End()
	started := time.Now()

	state.advance(StatusSynthesizing)
	p.events.SynthesisStarted(ctx, state.RankedIDs)

	syn, err := p.synthesizer.Synthesize(ctx, synthesizer.Input{
		Query:        state.Query,
		Filters:      state.Filters,
		RankedIDs:    state.RankedIDs,
		DesiredCount: state.DesiredCount,
		TotalMatches: state.TotalMatches,
	})
	for _, failure := range syn.FetchFailures {
		state.record(Error{Kind: KindFetch, Message: failure.Message, PersonID: failure.PersonID})
	}
	state.Matches = syn.Matches
	state.Metadata.Synthesis = SynthesisMetadata{
		Duration:      syn.Duration,
		Tokens:        syn.Usage,
		ProfilesUsed:  len(syn.Matches),
		Deterministic: syn.Deterministic,
	}

	recordStage(ctx, "synthesis", time.Since(started), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		kind := KindComposition
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			kind = KindCancelled
		}
		return p.fail(ctx, state, Error{Kind: kind, Message: err.Error()})
	}

	state.FinalResponse = syn.Response
	state.advance(StatusComplete)
	p.events.SynthesisComplete(ctx, syn.Response, syn.Deterministic)
	return nil
}

// fail ends the run: the failure is recorded as fatal, the status flips
// to ERROR, and a diagnostic response is kept so callers always get
// renderable text. The returned error is the recorded failure.
func (p *Pipeline) fail(ctx context.Context, state *State, perr Error) error {
	perr.Fatal = true
	state.record(perr)
	state.advance(StatusError)
	if state.FinalResponse == "" {
		state.FinalResponse = diagnosticResponse(perr)
	}
	p.events.PipelineError(ctx, perr)
	return &perr
}

// desiredCount resolves the requested count against the configured
// default and the hard cap.
func (p *Pipeline) desiredCount(q Query) int {
	count := q.DesiredCount
	if count <= 0 {
		count = p.cfg.DesiredCount
	}
	if count > config.MaxDesiredCount {
		count = config.MaxDesiredCount
	}
	if count < 1 {
		count = 1
	}
	return count
}

func recordStage(ctx context.Context, stage string, duration time.Duration, err error) {
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordStage(ctx, stage, duration, err)
	}
}
