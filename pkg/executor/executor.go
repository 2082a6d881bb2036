// Package executor fans a query plan out to the graph tool server and
// reduces the per-tool results to one ranked candidate list. Sub-queries
// run concurrently under a bounded limit; results are collected in
// completion order but combined in sub-query order by the plan's
// strategy, so identical inputs always produce identical rankings.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/usegrapevine/grapevine/pkg/graph"
	"github.com/usegrapevine/grapevine/pkg/planner"
)

// maxRankedIDs caps the candidate list regardless of the requested count.
const maxRankedIDs = 20

// Failure kinds the executor adds on top of the client's taxonomy.
const (
	// FailureDependency marks a step whose placeholder parameter could not
	// be resolved because no earlier step produced identifiers.
	FailureDependency = "dependency"
	// FailureCancelled marks a call aborted by pipeline cancellation.
	FailureCancelled = "cancelled"
)

// Caller is the slice of the graph client the executor dispatches through.
type Caller interface {
	Call(ctx context.Context, tool string, params map[string]any) (*graph.CallResult, error)
}

// CallFailure describes why a sub-query produced nothing.
type CallFailure struct {
	Kind    string `json:"kind"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

func (f *CallFailure) Error() string {
	if f.Code != 0 {
		return fmt.Sprintf("%s error %d: %s", f.Kind, f.Code, f.Message)
	}
	return fmt.Sprintf("%s error: %s", f.Kind, f.Message)
}

// ToolResult is the outcome of one executed sub-query.
type ToolResult struct {
	Tool          string         `json:"tool"`
	Params        map[string]any `json:"params,omitempty"`
	Success       bool           `json:"success"`
	PersonIDs     []int          `json:"person_ids,omitempty"`
	RawPayload    any            `json:"raw_payload,omitempty"`
	Error         *CallFailure   `json:"error,omitempty"`
	Duration      time.Duration  `json:"duration"`
	SubQueryIndex int            `json:"sub_query_index"`
}

// Outcome is everything one execution produced.
type Outcome struct {
	// Results is index-aligned with the plan's sub-queries.
	Results []ToolResult `json:"results"`

	// RankedIDs is the capped candidate list, best first.
	RankedIDs []int `json:"ranked_ids"`

	// Provenance maps every surviving id, including those beyond the
	// ranking cap, to the sub-queries that produced it.
	Provenance map[int][]int `json:"provenance,omitempty"`

	// TotalMatches counts survivors before the ranking cap.
	TotalMatches int `json:"total_matches"`

	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Executor runs plans against the graph. Safe for concurrent use.
type Executor struct {
	caller         Caller
	registry       *graph.Registry
	maxConcurrency int
}

func New(caller Caller, registry *graph.Registry, maxConcurrency int) *Executor {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Executor{
		caller:         caller,
		registry:       registry,
		maxConcurrency: maxConcurrency,
	}
}

// Execute runs the plan and ranks the surviving person ids. The Outcome
// is always non-nil so callers can surface partial diagnostics; the error
// is non-nil only for the two fatal conditions, cancellation and every
// required sub-query failing. On cancellation the partial ids are
// discarded and RankedIDs stays empty.
func (e *Executor) Execute(ctx context.Context, plan planner.Plan, desiredCount int) (*Outcome, error) {
	started := time.Now()
	out := &Outcome{
		Results:    []ToolResult{},
		RankedIDs:  []int{},
		Provenance: map[int][]int{},
	}

	if plan.IsEmpty() {
		out.Duration = time.Since(started)
		return out, nil
	}
	if desiredCount < 1 {
		desiredCount = 1
	}

	if plan.Strategy == planner.StrategySequential {
		e.runSequential(ctx, plan, out)
	} else {
		e.runParallel(ctx, plan, out)
	}

	if err := ctx.Err(); err != nil {
		out.Duration = time.Since(started)
		return out, fmt.Errorf("execution cancelled: %w", err)
	}

	if requiredAllFailed(plan.SubQueries, out.Results) {
		out.Duration = time.Since(started)
		return out, fmt.Errorf("every required sub-query failed")
	}

	survivors, warnings := combine(plan, out.Results)
	out.Warnings = warnings
	for _, w := range warnings {
		slog.Warn("combination fallback", "detail", w)
	}

	out.RankedIDs, out.Provenance = rank(out.Results, survivors, desiredCount)
	out.TotalMatches = len(survivors)
	out.Duration = time.Since(started)
	return out, nil
}

// runParallel dispatches every sub-query under a semaphore-bounded
// errgroup. Failures never cancel siblings; they are captured in the
// result slot.
func (e *Executor) runParallel(ctx context.Context, plan planner.Plan, out *Outcome) {
	results := make([]ToolResult, len(plan.SubQueries))
	sem := semaphore.NewWeighted(int64(e.concurrencyFor(len(plan.SubQueries))))

	g, gctx := errgroup.WithContext(ctx)
	for i, sq := range plan.SubQueries {
		i, sq := i, sq // capture for goroutine
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				results[i] = ToolResult{
					Tool: sq.Tool, Params: sq.Params, SubQueryIndex: i,
					Error: &CallFailure{Kind: FailureCancelled, Message: err.Error()},
				}
				return nil
			}
			defer sem.Release(1)
			results[i] = e.callOne(gctx, i, sq.Tool, sq.Params)
			return nil
		})
	}

	_ = g.Wait()
	out.Results = results
}

// runSequential executes steps in priority-then-index order, feeding each
// step's ids into the next step's FROM_PREVIOUS placeholders. A failed
// step leaves the previously collected ids in place so later steps can
// still resolve.
func (e *Executor) runSequential(ctx context.Context, plan planner.Plan, out *Outcome) {
	order := sequentialOrder(plan.SubQueries)
	results := make([]ToolResult, len(plan.SubQueries))

	var prior []int
	for _, idx := range order {
		sq := plan.SubQueries[idx]

		if err := ctx.Err(); err != nil {
			results[idx] = ToolResult{
				Tool: sq.Tool, Params: sq.Params, SubQueryIndex: idx,
				Error: &CallFailure{Kind: FailureCancelled, Message: err.Error()},
			}
			continue
		}

		params, err := resolvePlaceholders(e.registry, sq.Tool, sq.Params, prior)
		if err != nil {
			slog.Warn("sub-query skipped", "tool", sq.Tool, "index", idx, "error", err)
			results[idx] = ToolResult{
				Tool: sq.Tool, Params: sq.Params, SubQueryIndex: idx,
				Error: &CallFailure{Kind: FailureDependency, Message: err.Error()},
			}
			continue
		}

		results[idx] = e.callOne(ctx, idx, sq.Tool, params)
		if results[idx].Success {
			prior = results[idx].PersonIDs
		}
	}

	out.Results = results
}

func (e *Executor) callOne(ctx context.Context, index int, tool string, params map[string]any) ToolResult {
	result := ToolResult{Tool: tool, Params: params, SubQueryIndex: index}

	start := time.Now()
	call, err := e.caller.Call(ctx, tool, params)
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = failureFromError(err)
		slog.Warn("sub-query failed", "tool", tool, "index", index, "error", err)
		return result
	}

	result.Success = true
	result.PersonIDs = graph.ExtractPersonIDs(call.Payload)
	result.RawPayload = call.Payload
	return result
}

func (e *Executor) concurrencyFor(n int) int {
	if n < e.maxConcurrency {
		return n
	}
	return e.maxConcurrency
}

// resolvePlaceholders substitutes FROM_PREVIOUS parameter values with the
// identifiers collected from earlier steps: the first id for scalar
// parameters, the full list for array parameters. The input map is never
// mutated.
func resolvePlaceholders(registry *graph.Registry, tool string, params map[string]any, prior []int) (map[string]any, error) {
	var resolved map[string]any
	for key, value := range params {
		s, ok := value.(string)
		if !ok || s != graph.FromPrevious {
			continue
		}
		if len(prior) == 0 {
			return nil, fmt.Errorf("parameter %q expects identifiers from a previous step, but none are available", key)
		}
		if resolved == nil {
			resolved = make(map[string]any, len(params))
			for k, v := range params {
				resolved[k] = v
			}
		}
		if paramType(registry, tool, key) == graph.ParamArray {
			ids := make([]any, len(prior))
			for i, id := range prior {
				ids[i] = id
			}
			resolved[key] = ids
		} else {
			resolved[key] = prior[0]
		}
	}
	if resolved == nil {
		return params, nil
	}
	return resolved, nil
}

func paramType(registry *graph.Registry, tool, name string) string {
	info, ok := registry.Descriptor(tool)
	if !ok {
		return graph.ParamInteger
	}
	for _, p := range info.Parameters {
		if p.Name == name {
			return p.Type
		}
	}
	return graph.ParamInteger
}

// requiredAllFailed reports whether the plan had priority-1 sub-queries
// and every one of them failed.
func requiredAllFailed(subQueries []planner.SubQuery, results []ToolResult) bool {
	sawRequired := false
	for i, sq := range subQueries {
		if sq.Priority != 1 {
			continue
		}
		sawRequired = true
		if results[i].Success {
			return false
		}
	}
	return sawRequired
}

func failureFromError(err error) *CallFailure {
	var callErr *graph.CallError
	if errors.As(err, &callErr) {
		message := callErr.Message
		if message == "" {
			message = callErr.Error()
		}
		return &CallFailure{Kind: string(callErr.Kind), Code: callErr.Code, Message: message}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &CallFailure{Kind: FailureCancelled, Message: err.Error()}
	}
	return &CallFailure{Kind: string(graph.ErrTransport), Message: err.Error()}
}
