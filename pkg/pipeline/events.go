package pipeline

import (
	"context"

	"github.com/usegrapevine/grapevine/pkg/executor"
	"github.com/usegrapevine/grapevine/pkg/planner"
)

// Events receives stage callbacks while a run progresses, so observers
// can follow a pipeline without reaching into its components. Callbacks
// run on the pipeline's goroutine and must return quickly.
type Events interface {
	// PlanningStarted fires once per run, before any model call.
	PlanningStarted(ctx context.Context, query string)

	// PlanningComplete carries the extracted filters and the validated
	// plan. The plan may be empty.
	PlanningComplete(ctx context.Context, filters planner.Filters, plan planner.Plan)

	// SubQueryDone fires once per planned sub-query, in plan order,
	// after execution finishes.
	SubQueryDone(ctx context.Context, result executor.ToolResult)

	// ExecutionComplete carries the capped ranking and the survivor
	// count before capping.
	ExecutionComplete(ctx context.Context, rankedIDs []int, totalMatches int)

	// SynthesisStarted fires before profile fetching begins.
	SynthesisStarted(ctx context.Context, rankedIDs []int)

	// SynthesisComplete carries the final response text. Deterministic
	// responses were written without a model call.
	SynthesisComplete(ctx context.Context, response string, deterministic bool)

	// PipelineError fires once when a run ends in ERROR.
	PipelineError(ctx context.Context, pipelineErr Error)
}

// NoopEvents returns an Events sink that discards every callback. It is
// the default observer.
func NoopEvents() Events {
	return noopEvents{}
}

type noopEvents struct{}

func (noopEvents) PlanningStarted(context.Context, string)                         {}
func (noopEvents) PlanningComplete(context.Context, planner.Filters, planner.Plan) {}
func (noopEvents) SubQueryDone(context.Context, executor.ToolResult)               {}
func (noopEvents) ExecutionComplete(context.Context, []int, int)                   {}
func (noopEvents) SynthesisStarted(context.Context, []int)                         {}
func (noopEvents) SynthesisComplete(context.Context, string, bool)                 {}
func (noopEvents) PipelineError(context.Context, Error)                            {}
