package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/usegrapevine/grapevine/pkg/graph"
	"github.com/usegrapevine/grapevine/pkg/planner"
)

type dispatch struct {
	tool   string
	params map[string]any
}

// fakeCaller scripts per-tool responses and records every dispatch. An
// optional per-tool delay simulates slow calls for ordering and
// cancellation tests.
type fakeCaller struct {
	mu    sync.Mutex
	calls []dispatch
	fn    func(tool string, params map[string]any) (*graph.CallResult, error)
	delay map[string]time.Duration
}

func (c *fakeCaller) Call(ctx context.Context, tool string, params map[string]any) (*graph.CallResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.calls = append(c.calls, dispatch{tool: tool, params: params})
	c.mu.Unlock()
	if d := c.delay[tool]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.fn(tool, params)
}

func (c *fakeCaller) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *fakeCaller) calledTools() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	tools := make([]string, len(c.calls))
	for i, d := range c.calls {
		tools[i] = d.tool
	}
	return tools
}

func (c *fakeCaller) dispatched(i int) dispatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[i]
}

// idResult builds the payload shape the tool server returns for people
// searches, one record per id.
func idResult(tool string, ids ...int) *graph.CallResult {
	people := make([]any, 0, len(ids))
	for _, id := range ids {
		people = append(people, map[string]any{
			"person_id": float64(id),
			"name":      fmt.Sprintf("person %d", id),
		})
	}
	return &graph.CallResult{Tool: tool, Payload: people}
}

func sq(tool string, params map[string]any, priority int, group string) planner.SubQuery {
	return planner.SubQuery{
		Description: tool,
		Tool:        tool,
		Params:      params,
		Priority:    priority,
		Group:       group,
	}
}

func makePlan(strategy planner.Strategy, subQueries ...planner.SubQuery) planner.Plan {
	return planner.Plan{
		SubQueries:    subQueries,
		Strategy:      strategy,
		OriginalQuery: "test query",
	}
}

// intersectPlan is the shape most multi-criteria questions produce: two
// expansions of one criterion sharing a group, intersected with a second
// criterion.
func intersectPlan() planner.Plan {
	return makePlan(planner.StrategyParallelIntersect,
		sq("find_people_by_skill", map[string]any{"skill": "Python"}, 1, "python"),
		sq("search_skills_by_keywords", map[string]any{"keywords": []any{"python"}}, 2, "python"),
		sq("find_people_by_company", map[string]any{"company_name": "Google"}, 1, "google"),
	)
}

func intersectCaller() *fakeCaller {
	return &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		switch tool {
		case "find_people_by_skill":
			return idResult(tool, 1, 2, 3), nil
		case "search_skills_by_keywords":
			return idResult(tool, 2, 3, 4), nil
		case "find_people_by_company":
			return idResult(tool, 2, 4, 5), nil
		}
		return nil, fmt.Errorf("unexpected tool %s", tool)
	}}
}

func TestExecuteEmptyPlan(t *testing.T) {
	caller := &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		return nil, fmt.Errorf("unexpected call to %s", tool)
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	out, err := exec.Execute(context.Background(), planner.Plan{}, 5)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out == nil {
		t.Fatal("expected a non-nil outcome")
	}
	if len(out.RankedIDs) != 0 || len(out.Results) != 0 {
		t.Errorf("expected an empty outcome, got %+v", out)
	}
	if caller.callCount() != 0 {
		t.Errorf("expected no calls, got %d", caller.callCount())
	}
}

func TestExecuteParallelIntersect(t *testing.T) {
	caller := intersectCaller()
	exec := New(caller, graph.NewRegistry(), 8)

	out, err := exec.Execute(context.Background(), intersectPlan(), 5)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// python group unions to {1,2,3,4}, intersected with google {2,4,5}.
	if !reflect.DeepEqual(out.RankedIDs, []int{2, 4}) {
		t.Errorf("RankedIDs = %v, want [2 4]", out.RankedIDs)
	}
	if out.TotalMatches != 2 {
		t.Errorf("TotalMatches = %d, want 2", out.TotalMatches)
	}
	if len(out.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", out.Warnings)
	}
	if len(out.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out.Results))
	}
	for i, r := range out.Results {
		if !r.Success {
			t.Errorf("result %d not successful: %+v", i, r.Error)
		}
		if r.SubQueryIndex != i {
			t.Errorf("result %d carries index %d", i, r.SubQueryIndex)
		}
	}
	if !reflect.DeepEqual(out.Provenance[2], []int{0, 1, 2}) {
		t.Errorf("Provenance[2] = %v, want [0 1 2]", out.Provenance[2])
	}
	if !reflect.DeepEqual(out.Provenance[4], []int{1, 2}) {
		t.Errorf("Provenance[4] = %v, want [1 2]", out.Provenance[4])
	}
	if caller.callCount() != 3 {
		t.Errorf("expected 3 calls, got %d", caller.callCount())
	}
}

func TestExecuteIntersectEmptySuccessEmptiesResult(t *testing.T) {
	caller := &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		switch tool {
		case "find_people_by_skill":
			return idResult(tool, 1, 2), nil
		case "find_people_by_company":
			return idResult(tool), nil // succeeded, nobody matched
		}
		return nil, fmt.Errorf("unexpected tool %s", tool)
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	plan := makePlan(planner.StrategyParallelIntersect,
		sq("find_people_by_skill", map[string]any{"skill": "Rust"}, 1, "skill"),
		sq("find_people_by_company", map[string]any{"company_name": "Initech"}, 1, "company"),
	)
	out, err := exec.Execute(context.Background(), plan, 5)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(out.RankedIDs) != 0 {
		t.Errorf("RankedIDs = %v, want empty", out.RankedIDs)
	}
	if out.TotalMatches != 0 {
		t.Errorf("TotalMatches = %d, want 0", out.TotalMatches)
	}
	if len(out.Warnings) != 0 {
		t.Errorf("a legitimate empty result is not a fallback, got warnings %v", out.Warnings)
	}
}

func TestExecuteIntersectSkipsFailedGroup(t *testing.T) {
	caller := &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		switch tool {
		case "find_people_by_skill":
			return idResult(tool, 1, 2), nil
		case "find_people_by_company":
			return nil, &graph.CallError{
				Kind: graph.ErrRPC, Tool: tool,
				Code: graph.CodeToolExecution, Message: "graph query failed",
			}
		}
		return nil, fmt.Errorf("unexpected tool %s", tool)
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	plan := makePlan(planner.StrategyParallelIntersect,
		sq("find_people_by_skill", map[string]any{"skill": "Go"}, 1, "skill"),
		sq("find_people_by_company", map[string]any{"company_name": "Hooli"}, 1, "company"),
	)
	out, err := exec.Execute(context.Background(), plan, 5)
	if err != nil {
		t.Fatalf("one surviving required sub-query keeps execution alive, got %v", err)
	}
	if !reflect.DeepEqual(out.RankedIDs, []int{1, 2}) {
		t.Errorf("RankedIDs = %v, want [1 2]", out.RankedIDs)
	}
	if len(out.Warnings) != 1 {
		t.Fatalf("expected one fallback warning, got %v", out.Warnings)
	}
	if out.Results[1].Error == nil || out.Results[1].Error.Kind != string(graph.ErrRPC) {
		t.Errorf("result 1 error = %+v, want rpc kind", out.Results[1].Error)
	}
}

func TestExecuteUnionLowPriorityRanksOnly(t *testing.T) {
	caller := &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		switch tool {
		case "find_people_by_title":
			return idResult(tool, 10, 11), nil
		case "find_leadership_indicators":
			return idResult(tool, 11, 12), nil
		}
		return nil, fmt.Errorf("unexpected tool %s", tool)
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	plan := makePlan(planner.StrategyParallelUnion,
		sq("find_people_by_title", map[string]any{"title": "founder"}, 1, ""),
		sq("find_leadership_indicators", map[string]any{}, 2, ""),
	)
	out, err := exec.Execute(context.Background(), plan, 5)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// 12 only appears in the priority-2 result, so it never becomes a
	// member; 11 outranks 10 because two sub-queries produced it.
	if !reflect.DeepEqual(out.RankedIDs, []int{11, 10}) {
		t.Errorf("RankedIDs = %v, want [11 10]", out.RankedIDs)
	}
	if out.TotalMatches != 2 {
		t.Errorf("TotalMatches = %d, want 2", out.TotalMatches)
	}
}

func TestExecuteUnionAllOptional(t *testing.T) {
	caller := &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		switch tool {
		case "find_people_by_title":
			return idResult(tool, 10, 11), nil
		case "find_leadership_indicators":
			return idResult(tool, 11, 12), nil
		}
		return nil, fmt.Errorf("unexpected tool %s", tool)
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	plan := makePlan(planner.StrategyParallelUnion,
		sq("find_people_by_title", map[string]any{"title": "founder"}, 2, ""),
		sq("find_leadership_indicators", map[string]any{}, 2, ""),
	)
	out, err := exec.Execute(context.Background(), plan, 5)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !reflect.DeepEqual(out.RankedIDs, []int{11, 10, 12}) {
		t.Errorf("RankedIDs = %v, want [11 10 12]", out.RankedIDs)
	}
}

func TestExecuteSequentialScalarPlaceholder(t *testing.T) {
	caller := &fakeCaller{fn: func(tool string, params map[string]any) (*graph.CallResult, error) {
		switch tool {
		case "find_person_by_name":
			return idResult(tool, 7), nil
		case "get_person_complete_profile":
			return idResult(tool, 7), nil
		}
		return nil, fmt.Errorf("unexpected tool %s", tool)
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	plan := makePlan(planner.StrategySequential,
		sq("find_person_by_name", map[string]any{"name": "John Smith"}, 1, ""),
		sq("get_person_complete_profile", map[string]any{"person_id": graph.FromPrevious}, 1, ""),
	)
	out, err := exec.Execute(context.Background(), plan, 5)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !reflect.DeepEqual(out.RankedIDs, []int{7}) {
		t.Errorf("RankedIDs = %v, want [7]", out.RankedIDs)
	}
	if got := caller.calledTools(); !reflect.DeepEqual(got, []string{"find_person_by_name", "get_person_complete_profile"}) {
		t.Errorf("dispatch order = %v", got)
	}
	if got := caller.dispatched(1).params["person_id"]; got != 7 {
		t.Errorf("resolved person_id = %v (%T), want 7", got, got)
	}
	// The plan's own params stay untouched for diagnostics and retries.
	if plan.SubQueries[1].Params["person_id"] != graph.FromPrevious {
		t.Errorf("plan params mutated: %v", plan.SubQueries[1].Params)
	}
	if out.Results[1].Params["person_id"] != 7 {
		t.Errorf("result params = %v, want the resolved value", out.Results[1].Params)
	}
}

func TestExecuteSequentialArrayPlaceholder(t *testing.T) {
	caller := &fakeCaller{fn: func(tool string, params map[string]any) (*graph.CallResult, error) {
		switch tool {
		case "find_people_by_company":
			return idResult(tool, 3, 4), nil
		case "search_skills_by_keywords":
			return idResult(tool, 4), nil
		}
		return nil, fmt.Errorf("unexpected tool %s", tool)
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	plan := makePlan(planner.StrategySequential,
		sq("find_people_by_company", map[string]any{"company_name": "Acme"}, 1, ""),
		sq("search_skills_by_keywords", map[string]any{"keywords": graph.FromPrevious}, 2, ""),
	)
	out, err := exec.Execute(context.Background(), plan, 5)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	got := caller.dispatched(1).params["keywords"]
	if !reflect.DeepEqual(got, []any{3, 4}) {
		t.Errorf("resolved keywords = %v (%T), want [3 4]", got, got)
	}
	if !reflect.DeepEqual(out.RankedIDs, []int{4}) {
		t.Errorf("RankedIDs = %v, want [4]", out.RankedIDs)
	}
}

func TestExecuteSequentialDependencySkip(t *testing.T) {
	caller := &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		if tool == "find_person_by_name" {
			return nil, &graph.CallError{Kind: graph.ErrTransport, Tool: tool, Message: "connection refused"}
		}
		return nil, fmt.Errorf("unexpected tool %s", tool)
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	plan := makePlan(planner.StrategySequential,
		sq("find_person_by_name", map[string]any{"name": "John Smith"}, 1, ""),
		sq("get_person_complete_profile", map[string]any{"person_id": graph.FromPrevious}, 1, ""),
	)
	out, err := exec.Execute(context.Background(), plan, 5)
	if err == nil {
		t.Fatal("expected a fatal error when every required sub-query fails")
	}
	if caller.callCount() != 1 {
		t.Errorf("the dependent step must not reach the server, got %d calls", caller.callCount())
	}
	if out.Results[1].Error == nil || out.Results[1].Error.Kind != FailureDependency {
		t.Errorf("result 1 error = %+v, want dependency kind", out.Results[1].Error)
	}
	if len(out.RankedIDs) != 0 {
		t.Errorf("RankedIDs = %v, want empty", out.RankedIDs)
	}
}

func TestExecuteSequentialFinalStepFallsBack(t *testing.T) {
	caller := &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		switch tool {
		case "find_person_by_name":
			return idResult(tool, 3, 4), nil
		case "get_person_complete_profile":
			return nil, &graph.CallError{
				Kind: graph.ErrRPC, Tool: tool,
				Code: graph.CodeToolExecution, Message: "timeout in graph",
			}
		}
		return nil, fmt.Errorf("unexpected tool %s", tool)
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	plan := makePlan(planner.StrategySequential,
		sq("find_person_by_name", map[string]any{"name": "Jane Doe"}, 1, ""),
		sq("get_person_complete_profile", map[string]any{"person_id": graph.FromPrevious}, 2, ""),
	)
	out, err := exec.Execute(context.Background(), plan, 5)
	if err != nil {
		t.Fatalf("a failed optional tail must not be fatal, got %v", err)
	}
	if !reflect.DeepEqual(out.RankedIDs, []int{3, 4}) {
		t.Errorf("RankedIDs = %v, want the previous step's ids [3 4]", out.RankedIDs)
	}
	if len(out.Warnings) != 1 {
		t.Errorf("expected one fallback warning, got %v", out.Warnings)
	}
}

func TestExecuteAllRequiredFailedIsFatal(t *testing.T) {
	caller := &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		return nil, &graph.CallError{Kind: graph.ErrTransport, Tool: tool, Message: "connection refused"}
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	plan := makePlan(planner.StrategyParallelUnion,
		sq("find_people_by_skill", map[string]any{"skill": "Go"}, 1, ""),
		sq("find_people_by_company", map[string]any{"company_name": "Acme"}, 1, ""),
	)
	out, err := exec.Execute(context.Background(), plan, 5)
	if err == nil {
		t.Fatal("expected a fatal error")
	}
	if len(out.Results) != 2 {
		t.Fatalf("partial diagnostics must survive, got %d results", len(out.Results))
	}
	for i, r := range out.Results {
		if r.Success || r.Error == nil {
			t.Errorf("result %d should carry a failure, got %+v", i, r)
		}
	}
	if len(out.RankedIDs) != 0 {
		t.Errorf("RankedIDs = %v, want empty", out.RankedIDs)
	}
}

func TestExecuteAllOptionalFailedNonFatal(t *testing.T) {
	caller := &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		return nil, &graph.CallError{Kind: graph.ErrTransport, Tool: tool, Message: "connection refused"}
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	plan := makePlan(planner.StrategyParallelUnion,
		sq("find_people_by_title", map[string]any{"title": "founder"}, 2, ""),
		sq("find_leadership_indicators", map[string]any{}, 3, ""),
	)
	out, err := exec.Execute(context.Background(), plan, 5)
	if err != nil {
		t.Fatalf("optional failures are never fatal, got %v", err)
	}
	if len(out.RankedIDs) != 0 || out.TotalMatches != 0 {
		t.Errorf("expected an empty outcome, got %+v", out)
	}
}

func TestExecutePartialFailureNonFatal(t *testing.T) {
	caller := &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		if tool == "find_people_by_skill" {
			return idResult(tool, 1), nil
		}
		return nil, &graph.CallError{Kind: graph.ErrTransport, Tool: tool, Message: "connection refused"}
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	plan := makePlan(planner.StrategyParallelUnion,
		sq("find_people_by_skill", map[string]any{"skill": "Go"}, 1, ""),
		sq("find_people_by_company", map[string]any{"company_name": "Acme"}, 1, ""),
	)
	out, err := exec.Execute(context.Background(), plan, 5)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !reflect.DeepEqual(out.RankedIDs, []int{1}) {
		t.Errorf("RankedIDs = %v, want [1]", out.RankedIDs)
	}
	if out.Results[1].Error == nil {
		t.Error("result 1 should carry the failure")
	}
}

func TestExecuteHybrid(t *testing.T) {
	caller := &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		switch tool {
		case "find_people_by_skill":
			return idResult(tool, 1, 2, 3), nil
		case "find_people_by_company":
			return idResult(tool, 2, 3), nil
		case "find_people_by_location":
			return idResult(tool, 3, 9), nil
		}
		return nil, fmt.Errorf("unexpected tool %s", tool)
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	plan := makePlan(planner.StrategyHybrid,
		sq("find_people_by_skill", map[string]any{"skill": "Go"}, 1, "skill"),
		sq("find_people_by_company", map[string]any{"company_name": "Acme"}, 1, "union:where"),
		sq("find_people_by_location", map[string]any{"location": "Berlin"}, 2, "union:where"),
	)
	out, err := exec.Execute(context.Background(), plan, 5)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// skill {1,2,3} intersected with (union:where) {2,3} u {3,9} = {2,3};
	// 3 outranks 2 on producer count.
	if !reflect.DeepEqual(out.RankedIDs, []int{3, 2}) {
		t.Errorf("RankedIDs = %v, want [3 2]", out.RankedIDs)
	}
	if out.TotalMatches != 2 {
		t.Errorf("TotalMatches = %d, want 2", out.TotalMatches)
	}
}

func TestExecuteHybridUnionSideFailedFallsBack(t *testing.T) {
	caller := &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		if tool == "find_people_by_skill" {
			return idResult(tool, 1, 2), nil
		}
		return nil, &graph.CallError{Kind: graph.ErrTransport, Tool: tool, Message: "connection refused"}
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	plan := makePlan(planner.StrategyHybrid,
		sq("find_people_by_skill", map[string]any{"skill": "Go"}, 1, "skill"),
		sq("find_people_by_location", map[string]any{"location": "Berlin"}, 2, "union:extra"),
	)
	out, err := exec.Execute(context.Background(), plan, 5)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !reflect.DeepEqual(out.RankedIDs, []int{1, 2}) {
		t.Errorf("RankedIDs = %v, want [1 2]", out.RankedIDs)
	}
	if len(out.Warnings) != 1 {
		t.Errorf("expected one fallback warning, got %v", out.Warnings)
	}
}

func TestExecuteCancellation(t *testing.T) {
	caller := &fakeCaller{
		fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
			return idResult(tool, 1), nil
		},
		delay: map[string]time.Duration{
			"find_people_by_skill":   500 * time.Millisecond,
			"find_people_by_company": 500 * time.Millisecond,
		},
	}
	exec := New(caller, graph.NewRegistry(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	time.AfterFunc(30*time.Millisecond, cancel)

	plan := makePlan(planner.StrategyParallelUnion,
		sq("find_people_by_skill", map[string]any{"skill": "Go"}, 1, ""),
		sq("find_people_by_company", map[string]any{"company_name": "Acme"}, 1, ""),
	)
	out, err := exec.Execute(ctx, plan, 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if len(out.RankedIDs) != 0 || out.TotalMatches != 0 {
		t.Errorf("partial ids must be discarded on cancellation, got %+v", out)
	}
}

func TestExecuteRankingCapAndTies(t *testing.T) {
	many := make([]int, 12)
	for i := range many {
		many[i] = i + 1
	}
	caller := &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		switch tool {
		case "search_job_descriptions_by_keywords":
			return idResult(tool, many...), nil
		case "find_leadership_indicators":
			return idResult(tool, 8), nil
		}
		return nil, fmt.Errorf("unexpected tool %s", tool)
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	plan := makePlan(planner.StrategyParallelUnion,
		sq("search_job_descriptions_by_keywords", map[string]any{"keywords": []any{"golang"}}, 1, ""),
		sq("find_leadership_indicators", map[string]any{}, 1, ""),
	)
	out, err := exec.Execute(context.Background(), plan, 3)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// Cap is twice the desired count; 8 leads on producer count, the
	// rest tie and sort ascending.
	if !reflect.DeepEqual(out.RankedIDs, []int{8, 1, 2, 3, 4, 5}) {
		t.Errorf("RankedIDs = %v, want [8 1 2 3 4 5]", out.RankedIDs)
	}
	if out.TotalMatches != 12 {
		t.Errorf("TotalMatches = %d, want 12", out.TotalMatches)
	}
}

func TestExecuteRankingCapCeiling(t *testing.T) {
	many := make([]int, 25)
	for i := range many {
		many[i] = i + 1
	}
	caller := &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		return idResult(tool, many...), nil
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	plan := makePlan(planner.StrategyParallelUnion,
		sq("find_people_by_skill", map[string]any{"skill": "Go"}, 1, ""),
	)
	out, err := exec.Execute(context.Background(), plan, 15)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(out.RankedIDs) != maxRankedIDs {
		t.Fatalf("len(RankedIDs) = %d, want %d", len(out.RankedIDs), maxRankedIDs)
	}
	if out.RankedIDs[0] != 1 || out.RankedIDs[len(out.RankedIDs)-1] != 20 {
		t.Errorf("RankedIDs = %v, want 1..20", out.RankedIDs)
	}
	if out.TotalMatches != 25 {
		t.Errorf("TotalMatches = %d, want 25", out.TotalMatches)
	}
}

func TestExecuteDesiredCountFloor(t *testing.T) {
	caller := &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		return idResult(tool, 5, 6, 7), nil
	}}
	exec := New(caller, graph.NewRegistry(), 8)

	plan := makePlan(planner.StrategyParallelUnion,
		sq("find_people_by_skill", map[string]any{"skill": "Go"}, 1, ""),
	)
	out, err := exec.Execute(context.Background(), plan, 0)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !reflect.DeepEqual(out.RankedIDs, []int{5, 6}) {
		t.Errorf("RankedIDs = %v, want [5 6]", out.RankedIDs)
	}
}

func TestExecuteDeterministicUnderCompletionOrder(t *testing.T) {
	delays := []map[string]time.Duration{
		{"find_people_by_skill": 30 * time.Millisecond},
		{"find_people_by_company": 30 * time.Millisecond},
	}

	var rankings [][]int
	for _, delay := range delays {
		caller := intersectCaller()
		caller.delay = delay
		exec := New(caller, graph.NewRegistry(), 8)

		out, err := exec.Execute(context.Background(), intersectPlan(), 5)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		rankings = append(rankings, out.RankedIDs)
	}

	if !reflect.DeepEqual(rankings[0], rankings[1]) {
		t.Errorf("completion order changed the ranking: %v vs %v", rankings[0], rankings[1])
	}
	if !reflect.DeepEqual(rankings[0], []int{2, 4}) {
		t.Errorf("RankedIDs = %v, want [2 4]", rankings[0])
	}
}

func TestExecuteConcurrencyBound(t *testing.T) {
	var inFlight, peak int32
	caller := &fakeCaller{fn: func(tool string, _ map[string]any) (*graph.CallResult, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return idResult(tool, 1), nil
	}}
	exec := New(caller, graph.NewRegistry(), 2)

	plan := makePlan(planner.StrategyParallelUnion,
		sq("find_people_by_skill", map[string]any{"skill": "Go"}, 1, ""),
		sq("find_people_by_company", map[string]any{"company_name": "Acme"}, 1, ""),
		sq("find_people_by_location", map[string]any{"location": "Berlin"}, 1, ""),
		sq("find_people_by_title", map[string]any{"title": "engineer"}, 1, ""),
		sq("find_people_by_seniority", map[string]any{"seniority": "senior"}, 1, ""),
		sq("find_people_by_institution", map[string]any{"institution": "MIT"}, 1, ""),
	)
	if _, err := exec.Execute(context.Background(), plan, 5); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", got)
	}
	if caller.callCount() != 6 {
		t.Errorf("expected 6 calls, got %d", caller.callCount())
	}
}

func TestResolvePlaceholders(t *testing.T) {
	registry := graph.NewRegistry()

	t.Run("scalar", func(t *testing.T) {
		params := map[string]any{"person_id": graph.FromPrevious}
		resolved, err := resolvePlaceholders(registry, "get_person_complete_profile", params, []int{5, 9})
		if err != nil {
			t.Fatalf("resolvePlaceholders() error = %v", err)
		}
		if resolved["person_id"] != 5 {
			t.Errorf("person_id = %v, want the first prior id", resolved["person_id"])
		}
		if params["person_id"] != graph.FromPrevious {
			t.Error("input map was mutated")
		}
	})

	t.Run("array", func(t *testing.T) {
		params := map[string]any{"keywords": graph.FromPrevious, "match_type": "any"}
		resolved, err := resolvePlaceholders(registry, "search_skills_by_keywords", params, []int{5, 9})
		if err != nil {
			t.Fatalf("resolvePlaceholders() error = %v", err)
		}
		if !reflect.DeepEqual(resolved["keywords"], []any{5, 9}) {
			t.Errorf("keywords = %v, want all prior ids", resolved["keywords"])
		}
		if resolved["match_type"] != "any" {
			t.Errorf("untouched params must carry over, got %v", resolved["match_type"])
		}
	})

	t.Run("no priors", func(t *testing.T) {
		params := map[string]any{"person_id": graph.FromPrevious}
		if _, err := resolvePlaceholders(registry, "get_person_complete_profile", params, nil); err == nil {
			t.Fatal("expected an error with no prior ids")
		}
	})

	t.Run("no placeholders", func(t *testing.T) {
		params := map[string]any{"skill": "Go"}
		resolved, err := resolvePlaceholders(registry, "find_people_by_skill", params, nil)
		if err != nil {
			t.Fatalf("resolvePlaceholders() error = %v", err)
		}
		if !reflect.DeepEqual(resolved, params) {
			t.Errorf("resolved = %v, want the input unchanged", resolved)
		}
	})
}

func TestFailureFromError(t *testing.T) {
	callErr := &graph.CallError{
		Kind: graph.ErrAuth, Tool: "find_people_by_skill",
		Code: graph.CodeInvalidRequest, Message: "invalid API key",
	}

	tests := []struct {
		name     string
		err      error
		wantKind string
		wantCode int
	}{
		{"call error", callErr, "auth", graph.CodeInvalidRequest},
		{"wrapped call error", fmt.Errorf("dispatch: %w", callErr), "auth", graph.CodeInvalidRequest},
		{"context canceled", context.Canceled, FailureCancelled, 0},
		{"deadline exceeded", context.DeadlineExceeded, FailureCancelled, 0},
		{"plain error", errors.New("boom"), string(graph.ErrTransport), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failure := failureFromError(tt.err)
			if failure.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", failure.Kind, tt.wantKind)
			}
			if failure.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", failure.Code, tt.wantCode)
			}
			if failure.Message == "" {
				t.Error("Message must not be empty")
			}
		})
	}
}

func TestSequentialOrder(t *testing.T) {
	subQueries := []planner.SubQuery{
		{Tool: "a", Priority: 2},
		{Tool: "b", Priority: 1},
		{Tool: "c", Priority: 1},
		{Tool: "d", Priority: 3},
	}
	got := sequentialOrder(subQueries)
	if !reflect.DeepEqual(got, []int{1, 2, 0, 3}) {
		t.Errorf("sequentialOrder() = %v, want [1 2 0 3]", got)
	}
}
