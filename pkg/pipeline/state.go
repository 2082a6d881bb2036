package pipeline

import (
	"log/slog"
	"time"

	"github.com/usegrapevine/grapevine/pkg/executor"
	"github.com/usegrapevine/grapevine/pkg/llms"
	"github.com/usegrapevine/grapevine/pkg/planner"
	"github.com/usegrapevine/grapevine/pkg/synthesizer"
)

// PlanningMetadata accounts for the two planning model calls.
type PlanningMetadata struct {
	DecompositionDuration time.Duration `json:"decomposition_duration"`
	DecompositionAttempts int           `json:"decomposition_attempts"`
	GenerationDuration    time.Duration `json:"generation_duration"`
	GenerationAttempts    int           `json:"generation_attempts"`
	Tokens                llms.Usage    `json:"tokens"`
}

// ExecutionMetadata accounts for the tool fan-out.
type ExecutionMetadata struct {
	Duration   time.Duration `json:"duration"`
	SubQueries int           `json:"sub_queries"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// SynthesisMetadata accounts for profile fetching and composition.
type SynthesisMetadata struct {
	Duration      time.Duration `json:"duration"`
	Tokens        llms.Usage    `json:"tokens"`
	ProfilesUsed  int           `json:"profiles_used"`
	Deterministic bool          `json:"deterministic"`
}

// Metadata aggregates per-stage accounting for one run.
type Metadata struct {
	Planning  PlanningMetadata  `json:"planning"`
	Execution ExecutionMetadata `json:"execution"`
	Synthesis SynthesisMetadata `json:"synthesis"`
	Duration  time.Duration     `json:"duration"`
}

// State threads one query's data through the stages. Each stage reads
// what its predecessors wrote and appends its own fields; a State belongs
// to exactly one run and is never shared.
type State struct {
	Query        string
	DesiredCount int

	Status Status

	Filters planner.Filters
	Plan    planner.Plan

	ToolResults  []executor.ToolResult
	RankedIDs    []int
	TotalMatches int

	FinalResponse string
	Matches       []synthesizer.Match

	// Errors is the ordered log of everything that went wrong, fatal or
	// not.
	Errors []Error

	Metadata Metadata
}

func newState(query string, desiredCount int) *State {
	return &State{
		Query:        query,
		DesiredCount: desiredCount,
		Status:       StatusInitialized,
		RankedIDs:    []int{},
		Matches:      []synthesizer.Match{},
		Errors:       []Error{},
	}
}

// advance follows one edge of the status machine. Illegal edges are
// refused, so the status can only ever walk the defined path.
func (s *State) advance(to Status) {
	if !s.Status.CanTransition(to) {
		slog.Error("refused illegal status transition", "from", s.Status, "to", to)
		return
	}
	s.Status = to
}

// record appends one failure to the ordered error log.
func (s *State) record(perr Error) {
	s.Errors = append(s.Errors, perr)
	slog.Debug("pipeline error recorded", "kind", perr.Kind, "message", perr.Message)
}

// result snapshots the state into the caller-facing shape.
func (s *State) result() *Result {
	return &Result{
		FinalResponse: s.FinalResponse,
		Matches:       s.Matches,
		RankedIDs:     s.RankedIDs,
		Filters:       s.Filters,
		Strategy:      s.Plan.Strategy,
		Status:        s.Status,
		Errors:        s.Errors,
		Metadata:      s.Metadata,
	}
}
