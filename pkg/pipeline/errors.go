package pipeline

import "fmt"

// ErrorKind tags what failed. The kinds mirror the recovery rules: only
// composition failures, an all-required-failure during execution, and
// cancellation end a run in ERROR.
type ErrorKind string

const (
	// KindDecomposition marks filter extraction that never produced
	// usable output. The run proceeds with empty filters.
	KindDecomposition ErrorKind = "decomposition_error"

	// KindPlanning marks sub-query generation that produced no
	// executable plan. The run proceeds and answers deterministically.
	KindPlanning ErrorKind = "planning_error"

	// KindSubQuery marks one failed remote call. Fatal only when every
	// required sub-query failed.
	KindSubQuery ErrorKind = "subquery_error"

	// KindFetch marks one failed profile fetch. Never fatal.
	KindFetch ErrorKind = "fetch_error"

	// KindComposition marks a failed composing model call. Always fatal.
	KindComposition ErrorKind = "composition_error"

	// KindCancelled marks a run stopped by its context.
	KindCancelled ErrorKind = "cancelled"
)

// Error is one structured failure recorded while a run progressed.
// Non-fatal entries accumulate in State.Errors; a fatal one also comes
// back as Run's error return.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`

	// Tool and SubQueryIndex locate sub-query failures in the plan.
	Tool          string `json:"tool,omitempty"`
	SubQueryIndex *int   `json:"sub_query_index,omitempty"`

	// PersonID locates profile fetch failures.
	PersonID int `json:"person_id,omitempty"`

	// Fatal marks the entry that ended the run.
	Fatal bool `json:"fatal,omitempty"`
}

func (e *Error) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Tool, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// diagnosticResponse keeps the final response renderable when a run dies
// before composition.
func diagnosticResponse(perr Error) string {
	switch perr.Kind {
	case KindCancelled:
		return "The search was cancelled before it could finish."
	case KindComposition:
		return "The search finished, but the answer could not be written: " + perr.Message
	default:
		return "The search could not be completed: " + perr.Message
	}
}
