package pipeline

// Status is one position in a run's lifecycle. The machine is a single
// forward path with ERROR reachable from every non-terminal position.
type Status string

const (
	StatusInitialized      Status = "INITIALIZED"
	StatusPlanning         Status = "PLANNING"
	StatusPlanningComplete Status = "PLANNING_COMPLETE"
	StatusExecuting        Status = "EXECUTING"
	StatusToolsComplete    Status = "TOOLS_COMPLETE"
	StatusSynthesizing     Status = "SYNTHESIZING"
	StatusComplete         Status = "COMPLETE"
	StatusError            Status = "ERROR"
)

// forward holds the machine's only non-ERROR edges.
var forward = map[Status]Status{
	StatusInitialized:      StatusPlanning,
	StatusPlanning:         StatusPlanningComplete,
	StatusPlanningComplete: StatusExecuting,
	StatusExecuting:        StatusToolsComplete,
	StatusToolsComplete:    StatusSynthesizing,
	StatusSynthesizing:     StatusComplete,
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// CanTransition reports whether the edge s → to exists.
func (s Status) CanTransition(to Status) bool {
	if s.Terminal() {
		return false
	}
	if to == StatusError {
		return true
	}
	return forward[s] == to
}
