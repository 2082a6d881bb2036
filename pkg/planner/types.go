// Package planner turns a natural-language question into an executable
// graph query plan in two model calls: the Decomposer extracts typed
// filters from the question, the SubQueryGenerator binds those filters to
// concrete tool invocations plus a combination strategy.
package planner

import (
	"fmt"
	"sort"
	"strings"
)

// Strategy controls how the executor combines sub-query results.
type Strategy string

const (
	// StrategyParallelIntersect runs groups in parallel and keeps only the
	// people every required group produced.
	StrategyParallelIntersect Strategy = "PARALLEL_INTERSECT"

	// StrategyParallelUnion runs everything in parallel and keeps anyone
	// any sub-query produced.
	StrategyParallelUnion Strategy = "PARALLEL_UNION"

	// StrategySequential runs sub-queries one at a time so later steps can
	// consume identifiers found by earlier ones.
	StrategySequential Strategy = "SEQUENTIAL"

	// StrategyHybrid intersects the required groups with the union of the
	// union-tagged groups.
	StrategyHybrid Strategy = "HYBRID"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyParallelIntersect, StrategyParallelUnion, StrategySequential, StrategyHybrid:
		return true
	}
	return false
}

// ExperienceFilter bounds total years of professional experience. Either
// bound may be absent.
type ExperienceFilter struct {
	MinYears *int `json:"min_years,omitempty"`
	MaxYears *int `json:"max_years,omitempty"`
}

// IsEmpty reports whether no bound is set. A nil receiver is empty.
func (e *ExperienceFilter) IsEmpty() bool {
	return e == nil || (e.MinYears == nil && e.MaxYears == nil)
}

// Filters is the typed decomposition of a user query. Every field is
// optional and independently composable; the JSON names are the contract
// with the decomposition model. An empty collection and an absent field
// mean the same thing.
type Filters struct {
	SkillFilters       []string          `json:"skill_filters"`
	CompanyFilters     []string          `json:"company_filters"`
	LocationFilters    []string          `json:"location_filters"`
	InstitutionFilters []string          `json:"institution_filters"`
	NameFilters        []string          `json:"name_filters"`
	SeniorityFilters   []string          `json:"seniority_filters"`
	ExperienceFilters  *ExperienceFilter `json:"experience_filters,omitempty"`
	OtherCriteria      map[string]string `json:"other_criteria"`
}

// IsEmpty reports whether no filter of any kind is set.
func (f Filters) IsEmpty() bool {
	return len(f.SkillFilters) == 0 &&
		len(f.CompanyFilters) == 0 &&
		len(f.LocationFilters) == 0 &&
		len(f.InstitutionFilters) == 0 &&
		len(f.NameFilters) == 0 &&
		len(f.SeniorityFilters) == 0 &&
		f.ExperienceFilters.IsEmpty() &&
		len(f.OtherCriteria) == 0
}

// Summary renders the non-empty filters as short "category: values" lines
// for prompt embedding and logs. Empty filters render as "none".
func (f Filters) Summary() string {
	var lines []string
	add := func(name string, values []string) {
		if len(values) > 0 {
			lines = append(lines, name+": "+strings.Join(values, ", "))
		}
	}
	add("skills", f.SkillFilters)
	add("companies", f.CompanyFilters)
	add("locations", f.LocationFilters)
	add("institutions", f.InstitutionFilters)
	add("names", f.NameFilters)
	add("seniority", f.SeniorityFilters)

	if !f.ExperienceFilters.IsEmpty() {
		e := f.ExperienceFilters
		switch {
		case e.MinYears != nil && e.MaxYears != nil:
			lines = append(lines, fmt.Sprintf("experience: %d to %d years", *e.MinYears, *e.MaxYears))
		case e.MinYears != nil:
			lines = append(lines, fmt.Sprintf("experience: at least %d years", *e.MinYears))
		default:
			lines = append(lines, fmt.Sprintf("experience: at most %d years", *e.MaxYears))
		}
	}

	if len(f.OtherCriteria) > 0 {
		keys := make([]string, 0, len(f.OtherCriteria))
		for key := range f.OtherCriteria {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, key := range keys {
			pairs = append(pairs, key+"="+f.OtherCriteria[key])
		}
		lines = append(lines, "other: "+strings.Join(pairs, ", "))
	}

	if len(lines) == 0 {
		return "none"
	}
	return strings.Join(lines, "\n")
}

// SubQuery is one planned invocation of one remote tool.
type SubQuery struct {
	// Description restates the sub-query in plain language for logs.
	Description string `json:"sub_query"`

	// Tool names a registered graph tool.
	Tool string `json:"tool"`

	// Params holds the tool arguments. A value equal to graph.FromPrevious
	// is resolved by the executor from the preceding step's results.
	Params map[string]any `json:"params"`

	// Priority 1 marks sub-queries the answer requires; 2 is supporting
	// evidence, 3 optional enrichment.
	Priority int `json:"priority"`

	// Group tags sub-queries whose results are unioned before the strategy
	// combines groups. Empty means the sub-query stands alone.
	Group string `json:"group,omitempty"`

	// Rationale is the model's free-form justification.
	Rationale string `json:"rationale,omitempty"`
}

// Plan is an ordered set of sub-queries plus the algebra that combines
// their results.
type Plan struct {
	SubQueries    []SubQuery `json:"sub_queries"`
	Strategy      Strategy   `json:"strategy"`
	OriginalQuery string     `json:"original_query"`
	FiltersUsed   Filters    `json:"filters_used"`
}

// IsEmpty reports whether the plan has nothing to execute.
func (p Plan) IsEmpty() bool {
	return len(p.SubQueries) == 0
}
