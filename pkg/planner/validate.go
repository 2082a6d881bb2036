package planner

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/usegrapevine/grapevine/pkg/graph"
)

// normalizeFilters coerces the model's JSON object into a fully populated
// Filters record: absent list fields become empty lists, scalars where a
// list is expected are wrapped as singletons, and experience bounds are
// coerced to integers.
func normalizeFilters(raw map[string]any) Filters {
	f := Filters{
		SkillFilters:       toStringList(raw["skill_filters"]),
		CompanyFilters:     toStringList(raw["company_filters"]),
		LocationFilters:    toStringList(raw["location_filters"]),
		InstitutionFilters: toStringList(raw["institution_filters"]),
		NameFilters:        toStringList(raw["name_filters"]),
		SeniorityFilters:   toStringList(raw["seniority_filters"]),
		OtherCriteria:      toStringMap(raw["other_criteria"]),
	}
	if exp := toExperienceFilter(raw["experience_filters"]); exp != nil {
		f.ExperienceFilters = exp
	}
	return f
}

// emptyFilters is a Filters value with every collection initialized, so
// consumers see empty rather than null.
func emptyFilters() Filters {
	return normalizeFilters(map[string]any{})
}

func toStringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := toScalarString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := toScalarString(v); s != "" {
			return []string{s}
		}
		return []string{}
	}
}

// toScalarString renders a scalar as its filter string, or "" for
// anything unusable.
func toScalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func toStringMap(v any) map[string]string {
	out := map[string]string{}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for key, value := range m {
		if s := toScalarString(value); s != "" {
			out[key] = s
		}
	}
	return out
}

func toExperienceFilter(v any) *ExperienceFilter {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	exp := &ExperienceFilter{
		MinYears: toIntPtr(m["min_years"]),
		MaxYears: toIntPtr(m["max_years"]),
	}
	if exp.IsEmpty() {
		return nil
	}
	return exp
}

func toIntPtr(v any) *int {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) {
			n := int(t)
			return &n
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return &n
		}
	}
	return nil
}

// coerceParams fixes the shape mismatches models commonly produce: a
// scalar where an array parameter is declared becomes a singleton list,
// and a number where a string is declared is stringified. Anything it
// cannot fix is left for ValidateParams to reject.
func coerceParams(registry *graph.Registry, tool string, params map[string]any) map[string]any {
	info, ok := registry.Descriptor(tool)
	if !ok || len(params) == 0 {
		return params
	}
	declared := map[string]graph.ToolParameter{}
	for _, p := range info.Parameters {
		declared[p.Name] = p
	}
	out := make(map[string]any, len(params))
	for key, value := range params {
		if p, ok := declared[key]; ok {
			value = coerceParamValue(p, value)
		}
		out[key] = value
	}
	return out
}

func coerceParamValue(p graph.ToolParameter, value any) any {
	if s, ok := value.(string); ok && s == graph.FromPrevious {
		return value
	}
	switch p.Type {
	case graph.ParamArray:
		switch value.(type) {
		case []any, []string, []int, []float64:
			return value
		case string, float64, bool:
			return []any{value}
		}
	case graph.ParamString:
		if _, ok := value.(string); !ok {
			if s := toScalarString(value); s != "" {
				return s
			}
		}
	}
	return value
}

// normalizeStrategy maps the model's strategy answer onto a known
// Strategy. A plan carrying the FROM_PREVIOUS placeholder only makes
// sense sequentially, so the placeholder wins over a conflicting answer;
// anything unrecognized falls back to union, which never discards people.
func normalizeStrategy(raw string, subQueries []SubQuery) Strategy {
	s := Strategy(strings.ToUpper(strings.TrimSpace(raw)))
	if usesFromPrevious(subQueries) {
		if s.Valid() && s != StrategySequential {
			slog.Warn("plan passes identifiers between steps, forcing sequential execution", "declared_strategy", string(s))
		}
		return StrategySequential
	}
	if !s.Valid() {
		if raw != "" {
			slog.Warn("plan names an unknown strategy, falling back to union", "strategy", raw)
		}
		return StrategyParallelUnion
	}
	return s
}

func usesFromPrevious(subQueries []SubQuery) bool {
	for _, sq := range subQueries {
		for _, v := range sq.Params {
			if s, ok := v.(string); ok && s == graph.FromPrevious {
				return true
			}
		}
	}
	return false
}
