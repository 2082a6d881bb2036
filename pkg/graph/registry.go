package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// FromPrevious is the placeholder a plan uses for parameters whose value
// becomes known only after an earlier sub-query ran. The executor replaces
// it before dispatch; validation accepts it wherever a concrete value is
// expected.
const FromPrevious = "FROM_PREVIOUS"

// Parameter types as they appear in tool schemas.
const (
	ParamString  = "string"
	ParamInteger = "integer"
	ParamArray   = "array"
)

type ToolParameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
}

// Registry is the authoritative client-side view of the graph server's
// tool surface. Dispatch goes through it so an unknown tool name is an
// explicit error rather than a failed remote call.
type Registry struct {
	order []string
	tools map[string]ToolInfo
}

func NewRegistry() *Registry {
	r := &Registry{tools: map[string]ToolInfo{}}
	for _, t := range builtinTools() {
		r.order = append(r.order, t.Name)
		r.tools[t.Name] = t
	}
	return r
}

func (r *Registry) Registered(name string) bool {
	_, ok := r.tools[name]
	return ok
}

func (r *Registry) Descriptor(name string) (ToolInfo, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool in registration order.
func (r *Registry) List() []ToolInfo {
	out := make([]ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

func (r *Registry) Count() int {
	return len(r.order)
}

// ValidateParams checks params against the tool's schema: the tool must
// be registered, required parameters must be present, and values must
// match their declared type. The FromPrevious placeholder passes any
// type check since it is resolved later.
func (r *Registry) ValidateParams(name string, params map[string]any) error {
	info, ok := r.tools[name]
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}

	declared := map[string]ToolParameter{}
	for _, p := range info.Parameters {
		declared[p.Name] = p
		if !p.Required {
			continue
		}
		if _, present := params[p.Name]; !present {
			return fmt.Errorf("tool %q: missing required parameter %q", name, p.Name)
		}
	}

	for key, value := range params {
		p, ok := declared[key]
		if !ok {
			return fmt.Errorf("tool %q: unknown parameter %q", name, key)
		}
		if err := checkParamValue(p, value); err != nil {
			return fmt.Errorf("tool %q: parameter %q: %w", name, key, err)
		}
	}
	return nil
}

func checkParamValue(p ToolParameter, value any) error {
	if s, ok := value.(string); ok && s == FromPrevious {
		return nil
	}

	switch p.Type {
	case ParamString:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		if len(p.Enum) > 0 && !containsString(p.Enum, s) {
			return fmt.Errorf("must be one of %s", strings.Join(p.Enum, ", "))
		}
	case ParamInteger:
		if !isInteger(value) {
			return fmt.Errorf("expected integer, got %T", value)
		}
	case ParamArray:
		switch value.(type) {
		case []any, []string, []int, []float64:
		default:
			return fmt.Errorf("expected array, got %T", value)
		}
	}
	return nil
}

func isInteger(v any) bool {
	switch n := v.(type) {
	case int, int32, int64:
		return true
	case float64:
		return n == math.Trunc(n)
	case json.Number:
		_, err := n.Int64()
		return err == nil
	default:
		return false
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Catalog renders every tool as one line of "name(params) - description",
// the form the planning prompts embed.
func (r *Registry) Catalog() string {
	var b strings.Builder
	for _, name := range r.order {
		info := r.tools[name]
		b.WriteString("- ")
		b.WriteString(info.Name)
		b.WriteString("(")
		for i, p := range info.Parameters {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Name)
			b.WriteString(": ")
			b.WriteString(p.Type)
			if !p.Required {
				b.WriteString("?")
			}
		}
		b.WriteString("): ")
		b.WriteString(info.Description)
		b.WriteString("\n")
	}
	return b.String()
}

func builtinTools() []ToolInfo {
	matchType := ToolParameter{
		Name:        "match_type",
		Type:        ParamString,
		Description: "how keywords combine: any matches at least one, all requires every keyword",
		Required:    false,
		Enum:        []string{"any", "all"},
	}

	return []ToolInfo{
		{
			Name:        "find_person_by_name",
			Description: "Look up people whose full name matches the given name.",
			Parameters: []ToolParameter{
				{Name: "name", Type: ParamString, Description: "full or partial person name", Required: true},
			},
		},
		{
			Name:        "find_people_by_skill",
			Description: "Find people who list a specific skill.",
			Parameters: []ToolParameter{
				{Name: "skill", Type: ParamString, Description: "skill name, e.g. Python", Required: true},
			},
		},
		{
			Name:        "find_people_by_company",
			Description: "Find people with work history at a company.",
			Parameters: []ToolParameter{
				{Name: "company_name", Type: ParamString, Description: "company name", Required: true},
			},
		},
		{
			Name:        "find_people_by_location",
			Description: "Find people based in a location.",
			Parameters: []ToolParameter{
				{Name: "location", Type: ParamString, Description: "city, region, or country", Required: true},
			},
		},
		{
			Name:        "find_people_by_institution",
			Description: "Find people who studied at an educational institution.",
			Parameters: []ToolParameter{
				{Name: "institution", Type: ParamString, Description: "school or university name", Required: true},
			},
		},
		{
			Name:        "find_people_by_title",
			Description: "Find people whose current or past job title matches.",
			Parameters: []ToolParameter{
				{Name: "title", Type: ParamString, Description: "job title, e.g. Staff Engineer", Required: true},
			},
		},
		{
			Name:        "find_people_by_seniority",
			Description: "Find people at a seniority level (junior, senior, lead, executive).",
			Parameters: []ToolParameter{
				{Name: "seniority", Type: ParamString, Description: "seniority level", Required: true},
			},
		},
		{
			Name:        "find_people_by_experience_range",
			Description: "Find people whose total years of experience fall in a range.",
			Parameters: []ToolParameter{
				{Name: "min_years", Type: ParamInteger, Description: "minimum years of experience", Required: true},
				{Name: "max_years", Type: ParamInteger, Description: "maximum years of experience", Required: false},
			},
		},
		{
			Name:        "search_job_descriptions_by_keywords",
			Description: "Full-text search over job descriptions.",
			Parameters: []ToolParameter{
				{Name: "keywords", Type: ParamArray, Description: "keywords to search for", Required: true},
				matchType,
			},
		},
		{
			Name:        "search_skills_by_keywords",
			Description: "Full-text search over skill entries.",
			Parameters: []ToolParameter{
				{Name: "keywords", Type: ParamArray, Description: "keywords to search for", Required: true},
				matchType,
			},
		},
		{
			Name:        "search_education_by_keywords",
			Description: "Full-text search over education records.",
			Parameters: []ToolParameter{
				{Name: "keywords", Type: ParamArray, Description: "keywords to search for", Required: true},
				matchType,
			},
		},
		{
			Name:        "find_leadership_indicators",
			Description: "Find people with leadership signals such as founder, executive, or team lead roles.",
		},
		{
			Name:        "find_colleagues_of_person",
			Description: "Find people who overlapped with a person at the same company.",
			Parameters: []ToolParameter{
				{Name: "person_id", Type: ParamInteger, Description: "id of the person", Required: true},
			},
		},
		{
			Name:        "find_people_with_shared_skills",
			Description: "Find people sharing skills with a person.",
			Parameters: []ToolParameter{
				{Name: "person_id", Type: ParamInteger, Description: "id of the person", Required: true},
				{Name: "min_shared", Type: ParamInteger, Description: "minimum number of shared skills", Required: false},
			},
		},
		{
			Name:        "get_person_complete_profile",
			Description: "Fetch the full profile record for a person.",
			Parameters: []ToolParameter{
				{Name: "person_id", Type: ParamInteger, Description: "id of the person", Required: true},
			},
		},
		{
			Name:        "get_person_skills",
			Description: "Fetch the skill list for a person.",
			Parameters: []ToolParameter{
				{Name: "person_id", Type: ParamInteger, Description: "id of the person", Required: true},
			},
		},
		{
			Name:        "get_person_work_history",
			Description: "Fetch the work history for a person.",
			Parameters: []ToolParameter{
				{Name: "person_id", Type: ParamInteger, Description: "id of the person", Required: true},
			},
		},
		{
			Name:        "get_person_education",
			Description: "Fetch the education records for a person.",
			Parameters: []ToolParameter{
				{Name: "person_id", Type: ParamInteger, Description: "id of the person", Required: true},
			},
		},
		{
			Name:        "get_graph_statistics",
			Description: "Report node and relationship counts for the whole graph.",
		},
	}
}
