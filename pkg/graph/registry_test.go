package graph

import (
	"strings"
	"testing"
)

func TestRegistryContainsAllTools(t *testing.T) {
	r := NewRegistry()

	if r.Count() != 19 {
		t.Fatalf("expected 19 registered tools, got %d", r.Count())
	}

	expected := []string{
		"find_person_by_name",
		"find_people_by_skill",
		"find_people_by_company",
		"find_people_by_location",
		"find_people_by_institution",
		"find_people_by_title",
		"find_people_by_seniority",
		"find_people_by_experience_range",
		"search_job_descriptions_by_keywords",
		"search_skills_by_keywords",
		"search_education_by_keywords",
		"find_leadership_indicators",
		"find_colleagues_of_person",
		"find_people_with_shared_skills",
		"get_person_complete_profile",
		"get_person_skills",
		"get_person_work_history",
		"get_person_education",
		"get_graph_statistics",
	}

	list := r.List()
	if len(list) != len(expected) {
		t.Fatalf("expected %d tools in list, got %d", len(expected), len(list))
	}
	for i, name := range expected {
		if list[i].Name != name {
			t.Errorf("position %d: expected %q, got %q", i, name, list[i].Name)
		}
		if !r.Registered(name) {
			t.Errorf("expected %q to be registered", name)
		}
	}

	if r.Registered("find_wizards") {
		t.Error("expected unknown tool to be unregistered")
	}
}

func TestRegistryDescriptor(t *testing.T) {
	r := NewRegistry()

	info, ok := r.Descriptor("find_people_by_experience_range")
	if !ok {
		t.Fatal("expected descriptor for registered tool")
	}
	if len(info.Parameters) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(info.Parameters))
	}
	if info.Parameters[0].Name != "min_years" || !info.Parameters[0].Required {
		t.Errorf("expected required min_years first, got %+v", info.Parameters[0])
	}
	if info.Parameters[1].Name != "max_years" || info.Parameters[1].Required {
		t.Errorf("expected optional max_years second, got %+v", info.Parameters[1])
	}

	if _, ok := r.Descriptor("no_such_tool"); ok {
		t.Error("expected no descriptor for unknown tool")
	}
}

func TestValidateParams(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		tool    string
		params  map[string]any
		wantErr bool
	}{
		{
			name:   "valid string param",
			tool:   "find_people_by_skill",
			params: map[string]any{"skill": "Python"},
		},
		{
			name:    "unknown tool",
			tool:    "find_wizards",
			params:  map[string]any{},
			wantErr: true,
		},
		{
			name:    "missing required param",
			tool:    "find_people_by_skill",
			params:  map[string]any{},
			wantErr: true,
		},
		{
			name:    "unknown param",
			tool:    "find_people_by_skill",
			params:  map[string]any{"skill": "Python", "city": "Berlin"},
			wantErr: true,
		},
		{
			name:    "wrong type for string param",
			tool:    "find_people_by_skill",
			params:  map[string]any{"skill": 42},
			wantErr: true,
		},
		{
			name:   "integer as whole float",
			tool:   "get_person_complete_profile",
			params: map[string]any{"person_id": float64(7)},
		},
		{
			name:    "integer as fractional float",
			tool:    "get_person_complete_profile",
			params:  map[string]any{"person_id": 7.5},
			wantErr: true,
		},
		{
			name:   "placeholder accepted for integer",
			tool:   "get_person_complete_profile",
			params: map[string]any{"person_id": FromPrevious},
		},
		{
			name:   "placeholder accepted for array",
			tool:   "search_skills_by_keywords",
			params: map[string]any{"keywords": FromPrevious},
		},
		{
			name:   "keywords as any slice",
			tool:   "search_skills_by_keywords",
			params: map[string]any{"keywords": []any{"go", "golang"}, "match_type": "any"},
		},
		{
			name:   "keywords as string slice",
			tool:   "search_job_descriptions_by_keywords",
			params: map[string]any{"keywords": []string{"founder", "CEO"}, "match_type": "all"},
		},
		{
			name:    "invalid enum value",
			tool:    "search_skills_by_keywords",
			params:  map[string]any{"keywords": []any{"go"}, "match_type": "some"},
			wantErr: true,
		},
		{
			name:    "keywords as scalar",
			tool:    "search_skills_by_keywords",
			params:  map[string]any{"keywords": "go"},
			wantErr: true,
		},
		{
			name:   "optional param omitted",
			tool:   "find_people_with_shared_skills",
			params: map[string]any{"person_id": 3},
		},
		{
			name:   "no params for parameterless tool",
			tool:   "get_graph_statistics",
			params: map[string]any{},
		},
		{
			name:   "nil params for parameterless tool",
			tool:   "find_leadership_indicators",
			params: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ValidateParams(tt.tool, tt.params)
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestCatalog(t *testing.T) {
	r := NewRegistry()
	catalog := r.Catalog()

	lines := strings.Split(strings.TrimRight(catalog, "\n"), "\n")
	if len(lines) != 19 {
		t.Fatalf("expected 19 catalog lines, got %d", len(lines))
	}

	for _, info := range r.List() {
		if !strings.Contains(catalog, info.Name) {
			t.Errorf("catalog missing tool %q", info.Name)
		}
	}

	if !strings.Contains(catalog, "match_type: string?") {
		t.Error("expected optional parameter marker in catalog")
	}
	if !strings.Contains(catalog, "person_id: integer") {
		t.Error("expected typed parameter in catalog")
	}
}
