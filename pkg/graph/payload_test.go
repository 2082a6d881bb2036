package graph

import (
	"reflect"
	"testing"
)

func TestDecodePayloadJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want any
	}{
		{
			name: "object",
			text: `{"count": 2, "ok": true}`,
			want: map[string]any{"count": float64(2), "ok": true},
		},
		{
			name: "array",
			text: `[1, 2, 3]`,
			want: []any{float64(1), float64(2), float64(3)},
		},
		{
			name: "nested",
			text: `{"people": [{"person_id": 4, "name": "Ada"}]}`,
			want: map[string]any{
				"people": []any{map[string]any{"person_id": float64(4), "name": "Ada"}},
			},
		},
		{
			name: "empty text",
			text: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload(tt.text)
			if err != nil {
				t.Fatalf("DecodePayload failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodePayloadPythonLiteral(t *testing.T) {
	tests := []struct {
		name string
		text string
		want any
	}{
		{
			name: "single quoted dict",
			text: `{'name': 'Ada', 'person_id': 4}`,
			want: map[string]any{"name": "Ada", "person_id": float64(4)},
		},
		{
			name: "python keywords",
			text: `{'active': True, 'retired': False, 'note': None}`,
			want: map[string]any{"active": true, "retired": false, "note": nil},
		},
		{
			name: "tuple becomes list",
			text: `('a', 'b')`,
			want: []any{"a", "b"},
		},
		{
			name: "trailing comma",
			text: `[1, 2, 3,]`,
			want: []any{float64(1), float64(2), float64(3)},
		},
		{
			name: "nested structures",
			text: `{'people': [{'person_id': 9, 'skills': ('Go', 'Python')}], 'count': 1}`,
			want: map[string]any{
				"people": []any{map[string]any{
					"person_id": float64(9),
					"skills":    []any{"Go", "Python"},
				}},
				"count": float64(1),
			},
		},
		{
			name: "escaped quote inside string",
			text: `{'bio': 'works at \'Acme\' now'}`,
			want: map[string]any{"bio": "works at 'Acme' now"},
		},
		{
			name: "unicode escape",
			text: `{'name': 'José'}`,
			want: map[string]any{"name": "José"},
		},
		{
			name: "negative and float numbers",
			text: `{'delta': -3, 'score': 0.85}`,
			want: map[string]any{"delta": float64(-3), "score": 0.85},
		},
		{
			name: "empty dict",
			text: `{}`,
			want: map[string]any{},
		},
		{
			name: "empty list",
			text: `[]`,
			want: []any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload(tt.text)
			if err != nil {
				t.Fatalf("DecodePayload failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodePayloadInvalid(t *testing.T) {
	tests := []string{
		"sorry, something went wrong",
		"{'unterminated': 'string}",
		"{'key' 'missing colon'}",
		"[1, 2",
		"@@@",
	}

	for _, text := range tests {
		if _, err := DecodePayload(text); err == nil {
			t.Errorf("expected error for %q", text)
		}
	}
}

func TestExtractPersonIDs(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    []int
	}{
		{
			name: "flat list",
			payload: map[string]any{"people": []any{
				map[string]any{"person_id": float64(3)},
				map[string]any{"person_id": float64(1)},
				map[string]any{"person_id": float64(2)},
			}},
			want: []int{1, 2, 3},
		},
		{
			name: "duplicates collapse",
			payload: []any{
				map[string]any{"person_id": float64(5)},
				map[string]any{"person_id": float64(5)},
			},
			want: []int{5},
		},
		{
			name: "deeply nested",
			payload: map[string]any{
				"groups": []any{
					map[string]any{"members": []any{
						map[string]any{"person_id": float64(8), "colleagues": []any{
							map[string]any{"person_id": float64(2)},
						}},
					}},
				},
			},
			want: []int{2, 8},
		},
		{
			name: "string and int representations",
			payload: []any{
				map[string]any{"person_id": "14"},
				map[string]any{"person_id": 9},
			},
			want: []int{9, 14},
		},
		{
			name: "top level id field",
			payload: map[string]any{
				"person_id": float64(42),
				"name":      "Ada",
			},
			want: []int{42},
		},
		{
			name:    "no ids",
			payload: map[string]any{"total_people": float64(1542)},
			want:    []int{},
		},
		{
			name:    "non whole float ignored",
			payload: map[string]any{"person_id": 7.5},
			want:    []int{},
		},
		{
			name:    "nil payload",
			payload: nil,
			want:    []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPersonIDs(tt.payload)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
