package catalog

import (
	"testing"

	"github.com/pitabwire/cmsadmin/model"
)

func TestCheck_testdata(t *testing.T) {
	seeds, err := NewLoader().LoadAll([]string{"testdata/collections"})
	if err != nil {
		t.Fatal(err)
	}
	problems := Check(seeds, model.DefaultLocales())

	want := map[string]string{
		"locations": ProblemDroppedProperty,
		"products":  ProblemMissingIdentity,
	}
	if len(problems) != len(want) {
		t.Fatalf("Check() = %v, want %d problems", problems, len(want))
	}
	for _, p := range problems {
		if want[p.ID] != p.Code {
			t.Errorf("problem %s, want code %s for %s", p, want[p.ID], p.ID)
		}
	}
}

func TestCheck_cases(t *testing.T) {
	prop := func(key, dataType string) map[string]any {
		return map[string]any{"key": key, "dataType": dataType}
	}
	doc := func(props ...any) map[string]any {
		return map[string]any{"id": "x", "name": "X", "path": "x", "properties": props}
	}

	tests := []struct {
		name  string
		seeds []Seed
		codes []string
	}{
		{"clean", []Seed{{ID: "x", Data: doc(prop("a", "string"))}}, nil},
		{"not an object", []Seed{{ID: "x"}}, []string{ProblemNotObject}},
		{"no properties", []Seed{{ID: "x", Data: doc()}}, []string{ProblemNoProperties}},
		{
			"dropped and empty",
			[]Seed{{ID: "x", Data: doc(prop("", "string"))}},
			[]string{ProblemDroppedProperty, ProblemNoProperties},
		},
		{
			"duplicate key",
			[]Seed{{ID: "x", Data: doc(prop("a", "string"), prop("a", "number"))}},
			[]string{ProblemDuplicateKey},
		},
		{
			"duplicate id",
			[]Seed{
				{ID: "x", SourceFile: "a.yaml", Data: doc(prop("a", "string"))},
				{ID: "x", SourceFile: "b.yaml", Data: doc(prop("a", "string"))},
			},
			[]string{ProblemDuplicateID},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems := Check(tt.seeds, model.DefaultLocales())
			if len(problems) != len(tt.codes) {
				t.Fatalf("Check() = %v, want codes %v", problems, tt.codes)
			}
			for i, p := range problems {
				if p.Code != tt.codes[i] {
					t.Errorf("problems[%d].Code = %s, want %s", i, p.Code, tt.codes[i])
				}
			}
		})
	}
}
