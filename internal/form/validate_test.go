package form

import (
	"testing"

	"github.com/pitabwire/cmsadmin/model"
)

func validState() model.FormState {
	return baseState(
		model.PropertyFormState{Key: "title", DataType: "string"},
		model.PropertyFormState{Key: "owner", DataType: "reference", ReferencePath: "users"},
	)
}

func TestValidate_valid(t *testing.T) {
	if err := Validate(validState()); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_rules(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(s *model.FormState)
		wantField string
		wantCode  string
		wantMsg   string
	}{
		{
			name:      "missing id",
			mutate:    func(s *model.FormState) { s.CollectionID = "  " },
			wantField: "collectionId", wantCode: RuleCollectionIDRequired,
			wantMsg: "Collection ID is required.",
		},
		{
			name:      "bad id",
			mutate:    func(s *model.FormState) { s.CollectionID = "bad id!" },
			wantField: "collectionId", wantCode: RuleCollectionIDFormat,
			wantMsg: "Collection ID can only contain letters, numbers, dashes, and underscores.",
		},
		{
			name:      "missing name",
			mutate:    func(s *model.FormState) { s.Name = "" },
			wantField: "name", wantCode: RuleNameRequired,
			wantMsg: "Collection name is required.",
		},
		{
			name:      "missing path",
			mutate:    func(s *model.FormState) { s.Path = " " },
			wantField: "path", wantCode: RulePathRequired,
			wantMsg: "Collection path is required.",
		},
		{
			name:      "no properties",
			mutate:    func(s *model.FormState) { s.Properties = nil },
			wantField: "properties", wantCode: RulePropertiesRequired,
			wantMsg: "At least one property is required.",
		},
		{
			name:      "blank key",
			mutate:    func(s *model.FormState) { s.Properties[1].Key = " " },
			wantField: "properties.1.key", wantCode: RulePropertyKeyRequired,
			wantMsg: "All properties require a field key.",
		},
		{
			name:      "reference without path",
			mutate:    func(s *model.FormState) { s.Properties[1].ReferencePath = "" },
			wantField: "properties.1.referencePath", wantCode: RuleReferencePathRequired,
			wantMsg: `Property "owner" requires a reference path.`,
		},
		{
			name: "array of reference without path",
			mutate: func(s *model.FormState) {
				s.Properties[0] = model.PropertyFormState{Key: "authors", DataType: "array", ArrayOfType: "reference"}
			},
			wantField: "properties.0.arrayReferencePath", wantCode: RuleArrayReferencePath,
			wantMsg: `Array property "authors" requires a reference path.`,
		},
		{
			name: "storage without folder",
			mutate: func(s *model.FormState) {
				s.Properties[0].StorageEnabled = true
			},
			wantField: "properties.0.storagePath", wantCode: RuleStoragePathRequired,
			wantMsg: `Property "title" requires a storage folder.`,
		},
		{
			name: "negative max size",
			mutate: func(s *model.FormState) {
				s.Properties[0].StorageEnabled = true
				s.Properties[0].StoragePath = "images"
				s.Properties[0].StorageMaxSize = "-1"
			},
			wantField: "properties.0.storageMaxSize", wantCode: RuleStorageMaxSizeInvalid,
			wantMsg: `Property "title" has an invalid max file size.`,
		},
		{
			name: "non-numeric max size",
			mutate: func(s *model.FormState) {
				s.Properties[0].StorageEnabled = true
				s.Properties[0].StoragePath = "images"
				s.Properties[0].StorageMaxSize = "ten"
			},
			wantField: "properties.0.storageMaxSize", wantCode: RuleStorageMaxSizeInvalid,
			wantMsg: `Property "title" has an invalid max file size.`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validState()
			tt.mutate(&s)
			assertRule(t, Validate(s), tt.wantField, tt.wantCode, tt.wantMsg)
		})
	}
}

// An earlier rule wins even when a later one also fails.
func TestValidate_precedence(t *testing.T) {
	s := validState()
	s.CollectionID = ""
	s.Properties[0].Key = ""
	assertRule(t, Validate(s), "collectionId", RuleCollectionIDRequired, "Collection ID is required.")
}

// Each property is checked against every property rule before the next
// property is looked at.
func TestValidate_propertyOrder(t *testing.T) {
	s := validState()
	s.Properties[0].StorageEnabled = true
	s.Properties[0].StoragePath = "images"
	s.Properties[0].StorageMaxSize = "x"
	s.Properties[1].Key = ""
	assertRule(t, Validate(s), "properties.0.storageMaxSize", RuleStorageMaxSizeInvalid,
		`Property "title" has an invalid max file size.`)
}

// A size left over on a property without storage is not checked.
func TestValidate_maxSizeIgnoredWithoutStorage(t *testing.T) {
	s := validState()
	s.Properties[0].StorageMaxSize = "x"
	if err := Validate(s); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_maxSize(t *testing.T) {
	for in, want := range map[string]bool{
		"":      true,
		"0":     true,
		" 2.5 ": true,
		"-0.1":  false,
		"Inf":   false,
		"NaN":   false,
		"1e3":   true,
		"5MB":   false,
	} {
		if got := validMaxSize(in); got != want {
			t.Errorf("validMaxSize(%q) = %v, want %v", in, got, want)
		}
	}
}

func assertRule(t *testing.T, err error, field, code, msg string) {
	t.Helper()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	if !model.IsCode(err, model.ErrValidationError) {
		t.Fatalf("Validate() = %v, want VALIDATION_ERROR", err)
	}
	env := err.(*model.ErrorEnvelope)
	if env.Message != msg {
		t.Errorf("Message = %q, want %q", env.Message, msg)
	}
	if len(env.Details) != 1 {
		t.Fatalf("len(Details) = %d, want 1", len(env.Details))
	}
	d := env.Details[0]
	if d.Field != field || d.Code != code {
		t.Errorf("Details[0] = %s/%s, want %s/%s", d.Field, d.Code, field, code)
	}
}
