package form

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pitabwire/cmsadmin/model"
)

// loaded is a string property with every optional field populated.
func loaded() model.PropertyFormState {
	return model.PropertyFormState{
		ID: "prop_1", Key: "photo", DataType: "string",
		EnumValues: []string{"a"}, ReferencePath: "users",
		ArrayOfType: "reference", ArrayEnumValues: []string{"x"}, ArrayReferencePath: "tags",
		StorageEnabled: true, StoragePath: "images", StorageAcceptedFiles: "image/*", StorageMaxSize: "2",
		DefaultValue: "d", Multiline: true, AutoValue: "on_create",
	}
}

func TestApplyFieldChange_dataTypeClearing(t *testing.T) {
	tests := []struct {
		dataType string
		check    func(t *testing.T, p model.PropertyFormState)
	}{
		{"number", func(t *testing.T, p model.PropertyFormState) {
			if p.EnumValues != nil || p.StorageEnabled || p.StoragePath != "" || p.DefaultValue != "" || p.Multiline {
				t.Errorf("string-only fields kept: %+v", p)
			}
			if p.ReferencePath != "" || p.ArrayReferencePath != "" || p.ArrayOfType != "string" || p.AutoValue != "" {
				t.Errorf("unrelated fields kept: %+v", p)
			}
		}},
		{"reference", func(t *testing.T, p model.PropertyFormState) {
			if p.ReferencePath != "users" {
				t.Errorf("ReferencePath = %q, want users", p.ReferencePath)
			}
		}},
		{"array", func(t *testing.T, p model.PropertyFormState) {
			if p.ArrayOfType != "reference" || p.ArrayReferencePath != "tags" {
				t.Errorf("array fields cleared: %+v", p)
			}
			if p.ReferencePath != "" {
				t.Errorf("ReferencePath = %q, want cleared", p.ReferencePath)
			}
		}},
		{"date_time", func(t *testing.T, p model.PropertyFormState) {
			if p.AutoValue != "on_create" {
				t.Errorf("AutoValue = %q, want kept", p.AutoValue)
			}
		}},
	}
	c := testCodec()
	for _, tt := range tests {
		t.Run(tt.dataType, func(t *testing.T) {
			s, err := c.ApplyFieldChange(baseState(loaded()), "properties.0.dataType", tt.dataType)
			if err != nil {
				t.Fatal(err)
			}
			p := s.Properties[0]
			if p.DataType != tt.dataType {
				t.Errorf("DataType = %q, want %q", p.DataType, tt.dataType)
			}
			tt.check(t, p)
		})
	}
}

// Every clearing rule leaves the property with its trigger condition
// still true and is idempotent.
func TestPropertyClearingRules_idempotent(t *testing.T) {
	for _, r := range PropertyClearingRules {
		p := loaded()
		if !r.When(p) {
			continue
		}
		r.Apply(&p)
		once := p.Clone()
		r.Apply(&p)
		if diff := cmp.Diff(once, p); diff != "" {
			t.Errorf("%s %s: not idempotent (-once +twice):\n%s", r.Field, r.Condition, diff)
		}
	}
}

func TestApplyFieldChange_propertyRules(t *testing.T) {
	c := testCodec()
	tests := []struct {
		field string
		value any
		check func(p model.PropertyFormState) bool
	}{
		{"arrayOfType", "number", func(p model.PropertyFormState) bool {
			return p.ArrayEnumValues == nil && p.ArrayReferencePath == ""
		}},
		{"arrayOfType", "string", func(p model.PropertyFormState) bool {
			return p.ArrayEnumValues != nil && p.ArrayReferencePath == ""
		}},
		{"storageEnabled", false, func(p model.PropertyFormState) bool {
			return p.StoragePath == "" && p.StorageAcceptedFiles == "" && p.StorageMaxSize == "" && p.DefaultValue == ""
		}},
		{"localized", true, func(p model.PropertyFormState) bool {
			return p.Localized && !p.StorageEnabled && p.StoragePath == "" && p.DefaultValue == ""
		}},
		{"markdown", true, func(p model.PropertyFormState) bool {
			return p.Markdown && p.Multiline
		}},
	}
	for _, tt := range tests {
		s, err := c.ApplyFieldChange(baseState(loaded()), "properties.0."+tt.field, tt.value)
		if err != nil {
			t.Fatalf("%s: %v", tt.field, err)
		}
		if !tt.check(s.Properties[0]) {
			t.Errorf("%s=%v: property = %+v", tt.field, tt.value, s.Properties[0])
		}
	}
}

func TestApplyFieldChange_storagePathEnablesStorage(t *testing.T) {
	c := testCodec()
	s, err := c.ApplyFieldChange(baseState(EmptyProperty()), "properties.0.storagePath", "images")
	if err != nil {
		t.Fatal(err)
	}
	if !s.Properties[0].StorageEnabled {
		t.Error("StorageEnabled = false, want true after choosing a folder")
	}
}

func TestApplyFieldChange_listValues(t *testing.T) {
	c := testCodec()
	for _, v := range []any{[]string{"a", "b"}, []any{"a", "b"}, "a,b"} {
		s, err := c.ApplyFieldChange(baseState(EmptyProperty()), "properties.0.enumValues", v)
		if err != nil {
			t.Fatalf("%T: %v", v, err)
		}
		if diff := cmp.Diff([]string{"a", "b"}, s.Properties[0].EnumValues); diff != "" {
			t.Errorf("%T: EnumValues mismatch (-want +got):\n%s", v, diff)
		}
	}
}

func TestApplyFieldChange_labelsMirrorDefaultLocale(t *testing.T) {
	c := testCodec()
	s := c.EmptyFormState()

	s, err := c.ApplyFieldChange(s, "name", "Products")
	if err != nil {
		t.Fatal(err)
	}
	if s.Localizations["en"].Name != "Products" {
		t.Errorf("Localizations[en].Name = %q, want Products", s.Localizations["en"].Name)
	}

	s, err = c.ApplyFieldChange(s, "localizations.en.group", "Catalog")
	if err != nil {
		t.Fatal(err)
	}
	if s.Group != "Catalog" {
		t.Errorf("Group = %q, want Catalog", s.Group)
	}

	s, err = c.ApplyFieldChange(s, "localizations.th.name", "สินค้า")
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "Products" || s.Localizations["th"].Name != "สินค้า" {
		t.Errorf("Name = %q, th = %q", s.Name, s.Localizations["th"].Name)
	}
}

func TestApplyFieldChange_permissions(t *testing.T) {
	c := testCodec()
	s, err := c.ApplyFieldChange(c.EmptyFormState(), "permissions.delete", true)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Permissions.Delete {
		t.Error("Permissions.Delete = false, want true")
	}
}

func TestApplyFieldChange_errors(t *testing.T) {
	c := testCodec()
	tests := []struct {
		field string
		value any
	}{
		{"bogus", "x"},
		{"name.extra", "x"},
		{"name", 3},
		{"permissions.admin", true},
		{"permissions.read", "yes"},
		{"localizations.fr.name", "x"},
		{"localizations.en.path", "x"},
		{"properties.5.key", "x"},
		{"properties.-1.key", "x"},
		{"properties.0.id", "x"},
		{"properties.0.required", "true"},
		{"properties.0.enumValues", 7},
	}
	for _, tt := range tests {
		state := c.EmptyFormState()
		got, err := c.ApplyFieldChange(state, tt.field, tt.value)
		if !model.IsCode(err, model.ErrBadRequest) {
			t.Errorf("ApplyFieldChange(%q, %v) error = %v, want BAD_REQUEST", tt.field, tt.value, err)
		}
		if !Equal(got, state) {
			t.Errorf("ApplyFieldChange(%q) changed state on error", tt.field)
		}
	}
}

func TestApplyFieldChange_doesNotMutateInput(t *testing.T) {
	c := testCodec()
	state := baseState(loaded())
	before := state.Clone()
	if _, err := c.ApplyFieldChange(state, "properties.0.dataType", "number"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, state); diff != "" {
		t.Errorf("input mutated (-before +after):\n%s", diff)
	}
}

func TestAddRemoveProperty(t *testing.T) {
	c := testCodec()
	s := c.AddProperty(c.EmptyFormState())
	if len(s.Properties) != 2 {
		t.Fatalf("len(Properties) = %d, want 2", len(s.Properties))
	}
	if s.Properties[0].ID == s.Properties[1].ID {
		t.Error("new property reuses an id")
	}

	second := s.Properties[1].ID
	s, err := c.RemoveProperty(s, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Properties) != 1 || s.Properties[0].ID != second {
		t.Errorf("Properties = %+v, want only %s", s.Properties, second)
	}

	s, err = c.RemoveProperty(s, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Properties) != 1 {
		t.Errorf("last property removed, len = %d", len(s.Properties))
	}

	if _, err := c.RemoveProperty(s, 3); !model.IsCode(err, model.ErrBadRequest) {
		t.Errorf("RemoveProperty(3) error = %v, want BAD_REQUEST", err)
	}
}

func TestTogglePermission(t *testing.T) {
	c := testCodec()
	s, err := c.TogglePermission(c.EmptyFormState(), "read")
	if err != nil {
		t.Fatal(err)
	}
	if s.Permissions.Read {
		t.Error("Read = true after toggle")
	}
	if _, err := c.TogglePermission(s, "publish"); !model.IsCode(err, model.ErrBadRequest) {
		t.Errorf("TogglePermission(publish) error = %v, want BAD_REQUEST", err)
	}
}
