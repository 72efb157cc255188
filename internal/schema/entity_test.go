package schema

import (
	"testing"

	"github.com/pitabwire/cmsadmin/model"
)

func entityDescriptor(t *testing.T) model.CollectionDescriptor {
	t.Helper()
	desc, ok := Decode(map[string]any{
		"id": "products", "path": "products", "name": "Products",
		"properties": []any{
			map[string]any{"key": "title", "dataType": "string", "required": true},
			map[string]any{"key": "price", "dataType": "number"},
			map[string]any{"key": "active", "dataType": "boolean"},
			map[string]any{"key": "status", "dataType": "string", "enumValues": map[string]any{"draft": "Draft", "live": "Live"}},
			map[string]any{"key": "tags", "dataType": "array", "of": map[string]any{"dataType": "string"}},
			map[string]any{"key": "label", "dataType": "string", "localized": true},
		},
	}, testLocales(), "")
	if !ok {
		t.Fatal("fixture decoded absent")
	}
	return desc
}

func TestEntitySchema_requiredAndProperties(t *testing.T) {
	s := EntitySchema(entityDescriptor(t))
	if len(s.Required) != 1 || s.Required[0] != "title" {
		t.Errorf("Required = %v, want [title]", s.Required)
	}
	if len(s.Properties) != 6 {
		t.Errorf("len(Properties) = %d, want 6", len(s.Properties))
	}
	if got := len(s.Properties["status"].Value.Enum); got != 2 {
		t.Errorf("status enum size = %d, want 2", got)
	}
	if got := len(s.Properties["label"].Value.Properties); got != 2 {
		t.Errorf("label locale properties = %d, want 2", got)
	}
}

func TestValidateEntity_valid(t *testing.T) {
	errs := ValidateEntity(entityDescriptor(t), map[string]any{
		"title":  "Lamp",
		"price":  12.5,
		"active": true,
		"status": "live",
		"tags":   []any{"home", "light"},
		"label":  map[string]any{"en": "Lamp", "th": "โคมไฟ"},
		"extra":  "ignored",
	})
	if len(errs) != 0 {
		t.Errorf("ValidateEntity() = %v, want no errors", errs)
	}
}

func TestValidateEntity_errors(t *testing.T) {
	errs := ValidateEntity(entityDescriptor(t), map[string]any{
		"price":  "cheap",
		"status": "archived",
		"tags":   []any{"ok", 3.0},
	})
	fields := make(map[string]string, len(errs))
	for _, e := range errs {
		fields[e.Field] = e.Code
	}
	want := map[string]string{
		"title":  "REQUIRED",
		"price":  "INVALID_VALUE",
		"status": "INVALID_VALUE",
		"tags":   "INVALID_VALUE",
	}
	for field, code := range want {
		if fields[field] != code {
			t.Errorf("error for %s = %q, want %q (all: %v)", field, fields[field], code, errs)
		}
	}
	if len(errs) != len(want) {
		t.Errorf("len(errs) = %d, want %d: %v", len(errs), len(want), errs)
	}
	if errs[0].Field != "title" {
		t.Errorf("errs[0].Field = %q, want title (property order)", errs[0].Field)
	}
}
