package model

import "testing"

func TestCollectionConfig_Document_fieldNames(t *testing.T) {
	cfg := CollectionConfig{
		ID:   "loc",
		Name: "Locations",
		Path: "locations",
		Properties: []PropertyConfig{{
			Key:      "photo",
			DataType: DataTypeString,
			Storage: &StorageConfig{
				StoragePath:   "images",
				AcceptedFiles: []string{"image/*"},
				MaxSize:       Int64(10 * BytesInMB),
			},
		}},
		Localizations: map[string]LocalizationOverride{"th": {Name: "สถานที่"}},
	}

	doc, err := cfg.Document()
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if doc["id"] != "loc" || doc["path"] != "locations" {
		t.Errorf("doc = %v, want id/path set", doc)
	}
	if _, ok := doc["description"]; ok {
		t.Error("blank description should be omitted")
	}
	props, ok := doc["properties"].([]any)
	if !ok || len(props) != 1 {
		t.Fatalf("properties = %v, want one entry", doc["properties"])
	}
	storage := props[0].(map[string]any)["storage"].(map[string]any)
	if storage["storagePath"] != "images" {
		t.Errorf("storagePath = %v", storage["storagePath"])
	}
	if storage["maxSize"] != float64(10485760) {
		t.Errorf("maxSize = %v, want 10485760", storage["maxSize"])
	}
	locs := doc["localizations"].(map[string]any)
	if locs["th"].(map[string]any)["name"] != "สถานที่" {
		t.Errorf("localizations.th.name = %v", locs["th"])
	}
}

func TestLocales(t *testing.T) {
	locs := DefaultLocales()
	if locs.Default() != "en" {
		t.Errorf("Default() = %q, want en", locs.Default())
	}
	if !locs.Has("th") || locs.Has("fr") {
		t.Errorf("Has() mismatch for %v", locs.Codes())
	}
	if got := locs.Resolve(""); got != "en" {
		t.Errorf("Resolve(\"\") = %q, want en", got)
	}
	if got := locs.Resolve("th"); got != "th" {
		t.Errorf("Resolve(th) = %q, want th", got)
	}
	if got := (Locales{}).Default(); got != "" {
		t.Errorf("empty Default() = %q, want empty", got)
	}
}

func TestFormState_Clone_isDeep(t *testing.T) {
	s := FormState{
		Properties:    []PropertyFormState{{Key: "a", EnumValues: []string{"x"}}},
		Localizations: map[string]LocalizationState{"en": {Name: "A"}},
	}
	c := s.Clone()
	c.Properties[0].EnumValues[0] = "y"
	c.Localizations["en"] = LocalizationState{Name: "B"}

	if s.Properties[0].EnumValues[0] != "x" {
		t.Error("Clone shares enum slice with original")
	}
	if s.Localizations["en"].Name != "A" {
		t.Error("Clone shares localization map with original")
	}
}
