package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_LoadFile(t *testing.T) {
	l := NewLoader()
	seed, err := l.LoadFile("testdata/collections/locations.yaml")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if seed.ID != "locations" {
		t.Errorf("ID = %q, want locations", seed.ID)
	}
	if seed.Data["name"] != "Locations" {
		t.Errorf("name = %v, want Locations", seed.Data["name"])
	}
	props, ok := seed.Data["properties"].([]any)
	if !ok || len(props) != 4 {
		t.Fatalf("properties = %v, want 4 entries", seed.Data["properties"])
	}
	if seed.Checksum == "" {
		t.Error("Checksum should not be empty")
	}
	if seed.SourceFile != "testdata/collections/locations.yaml" {
		t.Errorf("SourceFile = %q", seed.SourceFile)
	}
}

func TestLoader_LoadFile_idFromFileName(t *testing.T) {
	seed, err := NewLoader().LoadFile("testdata/collections/nested/products.yml")
	if err != nil {
		t.Fatal(err)
	}
	if seed.ID != "products" {
		t.Errorf("ID = %q, want products", seed.ID)
	}
}

func TestLoader_LoadFile_nonStringKeys(t *testing.T) {
	seed, err := NewLoader().LoadFile("testdata/collections/nested/products.yml")
	if err != nil {
		t.Fatal(err)
	}
	status := seed.Data["properties"].([]any)[1].(map[string]any)
	enum, ok := status["enumValues"].(map[string]any)
	if !ok {
		t.Fatalf("enumValues = %T, want map[string]any", status["enumValues"])
	}
	if enum["1"] != "One" {
		t.Errorf("enumValues[1] = %v, want One", enum["1"])
	}
}

func TestLoader_LoadFile_not_found(t *testing.T) {
	if _, err := NewLoader().LoadFile("testdata/nonexistent.yaml"); err == nil {
		t.Fatal("LoadFile() with missing file should return error")
	}
}

func TestLoader_LoadFile_invalid_yaml(t *testing.T) {
	if _, err := NewLoader().LoadFile("testdata/invalid/bad.yaml"); err == nil {
		t.Fatal("LoadFile() with invalid YAML should return error")
	}
}

func TestLoader_LoadFile_empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLoader().LoadFile(path); err == nil {
		t.Fatal("LoadFile() with empty file should return error")
	}
}

func TestLoader_LoadAll(t *testing.T) {
	seeds, err := NewLoader().LoadAll([]string{"testdata/collections"})
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(seeds) != 2 {
		t.Fatalf("LoadAll() = %d seeds, want 2 (non-YAML files skipped)", len(seeds))
	}
}

func TestLoader_LoadAll_missingDir(t *testing.T) {
	if _, err := NewLoader().LoadAll([]string{"testdata/nope"}); err == nil {
		t.Fatal("LoadAll() with missing directory should return error")
	}
}

func TestLoader_checksumTracksContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.yaml")
	write := func(s string) string {
		t.Helper()
		if err := os.WriteFile(path, []byte(s), 0o644); err != nil {
			t.Fatal(err)
		}
		seed, err := NewLoader().LoadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		return seed.Checksum
	}

	first := write("id: a\nname: A\n")
	same := write("id: a\nname: A\n")
	changed := write("id: a\nname: B\n")
	if first != same {
		t.Error("checksum changed for identical content")
	}
	if first == changed {
		t.Error("checksum unchanged after edit")
	}
}
