package catalog

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Seed is one collection document read from a YAML file.
type Seed struct {
	ID         string
	Data       map[string]any
	Checksum   string
	SourceFile string
}

// Loader scans directories for YAML collection documents, parses them, and
// computes SHA-256 checksums.
type Loader struct{}

// NewLoader creates a new seed Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadAll recursively scans directories for *.yaml and *.yml files and parses
// each into a Seed.
func (l *Loader) LoadAll(directories []string) ([]Seed, error) {
	var seeds []Seed

	for _, dir := range directories {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isYAML(path) {
				return nil
			}

			seed, err := l.LoadFile(path)
			if err != nil {
				return err
			}
			seeds = append(seeds, seed)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning directory %s: %w", dir, err)
		}
	}

	return seeds, nil
}

// LoadFile loads and parses a single YAML collection document. The seed id is
// the document's id field, or the file name without extension when the
// document has none.
func (l *Loader) LoadFile(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Seed{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if raw == nil {
		return Seed{}, fmt.Errorf("parsing %s: empty document", path)
	}
	doc := jsonShape(raw).(map[string]any)

	id, _ := doc["id"].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return Seed{
		ID:         id,
		Data:       doc,
		Checksum:   fmt.Sprintf("%x", sha256.Sum256(data)),
		SourceFile: path,
	}, nil
}

// jsonShape rewrites YAML maps with non-string keys into string-keyed maps
// so seeds can be stored as JSON.
func jsonShape(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = jsonShape(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonShape(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = jsonShape(val)
		}
		return out
	default:
		return v
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
