package catalog

import (
	"fmt"
	"sort"

	"github.com/pitabwire/cmsadmin/internal/schema"
	"github.com/pitabwire/cmsadmin/model"
)

// Problem codes reported by Check.
const (
	ProblemNotObject       = "NOT_OBJECT"
	ProblemMissingIdentity = "MISSING_IDENTITY"
	ProblemNoProperties    = "NO_PROPERTIES"
	ProblemDroppedProperty = "PROPERTY_DROPPED"
	ProblemDuplicateKey    = "DUPLICATE_KEY"
	ProblemDuplicateID     = "DUPLICATE_ID"
)

// Problem describes one issue found in a seed document.
type Problem struct {
	Source  string `json:"source"`
	ID      string `json:"id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	return fmt.Sprintf("%s (%s): %s: %s", p.Source, p.ID, p.Code, p.Message)
}

// Check lints seed documents the way the decoder will read them: documents
// that would be absent from the catalog and properties that would be
// silently dropped are reported, along with duplicate ids and keys.
func Check(seeds []Seed, locales model.Locales) []Problem {
	var problems []Problem
	report := func(seed Seed, code, msg string) {
		problems = append(problems, Problem{Source: seed.SourceFile, ID: seed.ID, Code: code, Message: msg})
	}

	sources := make(map[string][]string)
	for _, seed := range seeds {
		sources[seed.ID] = append(sources[seed.ID], seed.SourceFile)

		cfg, ok := schema.DecodeConfig(seed.Data)
		if !ok {
			report(seed, ProblemNotObject, "document is not an object")
			continue
		}
		if !schema.HasIdentity(cfg) {
			report(seed, ProblemMissingIdentity, "id, name and path are all required")
		}

		kept, dropped := schema.NormalizeProperties(cfg.Properties, locales)
		for _, key := range dropped {
			report(seed, ProblemDroppedProperty, fmt.Sprintf("property %q is invalid and will be dropped", key))
		}
		seen := make(map[string]bool, len(kept))
		for _, kp := range kept {
			if seen[kp.Key] {
				report(seed, ProblemDuplicateKey, fmt.Sprintf("property %q is defined more than once; the last definition wins", kp.Key))
			}
			seen[kp.Key] = true
		}
		if len(kept) == 0 {
			report(seed, ProblemNoProperties, "no usable properties")
		}
	}

	ids := make([]string, 0, len(sources))
	for id, files := range sources {
		if len(files) > 1 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		problems = append(problems, Problem{
			Source:  sources[id][0],
			ID:      id,
			Code:    ProblemDuplicateID,
			Message: fmt.Sprintf("id is also used by %v", sources[id][1:]),
		})
	}
	return problems
}
