package form

import (
	"sort"
	"strings"

	"github.com/pitabwire/cmsadmin/model"
)

// Sanitize returns the canonical form of state: strings trimmed, list
// entries cleaned, fields that do not apply to a property's data type
// cleared and the default-locale bucket mirroring the top-level labels.
// Sanitize is idempotent and does not modify state.
func (c *Codec) Sanitize(state model.FormState) model.FormState {
	s := model.FormState{
		CollectionID:  strings.TrimSpace(state.CollectionID),
		Name:          strings.TrimSpace(state.Name),
		Path:          strings.TrimSpace(state.Path),
		Group:         strings.TrimSpace(state.Group),
		Icon:          strings.TrimSpace(state.Icon),
		Description:   strings.TrimSpace(state.Description),
		Permissions:   state.Permissions,
		Properties:    make([]model.PropertyFormState, len(state.Properties)),
		Localizations: make(map[string]model.LocalizationState, len(c.locales)),
	}
	for i, p := range state.Properties {
		s.Properties[i] = sanitizeProperty(p)
	}

	for _, loc := range c.locales {
		l := state.Localizations[loc.Code]
		s.Localizations[loc.Code] = model.LocalizationState{
			Name:        strings.TrimSpace(l.Name),
			Description: strings.TrimSpace(l.Description),
			Group:       strings.TrimSpace(l.Group),
		}
	}
	s.Localizations[c.locales.Default()] = model.LocalizationState{
		Name:        s.Name,
		Description: s.Description,
		Group:       s.Group,
	}
	return s
}

func sanitizeProperty(p model.PropertyFormState) model.PropertyFormState {
	out := model.PropertyFormState{
		ID:                   strings.TrimSpace(p.ID),
		Key:                  strings.TrimSpace(p.Key),
		Name:                 strings.TrimSpace(p.Name),
		Description:          strings.TrimSpace(p.Description),
		DataType:             strings.TrimSpace(p.DataType),
		Required:             p.Required,
		EnumValues:           cleanList(p.EnumValues),
		ReferencePath:        strings.TrimSpace(p.ReferencePath),
		ArrayOfType:          strings.TrimSpace(p.ArrayOfType),
		ArrayEnumValues:      cleanList(p.ArrayEnumValues),
		ArrayReferencePath:   strings.TrimSpace(p.ArrayReferencePath),
		StorageEnabled:       p.StorageEnabled,
		StoragePath:          strings.TrimSpace(p.StoragePath),
		StorageAcceptedFiles: strings.Join(splitList(p.StorageAcceptedFiles), ", "),
		StorageMaxSize:       canonicalMB(p.StorageMaxSize),
		DefaultValue:         strings.TrimSpace(p.DefaultValue),
		Localized:            p.Localized,
		Multiline:            p.Multiline || p.Markdown,
		Markdown:             p.Markdown,
		AutoValue:            strings.TrimSpace(p.AutoValue),
	}
	if out.ArrayOfType == "" {
		out.ArrayOfType = model.DataTypeString
	}
	applyDataTypeRules(&out)
	return out
}

// applyDataTypeRules clears every field that has no meaning for the
// property's current data type.
func applyDataTypeRules(p *model.PropertyFormState) {
	if p.DataType != model.DataTypeString {
		p.EnumValues = nil
		p.Localized = false
		p.Multiline = false
		p.Markdown = false
		clearStorage(p)
	}
	if p.Localized {
		clearStorage(p)
	}
	if !p.StorageEnabled {
		p.StoragePath = ""
		p.StorageAcceptedFiles = ""
		p.StorageMaxSize = ""
	}
	if p.DataType != model.DataTypeReference {
		p.ReferencePath = ""
	}
	if p.DataType != model.DataTypeArray {
		p.ArrayOfType = model.DataTypeString
		p.ArrayEnumValues = nil
		p.ArrayReferencePath = ""
	}
	if p.ArrayOfType != model.DataTypeString {
		p.ArrayEnumValues = nil
	}
	if p.ArrayOfType != model.DataTypeReference {
		p.ArrayReferencePath = ""
	}
	if !isDateType(p.DataType) || !model.ValidAutoValue(p.AutoValue) {
		p.AutoValue = ""
	}
}

func clearStorage(p *model.PropertyFormState) {
	p.StorageEnabled = false
	p.StoragePath = ""
	p.StorageAcceptedFiles = ""
	p.StorageMaxSize = ""
}

func isDateType(dataType string) bool {
	return dataType == model.DataTypeDate || dataType == model.DataTypeDateTime
}

// cleanList trims entries, drops blanks and repeats, and sorts the result.
// Persisted enums are unordered maps, so order carries no meaning.
func cleanList(values []string) []string {
	var out []string
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// canonicalMB rewrites a valid size to the value it will have after a save.
// Anything unparseable is only trimmed so validation can report it.
func canonicalMB(s string) string {
	s = strings.TrimSpace(s)
	if bytes, ok := parseMB(s); ok {
		return formatMB(bytes)
	}
	return s
}
