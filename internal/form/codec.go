// Package form converts between persisted collection configs and the
// editable form state used to author them.
package form

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/pitabwire/cmsadmin/internal/schema"
	"github.com/pitabwire/cmsadmin/model"
)

// Codec converts configs to form state and back for a fixed locale list.
type Codec struct {
	locales model.Locales
}

// NewCodec creates a Codec. An empty locale list falls back to
// model.DefaultLocales.
func NewCodec(locales model.Locales) *Codec {
	if len(locales) == 0 {
		locales = model.DefaultLocales()
	}
	return &Codec{locales: locales}
}

// Locales returns the supported locales, default first.
func (c *Codec) Locales() model.Locales {
	return c.locales
}

// EmptyFormState returns the state of a brand-new collection form.
func (c *Codec) EmptyFormState() model.FormState {
	s := model.FormState{
		Permissions:   model.DefaultPermissions,
		Properties:    []model.PropertyFormState{EmptyProperty()},
		Localizations: make(map[string]model.LocalizationState, len(c.locales)),
	}
	for _, loc := range c.locales {
		s.Localizations[loc.Code] = model.LocalizationState{}
	}
	return s
}

// EmptyProperty returns a blank string property with a fresh form id.
func EmptyProperty() model.PropertyFormState {
	return model.PropertyFormState{
		ID:          newPropertyID(),
		DataType:    model.DataTypeString,
		ArrayOfType: model.DataTypeString,
	}
}

func newPropertyID() string {
	return "prop_" + uuid.NewString()
}

// ToFormState expands a config into concrete form fields. The default
// locale's overrides are mirrored onto the top-level labels.
func (c *Codec) ToFormState(cfg model.CollectionConfig) model.FormState {
	def := cfg.Localizations[c.locales.Default()]
	s := model.FormState{
		CollectionID:  cfg.ID,
		Name:          schema.ResolveLocalized(cfg.Name, def.Name),
		Path:          cfg.Path,
		Group:         schema.ResolveLocalized(cfg.Group, def.Group),
		Icon:          cfg.Icon,
		Description:   schema.ResolveLocalized(cfg.Description, def.Description),
		Permissions:   schema.ResolvePermissions(cfg.Permissions),
		Localizations: make(map[string]model.LocalizationState, len(c.locales)),
	}

	for _, p := range cfg.Properties {
		s.Properties = append(s.Properties, propertyToForm(p))
	}
	if len(s.Properties) == 0 {
		s.Properties = []model.PropertyFormState{EmptyProperty()}
	}

	for _, loc := range c.locales {
		o := cfg.Localizations[loc.Code]
		s.Localizations[loc.Code] = model.LocalizationState{
			Name:        o.Name,
			Description: o.Description,
			Group:       o.Group,
		}
	}
	s.Localizations[c.locales.Default()] = model.LocalizationState{
		Name:        s.Name,
		Description: s.Description,
		Group:       s.Group,
	}
	return s
}

func propertyToForm(p model.PropertyConfig) model.PropertyFormState {
	f := model.PropertyFormState{
		ID:            newPropertyID(),
		Key:           p.Key,
		Name:          p.Name,
		Description:   p.Description,
		DataType:      p.DataType,
		Required:      p.Required,
		EnumValues:    sortedKeys(p.EnumValues),
		ReferencePath: p.Path,
		ArrayOfType:   model.DataTypeString,
		DefaultValue:  p.DefaultValue,
		Localized:     p.Localized,
		Multiline:     p.Multiline,
		Markdown:      p.Markdown,
		AutoValue:     p.AutoValue,
	}
	if p.DataType != model.DataTypeReference {
		f.ReferencePath = ""
	}
	if p.Of != nil {
		if p.Of.DataType != "" {
			f.ArrayOfType = p.Of.DataType
		}
		f.ArrayEnumValues = sortedKeys(p.Of.EnumValues)
		f.ArrayReferencePath = p.Of.Path
	}
	if p.Storage != nil {
		f.StorageEnabled = true
		f.StoragePath = p.Storage.StoragePath
		f.StorageAcceptedFiles = strings.Join(p.Storage.AcceptedFiles, ", ")
		if p.Storage.MaxSize != nil {
			f.StorageMaxSize = formatMB(*p.Storage.MaxSize)
		}
	}
	return f
}

// ToConfigPayload builds the document to persist. The state is sanitized
// first; fields that sanitize to blank or default are omitted.
func (c *Codec) ToConfigPayload(state model.FormState) model.CollectionConfig {
	s := c.Sanitize(state)
	cfg := model.CollectionConfig{
		ID:          s.CollectionID,
		Name:        s.Name,
		Description: s.Description,
		Path:        s.Path,
		Group:       s.Group,
		Icon:        s.Icon,
		Permissions: &model.PermissionsConfig{
			Read:   model.Bool(s.Permissions.Read),
			Create: model.Bool(s.Permissions.Create),
			Edit:   model.Bool(s.Permissions.Edit),
			Delete: model.Bool(s.Permissions.Delete),
		},
		Properties: make([]model.PropertyConfig, 0, len(s.Properties)),
	}

	for _, p := range s.Properties {
		cfg.Properties = append(cfg.Properties, propertyToConfig(p))
	}

	def := c.locales.Default()
	for _, loc := range c.locales {
		if loc.Code == def {
			continue
		}
		o := model.LocalizationOverride(s.Localizations[loc.Code])
		if o.IsEmpty() {
			continue
		}
		if cfg.Localizations == nil {
			cfg.Localizations = make(map[string]model.LocalizationOverride)
		}
		cfg.Localizations[loc.Code] = o
	}
	return cfg
}

func propertyToConfig(p model.PropertyFormState) model.PropertyConfig {
	out := model.PropertyConfig{
		Key:          p.Key,
		Name:         p.Name,
		Description:  p.Description,
		DataType:     p.DataType,
		Required:     p.Required,
		DefaultValue: p.DefaultValue,
	}

	switch p.DataType {
	case model.DataTypeString:
		out.EnumValues = enumMap(p.EnumValues)
		out.Localized = p.Localized
		out.Multiline = p.Multiline
		out.Markdown = p.Markdown
		if p.StorageEnabled && p.StoragePath != "" {
			out.Storage = &model.StorageConfig{
				StoragePath:   p.StoragePath,
				AcceptedFiles: splitList(p.StorageAcceptedFiles),
			}
			if bytes, ok := parseMB(p.StorageMaxSize); ok {
				out.Storage.MaxSize = model.Int64(bytes)
			}
		}
	case model.DataTypeReference:
		out.Path = p.ReferencePath
	case model.DataTypeArray:
		out.Of = &model.ArrayOfConfig{DataType: p.ArrayOfType}
		switch p.ArrayOfType {
		case model.DataTypeString:
			out.Of.EnumValues = enumMap(p.ArrayEnumValues)
		case model.DataTypeReference:
			out.Of.Path = p.ArrayReferencePath
		}
	case model.DataTypeDate, model.DataTypeDateTime:
		if model.ValidAutoValue(p.AutoValue) {
			out.AutoValue = p.AutoValue
		}
	}
	return out
}

func enumMap(values []string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	m := make(map[string]string, len(values))
	for _, v := range values {
		m[v] = v
	}
	return m
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// splitList splits a comma separated list, trimming entries and dropping
// blanks and repeats.
func splitList(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

// parseMB parses a size in megabytes and returns it in bytes.
func parseMB(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	mb, err := strconv.ParseFloat(s, 64)
	if err != nil || mb < 0 || math.IsInf(mb, 0) || math.IsNaN(mb) {
		return 0, false
	}
	return int64(math.Round(mb * model.BytesInMB)), true
}

// formatMB renders a byte count in megabytes using the shortest decimal that
// parses back to the same value.
func formatMB(bytes int64) string {
	return strconv.FormatFloat(float64(bytes)/model.BytesInMB, 'f', -1, 64)
}
