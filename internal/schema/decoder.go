// Package schema turns loosely typed collection documents into the
// descriptors an admin UI renders. Every function here is pure: inputs are
// never mutated and results never alias them.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/pitabwire/cmsadmin/model"
)

// DecodeConfig maps an untyped stored document into a CollectionConfig.
// Fields with an unexpected type are omitted. The boolean is false only when
// raw is not an object.
func DecodeConfig(raw any) (model.CollectionConfig, bool) {
	switch v := raw.(type) {
	case model.CollectionConfig:
		return copyConfig(v), true
	case *model.CollectionConfig:
		if v == nil {
			return model.CollectionConfig{}, false
		}
		return copyConfig(*v), true
	}

	doc, ok := asObject(raw)
	if !ok {
		return model.CollectionConfig{}, false
	}

	cfg := model.CollectionConfig{
		ID:          stringField(doc, "id"),
		Name:        stringField(doc, "name"),
		Description: stringField(doc, "description"),
		Path:        stringField(doc, "path"),
		Group:       stringField(doc, "group"),
		Icon:        stringField(doc, "icon"),
		Permissions: decodePermissions(doc["permissions"]),
	}

	for _, item := range asList(doc["properties"]) {
		entry, ok := asObject(item)
		if !ok {
			continue
		}
		cfg.Properties = append(cfg.Properties, decodeProperty(entry))
	}

	if locs, ok := asObject(doc["localizations"]); ok {
		for code, bucket := range locs {
			obj, ok := asObject(bucket)
			if !ok {
				continue
			}
			o := model.LocalizationOverride{
				Name:        stringField(obj, "name"),
				Description: stringField(obj, "description"),
				Group:       stringField(obj, "group"),
			}
			if o.IsEmpty() {
				continue
			}
			if cfg.Localizations == nil {
				cfg.Localizations = make(map[string]model.LocalizationOverride)
			}
			cfg.Localizations[code] = o
		}
	}

	return cfg, true
}

// Decode turns a raw document into the descriptor for activeLocale. It
// reports false when the document is malformed, lacks an id, path or name,
// or has no usable properties.
func Decode(raw any, locales model.Locales, activeLocale string) (model.CollectionDescriptor, bool) {
	cfg, ok := DecodeConfig(raw)
	if !ok {
		return model.CollectionDescriptor{}, false
	}
	return Build(cfg, locales, activeLocale)
}

// Build normalizes and assembles an already decoded config.
func Build(cfg model.CollectionConfig, locales model.Locales, activeLocale string) (model.CollectionDescriptor, bool) {
	if !HasIdentity(cfg) {
		return model.CollectionDescriptor{}, false
	}
	props, _ := NormalizeProperties(cfg.Properties, locales)
	if len(props) == 0 {
		return model.CollectionDescriptor{}, false
	}
	return Assemble(cfg, props, locales, activeLocale), true
}

// DecodeAll decodes a batch of raw documents, skipping the absent ones.
func DecodeAll(docs []any, locales model.Locales, activeLocale string) []model.CollectionDescriptor {
	out := make([]model.CollectionDescriptor, 0, len(docs))
	for _, raw := range docs {
		if desc, ok := Decode(raw, locales, activeLocale); ok {
			out = append(out, desc)
		}
	}
	return out
}

// HasIdentity reports whether id, path and name are all non-blank.
func HasIdentity(cfg model.CollectionConfig) bool {
	return strings.TrimSpace(cfg.ID) != "" &&
		strings.TrimSpace(cfg.Path) != "" &&
		strings.TrimSpace(cfg.Name) != ""
}

func decodeProperty(obj map[string]any) model.PropertyConfig {
	p := model.PropertyConfig{
		Key:          stringField(obj, "key"),
		Name:         stringField(obj, "name"),
		Description:  stringField(obj, "description"),
		DataType:     stringField(obj, "dataType"),
		Required:     boolField(obj, "required"),
		EnumValues:   decodeEnum(obj["enumValues"]),
		Path:         stringField(obj, "path"),
		Storage:      decodeStorage(obj["storage"]),
		DefaultValue: scalarString(obj["defaultValue"]),
		Localized:    boolField(obj, "localized"),
		Multiline:    boolField(obj, "multiline"),
		Markdown:     boolField(obj, "markdown"),
		AutoValue:    stringField(obj, "autoValue"),
	}
	if of, ok := asObject(obj["of"]); ok {
		p.Of = &model.ArrayOfConfig{
			DataType:   stringField(of, "dataType"),
			EnumValues: decodeEnum(of["enumValues"]),
			Path:       stringField(of, "path"),
			Storage:    decodeStorage(of["storage"]),
		}
	}
	return p
}

func decodePermissions(raw any) *model.PermissionsConfig {
	obj, ok := asObject(raw)
	if !ok {
		return nil
	}
	perms := &model.PermissionsConfig{}
	for key, dst := range map[string]**bool{
		"read":   &perms.Read,
		"create": &perms.Create,
		"edit":   &perms.Edit,
		"delete": &perms.Delete,
	} {
		if b, ok := obj[key].(bool); ok {
			*dst = model.Bool(b)
		}
	}
	return perms
}

func decodeStorage(raw any) *model.StorageConfig {
	obj, ok := asObject(raw)
	if !ok {
		return nil
	}
	s := &model.StorageConfig{StoragePath: stringField(obj, "storagePath")}
	switch files := obj["acceptedFiles"].(type) {
	case []any:
		for _, f := range files {
			if str, ok := f.(string); ok {
				s.AcceptedFiles = append(s.AcceptedFiles, str)
			}
		}
	case []string:
		s.AcceptedFiles = append([]string(nil), files...)
	}
	if n, ok := asInt64(obj["maxSize"]); ok {
		s.MaxSize = model.Int64(n)
	}
	return s
}

// decodeEnum accepts both the value→label object form and a plain list of
// values.
func decodeEnum(raw any) map[string]string {
	out := make(map[string]string)
	switch v := raw.(type) {
	case map[string]any:
		for value, label := range v {
			if s := scalarString(label); s != "" {
				out[value] = s
			} else {
				out[value] = value
			}
		}
	case map[string]string:
		for value, label := range v {
			out[value] = label
		}
	case []any:
		for _, item := range v {
			if s := scalarString(item); s != "" {
				out[s] = s
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func asObject(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, v != nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			if ks, ok := k.(string); ok {
				out[ks] = val
			}
		}
		return out, true
	}
	return nil, false
}

func asList(raw any) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	}
	return nil
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func boolField(obj map[string]any, key string) bool {
	b, _ := obj[key].(bool)
	return b
}

// scalarString renders strings, numbers and booleans as text.
func scalarString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case bool, int, int32, int64, uint, uint32, uint64, json.Number:
		return fmt.Sprint(v)
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	}
	return ""
}

func asInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float32:
		return roundFloat(float64(v))
	case float64:
		return roundFloat(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil {
			return roundFloat(f)
		}
	}
	return 0, false
}

func roundFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(math.Round(f)), true
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(f)
}

func copyConfig(c model.CollectionConfig) model.CollectionConfig {
	out := c
	if c.Permissions != nil {
		p := *c.Permissions
		out.Permissions = &p
	}
	if c.Properties != nil {
		out.Properties = make([]model.PropertyConfig, len(c.Properties))
		for i, p := range c.Properties {
			out.Properties[i] = copyProperty(p)
		}
	}
	if c.Localizations != nil {
		out.Localizations = make(map[string]model.LocalizationOverride, len(c.Localizations))
		for k, v := range c.Localizations {
			out.Localizations[k] = v
		}
	}
	return out
}

func copyProperty(p model.PropertyConfig) model.PropertyConfig {
	out := p
	out.EnumValues = copyEnum(p.EnumValues)
	out.Storage = copyStorage(p.Storage)
	if p.Of != nil {
		of := *p.Of
		of.EnumValues = copyEnum(p.Of.EnumValues)
		of.Storage = copyStorage(p.Of.Storage)
		out.Of = &of
	}
	return out
}

func copyEnum(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStorage(s *model.StorageConfig) *model.StorageConfig {
	if s == nil {
		return nil
	}
	out := *s
	out.AcceptedFiles = append([]string(nil), s.AcceptedFiles...)
	if s.MaxSize != nil {
		out.MaxSize = model.Int64(*s.MaxSize)
	}
	return &out
}
