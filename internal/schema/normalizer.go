package schema

import (
	"fmt"
	"strings"

	"github.com/pitabwire/cmsadmin/model"
)

// KeyedProperty pairs a normalized descriptor with its trimmed key.
type KeyedProperty struct {
	Key      string
	Property model.PropertyDescriptor
}

// NormalizeProperties normalizes every entry in order. Entries that cannot
// be normalized are reported in dropped by key, or by "#<index>" when the
// key itself is blank.
func NormalizeProperties(cfgs []model.PropertyConfig, locales model.Locales) (kept []KeyedProperty, dropped []string) {
	for i, cfg := range cfgs {
		desc, ok := NormalizeProperty(cfg, locales)
		if !ok {
			key := strings.TrimSpace(cfg.Key)
			if key == "" {
				key = fmt.Sprintf("#%d", i)
			}
			dropped = append(dropped, key)
			continue
		}
		kept = append(kept, KeyedProperty{Key: strings.TrimSpace(cfg.Key), Property: desc})
	}
	return kept, dropped
}

// NormalizeProperty maps one property config to its canonical descriptor.
// It reports false when the property is structurally invalid: a blank key or
// data type, a reference without a path, or an array whose element type
// cannot be normalized.
func NormalizeProperty(cfg model.PropertyConfig, locales model.Locales) (model.PropertyDescriptor, bool) {
	key := strings.TrimSpace(cfg.Key)
	dataType := strings.TrimSpace(cfg.DataType)
	if key == "" || dataType == "" {
		return model.PropertyDescriptor{}, false
	}

	desc := model.PropertyDescriptor{DataType: dataType}
	if dataType == model.DataTypeDateTime {
		desc.DataType = model.DataTypeDate
	}
	desc.Name = strings.TrimSpace(cfg.Name)
	desc.Description = strings.TrimSpace(cfg.Description)
	if cfg.Required {
		desc.Validation = &model.ValidationDescriptor{Required: true}
	}

	// Localized strings become a map of per-locale strings and skip
	// everything below, including the default value.
	if dataType == model.DataTypeString && cfg.Localized {
		return localizedMap(desc, cfg, locales), true
	}

	switch dataType {
	case model.DataTypeDate, model.DataTypeDateTime:
		desc.Mode = dataType
		if av := strings.TrimSpace(cfg.AutoValue); model.ValidAutoValue(av) {
			desc.AutoValue = av
		}
	case model.DataTypeString:
		applyStringOptions(&desc, cfg.EnumValues, cfg.Storage)
		desc.Multiline = cfg.Multiline
		desc.Markdown = cfg.Markdown
	case model.DataTypeReference:
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			return model.PropertyDescriptor{}, false
		}
		desc.Path = path
	case model.DataTypeArray:
		of, ok := normalizeArrayOf(cfg.Of)
		if !ok {
			return model.PropertyDescriptor{}, false
		}
		desc.Of = &of
	}

	if dv := strings.TrimSpace(cfg.DefaultValue); dv != "" {
		desc.DefaultValue = dv
	}
	return desc, true
}

func localizedMap(base model.PropertyDescriptor, cfg model.PropertyConfig, locales model.Locales) model.PropertyDescriptor {
	m := model.PropertyDescriptor{
		DataType:    model.DataTypeMap,
		Name:        base.Name,
		Description: base.Description,
		Validation:  base.Validation,
		Expanded:    true,
		Properties:  make(map[string]model.PropertyDescriptor, len(locales)),
	}
	for _, loc := range locales {
		child := model.PropertyDescriptor{
			DataType:  model.DataTypeString,
			Name:      loc.Label,
			Multiline: cfg.Multiline,
			Markdown:  cfg.Markdown,
		}
		applyStringOptions(&child, cfg.EnumValues, cfg.Storage)
		if _, seen := m.Properties[loc.Code]; !seen {
			m.PropertiesOrder = append(m.PropertiesOrder, loc.Code)
		}
		m.Properties[loc.Code] = child
	}
	return m
}

// normalizeArrayOf normalizes an array element as a scalar. Localization
// does not apply to array elements.
func normalizeArrayOf(of *model.ArrayOfConfig) (model.PropertyDescriptor, bool) {
	if of == nil {
		return model.PropertyDescriptor{}, false
	}
	dataType := strings.TrimSpace(of.DataType)
	if dataType == "" {
		return model.PropertyDescriptor{}, false
	}

	desc := model.PropertyDescriptor{DataType: dataType}
	switch dataType {
	case model.DataTypeDate, model.DataTypeDateTime:
		desc.DataType = model.DataTypeDate
		desc.Mode = dataType
	case model.DataTypeString:
		applyStringOptions(&desc, of.EnumValues, of.Storage)
	case model.DataTypeReference:
		path := strings.TrimSpace(of.Path)
		if path == "" {
			return model.PropertyDescriptor{}, false
		}
		desc.Path = path
	}
	return desc, true
}

func applyStringOptions(desc *model.PropertyDescriptor, enum map[string]string, storage *model.StorageConfig) {
	if len(enum) > 0 {
		desc.EnumValues = copyEnum(enum)
	}
	if storage != nil {
		if path := strings.TrimSpace(storage.StoragePath); path != "" {
			desc.Storage = &model.StorageDescriptor{
				StoragePath:   path,
				AcceptedFiles: append([]string(nil), storage.AcceptedFiles...),
			}
			if storage.MaxSize != nil {
				desc.Storage.MaxSize = model.Int64(*storage.MaxSize)
			}
		}
	}
}
