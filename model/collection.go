package model

import "encoding/json"

// CollectionsPath is the document-store collection holding schema documents.
const CollectionsPath = "cms_collections"

// BytesInMB converts megabytes entered in forms to the byte counts persisted
// in storage configs.
const BytesInMB = 1048576

// Supported property data types.
const (
	DataTypeString    = "string"
	DataTypeNumber    = "number"
	DataTypeBoolean   = "boolean"
	DataTypeDate      = "date"
	DataTypeDateTime  = "date_time"
	DataTypeReference = "reference"
	DataTypeArray     = "array"
	DataTypeMap       = "map"
)

// Date auto-value modes.
const (
	AutoValueOnCreate       = "on_create"
	AutoValueOnUpdate       = "on_update"
	AutoValueOnCreateUpdate = "on_create_update"
)

// ValidAutoValue reports whether v is one of the date auto-value modes.
func ValidAutoValue(v string) bool {
	switch v {
	case AutoValueOnCreate, AutoValueOnUpdate, AutoValueOnCreateUpdate:
		return true
	}
	return false
}

// CollectionConfig is the persisted schema document for one collection. The
// JSON field names are the storage contract and must not change.
type CollectionConfig struct {
	ID            string                          `json:"id"                      yaml:"id"`
	Name          string                          `json:"name"                    yaml:"name"`
	Description   string                          `json:"description,omitempty"   yaml:"description,omitempty"`
	Path          string                          `json:"path"                    yaml:"path"`
	Group         string                          `json:"group,omitempty"         yaml:"group,omitempty"`
	Icon          string                          `json:"icon,omitempty"          yaml:"icon,omitempty"`
	Permissions   *PermissionsConfig              `json:"permissions,omitempty"   yaml:"permissions,omitempty"`
	Properties    []PropertyConfig                `json:"properties"              yaml:"properties"`
	Localizations map[string]LocalizationOverride `json:"localizations,omitempty" yaml:"localizations,omitempty"`
}

// PermissionsConfig holds the optional per-collection permission flags. A nil
// field means "not configured" and resolves to its default.
type PermissionsConfig struct {
	Read   *bool `json:"read,omitempty"   yaml:"read,omitempty"`
	Create *bool `json:"create,omitempty" yaml:"create,omitempty"`
	Edit   *bool `json:"edit,omitempty"   yaml:"edit,omitempty"`
	Delete *bool `json:"delete,omitempty" yaml:"delete,omitempty"`
}

// PropertyConfig is one field entry of a CollectionConfig.
type PropertyConfig struct {
	Key          string            `json:"key"                    yaml:"key"`
	Name         string            `json:"name,omitempty"         yaml:"name,omitempty"`
	Description  string            `json:"description,omitempty"  yaml:"description,omitempty"`
	DataType     string            `json:"dataType"               yaml:"dataType"`
	Required     bool              `json:"required,omitempty"     yaml:"required,omitempty"`
	EnumValues   map[string]string `json:"enumValues,omitempty"   yaml:"enumValues,omitempty"`
	Path         string            `json:"path,omitempty"         yaml:"path,omitempty"`
	Of           *ArrayOfConfig    `json:"of,omitempty"           yaml:"of,omitempty"`
	Storage      *StorageConfig    `json:"storage,omitempty"      yaml:"storage,omitempty"`
	DefaultValue string            `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Localized    bool              `json:"localized,omitempty"    yaml:"localized,omitempty"`
	Multiline    bool              `json:"multiline,omitempty"    yaml:"multiline,omitempty"`
	Markdown     bool              `json:"markdown,omitempty"     yaml:"markdown,omitempty"`
	AutoValue    string            `json:"autoValue,omitempty"    yaml:"autoValue,omitempty"`
}

// ArrayOfConfig describes the element type of an array property.
type ArrayOfConfig struct {
	DataType   string            `json:"dataType"             yaml:"dataType"`
	EnumValues map[string]string `json:"enumValues,omitempty" yaml:"enumValues,omitempty"`
	Path       string            `json:"path,omitempty"       yaml:"path,omitempty"`
	Storage    *StorageConfig    `json:"storage,omitempty"    yaml:"storage,omitempty"`
}

// StorageConfig binds a string property to a blob-store folder.
type StorageConfig struct {
	StoragePath   string   `json:"storagePath"             yaml:"storagePath"`
	AcceptedFiles []string `json:"acceptedFiles,omitempty" yaml:"acceptedFiles,omitempty"`
	MaxSize       *int64   `json:"maxSize,omitempty"       yaml:"maxSize,omitempty"`
}

// LocalizationOverride is a sparse per-locale override of collection labels.
type LocalizationOverride struct {
	Name        string `json:"name,omitempty"        yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Group       string `json:"group,omitempty"       yaml:"group,omitempty"`
}

// IsEmpty reports whether the override carries no values.
func (o LocalizationOverride) IsEmpty() bool {
	return o.Name == "" && o.Description == "" && o.Group == ""
}

// Document converts the config into the untyped map shape a document store
// persists.
func (c CollectionConfig) Document() (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Int64 returns a pointer to n.
func Int64(n int64) *int64 { return &n }
