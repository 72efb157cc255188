package model

// PropertyDescriptor is the canonical, UI-consumable shape of one collection
// property after normalization.
type PropertyDescriptor struct {
	DataType        string                        `json:"dataType"`
	Name            string                        `json:"name,omitempty"`
	Description     string                        `json:"description,omitempty"`
	Validation      *ValidationDescriptor         `json:"validation,omitempty"`
	Mode            string                        `json:"mode,omitempty"`
	AutoValue       string                        `json:"autoValue,omitempty"`
	EnumValues      map[string]string             `json:"enumValues,omitempty"`
	Storage         *StorageDescriptor            `json:"storage,omitempty"`
	Multiline       bool                          `json:"multiline,omitempty"`
	Markdown        bool                          `json:"markdown,omitempty"`
	Path            string                        `json:"path,omitempty"`
	Of              *PropertyDescriptor           `json:"of,omitempty"`
	Properties      map[string]PropertyDescriptor `json:"properties,omitempty"`
	PropertiesOrder []string                      `json:"propertiesOrder,omitempty"`
	Expanded        bool                          `json:"expanded,omitempty"`
	DefaultValue    string                        `json:"defaultValue,omitempty"`
}

// ValidationDescriptor carries per-property validation markers.
type ValidationDescriptor struct {
	Required bool `json:"required,omitempty"`
}

// StorageDescriptor is the storage binding of a string property.
type StorageDescriptor struct {
	StoragePath   string   `json:"storagePath"`
	AcceptedFiles []string `json:"acceptedFiles,omitempty"`
	MaxSize       *int64   `json:"maxSize,omitempty"`
}

// Permissions is the fully resolved permission set of a collection.
type Permissions struct {
	Read   bool `json:"read"`
	Create bool `json:"create"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

// DefaultPermissions are applied to every flag a config leaves unset.
var DefaultPermissions = Permissions{Read: true, Create: true, Edit: true, Delete: false}

// CollectionDescriptor is the assembled collection a list or detail view
// renders. It is derived on every read and never persisted.
type CollectionDescriptor struct {
	ID              string                        `json:"id"`
	Path            string                        `json:"path"`
	Name            string                        `json:"name"`
	Description     string                        `json:"description,omitempty"`
	Group           string                        `json:"group,omitempty"`
	Icon            string                        `json:"icon,omitempty"`
	Permissions     Permissions                   `json:"permissions"`
	Properties      map[string]PropertyDescriptor `json:"properties"`
	PropertiesOrder []string                      `json:"propertiesOrder"`
}
