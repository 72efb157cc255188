package model

// FormState is the editable form representation of a CollectionConfig. Every
// field is concrete so a UI can bind to it directly.
type FormState struct {
	CollectionID  string                       `json:"collectionId"`
	Name          string                       `json:"name"`
	Path          string                       `json:"path"`
	Group         string                       `json:"group"`
	Icon          string                       `json:"icon"`
	Description   string                       `json:"description"`
	Permissions   Permissions                  `json:"permissions"`
	Properties    []PropertyFormState          `json:"properties"`
	Localizations map[string]LocalizationState `json:"localizations"`
}

// PropertyFormState is the flattened, editable form of a PropertyConfig.
type PropertyFormState struct {
	ID                   string   `json:"id"`
	Key                  string   `json:"key"`
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	DataType             string   `json:"dataType"`
	Required             bool     `json:"required"`
	EnumValues           []string `json:"enumValues"`
	ReferencePath        string   `json:"referencePath"`
	ArrayOfType          string   `json:"arrayOfType"`
	ArrayEnumValues      []string `json:"arrayEnumValues"`
	ArrayReferencePath   string   `json:"arrayReferencePath"`
	StorageEnabled       bool     `json:"storageEnabled"`
	StoragePath          string   `json:"storagePath"`
	StorageAcceptedFiles string   `json:"storageAcceptedFiles"`
	StorageMaxSize       string   `json:"storageMaxSize"`
	DefaultValue         string   `json:"defaultValue"`
	Localized            bool     `json:"localized"`
	Multiline            bool     `json:"multiline"`
	Markdown             bool     `json:"markdown"`
	AutoValue            string   `json:"autoValue"`
}

// LocalizationState holds the editable per-locale label overrides.
type LocalizationState struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Group       string `json:"group"`
}

// Clone returns a deep copy of the form state.
func (s FormState) Clone() FormState {
	out := s
	if s.Properties != nil {
		out.Properties = make([]PropertyFormState, len(s.Properties))
		for i, p := range s.Properties {
			out.Properties[i] = p.Clone()
		}
	}
	if s.Localizations != nil {
		out.Localizations = make(map[string]LocalizationState, len(s.Localizations))
		for k, v := range s.Localizations {
			out.Localizations[k] = v
		}
	}
	return out
}

// Clone returns a deep copy of the property form state.
func (p PropertyFormState) Clone() PropertyFormState {
	out := p
	out.EnumValues = append([]string(nil), p.EnumValues...)
	out.ArrayEnumValues = append([]string(nil), p.ArrayEnumValues...)
	return out
}
