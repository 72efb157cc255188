package form

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pitabwire/cmsadmin/model"
)

// ClearingRule resets dependent property fields after Field changes.
type ClearingRule struct {
	Field     string
	Condition string
	When      func(p model.PropertyFormState) bool
	Apply     func(p *model.PropertyFormState)
}

// PropertyClearingRules lists, per changed field, the dependent resets
// applied after the new value is set. Rules for one field run in order.
var PropertyClearingRules = []ClearingRule{
	{
		Field: "dataType", Condition: "not string",
		When: func(p model.PropertyFormState) bool { return p.DataType != model.DataTypeString },
		Apply: func(p *model.PropertyFormState) {
			p.EnumValues = nil
			clearStorage(p)
			p.DefaultValue = ""
			p.Localized = false
			p.Multiline = false
			p.Markdown = false
		},
	},
	{
		Field: "dataType", Condition: "not reference",
		When:  func(p model.PropertyFormState) bool { return p.DataType != model.DataTypeReference },
		Apply: func(p *model.PropertyFormState) { p.ReferencePath = "" },
	},
	{
		Field: "dataType", Condition: "not array",
		When: func(p model.PropertyFormState) bool { return p.DataType != model.DataTypeArray },
		Apply: func(p *model.PropertyFormState) {
			p.ArrayOfType = model.DataTypeString
			p.ArrayEnumValues = nil
			p.ArrayReferencePath = ""
		},
	},
	{
		Field: "dataType", Condition: "not a date",
		When:  func(p model.PropertyFormState) bool { return !isDateType(p.DataType) },
		Apply: func(p *model.PropertyFormState) { p.AutoValue = "" },
	},
	{
		Field: "arrayOfType", Condition: "not string",
		When:  func(p model.PropertyFormState) bool { return p.ArrayOfType != model.DataTypeString },
		Apply: func(p *model.PropertyFormState) { p.ArrayEnumValues = nil },
	},
	{
		Field: "arrayOfType", Condition: "not reference",
		When:  func(p model.PropertyFormState) bool { return p.ArrayOfType != model.DataTypeReference },
		Apply: func(p *model.PropertyFormState) { p.ArrayReferencePath = "" },
	},
	{
		Field: "storageEnabled", Condition: "disabled",
		When: func(p model.PropertyFormState) bool { return !p.StorageEnabled },
		Apply: func(p *model.PropertyFormState) {
			clearStorage(p)
			p.DefaultValue = ""
		},
	},
	{
		Field: "storagePath", Condition: "selected",
		When:  func(p model.PropertyFormState) bool { return strings.TrimSpace(p.StoragePath) != "" },
		Apply: func(p *model.PropertyFormState) { p.StorageEnabled = true },
	},
	{
		Field: "localized", Condition: "enabled",
		When: func(p model.PropertyFormState) bool { return p.Localized },
		Apply: func(p *model.PropertyFormState) {
			clearStorage(p)
			p.DefaultValue = ""
		},
	},
	{
		Field: "markdown", Condition: "enabled",
		When:  func(p model.PropertyFormState) bool { return p.Markdown },
		Apply: func(p *model.PropertyFormState) { p.Multiline = true },
	},
}

type propertySetter func(p *model.PropertyFormState, value any) error

var propertySetters = map[string]propertySetter{
	"key":                  setString(func(p *model.PropertyFormState) *string { return &p.Key }),
	"name":                 setString(func(p *model.PropertyFormState) *string { return &p.Name }),
	"description":          setString(func(p *model.PropertyFormState) *string { return &p.Description }),
	"dataType":             setString(func(p *model.PropertyFormState) *string { return &p.DataType }),
	"referencePath":        setString(func(p *model.PropertyFormState) *string { return &p.ReferencePath }),
	"arrayOfType":          setString(func(p *model.PropertyFormState) *string { return &p.ArrayOfType }),
	"arrayReferencePath":   setString(func(p *model.PropertyFormState) *string { return &p.ArrayReferencePath }),
	"storagePath":          setString(func(p *model.PropertyFormState) *string { return &p.StoragePath }),
	"storageAcceptedFiles": setString(func(p *model.PropertyFormState) *string { return &p.StorageAcceptedFiles }),
	"storageMaxSize":       setString(func(p *model.PropertyFormState) *string { return &p.StorageMaxSize }),
	"defaultValue":         setString(func(p *model.PropertyFormState) *string { return &p.DefaultValue }),
	"autoValue":            setString(func(p *model.PropertyFormState) *string { return &p.AutoValue }),
	"required":             setBool(func(p *model.PropertyFormState) *bool { return &p.Required }),
	"storageEnabled":       setBool(func(p *model.PropertyFormState) *bool { return &p.StorageEnabled }),
	"localized":            setBool(func(p *model.PropertyFormState) *bool { return &p.Localized }),
	"multiline":            setBool(func(p *model.PropertyFormState) *bool { return &p.Multiline }),
	"markdown":             setBool(func(p *model.PropertyFormState) *bool { return &p.Markdown }),
	"enumValues":           setList(func(p *model.PropertyFormState) *[]string { return &p.EnumValues }),
	"arrayEnumValues":      setList(func(p *model.PropertyFormState) *[]string { return &p.ArrayEnumValues }),
}

// ApplyFieldChange returns a copy of state with one field changed and the
// dependent fields reset. Field paths look like "name",
// "permissions.delete", "localizations.th.name" or "properties.2.dataType".
// Top-level labels and the default-locale bucket are kept in sync.
func (c *Codec) ApplyFieldChange(state model.FormState, field string, value any) (model.FormState, error) {
	s := state.Clone()
	parts := strings.Split(field, ".")

	switch parts[0] {
	case "collectionId", "name", "path", "group", "icon", "description":
		if len(parts) != 1 {
			return state, unknownField(field)
		}
		v, err := asString(field, value)
		if err != nil {
			return state, err
		}
		c.setLabel(&s, parts[0], v)

	case "permissions":
		if len(parts) != 2 {
			return state, unknownField(field)
		}
		v, err := asBool(field, value)
		if err != nil {
			return state, err
		}
		perm, ok := permissionField(&s.Permissions, parts[1])
		if !ok {
			return state, unknownField(field)
		}
		*perm = v

	case "localizations":
		if len(parts) != 3 || !c.locales.Has(parts[1]) || !setLocalization(&model.LocalizationState{}, parts[2], "") {
			return state, unknownField(field)
		}
		v, err := asString(field, value)
		if err != nil {
			return state, err
		}
		if parts[1] == c.locales.Default() {
			c.setLabel(&s, parts[2], v)
			break
		}
		if s.Localizations == nil {
			s.Localizations = make(map[string]model.LocalizationState)
		}
		bucket := s.Localizations[parts[1]]
		setLocalization(&bucket, parts[2], v)
		s.Localizations[parts[1]] = bucket

	case "properties":
		if len(parts) != 3 {
			return state, unknownField(field)
		}
		idx, err := strconv.Atoi(parts[1])
		if err != nil || idx < 0 || idx >= len(s.Properties) {
			return state, model.NewBadRequestError(fmt.Sprintf("property index %q out of range", parts[1]))
		}
		set, ok := propertySetters[parts[2]]
		if !ok {
			return state, unknownField(field)
		}
		p := s.Properties[idx]
		if err := set(&p, value); err != nil {
			return state, model.NewBadRequestError(fmt.Sprintf("%s: %v", field, err))
		}
		for _, r := range PropertyClearingRules {
			if r.Field == parts[2] && r.When(p) {
				r.Apply(&p)
			}
		}
		s.Properties[idx] = p

	default:
		return state, unknownField(field)
	}
	return s, nil
}

// setLabel writes a collection label. name, description and group are
// mirrored into the default-locale bucket.
func (c *Codec) setLabel(s *model.FormState, field, v string) {
	switch field {
	case "collectionId":
		s.CollectionID = v
		return
	case "path":
		s.Path = v
		return
	case "icon":
		s.Icon = v
		return
	}

	def := c.locales.Default()
	if s.Localizations == nil {
		s.Localizations = make(map[string]model.LocalizationState)
	}
	bucket := s.Localizations[def]
	switch field {
	case "name":
		s.Name = v
		bucket.Name = v
	case "description":
		s.Description = v
		bucket.Description = v
	case "group":
		s.Group = v
		bucket.Group = v
	default:
		return
	}
	s.Localizations[def] = bucket
}

func setLocalization(b *model.LocalizationState, field, v string) bool {
	switch field {
	case "name":
		b.Name = v
	case "description":
		b.Description = v
	case "group":
		b.Group = v
	default:
		return false
	}
	return true
}

func permissionField(p *model.Permissions, name string) (*bool, bool) {
	switch name {
	case "read":
		return &p.Read, true
	case "create":
		return &p.Create, true
	case "edit":
		return &p.Edit, true
	case "delete":
		return &p.Delete, true
	}
	return nil, false
}

// AddProperty appends a blank string property.
func (c *Codec) AddProperty(state model.FormState) model.FormState {
	s := state.Clone()
	s.Properties = append(s.Properties, EmptyProperty())
	return s
}

// RemoveProperty removes the property at index. The last remaining
// property cannot be removed; state is then returned unchanged.
func (c *Codec) RemoveProperty(state model.FormState, index int) (model.FormState, error) {
	if index < 0 || index >= len(state.Properties) {
		return state, model.NewBadRequestError(fmt.Sprintf("property index %d out of range", index))
	}
	if len(state.Properties) <= 1 {
		return state.Clone(), nil
	}
	s := state.Clone()
	s.Properties = append(s.Properties[:index], s.Properties[index+1:]...)
	return s, nil
}

// TogglePermission flips one permission flag.
func (c *Codec) TogglePermission(state model.FormState, name string) (model.FormState, error) {
	s := state.Clone()
	perm, ok := permissionField(&s.Permissions, name)
	if !ok {
		return state, unknownField("permissions." + name)
	}
	*perm = !*perm
	return s, nil
}

func unknownField(field string) error {
	return model.NewBadRequestError(fmt.Sprintf("unknown form field %q", field))
}

func asString(field string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", model.NewBadRequestError(fmt.Sprintf("%s: expected a string, got %T", field, value))
	}
	return s, nil
}

func asBool(field string, value any) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, model.NewBadRequestError(fmt.Sprintf("%s: expected a boolean, got %T", field, value))
	}
	return b, nil
}

func setString(get func(p *model.PropertyFormState) *string) propertySetter {
	return func(p *model.PropertyFormState, value any) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected a string, got %T", value)
		}
		*get(p) = s
		return nil
	}
}

func setBool(get func(p *model.PropertyFormState) *bool) propertySetter {
	return func(p *model.PropertyFormState, value any) error {
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected a boolean, got %T", value)
		}
		*get(p) = b
		return nil
	}
}

// setList accepts a string slice, a JSON array of strings or a comma
// separated string.
func setList(get func(p *model.PropertyFormState) *[]string) propertySetter {
	return func(p *model.PropertyFormState, value any) error {
		var out []string
		switch v := value.(type) {
		case []string:
			out = append(out, v...)
		case []any:
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return fmt.Errorf("expected strings, got %T", item)
				}
				out = append(out, s)
			}
		case string:
			out = strings.Split(v, ",")
		case nil:
		default:
			return fmt.Errorf("expected a list of strings, got %T", value)
		}
		*get(p) = out
		return nil
	}
}
