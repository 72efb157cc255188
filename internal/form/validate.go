package form

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pitabwire/cmsadmin/model"
)

// Rule codes reported in the FieldError of a validation failure.
const (
	RuleCollectionIDRequired  = "COLLECTION_ID_REQUIRED"
	RuleCollectionIDFormat    = "COLLECTION_ID_FORMAT"
	RuleNameRequired          = "NAME_REQUIRED"
	RulePathRequired          = "PATH_REQUIRED"
	RulePropertiesRequired    = "PROPERTIES_REQUIRED"
	RulePropertyKeyRequired   = "PROPERTY_KEY_REQUIRED"
	RuleReferencePathRequired = "REFERENCE_PATH_REQUIRED"
	RuleArrayReferencePath    = "ARRAY_REFERENCE_PATH_REQUIRED"
	RuleStoragePathRequired   = "STORAGE_PATH_REQUIRED"
	RuleStorageMaxSizeInvalid = "STORAGE_MAX_SIZE_INVALID"
)

var collectionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type rule struct {
	code  string
	check func(s model.FormState) (field, msg string, failed bool)
}

type propertyRule struct {
	code  string
	field string
	check func(p model.PropertyFormState) (msg string, failed bool)
}

// collectionRules run first, in order.
var collectionRules = []rule{
	{RuleCollectionIDRequired, func(s model.FormState) (string, string, bool) {
		return "collectionId", "Collection ID is required.", blank(s.CollectionID)
	}},
	{RuleCollectionIDFormat, func(s model.FormState) (string, string, bool) {
		return "collectionId", "Collection ID can only contain letters, numbers, dashes, and underscores.",
			!collectionIDPattern.MatchString(strings.TrimSpace(s.CollectionID))
	}},
	{RuleNameRequired, func(s model.FormState) (string, string, bool) {
		return "name", "Collection name is required.", blank(s.Name)
	}},
	{RulePathRequired, func(s model.FormState) (string, string, bool) {
		return "path", "Collection path is required.", blank(s.Path)
	}},
	{RulePropertiesRequired, func(s model.FormState) (string, string, bool) {
		return "properties", "At least one property is required.", len(s.Properties) == 0
	}},
}

// propertyRules then run against each property in turn; a property is
// checked completely before the next one.
var propertyRules = []propertyRule{
	{RulePropertyKeyRequired, "key", func(p model.PropertyFormState) (string, bool) {
		return "All properties require a field key.", blank(p.Key)
	}},
	{RuleReferencePathRequired, "referencePath", func(p model.PropertyFormState) (string, bool) {
		return fmt.Sprintf("Property %q requires a reference path.", strings.TrimSpace(p.Key)),
			p.DataType == model.DataTypeReference && blank(p.ReferencePath)
	}},
	{RuleArrayReferencePath, "arrayReferencePath", func(p model.PropertyFormState) (string, bool) {
		return fmt.Sprintf("Array property %q requires a reference path.", strings.TrimSpace(p.Key)),
			p.DataType == model.DataTypeArray && p.ArrayOfType == model.DataTypeReference && blank(p.ArrayReferencePath)
	}},
	{RuleStoragePathRequired, "storagePath", func(p model.PropertyFormState) (string, bool) {
		return fmt.Sprintf("Property %q requires a storage folder.", strings.TrimSpace(p.Key)),
			p.DataType == model.DataTypeString && p.StorageEnabled && blank(p.StoragePath)
	}},
	{RuleStorageMaxSizeInvalid, "storageMaxSize", func(p model.PropertyFormState) (string, bool) {
		return fmt.Sprintf("Property %q has an invalid max file size.", strings.TrimSpace(p.Key)),
			p.DataType == model.DataTypeString && p.StorageEnabled && !validMaxSize(p.StorageMaxSize)
	}},
}

// Validate checks state against the authoring rules and returns the first
// failure as a VALIDATION_ERROR envelope, or nil.
func Validate(state model.FormState) error {
	for _, r := range collectionRules {
		if field, msg, failed := r.check(state); failed {
			return model.NewValidationFailure(field, r.code, msg)
		}
	}
	for i, p := range state.Properties {
		for _, r := range propertyRules {
			if msg, failed := r.check(p); failed {
				return model.NewValidationFailure(fmt.Sprintf("properties.%d.%s", i, r.field), r.code, msg)
			}
		}
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func validMaxSize(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	n, err := strconv.ParseFloat(s, 64)
	return err == nil && n >= 0 && !math.IsInf(n, 1)
}
