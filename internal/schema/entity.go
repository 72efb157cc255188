package schema

import (
	"errors"
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/pitabwire/cmsadmin/model"
)

// EntitySchema returns the JSON schema an entity of the collection must
// satisfy.
func EntitySchema(desc model.CollectionDescriptor) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	s.Title = desc.Name
	s.Description = desc.Description
	for _, key := range desc.PropertiesOrder {
		p := desc.Properties[key]
		s.WithProperty(key, propertySchema(p))
		if p.Validation != nil && p.Validation.Required {
			s.Required = append(s.Required, key)
		}
	}
	return s
}

func propertySchema(p model.PropertyDescriptor) *openapi3.Schema {
	var s *openapi3.Schema
	switch p.DataType {
	case model.DataTypeString:
		s = openapi3.NewStringSchema()
		if len(p.EnumValues) > 0 {
			values := make([]string, 0, len(p.EnumValues))
			for v := range p.EnumValues {
				values = append(values, v)
			}
			sort.Strings(values)
			for _, v := range values {
				s.Enum = append(s.Enum, v)
			}
		}
	case model.DataTypeNumber:
		s = openapi3.NewFloat64Schema()
	case model.DataTypeBoolean:
		s = openapi3.NewBoolSchema()
	case model.DataTypeDate:
		s = openapi3.NewStringSchema()
		if p.Mode == model.DataTypeDateTime {
			s.Format = "date-time"
		} else {
			s.Format = "date"
		}
	case model.DataTypeReference:
		s = openapi3.NewStringSchema()
	case model.DataTypeArray:
		s = openapi3.NewArraySchema()
		if p.Of != nil {
			s.WithItems(propertySchema(*p.Of))
		}
	case model.DataTypeMap:
		s = openapi3.NewObjectSchema()
		for _, key := range p.PropertiesOrder {
			s.WithProperty(key, propertySchema(p.Properties[key]))
		}
	default:
		s = &openapi3.Schema{}
	}
	s.Title = p.Name
	if p.Description != "" {
		s.Description = p.Description
	}
	return s
}

// ValidateEntity checks an entity document against the collection. It
// returns one FieldError per failing property, in property order, or nil
// when the entity is valid. Fields the collection does not declare are
// ignored.
func ValidateEntity(desc model.CollectionDescriptor, entity map[string]any) []model.FieldError {
	var errs []model.FieldError
	for _, key := range desc.PropertiesOrder {
		p := desc.Properties[key]
		value, present := entity[key]
		if !present || value == nil {
			if p.Validation != nil && p.Validation.Required {
				errs = append(errs, model.FieldError{
					Field:   key,
					Code:    "REQUIRED",
					Message: fmt.Sprintf("%s is required", key),
				})
			}
			continue
		}

		if err := propertySchema(p).VisitJSON(value); err != nil {
			errs = append(errs, model.FieldError{
				Field:   key,
				Code:    "INVALID_VALUE",
				Message: schemaErrorReason(err),
			})
		}
	}
	return errs
}

func schemaErrorReason(err error) string {
	var se *openapi3.SchemaError
	if errors.As(err, &se) && se.Reason != "" {
		return se.Reason
	}
	return err.Error()
}
