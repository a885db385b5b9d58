package tool

import (
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
)

// validateArgs checks tool arguments against the parameter schema: required
// fields, type match, string length bounds, numeric bounds and enum
// membership. Nested object schemas are not descended into; tools keep
// their argument shapes flat.
func validateArgs(args map[string]any, schema *jsonschema.Schema) error {
	if schema == nil {
		return nil
	}

	for _, name := range schema.Required {
		if _, ok := args[name]; !ok {
			return goerr.Wrap(model.ErrValidation, "required field is missing", goerr.V("field", name))
		}
	}

	for name, value := range args {
		prop, ok := schema.Properties[name]
		if !ok {
			// Unknown fields are tolerated
			continue
		}

		if err := validateValue(name, value, prop); err != nil {
			return err
		}
	}

	return nil
}

func validateValue(name string, value any, prop *jsonschema.Schema) error {
	if value == nil {
		return nil
	}

	switch prop.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			return typeError(name, "string", value)
		}
		if prop.MinLength != nil && len(s) < int(*prop.MinLength) {
			return goerr.Wrap(model.ErrValidation, "string is shorter than minLength",
				goerr.V("field", name), goerr.V("min_length", *prop.MinLength))
		}
		if prop.MaxLength != nil && len(s) > int(*prop.MaxLength) {
			return goerr.Wrap(model.ErrValidation, "string is longer than maxLength",
				goerr.V("field", name), goerr.V("max_length", *prop.MaxLength))
		}

	case "number", "integer":
		n, ok := toFloat(value)
		if !ok {
			return typeError(name, prop.Type, value)
		}
		if prop.Minimum != nil && n < *prop.Minimum {
			return goerr.Wrap(model.ErrValidation, "number is below minimum",
				goerr.V("field", name), goerr.V("minimum", *prop.Minimum))
		}
		if prop.Maximum != nil && n > *prop.Maximum {
			return goerr.Wrap(model.ErrValidation, "number is above maximum",
				goerr.V("field", name), goerr.V("maximum", *prop.Maximum))
		}

	case "boolean":
		if _, ok := value.(bool); !ok {
			return typeError(name, "boolean", value)
		}

	case "array":
		if _, ok := value.([]any); !ok {
			return typeError(name, "array", value)
		}

	case "object":
		if _, ok := value.(map[string]any); !ok {
			return typeError(name, "object", value)
		}
	}

	if len(prop.Enum) > 0 {
		found := false
		for _, allowed := range prop.Enum {
			if reflect.DeepEqual(value, allowed) {
				found = true
				break
			}
		}
		if !found {
			return goerr.Wrap(model.ErrValidation, "value is not in enum",
				goerr.V("field", name), goerr.V("value", value))
		}
	}

	return nil
}

func typeError(name, want string, got any) error {
	return goerr.Wrap(model.ErrValidation, "type mismatch",
		goerr.V("field", name), goerr.V("want", want), goerr.V("got", reflect.TypeOf(got).String()))
}

// toFloat accepts the numeric types that JSON decoding and Go callers
// commonly supply
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
