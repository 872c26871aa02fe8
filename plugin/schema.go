package plugin

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tluyben/dun/types"
)

// ValidateParams checks descriptor parameters against a handler's input
// schema. Parameters the schema does not mention are allowed.
func ValidateParams(schema []types.Property, params map[string]string) error {
	for _, prop := range schema {
		value, ok := params[prop.Name]
		if !ok || strings.TrimSpace(value) == "" {
			if prop.Required {
				return fmt.Errorf("missing parameter: %s", prop.Name)
			}
			continue
		}
		value = strings.TrimSpace(value)

		switch prop.Type {
		case "number":
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				return fmt.Errorf("invalid type for parameter %s: %q is not a number", prop.Name, value)
			}
		case "boolean":
			if _, err := strconv.ParseBool(value); err != nil {
				return fmt.Errorf("invalid type for parameter %s: %q is not a boolean", prop.Name, value)
			}
		case "object":
			if !gjson.Valid(value) || !gjson.Parse(value).IsObject() {
				return fmt.Errorf("invalid type for parameter %s: not a JSON object", prop.Name)
			}
		}

		if len(prop.Enum) > 0 && !contains(prop.Enum, value) {
			return fmt.Errorf("invalid value for parameter %s: %q not in %v", prop.Name, value, prop.Enum)
		}
	}
	return nil
}

// ValidateOutput checks a handler result against its output schema.
func ValidateOutput(output map[string]interface{}, schema []types.Property) error {
	for _, prop := range schema {
		value, ok := output[prop.Name]
		if !ok {
			return fmt.Errorf("missing property: %s", prop.Name)
		}
		if err := validateType(value, prop); err != nil {
			return err
		}
	}
	return nil
}

func validateType(value interface{}, prop types.Property) error {
	if value == nil {
		// nil slices and maps are legitimate empty results
		if prop.Type == "array" || prop.Type == "object" {
			return nil
		}
		return fmt.Errorf("invalid type for property %s: null", prop.Name)
	}

	kind := reflect.TypeOf(value).Kind()
	switch prop.Type {
	case "string":
		if kind == reflect.String {
			return nil
		}
	case "number":
		switch kind {
		case reflect.Int, reflect.Int32, reflect.Int64, reflect.Uint32, reflect.Uint64, reflect.Float32, reflect.Float64:
			return nil
		}
	case "boolean":
		if kind == reflect.Bool {
			return nil
		}
	case "object":
		if kind != reflect.Map && kind != reflect.Struct {
			break
		}
		if m, ok := value.(map[string]interface{}); ok && prop.Properties != nil {
			return ValidateOutput(m, prop.Properties)
		}
		return nil
	case "array":
		if kind != reflect.Slice && kind != reflect.Array {
			break
		}
		if prop.Properties == nil {
			return nil
		}
		items := reflect.ValueOf(value)
		for i := 0; i < items.Len(); i++ {
			item := items.Index(i).Interface()
			if err := validateType(item, types.Property{Name: prop.Name, Type: "object", Properties: prop.Properties}); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown type %q for property %s", prop.Type, prop.Name)
	}
	return fmt.Errorf("invalid type for property %s: want %s, got %T", prop.Name, prop.Type, value)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
