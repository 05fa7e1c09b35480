package mcpservice

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/ggoodman/mcp-catalog-go/mcp"
)

// Arguments is the decoded argument bundle of a single tool call.
type Arguments map[string]any

// String returns the string value at key, or "" when absent or not a string.
func (a Arguments) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// ValidationError describes the first argument that failed schema checks.
type ValidationError struct {
	Field    string
	Reason   string
	Expected string
	Actual   string
}

func (e *ValidationError) Error() string { return e.Reason }

// ValidateArguments checks args against schema. Required fields are checked
// in declaration order, then present fields are type-checked in sorted key
// order. Keys the schema does not declare are accepted as-is, as are values
// of properties that declare no type.
func ValidateArguments(schema mcp.ToolInputSchema, args Arguments) error {
	for _, field := range schema.Required {
		if _, ok := args[field]; !ok {
			return &ValidationError{
				Field:  field,
				Reason: fmt.Sprintf("missing required field %q", field),
			}
		}
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		prop, ok := schema.Properties[k]
		if !ok || prop.Type == "" {
			continue
		}
		if matchesType(prop.Type, args[k]) {
			continue
		}
		actual := typeOf(args[k])
		return &ValidationError{
			Field:    k,
			Reason:   fmt.Sprintf("field %q: expected %s, got %s", k, prop.Type, actual),
			Expected: prop.Type,
			Actual:   actual,
		}
	}
	return nil
}

func matchesType(want string, v any) bool {
	got := typeOf(v)
	switch want {
	case mcp.SchemaTypeNumber:
		return got == mcp.SchemaTypeNumber || got == mcp.SchemaTypeInteger
	case mcp.SchemaTypeInteger:
		return got == mcp.SchemaTypeInteger
	default:
		return got == want
	}
}

// typeOf names the JSON type of a decoded value. Whole numbers report as
// integer so that both integer and number schemas accept them.
func typeOf(v any) string {
	switch t := v.(type) {
	case nil:
		return mcp.SchemaTypeNull
	case string:
		return mcp.SchemaTypeString
	case bool:
		return mcp.SchemaTypeBoolean
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return mcp.SchemaTypeInteger
		}
		return mcp.SchemaTypeNumber
	case float32:
		return typeOf(float64(t))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return mcp.SchemaTypeInteger
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return mcp.SchemaTypeInteger
		}
		return mcp.SchemaTypeNumber
	case map[string]any:
		return mcp.SchemaTypeObject
	case []any:
		return mcp.SchemaTypeArray
	default:
		return fmt.Sprintf("%T", v)
	}
}
