package jsonrpc

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestID is a JSON-RPC id: a string, an integer, or absent. The zero value
// (and a nil pointer) marshals as null.
type RequestID struct {
	value any // string | int64 | float64 | nil
}

// NewRequestID wraps a string or integer id. Other types produce a null id.
func NewRequestID(v any) *RequestID {
	switch t := v.(type) {
	case string:
		return &RequestID{value: t}
	case int:
		return &RequestID{value: int64(t)}
	case int64:
		return &RequestID{value: t}
	case float64:
		return &RequestID{value: t}
	default:
		return &RequestID{}
	}
}

// IsNil reports whether the id is absent.
func (id *RequestID) IsNil() bool { return id == nil || id.value == nil }

// String renders the id for logs; absent ids render as "".
func (id *RequestID) String() string {
	if id.IsNil() {
		return ""
	}
	switch v := id.value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// MarshalJSON implements json.Marshaler.
func (id *RequestID) MarshalJSON() ([]byte, error) {
	if id.IsNil() {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler. Integral numbers are kept as
// int64 so they echo back without a trailing ".0".
func (id *RequestID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		id.value = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid string id: %w", err)
		}
		id.value = s
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		if i, err := num.Int64(); err == nil {
			id.value = i
			return nil
		}
		f, err := num.Float64()
		if err != nil {
			return fmt.Errorf("invalid numeric id %s: %w", data, err)
		}
		id.value = f
		return nil
	}
	return fmt.Errorf("JSON-RPC id must be a string or number, got: %s", data)
}
