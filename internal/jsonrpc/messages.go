package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion is the only JSON-RPC revision accepted on the wire.
const ProtocolVersion = "2.0"

// Message kinds reported by AnyMessage.Type.
const (
	TypeRequest      = "request"
	TypeNotification = "notification"
	TypeResponse     = "response"
)

// ErrInvalidEnvelope is wrapped by Decode when a line is valid JSON but not a
// well-formed JSON-RPC 2.0 message.
var ErrInvalidEnvelope = errors.New("invalid JSON-RPC envelope")

// AnyMessage is an inbound JSON-RPC message of any kind. Whether the id member
// was present at all is tracked separately from its value so that a request
// carrying "id": null is not mistaken for a notification.
type AnyMessage struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`

	hasID bool
}

// Request is a request (ID set) or notification (ID nil).
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Response is an outbound result or error. The id is always serialized; an
// absent id goes out as null.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id"`
}

// Decode parses one framed message. A *Error is returned on failure so the
// caller can reply with it directly: ErrorCodeParseError when the bytes are
// not JSON, ErrorCodeInvalidRequest when the envelope is malformed.
func Decode(line []byte) (*AnyMessage, *Error) {
	var raw json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, NewError(ErrorCodeParseError, "Parse error")
	}
	var msg AnyMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, &Error{Code: ErrorCodeInvalidRequest, Message: "Invalid Request", Data: err.Error()}
	}
	return &msg, nil
}

// UnmarshalJSON enforces the JSON-RPC 2.0 envelope rules.
func (m *AnyMessage) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: message must be an object", ErrInvalidEnvelope)
	}

	type wire struct {
		JSONRPCVersion string          `json:"jsonrpc"`
		Method         string          `json:"method"`
		Params         json.RawMessage `json:"params"`
		Result         json.RawMessage `json:"result"`
		Error          *Error          `json:"error"`
		ID             *RequestID      `json:"id"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if w.JSONRPCVersion != ProtocolVersion {
		return fmt.Errorf("%w: jsonrpc must be %q, got %q", ErrInvalidEnvelope, ProtocolVersion, w.JSONRPCVersion)
	}

	_, hasID := fields["id"]
	_, hasResult := fields["result"]
	hasError := w.Error != nil

	if w.Method != "" {
		if hasResult || hasError {
			return fmt.Errorf("%w: request cannot carry result or error", ErrInvalidEnvelope)
		}
	} else {
		if _, ok := fields["method"]; ok {
			return fmt.Errorf("%w: method must be a non-empty string", ErrInvalidEnvelope)
		}
		if hasResult == hasError {
			return fmt.Errorf("%w: response must carry exactly one of result or error", ErrInvalidEnvelope)
		}
	}

	*m = AnyMessage{
		JSONRPCVersion: w.JSONRPCVersion,
		Method:         w.Method,
		Params:         w.Params,
		Result:         w.Result,
		Error:          w.Error,
		ID:             w.ID,
		hasID:          hasID,
	}
	if hasID && m.ID == nil {
		m.ID = &RequestID{}
	}
	return nil
}

// Type classifies the message as a request, notification or response.
func (m *AnyMessage) Type() string {
	switch {
	case m.Method == "":
		return TypeResponse
	case m.hasID || m.ID != nil:
		return TypeRequest
	default:
		return TypeNotification
	}
}

// AsRequest returns the request view, or nil for responses.
func (m *AnyMessage) AsRequest() *Request {
	if m.Method == "" {
		return nil
	}
	return &Request{
		JSONRPCVersion: m.JSONRPCVersion,
		Method:         m.Method,
		Params:         m.Params,
		ID:             m.ID,
	}
}

// AsResponse returns the response view, or nil for requests and
// notifications.
func (m *AnyMessage) AsResponse() *Response {
	if m.Method != "" {
		return nil
	}
	return &Response{
		JSONRPCVersion: m.JSONRPCVersion,
		Result:         m.Result,
		Error:          m.Error,
		ID:             m.ID,
	}
}

// IsNotification reports whether the request expects no reply.
func (r *Request) IsNotification() bool { return r.ID == nil }

// NewResultResponse marshals result into a success response.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Response{JSONRPCVersion: ProtocolVersion, Result: raw, ID: id}, nil
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) *Response {
	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Error:          &Error{Code: code, Message: message, Data: data},
		ID:             id,
	}
}

// ErrorResponse wraps an existing *Error.
func ErrorResponse(id *RequestID, e *Error) *Response {
	return &Response{JSONRPCVersion: ProtocolVersion, Error: e, ID: id}
}
