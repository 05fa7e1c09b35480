package mcpservice

import (
	"context"
	"encoding/json"

	"github.com/ggoodman/mcp-catalog-go/mcp"
	"github.com/invopop/jsonschema"
)

// ToolOption configures NewTool.
type ToolOption func(*toolConfig)

type toolConfig struct {
	description string
}

// WithToolDescription sets the tool description used in listings.
func WithToolDescription(desc string) ToolOption {
	return func(c *toolConfig) { c.description = desc }
}

// NewTool builds a ToolDef from a typed argument struct A. The input schema
// is reflected from A (fields without omitempty are required) and the
// validated bundle is decoded into A before fn runs. Unknown keys are
// ignored during decoding.
func NewTool[A any](name string, fn func(ctx context.Context, args A) (*mcp.CallToolResult, error), opts ...ToolOption) ToolDef {
	cfg := toolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	desc := mcp.Tool{
		Name:        name,
		Description: cfg.description,
		InputSchema: reflectToMCPInputSchema[A](),
	}

	handler := func(ctx context.Context, args Arguments) (*mcp.CallToolResult, error) {
		var a A
		if len(args) > 0 {
			raw, err := json.Marshal(args)
			if err != nil {
				return Errorf("invalid arguments: %v", err), nil
			}
			if err := json.Unmarshal(raw, &a); err != nil {
				return Errorf("invalid arguments: %v", err), nil
			}
		}
		return fn(ctx, a)
	}
	return ToolDef{Descriptor: desc, Handler: handler}
}

// reflectToMCPInputSchema reflects A into a jsonschema.Schema and converts it
// to the simplified mcp.ToolInputSchema. Non-object types yield an empty
// object schema.
func reflectToMCPInputSchema[A any]() mcp.ToolInputSchema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(new(A))
	if s == nil || s.Type != mcp.SchemaTypeObject {
		return mcp.ToolInputSchema{Type: mcp.SchemaTypeObject, Properties: map[string]mcp.SchemaProperty{}}
	}

	props := make(map[string]mcp.SchemaProperty)
	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			props[el.Key] = toMCPProperty(el.Value)
		}
	}
	var required []string
	if len(s.Required) > 0 {
		required = append(required, s.Required...)
	}
	return mcp.ToolInputSchema{Type: mcp.SchemaTypeObject, Properties: props, Required: required}
}

// toMCPProperty recursively maps a jsonschema.Schema to a SchemaProperty.
func toMCPProperty(s *jsonschema.Schema) mcp.SchemaProperty {
	if s == nil {
		return mcp.SchemaProperty{}
	}
	p := mcp.SchemaProperty{Type: s.Type, Description: s.Description}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	if s.Type == mcp.SchemaTypeArray && s.Items != nil {
		item := toMCPProperty(s.Items)
		p.Items = &item
	}
	if s.Type == mcp.SchemaTypeObject && s.Properties != nil {
		m := make(map[string]mcp.SchemaProperty, s.Properties.Len())
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			m[el.Key] = toMCPProperty(el.Value)
		}
		p.Properties = m
	}
	return p
}
