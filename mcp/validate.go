package mcp

import (
	"errors"
	"fmt"

	"github.com/elnormous/contenttype"
)

// Validate checks that the tool descriptor is structurally well formed: a
// non-empty name and an object-shaped input schema whose required entries
// are all declared properties. Name uniqueness is the registry's concern.
func (t Tool) Validate() error {
	if t.Name == "" {
		return errors.New("tool name is required")
	}
	if t.InputSchema.Type != SchemaTypeObject {
		return fmt.Errorf("tool %q: input schema type must be %q, got %q", t.Name, SchemaTypeObject, t.InputSchema.Type)
	}
	seen := make(map[string]struct{}, len(t.InputSchema.Required))
	for _, name := range t.InputSchema.Required {
		if _, ok := t.InputSchema.Properties[name]; !ok {
			return fmt.Errorf("tool %q: required property %q is not declared", t.Name, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("tool %q: required property %q listed twice", t.Name, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Validate checks that the resource descriptor has a URI and a name, and
// that a declared media type parses.
func (r Resource) Validate() error {
	if r.URI == "" {
		return errors.New("resource uri is required")
	}
	if r.Name == "" {
		return fmt.Errorf("resource %q: name is required", r.URI)
	}
	if r.MimeType != "" {
		if err := ValidateMediaType(r.MimeType); err != nil {
			return fmt.Errorf("resource %q: %w", r.URI, err)
		}
	}
	return nil
}

// ValidateMediaType reports whether s parses as a type/subtype media type.
// Wildcards are rejected since a resource always has a concrete type.
func ValidateMediaType(s string) error {
	mt := contenttype.NewMediaType(s)
	if mt.Type == "" || mt.Subtype == "" || mt.Type == "*" || mt.Subtype == "*" {
		return fmt.Errorf("invalid media type %q", s)
	}
	return nil
}
