package mcpservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/ggoodman/mcp-catalog-go/mcp"
)

var (
	// ErrDuplicateTool is returned when a tool name is registered twice.
	ErrDuplicateTool = errors.New("duplicate tool name")
	// ErrInvalidTool is returned for malformed descriptors or nil handlers.
	ErrInvalidTool = errors.New("invalid tool")
)

// ToolHandler executes a tool with an argument bundle that has already been
// validated against the tool's input schema.
type ToolHandler func(ctx context.Context, args Arguments) (*mcp.CallToolResult, error)

// ToolDef pairs a tool descriptor with its handler.
type ToolDef struct {
	Descriptor mcp.Tool
	Handler    ToolHandler
}

// RegistryOption configures a ToolRegistry.
type RegistryOption func(*ToolRegistry)

// WithRegistryLogger sets the logger used to report recovered handler panics.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *ToolRegistry) {
		if l != nil {
			r.log = l
		}
	}
}

// ToolRegistry holds the tools known to the server. Tools are registered at
// startup and listed in registration order.
type ToolRegistry struct {
	mu       sync.RWMutex
	tools    []mcp.Tool
	handlers map[string]ToolHandler

	log *slog.Logger
}

// NewToolRegistry constructs an empty registry.
func NewToolRegistry(opts ...RegistryOption) *ToolRegistry {
	r := &ToolRegistry{
		handlers: make(map[string]ToolHandler),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. It fails on a malformed descriptor, a nil handler or
// a name that is already taken.
func (r *ToolRegistry) Register(desc mcp.Tool, h ToolHandler) error {
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTool, err)
	}
	if h == nil {
		return fmt.Errorf("%w: tool %q has no handler", ErrInvalidTool, desc.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[desc.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, desc.Name)
	}
	r.tools = append(r.tools, desc)
	r.handlers[desc.Name] = h
	return nil
}

// Add registers a ToolDef.
func (r *ToolRegistry) Add(def ToolDef) error {
	return r.Register(def.Descriptor, def.Handler)
}

// MustRegister is Register for startup code; it panics on error.
func (r *ToolRegistry) MustRegister(desc mcp.Tool, h ToolHandler) {
	if err := r.Register(desc, h); err != nil {
		panic(err)
	}
}

// List returns a copy of the registered descriptors in registration order.
func (r *ToolRegistry) List() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcp.Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Lookup returns the descriptor registered under name.
func (r *ToolRegistry) Lookup(name string) (mcp.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tools {
		if t.Name == name {
			return t, true
		}
	}
	return mcp.Tool{}, false
}

// Dispatch validates args and invokes the named tool. Every failure mode is
// reported as a handled error result; Dispatch never returns nil.
func (r *ToolRegistry) Dispatch(ctx context.Context, name string, args Arguments) *mcp.CallToolResult {
	desc, ok := r.Lookup(name)
	if !ok {
		return Errorf("Unknown tool: %s", name)
	}
	r.mu.RLock()
	h := r.handlers[name]
	r.mu.RUnlock()

	if args == nil {
		args = Arguments{}
	}
	if err := ValidateArguments(desc.InputSchema, args); err != nil {
		return Errorf("Invalid arguments for tool %s: %v", name, err)
	}

	res, err := r.invoke(ctx, name, h, args)
	if err != nil {
		return Errorf("%s", err.Error())
	}
	if res == nil {
		return &mcp.CallToolResult{Content: []mcp.ContentBlock{}}
	}
	if res.Content == nil {
		res.Content = []mcp.ContentBlock{}
	}
	return res
}

func (r *ToolRegistry) invoke(ctx context.Context, name string, h ToolHandler, args Arguments) (res *mcp.CallToolResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.ErrorContext(ctx, "tools.dispatch.panic",
				slog.String("tool", name),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
			res = nil
			err = fmt.Errorf("tool %s failed: internal error: %v", name, p)
		}
	}()
	return h(ctx, args)
}

// TextResult is a small helper to build a text CallToolResult.
func TextResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: s}}}
}

// Errorf returns an error CallToolResult with a single text block and IsError=true.
func Errorf(format string, a ...any) *mcp.CallToolResult {
	msg := fmt.Sprintf(format, a...)
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: msg}}, IsError: true}
}
