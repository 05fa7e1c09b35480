package mcpservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/ggoodman/mcp-catalog-go/mcp"
	"github.com/google/uuid"
)

// CapabilitySet records which capability categories the server offers. It is
// fixed when the Dispatcher is constructed.
type CapabilitySet struct {
	Tools     bool
	Resources bool
}

// Names lists the enabled categories in a stable order.
func (c CapabilitySet) Names() []string {
	out := []string{}
	if c.Tools {
		out = append(out, "tools")
	}
	if c.Resources {
		out = append(out, "resources")
	}
	return out
}

// ServerCapabilities renders the set in wire form.
func (c CapabilitySet) ServerCapabilities() mcp.ServerCapabilities {
	var sc mcp.ServerCapabilities
	if c.Tools {
		sc.Tools = &mcp.ToolsCapability{ListChanged: false}
	}
	if c.Resources {
		sc.Resources = &mcp.ResourcesCapability{ListChanged: false, Subscribe: false}
	}
	return sc
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithServerInfo sets the implementation info returned during initialize.
func WithServerInfo(info mcp.ImplementationInfo) DispatcherOption {
	return func(d *Dispatcher) { d.info = info }
}

// WithInstructions sets the instructions returned during initialize.
func WithInstructions(s string) DispatcherOption {
	return func(d *Dispatcher) { d.instructions = s }
}

// WithToolRegistry enables the tools capability backed by reg.
func WithToolRegistry(reg *ToolRegistry) DispatcherOption {
	return func(d *Dispatcher) { d.tools = reg }
}

// WithCatalog enables the resources capability backed by c.
func WithCatalog(c *Catalog) DispatcherOption {
	return func(d *Dispatcher) { d.catalog = c }
}

// WithInstanceID overrides the generated instance identifier.
func WithInstanceID(id string) DispatcherOption {
	return func(d *Dispatcher) {
		if id != "" {
			d.instanceID = id
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// Dispatcher is the typed entry point for every MCP operation the server
// serves. It owns no mutable state; each call is independent.
type Dispatcher struct {
	info         mcp.ImplementationInfo
	instructions string
	instanceID   string
	startedAt    time.Time
	now          func() time.Time
	log          *slog.Logger

	tools    *ToolRegistry
	catalog  *Catalog
	resolver *Resolver
	caps     CapabilitySet
}

// NewDispatcher constructs a Dispatcher. A capability is offered only when
// its backing component was supplied.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		info:       mcp.ImplementationInfo{Name: "mcp-catalog-server", Version: "dev"},
		instanceID: uuid.NewString(),
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.startedAt = d.now()
	d.caps = CapabilitySet{Tools: d.tools != nil, Resources: d.catalog != nil}
	if d.catalog != nil {
		d.resolver = NewResolver(d.catalog,
			WithStatusInfo(StatusInfo{
				ServerName:   d.info.Name,
				Version:      d.info.Version,
				InstanceID:   d.instanceID,
				StartedAt:    d.startedAt,
				Capabilities: d.caps,
			}),
			WithStatusTools(d.tools),
			WithResolverClock(d.now),
			WithResolverLogger(d.log),
		)
	}
	return d
}

// Capabilities returns the fixed capability set.
func (d *Dispatcher) Capabilities() CapabilitySet { return d.caps }

// ServerInfo returns the server identity.
func (d *Dispatcher) ServerInfo() mcp.ImplementationInfo { return d.info }

// InstanceID returns the per-process identifier.
func (d *Dispatcher) InstanceID() string { return d.instanceID }

// Negotiate answers an initialize request. The client's protocol version is
// echoed when supported, otherwise the latest version is offered.
func (d *Dispatcher) Negotiate(ctx context.Context, req *mcp.InitializeRequest) *mcp.InitializeResult {
	version := mcp.LatestProtocolVersion
	if req != nil && mcp.IsSupportedProtocolVersion(req.ProtocolVersion) {
		version = req.ProtocolVersion
	}
	if req != nil {
		d.log.InfoContext(ctx, "dispatcher.negotiate",
			slog.String("client", req.ClientInfo.Name),
			slog.String("requested_version", req.ProtocolVersion),
			slog.String("version", version),
		)
	}
	return &mcp.InitializeResult{
		ProtocolVersion: version,
		Capabilities:    d.caps.ServerCapabilities(),
		ServerInfo:      d.info,
		Instructions:    d.instructions,
	}
}

// ListTools returns the registered tools in registration order.
func (d *Dispatcher) ListTools(_ context.Context) []mcp.Tool {
	if d.tools == nil {
		return []mcp.Tool{}
	}
	return d.tools.List()
}

// CallTool validates and runs a tool. Failures are reported in the result.
func (d *Dispatcher) CallTool(ctx context.Context, name string, args Arguments) *mcp.CallToolResult {
	if d.tools == nil {
		return Errorf("Unknown tool: %s", name)
	}
	return d.tools.Dispatch(ctx, name, args)
}

// ListResources returns a fresh catalog snapshot. Scan failures are logged
// and the partial snapshot is returned.
func (d *Dispatcher) ListResources(ctx context.Context) []mcp.Resource {
	if d.catalog == nil {
		return []mcp.Resource{}
	}
	res, err := d.catalog.Resources(ctx)
	if err != nil {
		d.log.WarnContext(ctx, "catalog.scan.fail", slog.String("err", err.Error()))
	}
	return res
}

// ReadResource resolves and reads uri.
func (d *Dispatcher) ReadResource(ctx context.Context, uri string) []mcp.ResourceContents {
	if d.resolver == nil {
		return textContents(uri, "text/plain", "Unknown resource URI: "+uri)
	}
	return d.resolver.Read(ctx, uri)
}
