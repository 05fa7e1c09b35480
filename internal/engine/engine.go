package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/ggoodman/mcp-catalog-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-catalog-go/internal/logctx"
	"github.com/ggoodman/mcp-catalog-go/internal/metrics"
	"github.com/ggoodman/mcp-catalog-go/mcp"
	"github.com/ggoodman/mcp-catalog-go/mcpservice"
)

// Engine routes JSON-RPC requests to the Dispatcher. It is transport-agnostic
// and stateless: initialize is answered whenever it arrives and no other
// method depends on it having been called.
type Engine struct {
	d       *mcpservice.Dispatcher
	log     *slog.Logger
	metrics *metrics.Metrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger for the Engine.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics records request and tool metrics into m.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine constructs an Engine over d.
func NewEngine(d *mcpservice.Dispatcher, opts ...EngineOption) *Engine {
	e := &Engine{d: d, log: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// HandleRequest answers one request. The returned response is never nil; a
// non-nil error means the result could not be encoded and the response
// carries an internal error instead.
func (e *Engine) HandleRequest(ctx context.Context, req *jsonrpc.Request) (res *jsonrpc.Response, err error) {
	start := time.Now()
	method := req.Method
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: method, ID: req.ID.String(), Type: jsonrpc.TypeRequest})

	defer func() {
		if p := recover(); p != nil {
			e.log.ErrorContext(ctx, "engine.handle_request.panic",
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
			res = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil)
			err = nil
		}
		e.observe(method, res, time.Since(start))
	}()

	res, err = e.route(ctx, req, start)
	if err != nil {
		e.log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		res = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}
	return res, err
}

func (e *Engine) route(ctx context.Context, req *jsonrpc.Request, start time.Time) (*jsonrpc.Response, error) {
	caps := e.d.Capabilities()
	switch mcp.Method(req.Method) {
	case mcp.InitializeMethod:
		return e.handleInitialize(ctx, req, start)
	case mcp.PingMethod:
		return jsonrpc.NewResultResponse(req.ID, mcp.EmptyResult{})
	case mcp.ToolsListMethod:
		if caps.Tools {
			return e.handleToolsList(ctx, req, start)
		}
	case mcp.ToolsCallMethod:
		if caps.Tools {
			return e.handleToolCall(ctx, req, start)
		}
	case mcp.ResourcesListMethod:
		if caps.Resources {
			return e.handleResourcesList(ctx, req, start)
		}
	case mcp.ResourcesReadMethod:
		if caps.Resources {
			return e.handleResourcesRead(ctx, req, start)
		}
	case mcp.ResourcesTemplatesListMethod:
		if caps.Resources {
			return jsonrpc.NewResultResponse(req.ID, &mcp.ListResourceTemplatesResult{ResourceTemplates: []mcp.ResourceTemplate{}})
		}
	}

	e.log.InfoContext(ctx, "engine.handle_request.unsupported", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil), nil
}

// HandleNotification accepts a notification. Nothing is ever sent back.
func (e *Engine) HandleNotification(ctx context.Context, note *jsonrpc.Request) {
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: note.Method, Type: jsonrpc.TypeNotification})
	switch mcp.Method(note.Method) {
	case mcp.InitializedNotificationMethod, mcp.CancelledNotificationMethod:
		e.log.DebugContext(ctx, "engine.handle_notification.ok")
	default:
		e.log.DebugContext(ctx, "engine.handle_notification.ignored")
	}
	e.metrics.ObserveRequest(metricsMethod(note.Method), metrics.OutcomeOK, 0)
}

func (e *Engine) invalidParams(ctx context.Context, req *jsonrpc.Request, start time.Time, reason string) *jsonrpc.Response {
	e.log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", reason), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "Invalid params: "+reason, nil)
}

func (e *Engine) handleInitialize(ctx context.Context, req *jsonrpc.Request, start time.Time) (*jsonrpc.Response, error) {
	var params mcp.InitializeRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return e.invalidParams(ctx, req, start, err.Error()), nil
		}
	}
	res := e.d.Negotiate(ctx, &params)
	e.log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.String("protocol_version", res.ProtocolVersion))
	return jsonrpc.NewResultResponse(req.ID, res)
}

func (e *Engine) handleToolsList(ctx context.Context, req *jsonrpc.Request, start time.Time) (*jsonrpc.Response, error) {
	tools := e.d.ListTools(ctx)
	e.log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Int("tool_count", len(tools)))
	return jsonrpc.NewResultResponse(req.ID, &mcp.ListToolsResult{Tools: tools})
}

func (e *Engine) handleToolCall(ctx context.Context, req *jsonrpc.Request, start time.Time) (*jsonrpc.Response, error) {
	var params mcp.CallToolRequestReceived
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return e.invalidParams(ctx, req, start, "params must be an object"), nil
	}
	if params.Name == "" {
		return e.invalidParams(ctx, req, start, "missing tool name"), nil
	}
	args, err := decodeArguments(params.Arguments)
	if err != nil {
		return e.invalidParams(ctx, req, start, err.Error()), nil
	}

	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: params.Name})
	res := e.d.CallTool(ctx, params.Name, args)
	e.metrics.ObserveToolCall(toolLabel(e.d, params.Name), res.IsError)

	if res.IsError {
		e.log.InfoContext(ctx, "engine.handle_request.tool_error", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	} else {
		e.log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	}
	return jsonrpc.NewResultResponse(req.ID, res)
}

func (e *Engine) handleResourcesList(ctx context.Context, req *jsonrpc.Request, start time.Time) (*jsonrpc.Response, error) {
	resources := e.d.ListResources(ctx)
	e.metrics.SetCatalogEntries(len(resources))
	e.log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Int("resource_count", len(resources)))
	return jsonrpc.NewResultResponse(req.ID, &mcp.ListResourcesResult{Resources: resources})
}

func (e *Engine) handleResourcesRead(ctx context.Context, req *jsonrpc.Request, start time.Time) (*jsonrpc.Response, error) {
	var params mcp.ReadResourceRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return e.invalidParams(ctx, req, start, "params must be an object"), nil
	}
	if params.URI == "" {
		return e.invalidParams(ctx, req, start, "missing uri"), nil
	}

	ctx = logctx.WithResourceData(ctx, &logctx.ResourceData{URI: params.URI})
	contents := e.d.ReadResource(ctx, params.URI)
	e.log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Int("content_count", len(contents)))
	return jsonrpc.NewResultResponse(req.ID, &mcp.ReadResourceResult{Contents: contents})
}

// decodeArguments turns the raw arguments member into a bundle. Absent and
// null arguments are an empty bundle; anything other than an object is an
// error.
func decodeArguments(raw json.RawMessage) (mcpservice.Arguments, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return mcpservice.Arguments{}, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("arguments must be an object")
	}
	var args mcpservice.Arguments
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, fmt.Errorf("arguments must be an object: %w", err)
	}
	return args, nil
}

func (e *Engine) observe(method string, res *jsonrpc.Response, d time.Duration) {
	outcome := metrics.OutcomeOK
	if res == nil || res.Error != nil {
		outcome = metrics.OutcomeError
	}
	e.metrics.ObserveRequest(metricsMethod(method), outcome, d)
}

// metricsMethod bounds label cardinality to the known method names.
func metricsMethod(method string) string {
	switch mcp.Method(method) {
	case mcp.InitializeMethod, mcp.InitializedNotificationMethod, mcp.PingMethod,
		mcp.ToolsListMethod, mcp.ToolsCallMethod,
		mcp.ResourcesListMethod, mcp.ResourcesReadMethod, mcp.ResourcesTemplatesListMethod,
		mcp.CancelledNotificationMethod:
		return method
	default:
		return "other"
	}
}

func toolLabel(d *mcpservice.Dispatcher, name string) string {
	for _, t := range d.ListTools(context.Background()) {
		if t.Name == name {
			return name
		}
	}
	return "unknown"
}
