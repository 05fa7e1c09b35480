// Package stdio implements a single-connection MCP transport over
// stdin/stdout. It is intended for running the server as a subprocess of an
// MCP client.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Auth             : none; the OS user only tags log records
//	Sessions         : none; every request stands alone
//	Transport        : newline-delimited JSON-RPC 2.0
//	Concurrency      : one request handled to completion before the next is read
//
// Only JSON-RPC responses are written to the output stream. Logs belong on
// stderr; pass a logger writing there via WithLogger.
//
// Example:
//
//	d := mcpservice.NewDispatcher(
//	    mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "my-stdio-server", Version: "0.1.0"}),
//	    mcpservice.WithToolRegistry(reg),
//	)
//	h := stdio.NewHandler(d)
//	if err := h.Serve(ctx); err != nil { log.Fatal(err) }
package stdio
