// Package mcpservice implements the capability layer of the server: the tool
// registry and its argument validator, the resource catalog, the resource URI
// resolver, and the Dispatcher that fronts all of them.
//
// Nothing in this package speaks JSON-RPC. Every operation returns MCP result
// types, and every failure a client can cause (unknown tool, bad arguments,
// missing file) is reported as handled content rather than as an error.
//
// Quick start:
//
//	type EchoArgs struct {
//	    Message string `json:"message" jsonschema:"description=Text to echo"`
//	}
//
//	reg := mcpservice.NewToolRegistry()
//	if err := reg.Add(mcpservice.NewTool("echo",
//	    func(ctx context.Context, a EchoArgs) (*mcp.CallToolResult, error) {
//	        return mcpservice.TextResult("you said: " + a.Message), nil
//	    },
//	    mcpservice.WithToolDescription("Echo a message back to the caller"),
//	)); err != nil {
//	    return err
//	}
//
//	d := mcpservice.NewDispatcher(
//	    mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "example", Version: "1.0.0"}),
//	    mcpservice.WithToolRegistry(reg),
//	    mcpservice.WithCatalog(mcpservice.NewCatalog(".")),
//	)
//
// # Resources
//
// The catalog always lists dir://current and status://server first, followed
// by the files in the root directory whose extension is in the extension
// table. URIs are matched after trailing slashes and backslashes are removed,
// in this order: the two synthetic URIs, then the file:// prefix, then
// anything else is unknown.
package mcpservice
