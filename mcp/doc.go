// Package mcp contains the protocol data types and constants shared by the
// transport, the JSON-RPC engine and the capability layer. It mirrors the wire
// representation of the Model Context Protocol for the subset this server
// speaks: initialization, tools and resources.
//
// The package is free of transport logic. The stdio handler frames these
// types as newline-delimited JSON-RPC; mcpservice builds them as results.
//
// # Method Names
//
// JSON-RPC method and notification names are enumerated as Method constants
// (e.g. ToolsListMethod).
//
// # Descriptors
//
// Tool and Resource are plain descriptors. Their Validate methods check
// structural well-formedness only; uniqueness of names and URIs is enforced
// by whatever holds them (the tool registry, the resource catalog).
//
// Example (tool result construction):
//
//	res := &mcp.CallToolResult{
//	    Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: "hello"}},
//	}
//
// # Compatibility
//
// LatestProtocolVersion reflects the most recent protocol date the module
// targets. Older revisions listed in SupportedProtocolVersions are echoed back
// during initialize when a client requests them.
package mcp
