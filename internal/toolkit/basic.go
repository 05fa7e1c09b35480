package toolkit

import (
	"context"
	"time"

	"github.com/ggoodman/mcp-catalog-go/mcp"
	"github.com/ggoodman/mcp-catalog-go/mcpservice"
)

type sayHelloArgs struct {
	Name string `json:"name" jsonschema:"description=Name of the person to greet"`
}

func (t *Toolkit) sayHello(_ context.Context, a sayHelloArgs) (*mcp.CallToolResult, error) {
	return mcpservice.TextResult("Hello, " + a.Name + "!"), nil
}

type getTimeArgs struct{}

func (t *Toolkit) getTime(_ context.Context, _ getTimeArgs) (*mcp.CallToolResult, error) {
	return mcpservice.TextResult(t.now().Format(time.RFC3339)), nil
}
