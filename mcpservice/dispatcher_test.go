package mcpservice

import (
	"context"
	"testing"

	"github.com/ggoodman/mcp-catalog-go/mcp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_Negotiate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reg := NewToolRegistry()
	reg.MustRegister(echoTool("echo"), echoHandler)
	d := NewDispatcher(
		WithServerInfo(mcp.ImplementationInfo{Name: "catalog", Version: "0.1.0"}),
		WithInstructions("be nice"),
		WithToolRegistry(reg),
		WithCatalog(NewCatalog(t.TempDir())),
	)

	res := d.Negotiate(ctx, &mcp.InitializeRequest{ProtocolVersion: "2024-11-05"})
	assert.Equal(t, "2024-11-05", res.ProtocolVersion)
	assert.Equal(t, "catalog", res.ServerInfo.Name)
	assert.Equal(t, "be nice", res.Instructions)
	require.NotNil(t, res.Capabilities.Tools)
	require.NotNil(t, res.Capabilities.Resources)
	assert.False(t, res.Capabilities.Tools.ListChanged)
	assert.False(t, res.Capabilities.Resources.Subscribe)

	res = d.Negotiate(ctx, &mcp.InitializeRequest{ProtocolVersion: "1999-01-01"})
	assert.Equal(t, mcp.LatestProtocolVersion, res.ProtocolVersion)

	_, err := uuid.Parse(d.InstanceID())
	require.NoError(t, err)
}

func TestDispatcher_CapabilitiesFollowComponents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	toolsOnly := NewDispatcher(WithToolRegistry(NewToolRegistry()))
	assert.Equal(t, CapabilitySet{Tools: true}, toolsOnly.Capabilities())
	res := toolsOnly.Negotiate(ctx, &mcp.InitializeRequest{})
	assert.NotNil(t, res.Capabilities.Tools)
	assert.Nil(t, res.Capabilities.Resources)
	assert.Empty(t, toolsOnly.ListResources(ctx))
	out := toolsOnly.ReadResource(ctx, "status://server")
	require.Len(t, out, 1)
	assert.Equal(t, "Unknown resource URI: status://server", out[0].Text)

	resourcesOnly := NewDispatcher(WithCatalog(NewCatalog(t.TempDir())))
	assert.Equal(t, CapabilitySet{Resources: true}, resourcesOnly.Capabilities())
	assert.Empty(t, resourcesOnly.ListTools(ctx))
	call := resourcesOnly.CallTool(ctx, "echo", nil)
	assert.True(t, call.IsError)
}

func TestDispatcher_Delegates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha")

	reg := NewToolRegistry()
	reg.MustRegister(echoTool("echo"), echoHandler)
	d := NewDispatcher(
		WithToolRegistry(reg),
		WithCatalog(NewCatalog(dir)),
		WithInstanceID("fixed-id"),
	)

	tools := d.ListTools(ctx)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)

	call := d.CallTool(ctx, "echo", Arguments{"msg": "hey"})
	assert.False(t, call.IsError)
	assert.Equal(t, "hey", call.Content[0].Text)

	resources := d.ListResources(ctx)
	require.Len(t, resources, 3)
	assert.Equal(t, "file://a.txt", resources[2].URI)

	out := d.ReadResource(ctx, "file://a.txt")
	require.Len(t, out, 1)
	assert.Equal(t, "alpha", out[0].Text)

	out = d.ReadResource(ctx, "status://server")
	assert.Contains(t, out[0].Text, `"instance_id": "fixed-id"`)
}
