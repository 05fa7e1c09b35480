package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/mcp-catalog-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-catalog-go/mcp"
	"github.com/ggoodman/mcp-catalog-go/mcpservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHarness encapsulates pipes and collected output for stdio handler tests.
type testHarness struct {
	t       *testing.T
	stdinW  io.Writer
	stdoutR *bufio.Scanner
	outMu   sync.Mutex
	lines   []string
	done    chan error
}

func defaultInitializeRequest() mcp.InitializeRequest {
	return mcp.InitializeRequest{
		ProtocolVersion: mcp.LatestProtocolVersion,
		ClientInfo:      mcp.ImplementationInfo{Name: "client", Version: "0.0.1"},
	}
}

type helloArgs struct {
	Name string `json:"name"`
}

func newTestDispatcher(t *testing.T, root string) *mcpservice.Dispatcher {
	t.Helper()
	reg := mcpservice.NewToolRegistry()
	require.NoError(t, reg.Add(mcpservice.NewTool("say_hello", func(_ context.Context, a helloArgs) (*mcp.CallToolResult, error) {
		return mcpservice.TextResult("Hello, " + a.Name + "!"), nil
	}, mcpservice.WithToolDescription("Say hello"))))
	return mcpservice.NewDispatcher(
		mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "stdio-test", Version: "0.0.1"}),
		mcpservice.WithToolRegistry(reg),
		mcpservice.WithCatalog(mcpservice.NewCatalog(root)),
	)
}

func newHarness(t *testing.T, d *mcpservice.Dispatcher, opts ...Option) *testHarness {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	opts = append([]Option{WithIO(inR, outW), WithLogger(slog.Default()), WithUserProvider(StaticUserProvider("tester"))}, opts...)
	h := NewHandler(d, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	th := &testHarness{t: t, stdinW: inW, stdoutR: bufio.NewScanner(outR), done: make(chan error, 1)}

	go func() {
		th.done <- h.Serve(ctx)
	}()

	go func() {
		for th.stdoutR.Scan() {
			line := strings.TrimSpace(th.stdoutR.Text())
			th.t.Logf("OUT: %s", line)
			th.outMu.Lock()
			th.lines = append(th.lines, line)
			th.outMu.Unlock()
		}
	}()

	t.Cleanup(func() {
		cancel()
		_ = inW.Close()
		_ = outW.Close()
		time.Sleep(10 * time.Millisecond)
	})
	return th
}

func (th *testHarness) sendRaw(line string) {
	th.t.Helper()
	_, err := th.stdinW.Write([]byte(line + "\n"))
	require.NoError(th.t, err)
}

// send writes a JSON-RPC request (as marshalled JSON + newline) to stdin.
func (th *testHarness) send(id any, method string, params any) {
	th.t.Helper()
	req := &jsonrpc.Request{JSONRPCVersion: jsonrpc.ProtocolVersion, Method: method}
	if id != nil {
		req.ID = jsonrpc.NewRequestID(id)
	}
	if params != nil {
		raw, err := json.Marshal(params)
		require.NoError(th.t, err)
		req.Params = raw
	}
	b, err := json.Marshal(req)
	require.NoError(th.t, err)
	th.sendRaw(string(b))
}

func (th *testHarness) nextLine(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		th.outMu.Lock()
		if len(th.lines) > 0 {
			s := th.lines[0]
			th.lines = th.lines[1:]
			th.outMu.Unlock()
			return s, nil
		}
		th.outMu.Unlock()
		time.Sleep(2 * time.Millisecond)
	}
	return "", fmt.Errorf("timeout waiting for output line")
}

func (th *testHarness) expectResponse() *jsonrpc.Response {
	th.t.Helper()
	line, err := th.nextLine(2 * time.Second)
	require.NoError(th.t, err)
	var msg jsonrpc.AnyMessage
	require.NoError(th.t, json.Unmarshal([]byte(line), &msg))
	require.Equal(th.t, jsonrpc.TypeResponse, msg.Type())
	return msg.AsResponse()
}

func expectResult[T any](t *testing.T, res *jsonrpc.Response) T {
	t.Helper()
	require.Nil(t, res.Error, "unexpected error: %+v", res.Error)
	var out T
	require.NoError(t, json.Unmarshal(res.Result, &out))
	return out
}

func TestStdio_HandshakeAndTools(t *testing.T) {
	th := newHarness(t, newTestDispatcher(t, t.TempDir()))

	th.send(1, string(mcp.InitializeMethod), defaultInitializeRequest())
	res := th.expectResponse()
	assert.Equal(t, "1", res.ID.String())
	initRes := expectResult[mcp.InitializeResult](t, res)
	assert.Equal(t, mcp.LatestProtocolVersion, initRes.ProtocolVersion)
	assert.Equal(t, "stdio-test", initRes.ServerInfo.Name)

	th.send(nil, string(mcp.InitializedNotificationMethod), nil)

	th.send(2, string(mcp.ToolsListMethod), nil)
	res = th.expectResponse()
	assert.Equal(t, "2", res.ID.String())
	tools := expectResult[mcp.ListToolsResult](t, res)
	require.Len(t, tools.Tools, 1)
	assert.Equal(t, "say_hello", tools.Tools[0].Name)

	th.send("call-1", string(mcp.ToolsCallMethod), map[string]any{"name": "say_hello", "arguments": map[string]any{}})
	res = th.expectResponse()
	assert.Equal(t, "call-1", res.ID.String())
	call := expectResult[mcp.CallToolResult](t, res)
	assert.True(t, call.IsError)
	assert.Contains(t, call.Content[0].Text, "name")

	th.send(3, string(mcp.ToolsCallMethod), map[string]any{"name": "say_hello", "arguments": map[string]any{"name": "Alice"}})
	call = expectResult[mcp.CallToolResult](t, th.expectResponse())
	assert.False(t, call.IsError)
	assert.Equal(t, "Hello, Alice!", call.Content[0].Text)
}

func TestStdio_Resources(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.json"), []byte(`{"a":1}`), 0o600))
	th := newHarness(t, newTestDispatcher(t, dir))

	th.send(1, string(mcp.ResourcesListMethod), nil)
	list := expectResult[mcp.ListResourcesResult](t, th.expectResponse())
	require.Len(t, list.Resources, 3)
	assert.Equal(t, mcpservice.DirectoryURI, list.Resources[0].URI)
	assert.Equal(t, mcpservice.StatusURI, list.Resources[1].URI)
	assert.Equal(t, "file://data.json", list.Resources[2].URI)

	th.send(2, string(mcp.ResourcesReadMethod), map[string]any{"uri": "file://data.json"})
	read := expectResult[mcp.ReadResourceResult](t, th.expectResponse())
	require.Len(t, read.Contents, 1)
	assert.Equal(t, `{"a":1}`, read.Contents[0].Text)
	assert.Equal(t, "application/json", read.Contents[0].MimeType)

	th.send(3, string(mcp.ResourcesReadMethod), map[string]any{"uri": "file://gone.txt"})
	read = expectResult[mcp.ReadResourceResult](t, th.expectResponse())
	assert.Equal(t, "File not found: gone.txt", read.Contents[0].Text)
}

func TestStdio_ProtocolErrorsKeepServing(t *testing.T) {
	th := newHarness(t, newTestDispatcher(t, t.TempDir()))

	th.sendRaw(`{this is not json`)
	res := th.expectResponse()
	require.NotNil(t, res.Error)
	assert.Equal(t, jsonrpc.ErrorCodeParseError, res.Error.Code)
	assert.True(t, res.ID.IsNil())

	th.sendRaw(`{"jsonrpc":"1.0","id":1,"method":"ping"}`)
	res = th.expectResponse()
	require.NotNil(t, res.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInvalidRequest, res.Error.Code)

	th.send(2, "no/such/method", nil)
	res = th.expectResponse()
	require.NotNil(t, res.Error)
	assert.Equal(t, jsonrpc.ErrorCodeMethodNotFound, res.Error.Code)
	assert.Equal(t, "2", res.ID.String())

	// Unknown notifications produce no output: the next line is the ping.
	th.send(nil, "notifications/whatever", nil)
	th.send(3, string(mcp.PingMethod), nil)
	res = th.expectResponse()
	assert.Equal(t, "3", res.ID.String())
	assert.Nil(t, res.Error)
}

func TestStdio_OversizedLineKeepsServing(t *testing.T) {
	th := newHarness(t, newTestDispatcher(t, t.TempDir()), WithMaxMessageSize(1024))

	// Larger than both the limit and the reader's internal buffer.
	big := `{"jsonrpc":"2.0","id":1,"method":"ping","params":{"pad":"` + strings.Repeat("x", 200*1024) + `"}}`
	th.sendRaw(big)
	res := th.expectResponse()
	require.NotNil(t, res.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInvalidRequest, res.Error.Code)
	assert.True(t, res.ID.IsNil())

	th.send(2, string(mcp.PingMethod), nil)
	res = th.expectResponse()
	assert.Equal(t, "2", res.ID.String())
	assert.Nil(t, res.Error)
}

func TestStdio_LineAtLimitIsAccepted(t *testing.T) {
	ping := `{"jsonrpc":"2.0","id":7,"method":"ping"}`
	var out bytes.Buffer
	h := NewHandler(newTestDispatcher(t, t.TempDir()),
		WithIO(strings.NewReader(ping+"\n"+ping+"x\n"), &out),
		WithUserProvider(nil),
		WithMaxMessageSize(len(ping)),
	)
	require.NoError(t, h.Serve(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":7`)
	assert.Contains(t, lines[1], `"code":-32600`)
	assert.Contains(t, lines[1], `"id":null`)
}

func TestStdio_EOFIsCleanShutdown(t *testing.T) {
	var in bytes.Buffer
	for _, line := range []string{
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		``,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	} {
		in.WriteString(line + "\n")
	}
	var out bytes.Buffer

	h := NewHandler(newTestDispatcher(t, t.TempDir()), WithIO(&in, &out), WithUserProvider(nil))
	require.NoError(t, h.Serve(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":1`)
	assert.Contains(t, lines[1], `"id":2`)

	assert.ErrorIs(t, h.Serve(context.Background()), ErrAlreadyServing)
}

func TestStdio_ContextCancelStopsServe(t *testing.T) {
	inR, inW := io.Pipe()
	defer inW.Close()

	h := NewHandler(newTestDispatcher(t, t.TempDir()), WithIO(inR, io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
