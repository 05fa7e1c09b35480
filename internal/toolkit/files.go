package toolkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ggoodman/mcp-catalog-go/mcp"
	"github.com/ggoodman/mcp-catalog-go/mcpservice"
	"gopkg.in/yaml.v3"
)

// path resolves name under the root.
func (t *Toolkit) path(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("path must not be empty")
	}
	return mcpservice.ConfinePath(t.root, name)
}

func (t *Toolkit) write(ctx context.Context, name string, data []byte) error {
	p, err := t.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return err
	}
	t.log.InfoContext(ctx, "toolkit.write.ok", slog.String("path", name), slog.Int("bytes", len(data)))
	return nil
}

type sampleUser struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Role string `json:"role" yaml:"role"`
}

type sampleSettings struct {
	Theme         string `json:"theme" yaml:"theme"`
	Notifications bool   `json:"notifications" yaml:"notifications"`
	Language      string `json:"language" yaml:"language"`
}

type sampleData struct {
	Users    []sampleUser   `json:"users" yaml:"users"`
	Settings sampleSettings `json:"settings" yaml:"settings"`
}

type sampleDocument struct {
	CreatedAt string     `json:"created_at" yaml:"created_at"`
	Server    string     `json:"server" yaml:"server"`
	Data      sampleData `json:"data" yaml:"data"`
}

type createSampleDataArgs struct {
	Filename string `json:"filename" jsonschema:"description=Name for the data file"`
	Format   string `json:"format,omitempty" jsonschema:"enum=json,enum=yaml,description=Output format (default json)"`
}

func (t *Toolkit) createSampleData(ctx context.Context, a createSampleDataArgs) (*mcp.CallToolResult, error) {
	format := strings.ToLower(a.Format)
	if format == "" {
		format = "json"
	}

	doc := sampleDocument{
		CreatedAt: t.now().Format(time.RFC3339Nano),
		Server:    "mcp-catalog-server",
		Data: sampleData{
			Users: []sampleUser{
				{ID: 1, Name: "Alice", Role: "admin"},
				{ID: 2, Name: "Bob", Role: "user"},
				{ID: 3, Name: "Charlie", Role: "user"},
			},
			Settings: sampleSettings{Theme: "dark", Notifications: true, Language: "en"},
		},
	}

	filename := a.Filename
	var (
		data []byte
		err  error
	)
	switch format {
	case "json":
		filename = ensureSuffix(filename, ".json")
		data, err = json.MarshalIndent(doc, "", "  ")
	case "yaml":
		if !hasSuffixFold(filename, ".yml") {
			filename = ensureSuffix(filename, ".yaml")
		}
		data, err = yaml.Marshal(doc)
	default:
		return mcpservice.Errorf("Unsupported format %q: use json or yaml", a.Format), nil
	}
	if err != nil {
		return mcpservice.Errorf("Error creating file: %v", err), nil
	}
	if err := t.write(ctx, filename, data); err != nil {
		return mcpservice.Errorf("Error creating file: %v", err), nil
	}
	return mcpservice.TextResult("Created sample data file: " + filename), nil
}

type writeNoteArgs struct {
	Filename string `json:"filename" jsonschema:"description=File to write the note to"`
	Content  string `json:"content" jsonschema:"description=Note body"`
}

func (t *Toolkit) writeNote(ctx context.Context, a writeNoteArgs) (*mcp.CallToolResult, error) {
	body := fmt.Sprintf("Note created: %s\n\n%s", t.now().Format(time.RFC3339), a.Content)
	if err := t.write(ctx, a.Filename, []byte(body)); err != nil {
		return mcpservice.Errorf("Error writing note: %v", err), nil
	}
	return mcpservice.TextResult("Note saved to: " + a.Filename), nil
}

type readFileArgs struct {
	Path string `json:"path" jsonschema:"description=File path relative to the server root"`
}

func (t *Toolkit) readFile(_ context.Context, a readFileArgs) (*mcp.CallToolResult, error) {
	p, err := t.path(a.Path)
	if err != nil {
		return mcpservice.Errorf("Error reading file: %v", err), nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return mcpservice.Errorf("File not found: %s", a.Path), nil
		}
		return mcpservice.Errorf("Error reading file: %v", err), nil
	}
	return mcpservice.TextResult(string(data)), nil
}

type writeFileArgs struct {
	Path    string `json:"path" jsonschema:"description=File path relative to the server root"`
	Content string `json:"content" jsonschema:"description=Exact content to write"`
}

func (t *Toolkit) writeFile(ctx context.Context, a writeFileArgs) (*mcp.CallToolResult, error) {
	if err := t.write(ctx, a.Path, []byte(a.Content)); err != nil {
		return mcpservice.Errorf("Error writing file: %v", err), nil
	}
	return mcpservice.TextResult(fmt.Sprintf("Wrote %d bytes to %s", len(a.Content), a.Path)), nil
}

type listDirectoryArgs struct {
	Path string `json:"path,omitempty" jsonschema:"description=Directory relative to the server root (default: the root)"`
}

func (t *Toolkit) listDirectory(_ context.Context, a listDirectoryArgs) (*mcp.CallToolResult, error) {
	dir := a.Path
	if dir == "" {
		dir = "."
	}
	p, err := t.path(dir)
	if err != nil {
		return mcpservice.Errorf("Error listing directory: %v", err), nil
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return mcpservice.Errorf("Directory not found: %s", dir), nil
		}
		return mcpservice.Errorf("Error listing directory: %v", err), nil
	}
	if len(entries) == 0 {
		return mcpservice.TextResult("(empty directory)"), nil
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || (e.Type()&fs.ModeSymlink != 0 && statIsDir(filepath.Join(p, e.Name()))) {
			lines = append(lines, e.Name()+"/")
		} else {
			lines = append(lines, e.Name())
		}
	}
	return mcpservice.TextResult(strings.Join(lines, "\n")), nil
}

func statIsDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func hasSuffixFold(s, suffix string) bool {
	return strings.HasSuffix(strings.ToLower(s), suffix)
}

func ensureSuffix(s, suffix string) string {
	if hasSuffixFold(s, suffix) {
		return s
	}
	return s + suffix
}
