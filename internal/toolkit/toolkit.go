// Package toolkit contains the concrete tools the server ships with. All file
// paths given to a tool are resolved against the server root and may not
// leave it.
package toolkit

import (
	"log/slog"
	"time"

	"github.com/ggoodman/mcp-catalog-go/mcpservice"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Toolkit carries the state shared by the tool handlers.
type Toolkit struct {
	root string
	now  func() time.Time
	log  *slog.Logger
	md   goldmark.Markdown
}

// Option configures the toolkit.
type Option func(*Toolkit)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Toolkit) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Toolkit) {
		if l != nil {
			t.log = l
		}
	}
}

// New constructs a Toolkit rooted at root.
func New(root string, opts ...Option) *Toolkit {
	t := &Toolkit{
		root: root,
		now:  time.Now,
		log:  slog.Default(),
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tools returns the tool definitions in registration order.
func (t *Toolkit) Tools() []mcpservice.ToolDef {
	return []mcpservice.ToolDef{
		mcpservice.NewTool("say_hello", t.sayHello,
			mcpservice.WithToolDescription("Says hello to someone")),
		mcpservice.NewTool("get_time", t.getTime,
			mcpservice.WithToolDescription("Returns the current server time in RFC 3339 format")),
		mcpservice.NewTool("create_sample_data", t.createSampleData,
			mcpservice.WithToolDescription("Create a sample JSON or YAML data file for testing resources")),
		mcpservice.NewTool("write_note", t.writeNote,
			mcpservice.WithToolDescription("Write a timestamped note to a text file")),
		mcpservice.NewTool("read_file", t.readFile,
			mcpservice.WithToolDescription("Read a file under the server root")),
		mcpservice.NewTool("write_file", t.writeFile,
			mcpservice.WithToolDescription("Write content verbatim to a file under the server root")),
		mcpservice.NewTool("list_directory", t.listDirectory,
			mcpservice.WithToolDescription("List the entries of a directory under the server root")),
		mcpservice.NewTool("create_report", t.createReport,
			mcpservice.WithToolDescription("Write a status report of the server root as Markdown or HTML")),
	}
}

// Register adds every tool to reg, in order.
func Register(reg *mcpservice.ToolRegistry, root string, opts ...Option) error {
	for _, def := range New(root, opts...).Tools() {
		if err := reg.Add(def); err != nil {
			return err
		}
	}
	return nil
}
