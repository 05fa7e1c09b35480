package mcpservice

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ggoodman/mcp-catalog-go/mcp"
)

// Fixed URIs of the synthetic catalog entries.
const (
	DirectoryURI = "dir://current"
	StatusURI    = "status://server"

	fileScheme = "file://"
)

// CatalogEntry is one member of a catalog snapshot: either a
// SyntheticResource or a ScannedResource.
type CatalogEntry interface {
	Resource() mcp.Resource
	catalogEntry()
}

// SyntheticResource is a server-provided entry that does not correspond to a
// file on disk.
type SyntheticResource struct {
	Descriptor mcp.Resource
}

func (s SyntheticResource) Resource() mcp.Resource { return s.Descriptor }
func (SyntheticResource) catalogEntry()            {}

// ScannedResource is an entry discovered by scanning the root directory. Its
// descriptor carries the file size observed during the scan.
type ScannedResource struct {
	Descriptor mcp.Resource
}

func (s ScannedResource) Resource() mcp.Resource { return s.Descriptor }
func (ScannedResource) catalogEntry()            {}

// ExtensionRule describes how files with one extension are presented.
type ExtensionRule struct {
	MimeType          string
	NamePrefix        string
	DescriptionPrefix string
}

// DefaultExtensions returns the extension table used when none is configured.
// Keys are lower-case and include the leading dot.
func DefaultExtensions() map[string]ExtensionRule {
	yaml := ExtensionRule{MimeType: "application/yaml", NamePrefix: "YAML Data: ", DescriptionPrefix: "YAML data from "}
	return map[string]ExtensionRule{
		".json": {MimeType: "application/json", NamePrefix: "JSON Data: ", DescriptionPrefix: "JSON data from "},
		".txt":  {MimeType: "text/plain", NamePrefix: "Text File: ", DescriptionPrefix: "Text content from "},
		".yaml": yaml,
		".yml":  yaml,
		".md":   {MimeType: "text/markdown", NamePrefix: "Markdown: ", DescriptionPrefix: "Markdown content from "},
	}
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithCatalogExtensions replaces the extension table. Keys are normalised to
// lower case with a leading dot.
func WithCatalogExtensions(exts map[string]ExtensionRule) CatalogOption {
	return func(c *Catalog) {
		if len(exts) == 0 {
			return
		}
		m := make(map[string]ExtensionRule, len(exts))
		for ext, rule := range exts {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			m[ext] = rule
		}
		c.exts = m
	}
}

// Catalog builds resource listings from a root directory. Nothing is cached:
// every Build re-reads the directory.
type Catalog struct {
	root string
	exts map[string]ExtensionRule
}

// NewCatalog constructs a Catalog over root. An empty root means the process
// working directory.
func NewCatalog(root string, opts ...CatalogOption) *Catalog {
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	c := &Catalog{root: root, exts: DefaultExtensions()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the absolute directory the catalog scans.
func (c *Catalog) Root() string { return c.root }

// rule returns the presentation rule for name's extension.
func (c *Catalog) rule(name string) (ExtensionRule, bool) {
	r, ok := c.exts[strings.ToLower(filepath.Ext(name))]
	return r, ok
}

func syntheticEntries() []CatalogEntry {
	return []CatalogEntry{
		SyntheticResource{Descriptor: mcp.Resource{
			URI:         DirectoryURI,
			Name:        "Current Directory",
			Description: "List of files in the current directory",
			MimeType:    "text/plain",
		}},
		SyntheticResource{Descriptor: mcp.Resource{
			URI:         StatusURI,
			Name:        "Server Status",
			Description: "Current server status and information",
			MimeType:    "application/json",
		}},
	}
}

// Build returns a fresh snapshot: the two synthetic entries followed by one
// entry per matching regular file in the root, in directory order. When the
// scan fails the synthetic entries are still returned alongside the error.
// Files whose rule yields an invalid descriptor (for example an unparseable
// media type) are left out.
func (c *Catalog) Build(ctx context.Context) ([]CatalogEntry, error) {
	entries := syntheticEntries()

	dirents, err := readDirRaw(c.root)
	for _, de := range dirents {
		if ctx.Err() != nil {
			return entries, ctx.Err()
		}
		if !de.Type().IsRegular() {
			continue
		}
		name := de.Name()
		rule, ok := c.rule(name)
		if !ok {
			continue
		}
		desc := mcp.Resource{
			URI:         fileScheme + name,
			Name:        rule.NamePrefix + name,
			Description: rule.DescriptionPrefix + name,
			MimeType:    rule.MimeType,
		}
		if info, ierr := de.Info(); ierr == nil {
			desc.Size = info.Size()
		}
		if desc.Validate() != nil {
			continue
		}
		entries = append(entries, ScannedResource{Descriptor: desc})
	}
	if err != nil {
		return entries, fmt.Errorf("scan %s: %w", c.root, err)
	}
	return entries, nil
}

// Resources returns the descriptors of a fresh snapshot.
func (c *Catalog) Resources(ctx context.Context) ([]mcp.Resource, error) {
	entries, err := c.Build(ctx)
	out := make([]mcp.Resource, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Resource())
	}
	return out, err
}

// Count returns the number of entries in a fresh snapshot.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	entries, err := c.Build(ctx)
	return len(entries), err
}

// readDirRaw lists dir in the order the filesystem returns entries.
// os.ReadDir would sort by name.
func readDirRaw(dir string) ([]fs.DirEntry, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.ReadDir(-1)
}
