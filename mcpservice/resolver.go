package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ggoodman/mcp-catalog-go/mcp"
)

// ContentHandler produces the contents for one resource read. uri is the
// caller's original URI and is echoed on every item.
type ContentHandler func(ctx context.Context, uri string) []mcp.ResourceContents

// StatusInfo is the static part of the status://server document.
type StatusInfo struct {
	ServerName   string
	Version      string
	InstanceID   string
	StartedAt    time.Time
	Capabilities CapabilitySet
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStatusInfo sets the identity reported by status://server.
func WithStatusInfo(info StatusInfo) ResolverOption {
	return func(r *Resolver) { r.info = info }
}

// WithStatusTools sets the registry whose size is reported as tools_count.
func WithStatusTools(reg *ToolRegistry) ResolverOption {
	return func(r *Resolver) { r.tools = reg }
}

// WithResolverClock overrides the time source used for current_time.
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// Resolver maps resource URIs to content handlers.
type Resolver struct {
	catalog *Catalog
	tools   *ToolRegistry
	info    StatusInfo
	now     func() time.Time
	log     *slog.Logger
}

// NewResolver constructs a Resolver that reads files under the catalog root.
func NewResolver(catalog *Catalog, opts ...ResolverOption) *Resolver {
	r := &Resolver{catalog: catalog, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type uriKind int

const (
	uriUnknown uriKind = iota
	uriDirectory
	uriStatus
	uriFile
)

// normalizeURI strips every trailing slash or backslash.
func normalizeURI(uri string) string {
	return strings.TrimRight(uri, `/\`)
}

// classify decides which handler serves a normalised URI. For file URIs the
// second return value is the path after the scheme.
func classify(normalized string) (uriKind, string) {
	switch {
	case normalized == DirectoryURI:
		return uriDirectory, ""
	case normalized == StatusURI:
		return uriStatus, ""
	case strings.HasPrefix(normalized, fileScheme):
		return uriFile, strings.TrimPrefix(normalized, fileScheme)
	default:
		return uriUnknown, ""
	}
}

// Resolve returns the handler for uri. It never returns nil; URIs that match
// nothing get a handler reporting them as unknown.
func (r *Resolver) Resolve(uri string) ContentHandler {
	kind, path := classify(normalizeURI(uri))
	switch kind {
	case uriDirectory:
		return r.readDirectory
	case uriStatus:
		return r.readStatus
	case uriFile:
		return func(ctx context.Context, uri string) []mcp.ResourceContents {
			return r.readFile(ctx, uri, path)
		}
	default:
		return func(_ context.Context, uri string) []mcp.ResourceContents {
			return textContents(uri, "text/plain", "Unknown resource URI: "+uri)
		}
	}
}

// Read resolves and reads uri. The result always has at least one item.
func (r *Resolver) Read(ctx context.Context, uri string) []mcp.ResourceContents {
	return r.Resolve(uri)(ctx, uri)
}

func (r *Resolver) readDirectory(ctx context.Context, uri string) []mcp.ResourceContents {
	dirents, err := readDirRaw(r.catalog.Root())
	if err != nil {
		r.log.WarnContext(ctx, "resolver.read_directory.fail", slog.String("err", err.Error()))
		return textContents(uri, "text/plain", "Error reading directory: "+err.Error())
	}
	var b strings.Builder
	b.WriteString("Current Directory Contents:")
	for _, de := range dirents {
		b.WriteString("\n")
		if isDir(r.catalog.Root(), de) {
			b.WriteString("[dir]  " + de.Name() + "/")
		} else {
			b.WriteString("[file] " + de.Name())
		}
	}
	return textContents(uri, "text/plain", b.String())
}

// isDir reports whether de is a directory, following a symlink to its target.
func isDir(dir string, de fs.DirEntry) bool {
	if de.Type()&fs.ModeSymlink == 0 {
		return de.IsDir()
	}
	info, err := os.Stat(filepath.Join(dir, de.Name()))
	return err == nil && info.IsDir()
}

type statusDocument struct {
	ServerName         string   `json:"server_name"`
	Version            string   `json:"version"`
	InstanceID         string   `json:"instance_id"`
	Status             string   `json:"status"`
	Capabilities       []string `json:"capabilities"`
	ToolsCount         int      `json:"tools_count"`
	ResourcesAvailable int      `json:"resources_available"`
	StartedAt          string   `json:"started_at,omitempty"`
	CurrentTime        string   `json:"current_time"`
}

func (r *Resolver) readStatus(ctx context.Context, uri string) []mcp.ResourceContents {
	count, err := r.catalog.Count(ctx)
	if err != nil {
		r.log.WarnContext(ctx, "catalog.scan.fail", slog.String("err", err.Error()))
	}
	doc := statusDocument{
		ServerName:         r.info.ServerName,
		Version:            r.info.Version,
		InstanceID:         r.info.InstanceID,
		Status:             "running",
		Capabilities:       r.info.Capabilities.Names(),
		ResourcesAvailable: count,
		CurrentTime:        r.now().Format(time.RFC3339Nano),
	}
	if r.tools != nil {
		doc.ToolsCount = r.tools.Len()
	}
	if !r.info.StartedAt.IsZero() {
		doc.StartedAt = r.info.StartedAt.Format(time.RFC3339Nano)
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return textContents(uri, "text/plain", "Error building status: "+err.Error())
	}
	return textContents(uri, "application/json", string(b))
}

func (r *Resolver) readFile(ctx context.Context, uri, name string) []mcp.ResourceContents {
	p, err := ConfinePath(r.catalog.Root(), name)
	if err != nil {
		r.log.WarnContext(ctx, "resolver.read_file.refused", slog.String("path", name), slog.String("err", err.Error()))
		return textContents(uri, "text/plain", "Error reading file: "+err.Error())
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return textContents(uri, "text/plain", "File not found: "+name)
		}
		return textContents(uri, "text/plain", fmt.Sprintf("Error reading file: %v", err))
	}
	return textContents(uri, r.mimeTypeFor(name), string(data))
}

// mimeTypeFor infers a media type from the extension, preferring the
// catalog's table.
func (r *Resolver) mimeTypeFor(name string) string {
	if rule, ok := r.catalog.rule(name); ok {
		return rule.MimeType
	}
	if mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); mt != "" {
		return mt
	}
	return "text/plain"
}

func textContents(uri, mimeType, text string) []mcp.ResourceContents {
	return []mcp.ResourceContents{{URI: uri, MimeType: mimeType, Text: text}}
}
