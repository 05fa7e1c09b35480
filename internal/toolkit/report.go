package toolkit

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ggoodman/mcp-catalog-go/mcp"
	"github.com/ggoodman/mcp-catalog-go/mcpservice"
)

type createReportArgs struct {
	Title  string `json:"title" jsonschema:"description=Report heading"`
	Format string `json:"format,omitempty" jsonschema:"enum=markdown,enum=html,description=Output format (default markdown)"`
}

type rootSummary struct {
	files int
	dirs  int
	byExt map[string]int
}

func (t *Toolkit) summarizeRoot() (rootSummary, error) {
	s := rootSummary{byExt: map[string]int{}}
	entries, err := os.ReadDir(t.root)
	if err != nil {
		return s, err
	}
	for _, e := range entries {
		if e.IsDir() {
			s.dirs++
			continue
		}
		if !e.Type().IsRegular() {
			continue
		}
		s.files++
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == "" {
			ext = "(none)"
		}
		s.byExt[ext]++
	}
	return s, nil
}

func (t *Toolkit) reportMarkdown(title string, at time.Time, s rootSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Generated: %s\n\n", at.Format(time.RFC3339))
	fmt.Fprintf(&b, "Root: `%s`\n\n", t.root)
	b.WriteString("| Extension | Files |\n")
	b.WriteString("| --- | --- |\n")
	exts := make([]string, 0, len(s.byExt))
	for ext := range s.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		fmt.Fprintf(&b, "| %s | %d |\n", ext, s.byExt[ext])
	}
	fmt.Fprintf(&b, "\nTotal files: %d\n\nDirectories: %d\n", s.files, s.dirs)
	return b.String()
}

func (t *Toolkit) createReport(ctx context.Context, a createReportArgs) (*mcp.CallToolResult, error) {
	format := strings.ToLower(a.Format)
	if format == "" {
		format = "markdown"
	}
	if format != "markdown" && format != "html" {
		return mcpservice.Errorf("Unsupported format %q: use markdown or html", a.Format), nil
	}

	summary, err := t.summarizeRoot()
	if err != nil {
		return mcpservice.Errorf("Error creating report: %v", err), nil
	}
	at := t.now()
	md := t.reportMarkdown(a.Title, at, summary)
	stamp := at.Format("20060102-150405")

	var (
		filename string
		data     []byte
	)
	switch format {
	case "markdown":
		filename = "report-" + stamp + ".md"
		data = []byte(md)
	case "html":
		var body bytes.Buffer
		if err := t.md.Convert([]byte(md), &body); err != nil {
			return mcpservice.Errorf("Error rendering report: %v", err), nil
		}
		filename = "report-" + stamp + ".html"
		data = []byte(fmt.Sprintf("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n%s</body>\n</html>\n",
			html.EscapeString(a.Title), body.String()))
	}

	if err := t.write(ctx, filename, data); err != nil {
		return mcpservice.Errorf("Error creating report: %v", err), nil
	}
	return mcpservice.TextResult("Report written to: " + filename), nil
}
