package mcpservice

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		uri  string
		kind uriKind
		path string
	}{
		{"dir://current", uriDirectory, ""},
		{"dir://current/", uriDirectory, ""},
		{`dir://current\\`, uriDirectory, ""},
		{"status://server", uriStatus, ""},
		{"status://server//", uriStatus, ""},
		{"file://notes.txt", uriFile, "notes.txt"},
		{"file://sub/notes.txt/", uriFile, "sub/notes.txt"},
		{"dir://other", uriUnknown, ""},
		{"http://example.com", uriUnknown, ""},
		{"", uriUnknown, ""},
	}
	for _, tc := range cases {
		kind, path := classify(normalizeURI(tc.uri))
		assert.Equal(t, tc.kind, kind, tc.uri)
		assert.Equal(t, tc.path, path, tc.uri)
	}
}

func newTestResolver(t *testing.T, dir string, now time.Time) *Resolver {
	t.Helper()
	reg := NewToolRegistry()
	reg.MustRegister(echoTool("echo"), echoHandler)
	return NewResolver(NewCatalog(dir),
		WithStatusInfo(StatusInfo{
			ServerName:   "test-server",
			Version:      "1.2.3",
			InstanceID:   "instance-1",
			Capabilities: CapabilitySet{Tools: true, Resources: true},
		}),
		WithStatusTools(reg),
		WithResolverClock(func() time.Time { return now }),
	)
}

func TestResolver_Directory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o750))

	out := newTestResolver(t, dir, time.Now()).Read(context.Background(), "dir://current/")
	require.Len(t, out, 1)
	assert.Equal(t, "dir://current/", out[0].URI)
	assert.Equal(t, "text/plain", out[0].MimeType)

	lines := strings.Split(out[0].Text, "\n")
	require.Equal(t, "Current Directory Contents:", lines[0])
	assert.ElementsMatch(t, []string{"[file] a.txt", "[dir]  sub/"}, lines[1:])
}

func TestResolver_DirectoryFollowsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	t.Parallel()
	dir := t.TempDir()
	target := t.TempDir()
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "linked")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "dangling")))

	out := newTestResolver(t, dir, time.Now()).Read(context.Background(), "dir://current")
	require.Len(t, out, 1)
	lines := strings.Split(out[0].Text, "\n")
	assert.ElementsMatch(t, []string{"[dir]  linked/", "[file] dangling"}, lines[1:])
}

func TestResolver_Status(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "a.json", "{}")

	now := time.Date(2026, 10, 19, 12, 0, 0, 123456789, time.UTC)
	r := newTestResolver(t, dir, now)

	out := r.Read(context.Background(), "status://server")
	require.Len(t, out, 1)
	assert.Equal(t, "status://server", out[0].URI)
	assert.Equal(t, "application/json", out[0].MimeType)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out[0].Text), &doc))
	assert.Equal(t, "test-server", doc["server_name"])
	assert.Equal(t, "1.2.3", doc["version"])
	assert.Equal(t, "instance-1", doc["instance_id"])
	assert.Equal(t, "running", doc["status"])
	assert.Equal(t, []any{"tools", "resources"}, doc["capabilities"])
	assert.EqualValues(t, 1, doc["tools_count"])
	assert.EqualValues(t, 3, doc["resources_available"])
	assert.Equal(t, now.Format(time.RFC3339Nano), doc["current_time"])
}

func TestResolver_StatusTrailingSlashDiffersOnlyInTime(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r := NewResolver(NewCatalog(dir), WithStatusInfo(StatusInfo{ServerName: "s", Version: "v", InstanceID: "i"}))

	decode := func(uri string) map[string]any {
		out := r.Read(context.Background(), uri)
		require.Len(t, out, 1)
		assert.Equal(t, uri, out[0].URI)
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(out[0].Text), &doc))
		return doc
	}

	a := decode("status://server")
	b := decode("status://server/")
	delete(a, "current_time")
	delete(b, "current_time")
	assert.Equal(t, a, b)
}

func TestResolver_File(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "notes.md", "# Notes\n")
	writeFile(t, dir, "blob.weird", "raw")
	r := newTestResolver(t, dir, time.Now())

	out := r.Read(ctx, "file://notes.md")
	require.Len(t, out, 1)
	assert.Equal(t, "file://notes.md", out[0].URI)
	assert.Equal(t, "text/markdown", out[0].MimeType)
	assert.Equal(t, "# Notes\n", out[0].Text)

	out = r.Read(ctx, "file://blob.weird")
	assert.Equal(t, "text/plain", out[0].MimeType)
	assert.Equal(t, "raw", out[0].Text)

	out = r.Read(ctx, "file://missing.txt")
	require.Len(t, out, 1)
	assert.Equal(t, "File not found: missing.txt", out[0].Text)

	out = r.Read(ctx, "file://../escape.txt")
	require.Len(t, out, 1)
	assert.True(t, strings.HasPrefix(out[0].Text, "Error reading file: "), out[0].Text)
	assert.Contains(t, out[0].Text, ErrPathEscapesRoot.Error())
}

func TestResolver_FileSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	t.Parallel()
	dir := t.TempDir()
	target := writeFile(t, t.TempDir(), "secret.txt", "secret")
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "link.txt")))

	out := newTestResolver(t, dir, time.Now()).Read(context.Background(), "file://link.txt")
	require.Len(t, out, 1)
	assert.NotEqual(t, "secret", out[0].Text)
	assert.Contains(t, out[0].Text, ErrPathEscapesRoot.Error())
}

func TestConfinePath_SymlinkedParentOfNewPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	t.Parallel()
	dir := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "link")))

	_, err := ConfinePath(dir, "link/newdir/file.txt")
	require.ErrorIs(t, err, ErrPathEscapesRoot)

	_, err = ConfinePath(dir, "link")
	require.ErrorIs(t, err, ErrPathEscapesRoot)

	p, err := ConfinePath(dir, "fresh/deeper/file.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fresh", "deeper", "file.txt"), p)

	out := newTestResolver(t, dir, time.Now()).Read(context.Background(), "file://link/newdir/file.txt")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, ErrPathEscapesRoot.Error())
}

func TestResolver_Unknown(t *testing.T) {
	t.Parallel()

	out := newTestResolver(t, t.TempDir(), time.Now()).Read(context.Background(), "ftp://nowhere/")
	require.Len(t, out, 1)
	assert.Equal(t, "ftp://nowhere/", out[0].URI)
	assert.Equal(t, "Unknown resource URI: ftp://nowhere/", out[0].Text)
}
