package mcpservice

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscapesRoot is returned when a requested path resolves outside the
// server root, either lexically or through a symlink.
var ErrPathEscapesRoot = errors.New("path escapes root")

// ConfinePath resolves name against root and returns the cleaned absolute
// path. Absolute names are accepted only when they already lie under root.
// The deepest existing ancestor of the path (the path itself when it exists)
// is also checked after symlink evaluation, so a link anywhere along the way
// cannot lead outside root.
func ConfinePath(root, name string) (string, error) {
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	if !within(p, root) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesRoot, name)
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		realRoot = root
	}
	real, err := filepath.EvalSymlinks(existingAncestor(p))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	if !within(real, realRoot) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesRoot, name)
	}
	return p, nil
}

// existingAncestor returns p or its nearest parent that exists.
func existingAncestor(p string) string {
	for {
		if _, err := os.Lstat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}

// within returns true if target is the same as root or a descendant of root.
func within(target, root string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
