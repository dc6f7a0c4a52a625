package mcp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// validatePath checks that path, after cleaning and symlink resolution,
// lies inside one of allowed. The file itself need not exist.
func validatePath(path string, allowed []string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path validation failed: path is empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("path validation failed: path contains null byte")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("path validation failed: %w", err)
	}
	resolved := filepath.Join(resolveExisting(filepath.Dir(abs)), filepath.Base(abs))

	for _, dir := range allowed {
		if dir == "" {
			continue
		}
		base, err := filepath.Abs(filepath.Clean(dir))
		if err != nil {
			continue
		}
		base = resolveExisting(base)
		if resolved == base || strings.HasPrefix(resolved, base+string(os.PathSeparator)) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("path validation failed: %s is outside allowed directories", redactPath(abs))
}

// resolveExisting resolves symlinks on the deepest existing ancestor of dir
// and re-appends the missing tail.
func resolveExisting(dir string) string {
	if r, err := filepath.EvalSymlinks(dir); err == nil {
		return r
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		return dir
	}
	return filepath.Join(resolveExisting(parent), filepath.Base(dir))
}

// redactPath reduces a full path to .../<parent>/<basename> for error messages.
func redactPath(path string) string {
	parent := filepath.Base(filepath.Dir(path))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(path)
	}
	return ".../" + parent + "/" + filepath.Base(path)
}
