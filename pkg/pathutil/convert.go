// Package pathutil converts result paths for display.
//
// Walks report paths joined onto the target they started from, so a search
// rooted at an absolute directory yields absolute paths. Output boundaries
// (the MCP server, JSON output) show them relative to that root instead.
package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/standardbeagle/tgrep/internal/ast"
	"github.com/standardbeagle/tgrep/internal/search"
)

// ToRelative converts path to be relative to rootDir.
// Falls back to the original path if conversion fails, the path is already
// relative, or it lies outside rootDir.
//
// Examples:
//   - ToRelative("/var/log/app/api.log", "/var/log") → "app/api.log"
//   - ToRelative("/etc/hosts", "/var/log") → "/etc/hosts" (outside root)
//   - ToRelative("app/api.log", "/var/log") → "app/api.log" (already relative)
func ToRelative(path, rootDir string) string {
	if path == "" || rootDir == "" {
		return path
	}
	if !filepath.IsAbs(path) {
		return path
	}

	path = filepath.Clean(path)
	rootDir = filepath.Clean(rootDir)

	rel, err := filepath.Rel(rootDir, path)
	if err != nil {
		return path
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

// DisplayRoot returns the directory results under target are shown relative
// to: target itself for a directory, its parent for a file.
func DisplayRoot(target string, isDir bool) string {
	abs, err := filepath.Abs(target)
	if err != nil {
		return target
	}
	if isDir {
		return abs
	}
	return filepath.Dir(abs)
}

// ToRelativeMatches returns a copy of ms with paths relative to rootDir.
func ToRelativeMatches(ms []search.Match, rootDir string) []search.Match {
	if len(ms) == 0 {
		return ms
	}
	converted := make([]search.Match, len(ms))
	copy(converted, ms)
	for i := range converted {
		converted[i].Path = ToRelative(absOrSelf(converted[i].Path), rootDir)
	}
	return converted
}

// ToRelativeCounts returns a copy of counts with paths relative to rootDir.
func ToRelativeCounts(counts []search.FileCount, rootDir string) []search.FileCount {
	if len(counts) == 0 {
		return counts
	}
	converted := make([]search.FileCount, len(counts))
	copy(converted, counts)
	for i := range converted {
		converted[i].Path = ToRelative(absOrSelf(converted[i].Path), rootDir)
	}
	return converted
}

// ToRelativeASTMatches returns a copy of ms with paths relative to rootDir.
func ToRelativeASTMatches(ms []ast.Match, rootDir string) []ast.Match {
	if len(ms) == 0 {
		return ms
	}
	converted := make([]ast.Match, len(ms))
	copy(converted, ms)
	for i := range converted {
		converted[i].Path = ToRelative(absOrSelf(converted[i].Path), rootDir)
	}
	return converted
}

func absOrSelf(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
