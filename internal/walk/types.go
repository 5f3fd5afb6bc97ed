package walk

import (
	"fmt"
	"slices"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// fileTypes maps a type name (as used by -t/-T) to basename globs.
var fileTypes = map[string][]string{
	"c":          {"*.c", "*.h"},
	"cpp":        {"*.cpp", "*.cc", "*.cxx", "*.hpp", "*.hh", "*.hxx", "*.h"},
	"csharp":     {"*.cs"},
	"css":        {"*.css", "*.scss", "*.sass", "*.less"},
	"csv":        {"*.csv", "*.tsv"},
	"go":         {"*.go"},
	"html":       {"*.html", "*.htm"},
	"java":       {"*.java"},
	"js":         {"*.js", "*.mjs", "*.cjs", "*.jsx"},
	"json":       {"*.json", "*.jsonl"},
	"kdl":        {"*.kdl"},
	"log":        {"*.log"},
	"make":       {"Makefile", "makefile", "GNUmakefile", "*.mk"},
	"md":         {"*.md", "*.markdown"},
	"php":        {"*.php"},
	"py":         {"*.py", "*.pyi"},
	"ruby":       {"*.rb"},
	"rust":       {"*.rs"},
	"sh":         {"*.sh", "*.bash", "*.zsh"},
	"sql":        {"*.sql"},
	"toml":       {"*.toml"},
	"ts":         {"*.ts", "*.tsx", "*.mts", "*.cts"},
	"txt":        {"*.txt"},
	"xml":        {"*.xml"},
	"yaml":       {"*.yaml", "*.yml"},
	"zig":        {"*.zig"},
	"dockerfile": {"Dockerfile", "*.dockerfile"},
}

// TypeNames returns the known file type names, sorted.
func TypeNames() []string {
	names := make([]string, 0, len(fileTypes))
	for name := range fileTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TypeGlobs returns the globs for a file type.
func TypeGlobs(name string) ([]string, bool) {
	globs, ok := fileTypes[name]
	return globs, ok
}

// typeFilter selects files by type name.
type typeFilter struct {
	include []string
	exclude []string
}

func newTypeFilter(types, typesNot []string) (*typeFilter, error) {
	tf := &typeFilter{}
	for _, name := range types {
		globs, ok := fileTypes[name]
		if !ok {
			return nil, fmt.Errorf("unrecognized file type: %s", name)
		}
		tf.include = append(tf.include, globs...)
	}
	for _, name := range typesNot {
		globs, ok := fileTypes[name]
		if !ok {
			return nil, fmt.Errorf("unrecognized file type: %s", name)
		}
		tf.exclude = append(tf.exclude, globs...)
	}
	return tf, nil
}

func (tf *typeFilter) allows(base string) bool {
	if slices.ContainsFunc(tf.exclude, func(g string) bool { return matchGlob(g, base) }) {
		return false
	}
	if len(tf.include) == 0 {
		return true
	}
	return slices.ContainsFunc(tf.include, func(g string) bool { return matchGlob(g, base) })
}

func matchGlob(pattern, name string) bool {
	ok, _ := doublestar.Match(pattern, name)
	return ok
}
