// Package ast evaluates tree-sitter structural queries against source files.
package ast

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hbollon/go-edlib"
	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	tgerrors "github.com/standardbeagle/tgrep/internal/errors"
)

// Grammar describes one installed tree-sitter grammar.
type Grammar struct {
	ID         string
	Aliases    []string
	Extensions []string // with leading dot
	Language   func() *tree_sitter.Language
}

// Registry maps grammar identifiers to grammars. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	grammars map[string]*Grammar // id and aliases, lower-cased
	byExt    map[string]*Grammar
	ids      []string
}

// NewRegistry returns an empty registry. Most callers want
// DefaultRegistry.
func NewRegistry() *Registry {
	return &Registry{
		grammars: make(map[string]*Grammar),
		byExt:    make(map[string]*Grammar),
	}
}

// Register adds g under its id and aliases. A later registration replaces an
// earlier one with the same name.
func (r *Registry) Register(g Grammar) {
	r.mu.Lock()
	defer r.mu.Unlock()

	gp := &g
	id := strings.ToLower(g.ID)
	if _, exists := r.grammars[id]; !exists {
		r.ids = append(r.ids, id)
		sort.Strings(r.ids)
	}
	r.grammars[id] = gp
	for _, a := range g.Aliases {
		r.grammars[strings.ToLower(a)] = gp
	}
	for _, ext := range g.Extensions {
		r.byExt[strings.ToLower(ext)] = gp
	}
}

// Lookup resolves a grammar id or alias. Unknown ids yield an
// UnsupportedGrammarError, with the closest known id as a suggestion.
func (r *Registry) Lookup(id string) (*Grammar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.ToLower(strings.TrimSpace(id))
	if g, ok := r.grammars[key]; ok {
		return g, nil
	}
	return nil, tgerrors.NewUnsupportedGrammarError(id, r.suggest(key))
}

// ForPath returns the grammar registered for the file's extension.
func (r *Registry) ForPath(path string) (*Grammar, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return g, ok
}

// IDs returns the registered grammar ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.ids...)
}

func (r *Registry) suggest(key string) string {
	if key == "" {
		return ""
	}
	// a hint is offered only within a third of the input's length
	limit := max(1, len(key)/3)
	best, bestDist := "", limit+1
	for name, g := range r.grammars {
		d := edlib.LevenshteinDistance(key, name)
		if d < bestDist || (d == bestDist && g.ID < best) {
			best, bestDist = g.ID, d
		}
	}
	return best
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the registry of grammars compiled into tg. It is
// built on first use.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		r := NewRegistry()
		for _, g := range builtinGrammars() {
			r.Register(g)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

func builtinGrammars() []Grammar {
	return []Grammar{
		{
			ID:         "python",
			Aliases:    []string{"py"},
			Extensions: []string{".py", ".pyi"},
			Language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_python.Language()) },
		},
		{
			ID:         "go",
			Aliases:    []string{"golang"},
			Extensions: []string{".go"},
			Language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_go.Language()) },
		},
		{
			ID:         "javascript",
			Aliases:    []string{"js", "jsx"},
			Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
			Language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_javascript.Language()) },
		},
		{
			ID:         "typescript",
			Aliases:    []string{"ts"},
			Extensions: []string{".ts", ".mts", ".cts"},
			Language: func() *tree_sitter.Language {
				return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
			},
		},
		{
			ID:         "tsx",
			Extensions: []string{".tsx"},
			Language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()) },
		},
		{
			ID:         "rust",
			Aliases:    []string{"rs"},
			Extensions: []string{".rs"},
			Language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_rust.Language()) },
		},
		{
			ID:         "java",
			Extensions: []string{".java"},
			Language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_java.Language()) },
		},
		{
			ID:         "csharp",
			Aliases:    []string{"c-sharp", "c#", "cs"},
			Extensions: []string{".cs"},
			Language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_csharp.Language()) },
		},
		{
			ID:         "cpp",
			Aliases:    []string{"c++", "cxx"},
			Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh", ".hxx"},
			Language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_cpp.Language()) },
		},
		{
			ID:         "php",
			Extensions: []string{".php"},
			Language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP()) },
		},
		{
			ID:         "zig",
			Extensions: []string{".zig"},
			Language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_zig.Language()) },
		},
	}
}
