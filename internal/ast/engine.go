package ast

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/tgrep/internal/debug"
	tgerrors "github.com/standardbeagle/tgrep/internal/errors"
	"github.com/standardbeagle/tgrep/internal/mmap"
	"github.com/standardbeagle/tgrep/internal/walk"
)

// Capture is one named node bound by a query match.
type Capture struct {
	Name      string
	StartByte int
	EndByte   int
	Text      string
}

// Match is the location of one query match: the range of its first capture,
// plus every capture of the match as auxiliary bindings.
type Match struct {
	Path        string
	StartByte   int
	EndByte     int
	StartLine   int // 1-based
	StartColumn int // 1-based, in bytes
	Text        string
	Captures    []Capture
}

// Engine parses files and runs structural queries over them.
type Engine struct {
	registry *Registry

	// Strict turns syntax errors in the parsed tree into a ParseError.
	// Otherwise tree-sitter's error recovery is trusted and the query runs
	// on the partial tree.
	Strict bool
}

// NewEngine returns an engine over reg, or over DefaultRegistry when reg is nil.
func NewEngine(reg *Registry) *Engine {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Engine{registry: reg}
}

// Registry returns the grammar registry used by the engine.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// compiled is a query bound to the grammar it was compiled for.
type compiled struct {
	grammar  *Grammar
	language *tree_sitter.Language
	query    *tree_sitter.Query
	names    []string
}

func (c *compiled) Close() {
	c.query.Close()
}

func (e *Engine) compile(grammarID, pattern string) (*compiled, error) {
	g, err := e.registry.Lookup(grammarID)
	if err != nil {
		return nil, err
	}
	lang := g.Language()
	if lang == nil {
		return nil, tgerrors.NewUnsupportedGrammarError(grammarID, "")
	}

	query, qerr := tree_sitter.NewQuery(lang, pattern)
	// qerr is a concrete pointer; compare it before it becomes an error value
	if qerr != nil {
		return nil, tgerrors.NewQueryError(g.ID, pattern, qerr.Offset, queryErrorKind(qerr.Kind), qerr.Message)
	}
	if query == nil {
		return nil, tgerrors.NewQueryError(g.ID, pattern, 0, "", "query could not be created")
	}
	return &compiled{grammar: g, language: lang, query: query, names: query.CaptureNames()}, nil
}

func queryErrorKind(k tree_sitter.QueryErrorKind) string {
	switch k {
	case tree_sitter.QueryErrorSyntax:
		return "syntax"
	case tree_sitter.QueryErrorNodeType:
		return "node type"
	case tree_sitter.QueryErrorField:
		return "field"
	case tree_sitter.QueryErrorCapture:
		return "capture"
	case tree_sitter.QueryErrorPredicate:
		return "predicate"
	case tree_sitter.QueryErrorStructure:
		return "structure"
	case tree_sitter.QueryErrorLanguage:
		return "language"
	default:
		return ""
	}
}

// Run parses path with the named grammar and returns the query's matches in
// document order.
func (e *Engine) Run(grammarID, pattern, path string) ([]Match, error) {
	c, err := e.compile(grammarID, pattern)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return e.runFile(c, path)
}

// RunTarget runs the query over a file or, for a directory, over every file
// whose extension belongs to the grammar. In directory mode unreadable or
// unparsable files are skipped. Results are grouped per file in walk order.
func (e *Engine) RunTarget(ctx context.Context, grammarID, pattern, target string, opts walk.Options) ([]Match, error) {
	c, err := e.compile(grammarID, pattern)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if !walk.IsDir(target) {
		return e.runFile(c, target)
	}

	files, err := walk.Walk(target, opts)
	if err != nil {
		return nil, err
	}

	var out []Match
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if g, ok := e.registry.ForPath(path); !ok || g.ID != c.grammar.ID {
			continue
		}
		matches, err := e.runFile(c, path)
		if err != nil {
			debug.LogAST("skip %s: %v\n", path, err)
			continue
		}
		out = append(out, matches...)
	}
	return out, nil
}

func (e *Engine) runFile(c *compiled, path string) ([]Match, error) {
	mf, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer mf.Release()
	content := mf.Bytes()
	if len(content) == 0 {
		return nil, nil
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(c.language); err != nil {
		return nil, tgerrors.NewParseError(path, c.grammar.ID, err)
	}

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, tgerrors.NewParseError(path, c.grammar.ID, fmt.Errorf("parser returned no tree"))
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if e.Strict {
			return nil, tgerrors.NewParseError(path, c.grammar.ID, fmt.Errorf("syntax error in source"))
		}
		debug.LogAST("%s: tree has syntax errors, matching on recovered tree\n", path)
	}

	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()
	matches := qc.Matches(c.query, root, content)

	var out []Match
	for {
		m := matches.Next()
		if m == nil {
			break
		}
		// patterns without a capture have no location to report
		if len(m.Captures) == 0 {
			continue
		}

		caps := make([]Capture, 0, len(m.Captures))
		for _, capt := range m.Captures {
			start, end := int(capt.Node.StartByte()), int(capt.Node.EndByte())
			caps = append(caps, Capture{
				Name:      c.names[capt.Index],
				StartByte: start,
				EndByte:   end,
				Text:      decode(content[start:end]),
			})
		}

		primary := m.Captures[0].Node
		pos := primary.StartPosition()
		out = append(out, Match{
			Path:        path,
			StartByte:   caps[0].StartByte,
			EndByte:     caps[0].EndByte,
			StartLine:   int(pos.Row) + 1,
			StartColumn: int(pos.Column) + 1,
			Text:        caps[0].Text,
			Captures:    caps,
		})
	}

	sortDocumentOrder(out)
	debug.LogAST("%s: %d matches for %s query\n", path, len(out), c.grammar.ID)
	return out, nil
}

// sortDocumentOrder orders matches as a pre-order traversal visits them:
// by start offset, enclosing nodes before the nodes they contain.
func sortDocumentOrder(ms []Match) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].StartByte != ms[j].StartByte {
			return ms[i].StartByte < ms[j].StartByte
		}
		return ms[i].EndByte > ms[j].EndByte
	})
}

func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
