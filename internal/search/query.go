package search

import (
	"bytes"
	"fmt"
	"regexp"
	"unicode"

	"github.com/standardbeagle/tgrep/internal/debug"
	tgerrors "github.com/standardbeagle/tgrep/internal/errors"
)

// Mode selects how the pattern is interpreted.
type Mode int

const (
	// ModeRegex compiles the pattern as an RE2 regular expression.
	ModeRegex Mode = iota
	// ModeLiteral matches the pattern as an exact byte sequence.
	ModeLiteral
)

func (m Mode) String() string {
	if m == ModeLiteral {
		return "literal"
	}
	return "regex"
}

// Query is a search request. It is immutable once compiled.
type Query struct {
	Pattern    string
	Mode       Mode
	IgnoreCase bool
	SmartCase  bool // ignore case unless the pattern has an uppercase letter
	Invert     bool
	WordRegexp bool
	LineRegexp bool
	MaxCount   int // matching lines per file; 0 = unlimited
	Before     int // context lines printed before each selected line
	After      int // context lines printed after each selected line
}

// HasContext reports whether search results carry context lines.
func (q Query) HasContext() bool {
	return q.Before > 0 || q.After > 0
}

// Matcher is a compiled Query. It is safe for concurrent use.
type Matcher struct {
	query      Query
	ignoreCase bool
	literal    []byte         // set when the byte-substring fast path applies
	re         *regexp.Regexp // always set; used by the slow path and by replace
}

// Compile validates and compiles q. Literal patterns are escaped so regex
// metacharacters are inert.
func Compile(q Query) (*Matcher, error) {
	if q.MaxCount < 0 {
		return nil, tgerrors.NewUsageError(q.Pattern, fmt.Errorf("max count must not be negative"))
	}
	if q.Before < 0 || q.After < 0 {
		return nil, tgerrors.NewUsageError(q.Pattern, fmt.Errorf("context line counts must not be negative"))
	}

	m := &Matcher{query: q, ignoreCase: q.IgnoreCase}
	if !q.IgnoreCase && q.SmartCase && !hasUpper(q.Pattern) {
		m.ignoreCase = true
	}

	expr := q.Pattern
	if q.Mode == ModeLiteral {
		expr = regexp.QuoteMeta(expr)
	}
	switch {
	case q.LineRegexp:
		expr = `^(?:` + expr + `)$`
	case q.WordRegexp:
		expr = `\b(?:` + expr + `)\b`
	}
	flags := "(?m)"
	if m.ignoreCase {
		flags = "(?mi)"
	}

	re, err := regexp.Compile(flags + expr)
	if err != nil {
		return nil, tgerrors.NewPatternError(q.Pattern, err)
	}
	m.re = re

	if q.Mode == ModeLiteral && !m.ignoreCase && !q.WordRegexp && !q.LineRegexp {
		m.literal = []byte(q.Pattern)
	}
	debug.LogSearch("compiled %q mode=%s fast=%t ignore_case=%t\n", q.Pattern, q.Mode, m.literal != nil, m.ignoreCase)
	return m, nil
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// Query returns the query m was compiled from.
func (m *Matcher) Query() Query {
	return m.query
}

// FastPath reports whether matching uses the byte-substring scan.
func (m *Matcher) FastPath() bool {
	return m.literal != nil
}

// Regexp returns the compiled expression, including flags.
func (m *Matcher) Regexp() *regexp.Regexp {
	return m.re
}

// IsMatch reports whether the pattern occurs in line, ignoring Invert.
func (m *Matcher) IsMatch(line []byte) bool {
	if m.literal != nil {
		return bytes.Contains(line, m.literal)
	}
	return m.re.Match(line)
}

// Match reports whether line is selected: the pattern occurs and Invert is
// unset, or it does not occur and Invert is set. Empty lines are never
// selected.
func (m *Matcher) Match(line []byte) bool {
	if len(line) == 0 {
		return false
	}
	return m.IsMatch(line) != m.query.Invert
}

// bufferScan reports whether selected lines can be found by scanning the
// whole buffer for the literal instead of testing line by line.
func (m *Matcher) bufferScan() bool {
	return m.literal != nil && !m.query.Invert && len(m.literal) > 0 && bytes.IndexByte(m.literal, '\n') < 0
}
