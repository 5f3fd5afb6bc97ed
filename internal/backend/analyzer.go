package backend

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/surgebase/porter2"
)

// QueryType is the kind of work a pattern asks for.
type QueryType int

const (
	QueryFast QueryType = iota // plain text or regex search
	QueryNLP                   // classification/extraction, accelerator only
	QueryAST                   // tree-sitter structural pattern
)

func (t QueryType) String() string {
	switch t {
	case QueryNLP:
		return "nlp"
	case QueryAST:
		return "ast"
	default:
		return "fast"
	}
}

// defaultNLPKeywords are phrases that mark a request for model-backed analysis.
var defaultNLPKeywords = []string{"classify", "detect", "anomaly", "extract entities"}

// structuralPattern recognises an S-expression query with at least one capture,
// e.g. "(function_definition name: (identifier) @name)".
var structuralPattern = regexp.MustCompile(`^\(\s*[a-z_][a-z0-9_]*[\s\S]*\)\s*@[A-Za-z_][\w.]*`)

// minStemLength keeps short tokens (ids, flags) from being over-stemmed.
const minStemLength = 3

// QueryAnalyzer classifies patterns by comparing word stems, so "classifying"
// and "detected" route the same way as their keywords.
type QueryAnalyzer struct {
	keywords [][]string // stemmed phrases
}

// NewQueryAnalyzer returns an analyzer for the given NLP keyword phrases,
// or for the built-in phrases when none are given.
func NewQueryAnalyzer(keywords ...string) *QueryAnalyzer {
	if len(keywords) == 0 {
		keywords = defaultNLPKeywords
	}
	qa := &QueryAnalyzer{keywords: make([][]string, 0, len(keywords))}
	for _, kw := range keywords {
		if phrase := stemWords(kw); len(phrase) > 0 {
			qa.keywords = append(qa.keywords, phrase)
		}
	}
	return qa
}

// Analyze returns the query type of pattern.
func (qa *QueryAnalyzer) Analyze(pattern string) QueryType {
	trimmed := strings.TrimSpace(pattern)
	if structuralPattern.MatchString(trimmed) {
		return QueryAST
	}

	words := stemWords(trimmed)
	for _, phrase := range qa.keywords {
		if containsPhrase(words, phrase) {
			return QueryNLP
		}
	}
	return QueryFast
}

func stemWords(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < minStemLength {
			out = append(out, f)
			continue
		}
		out = append(out, porter2.Stem(f))
	}
	return out
}

func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
