package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tgerrors "github.com/standardbeagle/tgrep/internal/errors"
)

func TestCompile_LiteralFastPath(t *testing.T) {
	m, err := Compile(Query{Pattern: "a.b(", Mode: ModeLiteral})
	require.NoError(t, err)

	assert.True(t, m.FastPath())
	assert.True(t, m.IsMatch([]byte("x a.b( y")))
	assert.False(t, m.IsMatch([]byte("axb(")), "metacharacters are inert")
}

func TestCompile_LiteralIgnoreCaseUsesRegex(t *testing.T) {
	m, err := Compile(Query{Pattern: "a.b", Mode: ModeLiteral, IgnoreCase: true})
	require.NoError(t, err)

	assert.False(t, m.FastPath())
	assert.True(t, m.IsMatch([]byte("A.B")))
	assert.False(t, m.IsMatch([]byte("AXB")))
}

func TestCompile_RegexErrorIsPatternError(t *testing.T) {
	_, err := Compile(Query{Pattern: "(unclosed"})
	require.Error(t, err)
	assert.True(t, tgerrors.IsPatternError(err))

	_, err = Compile(Query{Pattern: "(unclosed", Mode: ModeLiteral})
	assert.NoError(t, err, "literal patterns never fail to compile")
}

func TestCompile_SmartCase(t *testing.T) {
	lower, err := Compile(Query{Pattern: "error", SmartCase: true})
	require.NoError(t, err)
	assert.True(t, lower.IsMatch([]byte("ERROR failed")))

	upper, err := Compile(Query{Pattern: "Error", SmartCase: true})
	require.NoError(t, err)
	assert.False(t, upper.IsMatch([]byte("ERROR failed")))
	assert.True(t, upper.IsMatch([]byte("Error failed")))
}

func TestCompile_WordAndLineRegexp(t *testing.T) {
	word, err := Compile(Query{Pattern: "err", Mode: ModeLiteral, WordRegexp: true})
	require.NoError(t, err)
	assert.False(t, word.FastPath())
	assert.True(t, word.IsMatch([]byte("an err here")))
	assert.False(t, word.IsMatch([]byte("an error here")))

	line, err := Compile(Query{Pattern: "ERROR.*", LineRegexp: true})
	require.NoError(t, err)
	assert.True(t, line.IsMatch([]byte("ERROR failed")))
	assert.False(t, line.IsMatch([]byte("x ERROR failed")))
}

func TestMatcher_InvertAndEmptyLines(t *testing.T) {
	m, err := Compile(Query{Pattern: "INFO", Mode: ModeLiteral, Invert: true})
	require.NoError(t, err)

	assert.False(t, m.Match([]byte("INFO ok")))
	assert.True(t, m.Match([]byte("ERROR failed")))
	assert.False(t, m.Match(nil), "empty lines are never selected, even inverted")
}

func TestMatcher_InvalidUTF8DoesNotAbort(t *testing.T) {
	m, err := Compile(Query{Pattern: "caf.", IgnoreCase: true})
	require.NoError(t, err)
	assert.True(t, m.IsMatch([]byte("\xff\xfe CAFE \xc3")))
}

func TestCompile_NegativeLimits(t *testing.T) {
	_, err := Compile(Query{Pattern: "x", MaxCount: -1})
	require.Error(t, err)
	assert.True(t, tgerrors.IsPatternError(err))
	var pe *tgerrors.PatternError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, tgerrors.ErrorTypeUsage, pe.Type)

	_, err = Compile(Query{Pattern: "x", Before: -2})
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, tgerrors.ErrorTypeUsage, pe.Type)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "literal", ModeLiteral.String())
	assert.Equal(t, "regex", ModeRegex.String())
}
