package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tgerrors "github.com/standardbeagle/tgrep/internal/errors"
	"github.com/standardbeagle/tgrep/internal/walk"
)

const (
	logFixture      = "INFO ok\nERROR failed\nDEBUG trace\nERROR timeout\n"
	criticalFixture = "INFO ok\nERROR failed\nDEBUG trace\nCRITICAL timeout\n"
)

func newTestEngine(t *testing.T, threads int) *Engine {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	e, err := NewEngine(Options{Threads: threads, Walk: walk.DefaultOptions()})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, e.Close()) })
	return e
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSearch_LiteralFixture(t *testing.T) {
	e := newTestEngine(t, 2)
	path := writeFixture(t, t.TempDir(), "app.log", logFixture)

	got, err := e.Search(context.Background(), Query{Pattern: "ERROR", Mode: ModeLiteral}, path)
	require.NoError(t, err)

	assert.Equal(t, []Match{
		{Path: path, Line: 2, Text: "ERROR failed"},
		{Path: path, Line: 4, Text: "ERROR timeout"},
	}, got)
}

func TestCount_RegexAlternation(t *testing.T) {
	e := newTestEngine(t, 2)
	dir := t.TempDir()
	path := writeFixture(t, dir, "app.log", logFixture)

	q := Query{Pattern: "ERROR|CRITICAL"}
	n, err := e.Count(context.Background(), q, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// the variant with CRITICAL rewritten to ERROR still yields two hits
	variant := writeFixture(t, dir, "variant.log", criticalFixture)
	_, err = e.Replace(context.Background(), Query{Pattern: "CRITICAL", Mode: ModeLiteral}, "ERROR", variant, ReplaceOptions{})
	require.NoError(t, err)
	n, err = e.Count(context.Background(), q, variant)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	matches, err := e.Search(context.Background(), q, variant)
	require.NoError(t, err)
	assert.Equal(t, []Match{
		{Path: variant, Line: 2, Text: "ERROR failed"},
		{Path: variant, Line: 4, Text: "ERROR timeout"},
	}, matches)
}

func TestCount_InvertLiteral(t *testing.T) {
	e := newTestEngine(t, 2)
	path := writeFixture(t, t.TempDir(), "app.log", criticalFixture)

	n, err := e.Count(context.Background(), Query{Pattern: "INFO", Mode: ModeLiteral, Invert: true}, path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCountEqualsSearchLength(t *testing.T) {
	old := minSegmentBytes
	minSegmentBytes = 8
	t.Cleanup(func() { minSegmentBytes = old })

	var b strings.Builder
	for i := 0; i < 500; i++ {
		switch i % 7 {
		case 0:
			b.WriteString("\n") // empty line
		case 1:
			fmt.Fprintf(&b, "ERROR code=%d\n", i)
		case 2:
			fmt.Fprintf(&b, "warn: error in \xff\xfe module %d\n", i)
		case 3:
			fmt.Fprintf(&b, "INFO %d ok\n", i)
		default:
			fmt.Fprintf(&b, "debug trace %d\n", i)
		}
	}
	b.WriteString("ERROR unterminated")
	content := b.String()

	e := newTestEngine(t, 4)
	path := writeFixture(t, t.TempDir(), "big.log", content)

	queries := []Query{
		{Pattern: "ERROR", Mode: ModeLiteral},
		{Pattern: "ERROR", Mode: ModeLiteral, Invert: true},
		{Pattern: "error", Mode: ModeLiteral, IgnoreCase: true},
		{Pattern: `\d+`},
		{Pattern: `\d+`, Invert: true},
		{Pattern: "^INFO", Invert: true},
		{Pattern: "trace", SmartCase: true, WordRegexp: true},
		{Pattern: "ERROR", Mode: ModeLiteral, MaxCount: 5},
		{Pattern: "nothing-here", Mode: ModeLiteral},
		{Pattern: "", Mode: ModeLiteral},
		{Pattern: "ERROR", Mode: ModeLiteral, Before: 2, After: 1},
		{Pattern: `\d+`, After: 3, MaxCount: 4},
	}
	for _, q := range queries {
		t.Run(fmt.Sprintf("%s/%s/invert=%t", q.Mode, q.Pattern, q.Invert), func(t *testing.T) {
			matches, err := e.Search(context.Background(), q, path)
			require.NoError(t, err)
			n, err := e.Count(context.Background(), q, path)
			require.NoError(t, err)
			assert.Equal(t, Selected(matches), n)

			m, err := Compile(q)
			require.NoError(t, err)
			seq := countLines(m, []byte(content), q.MaxCount)
			assert.Equal(t, seq, n, "parallel and sequential counts agree")
		})
	}
}

func TestSearch_LineNumbersCountEveryTerminator(t *testing.T) {
	e := newTestEngine(t, 1)
	path := writeFixture(t, t.TempDir(), "gaps.txt", "\n\nmatch one\nskip\n\nmatch two")

	for _, q := range []Query{
		{Pattern: "match", Mode: ModeLiteral},
		{Pattern: "match"},
	} {
		got, err := e.Search(context.Background(), q, path)
		require.NoError(t, err)
		assert.Equal(t, []Match{
			{Path: path, Line: 3, Text: "match one"},
			{Path: path, Line: 6, Text: "match two"},
		}, got, "mode %s", q.Mode)
	}
}

func TestSearch_InvalidUTF8IsSubstituted(t *testing.T) {
	e := newTestEngine(t, 1)
	path := writeFixture(t, t.TempDir(), "latin1.txt", "caf\xe9 ERROR\nok\n")

	got, err := e.Search(context.Background(), Query{Pattern: "ERROR"}, path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "caf\uFFFD ERROR", got[0].Text)
}

func TestSearch_MaxCount(t *testing.T) {
	e := newTestEngine(t, 1)
	path := writeFixture(t, t.TempDir(), "app.log", logFixture)

	got, err := e.Search(context.Background(), Query{Pattern: "ERROR", Mode: ModeLiteral, MaxCount: 1}, path)
	require.NoError(t, err)
	assert.Equal(t, []Match{{Path: path, Line: 2, Text: "ERROR failed"}}, got)
}

func TestSearch_DirectoryWalkOrder(t *testing.T) {
	e := newTestEngine(t, 4)
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFixture(t, dir, fmt.Sprintf("f%02d.log", i), fmt.Sprintf("INFO %d\nERROR %d\n", i, i))
	}
	writeFixture(t, dir, "sub/z.log", "ERROR nested\n")

	got, err := e.Search(context.Background(), Query{Pattern: "ERROR", Mode: ModeLiteral}, dir)
	require.NoError(t, err)
	require.Len(t, got, 21)
	for i := 0; i < 20; i++ {
		assert.Equal(t, filepath.Join(dir, fmt.Sprintf("f%02d.log", i)), got[i].Path)
		assert.Equal(t, 2, got[i].Line)
	}
	assert.Equal(t, "ERROR nested", got[20].Text)

	n, err := e.Count(context.Background(), Query{Pattern: "ERROR", Mode: ModeLiteral}, dir)
	require.NoError(t, err)
	assert.Equal(t, 21, n)
}

const contextFixture = "a1\nERROR x\nb3\nb4\nb5\nERROR y\nb7\nERROR z\nb9\nb10\n"

func TestSearch_ContextOverlappingWindows(t *testing.T) {
	e := newTestEngine(t, 1)
	path := writeFixture(t, t.TempDir(), "ctx.log", contextFixture)

	got, err := e.Search(context.Background(), Query{Pattern: "ERROR", Mode: ModeLiteral, Before: 1, After: 1}, path)
	require.NoError(t, err)
	assert.Equal(t, []Match{
		{Path: path, Line: 1, Text: "a1", Context: true},
		{Path: path, Line: 2, Text: "ERROR x"},
		{Path: path, Line: 3, Text: "b3", Context: true},
		{Path: path, Line: 5, Text: "b5", Context: true},
		{Path: path, Line: 6, Text: "ERROR y"},
		{Path: path, Line: 7, Text: "b7", Context: true},
		{Path: path, Line: 8, Text: "ERROR z"},
		{Path: path, Line: 9, Text: "b9", Context: true},
	}, got)
	assert.Equal(t, 3, Selected(got))
}

func TestSearch_ContextAfterMaxCount(t *testing.T) {
	e := newTestEngine(t, 1)
	path := writeFixture(t, t.TempDir(), "ctx.log", contextFixture)

	got, err := e.Search(context.Background(), Query{Pattern: "ERROR", After: 2, MaxCount: 1}, path)
	require.NoError(t, err)
	assert.Equal(t, []Match{
		{Path: path, Line: 2, Text: "ERROR x"},
		{Path: path, Line: 3, Text: "b3", Context: true},
		{Path: path, Line: 4, Text: "b4", Context: true},
	}, got)
}

func TestSearch_ContextBeforeOnlyAtStartOfFile(t *testing.T) {
	e := newTestEngine(t, 1)
	path := writeFixture(t, t.TempDir(), "ctx.log", "ERROR first\nok\nok\nERROR last")

	got, err := e.Search(context.Background(), Query{Pattern: "ERROR", Before: 3}, path)
	require.NoError(t, err)
	assert.Equal(t, []Match{
		{Path: path, Line: 1, Text: "ERROR first"},
		{Path: path, Line: 2, Text: "ok", Context: true},
		{Path: path, Line: 3, Text: "ok", Context: true},
		{Path: path, Line: 4, Text: "ERROR last"},
	}, got)
}

func TestSearch_DirectorySkipsUnreadableFiles(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	e := newTestEngine(t, 2)
	dir := t.TempDir()
	writeFixture(t, dir, "ok.log", "ERROR visible\n")
	locked := writeFixture(t, dir, "locked.log", "ERROR hidden\n")
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { os.Chmod(locked, 0644) })

	got, err := e.Search(context.Background(), Query{Pattern: "ERROR"}, dir)
	require.NoError(t, err)
	assert.Equal(t, []Match{{Path: filepath.Join(dir, "ok.log"), Line: 1, Text: "ERROR visible"}}, got)

	_, err = e.Search(context.Background(), Query{Pattern: "ERROR"}, locked)
	require.Error(t, err, "a single-file target fails hard")
}

func TestSearch_Errors(t *testing.T) {
	e := newTestEngine(t, 1)
	dir := t.TempDir()
	path := writeFixture(t, dir, "app.log", logFixture)

	_, err := e.Search(context.Background(), Query{Pattern: "[bad"}, path)
	assert.True(t, tgerrors.IsPatternError(err))

	_, err = e.Search(context.Background(), Query{Pattern: "x"}, filepath.Join(dir, "missing.log"))
	var fe *tgerrors.FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, tgerrors.ErrorTypeFileNotFound, fe.Type)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Search(ctx, Query{Pattern: "x"}, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_EmptyFile(t *testing.T) {
	e := newTestEngine(t, 1)
	path := writeFixture(t, t.TempDir(), "empty.log", "")

	got, err := e.Search(context.Background(), Query{Pattern: "", Mode: ModeLiteral}, path)
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := e.Count(context.Background(), Query{Pattern: "x", Invert: true}, path)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFilesWithMatchesAndCountPerFile(t *testing.T) {
	e := newTestEngine(t, 2)
	dir := t.TempDir()
	a := writeFixture(t, dir, "a.log", logFixture)
	writeFixture(t, dir, "b.log", "INFO only\n")
	c := writeFixture(t, dir, "c.log", "ERROR once\n")

	files, err := e.FilesWithMatches(context.Background(), Query{Pattern: "ERROR", Mode: ModeLiteral}, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{a, c}, files)

	counts, err := e.CountPerFile(context.Background(), Query{Pattern: "ERROR", Mode: ModeLiteral}, dir)
	require.NoError(t, err)
	assert.Equal(t, []FileCount{{Path: a, Count: 2}, {Path: c, Count: 1}}, counts)

	counts, err = e.CountPerFile(context.Background(), Query{Pattern: "ERROR", Mode: ModeLiteral}, a)
	require.NoError(t, err)
	assert.Equal(t, []FileCount{{Path: a, Count: 2}}, counts)
}

func TestSearchFiles(t *testing.T) {
	e := newTestEngine(t, 2)
	dir := t.TempDir()
	a := writeFixture(t, dir, "a.log", "ERROR a\n")
	b := writeFixture(t, dir, "b.log", "ERROR b\n")

	got, err := e.SearchFiles(context.Background(), Query{Pattern: "ERROR"}, []string{b, filepath.Join(dir, "gone"), a})
	require.NoError(t, err)
	assert.Equal(t, []Match{
		{Path: b, Line: 1, Text: "ERROR b"},
		{Path: a, Line: 1, Text: "ERROR a"},
	}, got)
}

func TestCountFiles(t *testing.T) {
	e := newTestEngine(t, 2)
	dir := t.TempDir()
	a := writeFixture(t, dir, "a.log", logFixture)
	b := writeFixture(t, dir, "b.log", "INFO only\n")

	got, err := e.CountFiles(context.Background(), Query{Pattern: "ERROR", Mode: ModeLiteral}, []string{b, filepath.Join(dir, "gone"), a})
	require.NoError(t, err)
	assert.Equal(t, []FileCount{{Path: a, Count: 2}}, got)

	_, err = e.CountFiles(context.Background(), Query{Pattern: "("}, []string{a})
	assert.True(t, tgerrors.IsPatternError(err))
}

func TestSplitSegments(t *testing.T) {
	data := []byte("aa\nbbbb\nc\ndddddd\ne")
	segs := splitSegments(data, 4, 1)

	var rebuilt []byte
	for i, s := range segs {
		rebuilt = append(rebuilt, data[s[0]:s[1]]...)
		if i < len(segs)-1 {
			assert.Equal(t, byte('\n'), data[s[1]-1], "segment %d ends on a newline", i)
		}
	}
	assert.Equal(t, data, rebuilt)

	assert.Equal(t, [][2]int{{0, len(data)}}, splitSegments(data, 4, 1<<20))
	assert.Equal(t, [][2]int{{0, 0}}, splitSegments(nil, 4, 1))
}
