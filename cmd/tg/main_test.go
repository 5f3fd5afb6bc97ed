package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/goleak"

	"github.com/standardbeagle/tgrep/internal/backend"
	"github.com/standardbeagle/tgrep/internal/version"
)

const (
	logFixture      = "INFO ok\nERROR failed\nDEBUG trace\nERROR timeout\n"
	criticalFixture = "INFO ok\nERROR failed\nDEBUG trace\nCRITICAL timeout\n"
	pythonFixture   = "def foo(a, b):\n    pass\n\nclass K:\n    def bar(self):\n        return 1\n"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// ants starts a package-level default pool on import
		goleak.IgnoreCurrent(),
	)
}

type result struct {
	stdout string
	stderr string
	msg    string
	code   int
}

// runTG runs the CLI in-process with a fresh backend state and isolated
// home and config directories.
func runTG(t *testing.T, args ...string) result {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	app := newApp(&backend.State{}, &stdout, &stderr)
	err := app.Run(interspersed(app, append([]string{"tg"}, args...)))
	return result{stdout: stdout.String(), stderr: stderr.String(), msg: errorMessage(err), code: exitCode(err)}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSearch_LiteralFixture(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.log", logFixture)

	r := runTG(t, "-F", "ERROR", path)
	assert.Equal(t, 0, r.code, r.msg)
	assert.Equal(t, "2:ERROR failed\n4:ERROR timeout\n", r.stdout)
}

func TestSearch_ContextLines(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.log", "a1\nERROR x\nb3\nb4\nb5\nERROR y\nb7\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"context", []string{"-C", "1", "ERROR", path}, "1-a1\n2:ERROR x\n3-b3\n--\n5-b5\n6:ERROR y\n7-b7\n"},
		{"after", []string{"ERROR", path, "-A", "1"}, "2:ERROR x\n3-b3\n--\n6:ERROR y\n7-b7\n"},
		{"before", []string{"-B", "1", "-F", "ERROR", path}, "1-a1\n2:ERROR x\n--\n5-b5\n6:ERROR y\n"},
		{"before overrides context", []string{"-C", "3", "-B", "0", "ERROR", path}, "2:ERROR x\n3-b3\n4-b4\n5-b5\n6:ERROR y\n7-b7\n"},
		{"count ignores context", []string{"-c", "-C", "2", "ERROR", path}, "2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runTG(t, tt.args...)
			assert.Equal(t, 0, r.code, r.msg)
			assert.Equal(t, tt.want, r.stdout)
		})
	}
}

func TestSearch_FlagsAfterPositionals(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.log", logFixture)
	crit := writeFile(t, dir, "crit.log", criticalFixture)

	r := runTG(t, "ERROR|CRITICAL", path, "-c")
	assert.Equal(t, 0, r.code, r.msg)
	assert.Equal(t, "2\n", r.stdout)

	r = runTG(t, "INFO", crit, "-c", "-F", "-v")
	assert.Equal(t, "3\n", r.stdout)

	r = runTG(t, "error", path, "-ci", "--max-count", "1")
	assert.Equal(t, "1\n", r.stdout)
}

func TestSearch_NoMatchExitsOne(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.log", logFixture)

	r := runTG(t, "NOPE", path)
	assert.Equal(t, 1, r.code)
	assert.Empty(t, r.stdout)
	assert.Empty(t, r.msg)
}

func TestSearch_FatalErrorsExitTwo(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.log", logFixture)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad regex", []string{"(", path}, "tg:"},
		{"missing file", []string{"ERROR", filepath.Join(dir, "gone.log")}, "gone.log"},
		{"no pattern", nil, "a pattern is required"},
		{"too many paths", []string{"ERROR", path, path}, "single path"},
		{"bad format", []string{"--format", "xml", "ERROR", path}, "output.format"},
		{"replace with watch", []string{"--replace", "x", "--watch", "ERROR", path}, "--watch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runTG(t, tt.args...)
			assert.Equal(t, 2, r.code)
			assert.Contains(t, r.msg, tt.want)
		})
	}
}

func TestSearch_DirectoryWithFilename(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.log", logFixture)
	b := writeFile(t, dir, "b.log", "ERROR once\n")
	writeFile(t, dir, ".hidden.log", "ERROR hidden\n")

	r := runTG(t, "-H", "ERROR", dir)
	assert.Equal(t, 0, r.code, r.msg)
	assert.Equal(t, a+":2:ERROR failed\n"+a+":4:ERROR timeout\n"+b+":1:ERROR once\n", r.stdout)

	r = runTG(t, "-c", "--with-filename", "ERROR", dir)
	assert.Equal(t, a+":2\n"+b+":1\n", r.stdout)

	r = runTG(t, "-l", "ERROR", dir, "--hidden")
	assert.Equal(t, filepath.Join(dir, ".hidden.log")+"\n"+a+"\n"+b+"\n", r.stdout)
}

func TestSearch_JSONOutput(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.log", logFixture)

	r := runTG(t, "--json", "ERROR", path)
	require.Equal(t, 0, r.code, r.msg)

	var got struct {
		TotalMatches int `json:"total_matches"`
		Matches      []struct {
			LineNumber int    `json:"line_number"`
			Text       string `json:"text"`
		} `json:"matches"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &got))
	assert.Equal(t, 2, got.TotalMatches)
	assert.Equal(t, 4, got.Matches[1].LineNumber)
	assert.Equal(t, "ERROR timeout", got.Matches[1].Text)
}

func TestSearch_ProjectConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".tg.kdl", `output { format "csv"; }`)
	writeFile(t, dir, "app.log", logFixture)

	r := runTG(t, "DEBUG", dir)
	assert.Equal(t, 0, r.code, r.msg)
	assert.Equal(t, "file,line_number,text\n"+filepath.Join(dir, "app.log")+",3,DEBUG trace\n", r.stdout)

	r = runTG(t, "--format", "table", "DEBUG", dir)
	assert.Equal(t, "File\tLine\tMatch\n"+filepath.Join(dir, "app.log")+"\t3\tDEBUG trace\n", r.stdout)
}

func TestSearch_RegexpFlagAllowsCommandNames(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "go run main.go\nexport PATH\n")

	r := runTG(t, "-e", "run", path)
	assert.Equal(t, 0, r.code, r.msg)
	assert.Equal(t, "1:go run main.go\n", r.stdout)
}

func TestReplace_CaptureGroups(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mod.py", "def foo(a, b):\n    pass\ndef bar(x, y):\n    pass\n")

	r := runTG(t, "--replace", "def $1($3, $2):", `def (\w+)\((\w+), (\w+)\):`, path)
	assert.Equal(t, 0, r.code, r.msg)
	assert.Contains(t, r.stdout, `with "def $1($3, $2):"`)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "def foo(b, a):\n    pass\ndef bar(y, x):\n    pass\n", string(got))
}

func TestReplace_AbsentPatternLeavesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.log", logFixture)
	before, err := os.Stat(path)
	require.NoError(t, err)

	r := runTG(t, "--replace", "ERROR", "-F", "CRITICAL", path)
	assert.Equal(t, 1, r.code)
	assert.Equal(t, "Replaced 0 matches with \"ERROR\" in 0 of 1 files\n", r.stdout)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, logFixture, string(got))
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestReplace_RejectsInvert(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.log", logFixture)
	r := runTG(t, "--replace", "x", "-v", "INFO", path)
	assert.Equal(t, 2, r.code)
	assert.Contains(t, r.msg, "invert")
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.log", "x\n")
	b := writeFile(t, dir, "src/b.py", "x\n")
	writeFile(t, dir, ".secret", "x\n")
	writeFile(t, dir, ".gitignore", "*.tmp\n")
	writeFile(t, dir, "scratch.tmp", "x\n")

	r := runTG(t, "--files", dir)
	assert.Equal(t, 0, r.code, r.msg)
	assert.Equal(t, a+"\n"+b+"\n", r.stdout)

	r = runTG(t, "files", "--type", "py", dir)
	assert.Equal(t, b+"\n", r.stdout)

	r = runTG(t, "files", "--type-list")
	assert.Contains(t, r.stdout, "py: *.py, *.pyi\n")
}

func TestRun_StructuralQuery(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mod.py", pythonFixture)

	r := runTG(t, "run", "--lang", "python", "(function_definition name: (identifier) @name)", path)
	assert.Equal(t, 0, r.code, r.msg)
	assert.Equal(t, "1:5:foo\n5:9:bar\nFound 2 structural matches.\n", r.stdout)
}

func TestRun_Errors(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mod.py", pythonFixture)

	r := runTG(t, "run", "--lang", "pyton", "(identifier) @id", path)
	assert.Equal(t, 2, r.code)
	assert.Contains(t, r.msg, "unsupported language: pyton (did you mean python?)")
	assert.Empty(t, r.stdout)

	r = runTG(t, "run", "--lang", "python", "(function_definition", path)
	assert.Equal(t, 2, r.code)

	r = runTG(t, "run", "--lang", "python", "(class_definition name: (identifier) @name) @cls", filepath.Join(filepath.Dir(path), "gone.py"))
	assert.Equal(t, 2, r.code)
}

func TestRun_Langs(t *testing.T) {
	r := runTG(t, "run", "--langs")
	assert.Equal(t, 0, r.code, r.msg)
	assert.Contains(t, strings.Split(r.stdout, "\n"), "python")
	assert.Contains(t, strings.Split(r.stdout, "\n"), "zig")
}

func TestExport(t *testing.T) {
	path := writeFile(t, t.TempDir(), "data.txt", "a\nbb\n\nccc\n")

	r := runTG(t, "export", "--chunk-bytes", "3", "--head", "2", path)
	assert.Equal(t, 0, r.code, r.msg)
	assert.Equal(t, path+": 4 values, 6 value bytes (1 empty, 0 invalid UTF-8, longest 3)\n"+
		"0\ta\n"+
		"1\tbb\n"+
		"chunk 0: values [0, 3) 3 bytes\n"+
		"chunk 1: values [3, 4) 3 bytes\n", r.stdout)

	r = runTG(t, "export", "--chunk-bytes", "0", path)
	assert.Equal(t, 2, r.code)

	r = runTG(t, "export")
	assert.Equal(t, 2, r.code)
}

func TestClassify_RequiresAccelerator(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.log", logFixture)
	t.Setenv("PATH", t.TempDir())

	r := runTG(t, "classify", path)
	assert.Equal(t, 2, r.code)
	assert.Contains(t, r.msg, "not available")
}

func TestInterspersed(t *testing.T) {
	app := newApp(&backend.State{}, &bytes.Buffer{}, &bytes.Buffer{})

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"flags first", []string{"tg", "-c", "ERROR", "."}, []string{"tg", "-c", "--", "ERROR", "."}},
		{"flags last", []string{"tg", "ERROR", ".", "-c", "-F"}, []string{"tg", "-c", "-F", "--", "ERROR", "."}},
		{"value flag", []string{"tg", "ERROR", "-m", "2", "."}, []string{"tg", "-m", "2", "--", "ERROR", "."}},
		{"long value flag", []string{"tg", "ERROR", ".", "--replace", "WARN"}, []string{"tg", "--replace", "WARN", "--", "ERROR", "."}},
		{"double dash", []string{"tg", "-F", "--", "-c", "."}, []string{"tg", "-F", "--", "-c", "."}},
		{"subcommand untouched", []string{"tg", "run", "pat", "--lang", "go"}, []string{"tg", "run", "pat", "--lang", "go"}},
		{"no positionals", []string{"tg", "--version"}, []string{"tg", "--version"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, interspersed(app, tt.in))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errNoMatch))
	assert.Equal(t, 2, exitCode(cli.Exit("boom", 2)))
	assert.Equal(t, 2, exitCode(os.ErrNotExist))
	assert.Equal(t, "", errorMessage(errNoMatch))
	assert.Equal(t, "tg: file does not exist", errorMessage(os.ErrNotExist))
}

func TestVersionFlag(t *testing.T) {
	r := runTG(t, "--version")
	assert.Equal(t, 0, r.code, r.msg)
	assert.Equal(t, version.Current().String()+"\n", r.stdout)

	r = runTG(t, "-V")
	assert.Equal(t, version.Current().String()+"\n", r.stdout)
}
