package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/tgrep/internal/ast"
	"github.com/standardbeagle/tgrep/internal/search"
)

func TestToRelative(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX paths")
	}
	tests := []struct {
		name     string
		path     string
		rootDir  string
		expected string
	}{
		{"simple relative path", "/var/log/app.log", "/var/log", "app.log"},
		{"nested relative path", "/var/log/nginx/access.log", "/var/log", "nginx/access.log"},
		{"same directory", "/var/log", "/var/log", "."},
		{"already relative", "nginx/access.log", "/var/log", "nginx/access.log"},
		{"outside root", "/etc/hosts", "/var/log", "/etc/hosts"},
		{"sibling with shared prefix", "/var/logs/x.log", "/var/log", "/var/logs/x.log"},
		{"dot-dot prefixed name stays relative", "/var/log/..hidden", "/var/log", "..hidden"},
		{"empty root", "/var/log/app.log", "", "/var/log/app.log"},
		{"empty path", "", "/var/log", ""},
		{"unclean path", "/var/log/./nginx/../app.log", "/var/log/", "app.log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToRelative(tt.path, tt.rootDir))
		})
	}
}

func TestDisplayRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(file, []byte("x\n"), 0644))

	assert.Equal(t, dir, DisplayRoot(dir, true))
	assert.Equal(t, dir, DisplayRoot(file, false))
}

func TestToRelativeMatches_CopiesInput(t *testing.T) {
	root := t.TempDir()
	in := []search.Match{
		{Path: filepath.Join(root, "a.log"), Line: 2, Text: "ERROR failed"},
		{Path: filepath.Join(root, "sub", "b.log"), Line: 1, Text: "ERROR timeout"},
	}

	out := ToRelativeMatches(in, root)
	require.Len(t, out, 2)
	assert.Equal(t, "a.log", out[0].Path)
	assert.Equal(t, filepath.Join("sub", "b.log"), out[1].Path)
	assert.Equal(t, 2, out[0].Line)
	assert.Equal(t, "ERROR timeout", out[1].Text)

	assert.Equal(t, filepath.Join(root, "a.log"), in[0].Path, "input must not be modified")
}

func TestToRelativeCountsAndAST(t *testing.T) {
	root := t.TempDir()

	counts := ToRelativeCounts([]search.FileCount{{Path: filepath.Join(root, "a.log"), Count: 3}}, root)
	assert.Equal(t, []search.FileCount{{Path: "a.log", Count: 3}}, counts)

	ms := ToRelativeASTMatches([]ast.Match{{Path: filepath.Join(root, "m.py"), StartLine: 4}}, root)
	require.Len(t, ms, 1)
	assert.Equal(t, "m.py", ms[0].Path)
	assert.Equal(t, 4, ms[0].StartLine)
}

func TestToRelative_EmptySlices(t *testing.T) {
	assert.Nil(t, ToRelativeMatches(nil, "/x"))
	assert.Empty(t, ToRelativeCounts([]search.FileCount{}, "/x"))
	assert.Nil(t, ToRelativeASTMatches(nil, "/x"))
}
