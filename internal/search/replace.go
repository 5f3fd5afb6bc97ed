package search

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/standardbeagle/tgrep/internal/debug"
	tgerrors "github.com/standardbeagle/tgrep/internal/errors"
)

// ReplaceStats summarizes a replace run.
type ReplaceStats struct {
	FilesScanned int
	FilesChanged int
	Replacements int
}

// ReplaceOptions tune Replace.
type ReplaceOptions struct {
	// OnFile is called after each file is processed, changed or not.
	OnFile func(path string, replacements int)
}

// Replace substitutes every occurrence of q's pattern in target's files and
// rewrites the changed files in place. In regex mode the replacement may
// reference capture groups as $1 or ${name}; in literal mode it is inserted
// verbatim. Files without a match are never opened for writing.
func (e *Engine) Replace(ctx context.Context, q Query, replacement string, target string, opts ReplaceOptions) (ReplaceStats, error) {
	var stats ReplaceStats
	if q.Invert {
		return stats, tgerrors.NewUsageError(q.Pattern, fmt.Errorf("replace cannot be combined with invert"))
	}
	m, err := Compile(q)
	if err != nil {
		return stats, err
	}
	files, dirMode, err := e.resolve(target)
	if err != nil {
		return stats, err
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		n, changed, err := replaceFile(m, path, []byte(replacement))
		if err != nil {
			if !dirMode {
				return stats, err
			}
			debug.LogSearch("skip %s: %v\n", path, err)
			continue
		}
		stats.FilesScanned++
		stats.Replacements += n
		if changed {
			stats.FilesChanged++
		}
		if opts.OnFile != nil {
			opts.OnFile(path, n)
		}
	}
	return stats, nil
}

// replaceFile reads path into an owned buffer and, if the pattern occurs,
// truncates and rewrites it with every occurrence substituted. The file is
// not touched when the result is byte-identical to the original.
func replaceFile(m *Matcher, path string, replacement []byte) (int, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false, tgerrors.NewFileError("stat", path, err)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return 0, false, tgerrors.NewFileError("read", path, err)
	}

	if !m.re.Match(src) {
		return 0, false, nil
	}
	n := len(m.re.FindAllIndex(src, -1))

	var out []byte
	if m.query.Mode == ModeLiteral {
		out = m.re.ReplaceAllLiteral(src, replacement)
	} else {
		out = m.re.ReplaceAll(src, replacement)
	}
	out = matchTrailingNewline(src, out)

	if bytes.Equal(out, src) {
		debug.LogSearch("%s unchanged after %d identity replacements\n", path, n)
		return n, false, nil
	}

	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return 0, false, tgerrors.NewFileError("write", path, err)
	}
	debug.LogSearch("rewrote %s: %d replacements\n", path, n)
	return n, true, nil
}

// matchTrailingNewline gives out the same trailing-newline state as src.
func matchTrailingNewline(src, out []byte) []byte {
	srcHas := bytes.HasSuffix(src, newline)
	outHas := bytes.HasSuffix(out, newline)
	switch {
	case srcHas && !outHas:
		return append(out, '\n')
	case !srcHas && outHas:
		return out[:len(out)-1]
	}
	return out
}
