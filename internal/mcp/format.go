package mcp

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/tgrep/internal/ast"
	"github.com/standardbeagle/tgrep/internal/search"
)

// groupedLine is one listed line of a grouped result.
type groupedLine struct {
	line    int
	text    string
	context bool
}

// fileGroup collects the lines of one file in result order.
type fileGroup struct {
	path  string
	lines []groupedLine
}

func groupSearchMatches(ms []search.Match) []fileGroup {
	var groups []fileGroup
	for _, m := range ms {
		if len(groups) == 0 || groups[len(groups)-1].path != m.Path {
			groups = append(groups, fileGroup{path: m.Path})
		}
		g := &groups[len(groups)-1]
		g.lines = append(g.lines, groupedLine{line: m.Line, text: m.Text, context: m.Context})
	}
	return groups
}

// groupASTMatches groups by path. Matches arrive file by file, so a path
// never reappears once another has started.
func groupASTMatches(ms []ast.Match) []fileGroup {
	var groups []fileGroup
	for _, m := range ms {
		if len(groups) == 0 || groups[len(groups)-1].path != m.Path {
			groups = append(groups, fileGroup{path: m.Path})
		}
		g := &groups[len(groups)-1]
		text := m.Text
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[:i]
		}
		g.lines = append(g.lines, groupedLine{line: m.StartLine, text: text})
	}
	return groups
}

// formatGroups renders header followed by at most MaxResultFiles groups of
// at most MaxMatchesPerFile lines each.
func formatGroups(header string, groups []fileGroup) string {
	var sb strings.Builder
	sb.WriteString(header)

	for i, g := range groups {
		if i == MaxResultFiles {
			break
		}
		fmt.Fprintf(&sb, "\n\n%s:", g.path)
		for j, l := range g.lines {
			if j == MaxMatchesPerFile {
				fmt.Fprintf(&sb, "\n  ... %d more matches", len(g.lines)-MaxMatchesPerFile)
				break
			}
			sep := ':'
			if l.context {
				sep = '-'
			}
			fmt.Fprintf(&sb, "\n  %d%c %s", l.line, sep, strings.TrimSpace(l.text))
		}
	}

	if len(groups) > MaxResultFiles {
		fmt.Fprintf(&sb, "\n\n... and %d more files.", len(groups)-MaxResultFiles)
	}
	return sb.String()
}
