package search

import (
	"bytes"
	"strings"
)

// Line is one newline-delimited segment of a buffer. Text excludes the
// terminator and aliases the buffer.
type Line struct {
	Number int // 1-based
	Text   []byte
}

// scanLines calls fn for every selected line of data in order, stopping after
// limit selections (0 = unlimited) or when fn returns false. Line numbers
// count every terminator, selected or not.
func scanLines(m *Matcher, data []byte, limit int, fn func(Line) bool) {
	if m.bufferScan() {
		scanLiteral(m.literal, data, limit, fn)
		return
	}

	selected := 0
	lineNo := 0
	for start := 0; start < len(data); {
		end := bytes.IndexByte(data[start:], '\n')
		if end < 0 {
			end = len(data)
		} else {
			end += start
		}
		lineNo++
		line := data[start:end]
		start = end + 1

		if !m.Match(line) {
			continue
		}
		selected++
		if !fn(Line{Number: lineNo, Text: line}) {
			return
		}
		if limit > 0 && selected >= limit {
			return
		}
	}
}

// scanLiteral finds occurrences of lit across the whole buffer and maps each
// to its enclosing line, counting the newlines skipped in between.
func scanLiteral(lit, data []byte, limit int, fn func(Line) bool) {
	selected := 0
	lineNo := 1
	lineStart := 0
	for pos := 0; pos < len(data); {
		idx := bytes.Index(data[pos:], lit)
		if idx < 0 {
			return
		}
		hit := pos + idx

		lineNo += bytes.Count(data[lineStart:hit], newline)
		if i := bytes.LastIndexByte(data[lineStart:hit], '\n'); i >= 0 {
			lineStart += i + 1
		}
		lineEnd := bytes.IndexByte(data[hit:], '\n')
		if lineEnd < 0 {
			lineEnd = len(data)
		} else {
			lineEnd += hit
		}

		selected++
		if !fn(Line{Number: lineNo, Text: data[lineStart:lineEnd]}) {
			return
		}
		if limit > 0 && selected >= limit {
			return
		}
		if lineEnd >= len(data) {
			return
		}
		lineNo++
		lineStart = lineEnd + 1
		pos = lineStart
	}
}

var newline = []byte{'\n'}

// scanContext is scanLines with up to before lines ahead of and after lines
// behind every selected line. fn sees each line once, in order; selected is
// false for context lines. Once limit selections are reached only the
// pending after-context is still reported.
func scanContext(m *Matcher, data []byte, limit, before, after int, fn func(l Line, selected bool) bool) {
	var pending []Line // before-context, oldest first
	selected, afterLeft := 0, 0
	lineNo := 0
	for start := 0; start < len(data); {
		end := bytes.IndexByte(data[start:], '\n')
		if end < 0 {
			end = len(data)
		} else {
			end += start
		}
		lineNo++
		line := Line{Number: lineNo, Text: data[start:end]}
		start = end + 1

		if limit > 0 && selected >= limit {
			if afterLeft == 0 {
				return
			}
			afterLeft--
			if !fn(line, false) {
				return
			}
			continue
		}

		if m.Match(line.Text) {
			for _, l := range pending {
				if !fn(l, false) {
					return
				}
			}
			pending = pending[:0]
			selected++
			afterLeft = after
			if !fn(line, true) {
				return
			}
			continue
		}

		if afterLeft > 0 {
			afterLeft--
			if !fn(line, false) {
				return
			}
			continue
		}
		if before > 0 {
			if len(pending) == before {
				copy(pending, pending[1:])
				pending = pending[:before-1]
			}
			pending = append(pending, line)
		}
	}
}

// countLines returns the number of selected lines in data, capped at limit
// when limit > 0.
func countLines(m *Matcher, data []byte, limit int) int {
	n := 0
	scanLines(m, data, limit, func(Line) bool {
		n++
		return true
	})
	return n
}

// decodeLine converts line bytes to text, substituting U+FFFD for invalid
// UTF-8 so a line is never dropped for its encoding.
func decodeLine(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
