// Package output renders search, count and structural results in the
// formats tg supports: rg, json, csv and table.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/standardbeagle/tgrep/internal/ast"
	"github.com/standardbeagle/tgrep/internal/search"
)

const (
	FormatRG    = "rg"
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatTable = "table"
)

// Options controls formatting.
type Options struct {
	Format       string
	WithFilename bool // rg format only; prefix lines with the file path
	Context      bool // rg format only; separate non-adjacent groups with "--"
}

// Formatter writes results to w.
type Formatter interface {
	Matches(w io.Writer, ms []search.Match) error
	Counts(w io.Writer, counts []search.FileCount) error
	AST(w io.Writer, ms []ast.Match) error
}

// New returns the formatter for opts.Format. An empty format means rg.
func New(opts Options) (Formatter, error) {
	switch strings.ToLower(opts.Format) {
	case "", FormatRG:
		return &rgFormatter{withFilename: opts.WithFilename, context: opts.Context}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	case FormatCSV:
		return csvFormatter{}, nil
	case FormatTable:
		return tableFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", opts.Format)
	}
}

// FormatCount renders a single aggregate count the way count mode prints it.
func FormatCount(n int) string {
	return strconv.Itoa(n)
}

// FormatFound is the summary printed when only an aggregate count is known.
func FormatFound(n int) string {
	return fmt.Sprintf("Found %d matches", n)
}

func totalCount(counts []search.FileCount) int {
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	return total
}

func fileCount(ms []search.Match) int {
	n := 0
	last := ""
	for i, m := range ms {
		if i == 0 || m.Path != last {
			n++
			last = m.Path
		}
	}
	return n
}

// firstLine trims a multi-line AST match to its first line for line formats.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// rgFormatter prints "<line>:<text>" like ripgrep, or "<path>:<line>:<text>"
// with filenames. Context lines use "-" in place of ":".
type rgFormatter struct {
	withFilename bool
	context      bool
}

func (f *rgFormatter) Matches(w io.Writer, ms []search.Match) error {
	for i, m := range ms {
		if f.context && i > 0 {
			prev := ms[i-1]
			if prev.Path != m.Path || prev.Line+1 != m.Line {
				if _, err := io.WriteString(w, "--\n"); err != nil {
					return err
				}
			}
		}
		sep := ':'
		if m.Context {
			sep = '-'
		}
		var err error
		if f.withFilename {
			_, err = fmt.Fprintf(w, "%s%c%d%c%s\n", m.Path, sep, m.Line, sep, m.Text)
		} else {
			_, err = fmt.Fprintf(w, "%d%c%s\n", m.Line, sep, m.Text)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Counts prints one aggregate integer, or "<path>:<count>" per file with
// filenames.
func (f *rgFormatter) Counts(w io.Writer, counts []search.FileCount) error {
	if !f.withFilename {
		_, err := fmt.Fprintln(w, FormatCount(totalCount(counts)))
		return err
	}
	for _, c := range counts {
		if _, err := fmt.Fprintf(w, "%s:%d\n", c.Path, c.Count); err != nil {
			return err
		}
	}
	return nil
}

func (f *rgFormatter) AST(w io.Writer, ms []ast.Match) error {
	for _, m := range ms {
		var err error
		if f.withFilename {
			_, err = fmt.Fprintf(w, "%s:%d:%d:%s\n", m.Path, m.StartLine, m.StartColumn, firstLine(m.Text))
		} else {
			_, err = fmt.Fprintf(w, "%d:%d:%s\n", m.StartLine, m.StartColumn, firstLine(m.Text))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type jsonMatch struct {
	File       string `json:"file"`
	LineNumber int    `json:"line_number"`
	Text       string `json:"text"`
	Context    bool   `json:"context,omitempty"`
}

type jsonResult struct {
	TotalMatches int         `json:"total_matches"`
	TotalFiles   int         `json:"total_files"`
	Matches      []jsonMatch `json:"matches"`
}

type jsonFileCount struct {
	File  string `json:"file"`
	Count int    `json:"count"`
}

type jsonCounts struct {
	TotalMatches int             `json:"total_matches"`
	TotalFiles   int             `json:"total_files"`
	Files        []jsonFileCount `json:"files"`
}

type jsonCapture struct {
	Name      string `json:"name"`
	StartByte int    `json:"start_byte"`
	EndByte   int    `json:"end_byte"`
	Text      string `json:"text"`
}

type jsonASTMatch struct {
	File       string        `json:"file"`
	StartByte  int           `json:"start_byte"`
	EndByte    int           `json:"end_byte"`
	LineNumber int           `json:"line_number"`
	Column     int           `json:"column"`
	Text       string        `json:"text"`
	Captures   []jsonCapture `json:"captures,omitempty"`
}

type jsonASTResult struct {
	TotalMatches int            `json:"total_matches"`
	Matches      []jsonASTMatch `json:"matches"`
}

type jsonFormatter struct{}

func (jsonFormatter) Matches(w io.Writer, ms []search.Match) error {
	res := jsonResult{
		TotalMatches: search.Selected(ms),
		TotalFiles:   fileCount(ms),
		Matches:      make([]jsonMatch, 0, len(ms)),
	}
	for _, m := range ms {
		res.Matches = append(res.Matches, jsonMatch{File: m.Path, LineNumber: m.Line, Text: m.Text, Context: m.Context})
	}
	return json.NewEncoder(w).Encode(res)
}

func (jsonFormatter) Counts(w io.Writer, counts []search.FileCount) error {
	res := jsonCounts{
		TotalMatches: totalCount(counts),
		TotalFiles:   len(counts),
		Files:        make([]jsonFileCount, 0, len(counts)),
	}
	for _, c := range counts {
		res.Files = append(res.Files, jsonFileCount{File: c.Path, Count: c.Count})
	}
	return json.NewEncoder(w).Encode(res)
}

func (jsonFormatter) AST(w io.Writer, ms []ast.Match) error {
	res := jsonASTResult{TotalMatches: len(ms), Matches: make([]jsonASTMatch, 0, len(ms))}
	for _, m := range ms {
		jm := jsonASTMatch{
			File:       m.Path,
			StartByte:  m.StartByte,
			EndByte:    m.EndByte,
			LineNumber: m.StartLine,
			Column:     m.StartColumn,
			Text:       m.Text,
		}
		for _, c := range m.Captures {
			jm.Captures = append(jm.Captures, jsonCapture{Name: c.Name, StartByte: c.StartByte, EndByte: c.EndByte, Text: c.Text})
		}
		res.Matches = append(res.Matches, jm)
	}
	return json.NewEncoder(w).Encode(res)
}

type csvFormatter struct{}

func (csvFormatter) write(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func (f csvFormatter) Matches(w io.Writer, ms []search.Match) error {
	rows := make([][]string, 0, len(ms))
	for _, m := range ms {
		if m.Context {
			continue
		}
		rows = append(rows, []string{m.Path, strconv.Itoa(m.Line), m.Text})
	}
	return f.write(w, []string{"file", "line_number", "text"}, rows)
}

func (f csvFormatter) Counts(w io.Writer, counts []search.FileCount) error {
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{c.Path, strconv.Itoa(c.Count)})
	}
	return f.write(w, []string{"file", "count"}, rows)
}

func (f csvFormatter) AST(w io.Writer, ms []ast.Match) error {
	rows := make([][]string, 0, len(ms))
	for _, m := range ms {
		rows = append(rows, []string{
			m.Path, strconv.Itoa(m.StartLine), strconv.Itoa(m.StartColumn),
			strconv.Itoa(m.StartByte), strconv.Itoa(m.EndByte), m.Text,
		})
	}
	return f.write(w, []string{"file", "line_number", "column", "start_byte", "end_byte", "text"}, rows)
}

// tableFormatter prints tab-separated rows under a header. Like csv it has
// no column for context, so context lines are left out.
type tableFormatter struct{}

func (tableFormatter) Matches(w io.Writer, ms []search.Match) error {
	if _, err := fmt.Fprintln(w, "File\tLine\tMatch"); err != nil {
		return err
	}
	for _, m := range ms {
		if m.Context {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\t%d\t%s\n", m.Path, m.Line, m.Text); err != nil {
			return err
		}
	}
	return nil
}

func (tableFormatter) Counts(w io.Writer, counts []search.FileCount) error {
	if _, err := fmt.Fprintln(w, "File\tCount"); err != nil {
		return err
	}
	for _, c := range counts {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", c.Path, c.Count); err != nil {
			return err
		}
	}
	return nil
}

func (tableFormatter) AST(w io.Writer, ms []ast.Match) error {
	if _, err := fmt.Fprintln(w, "File\tLine\tColumn\tMatch"); err != nil {
		return err
	}
	for _, m := range ms {
		if _, err := fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", m.Path, m.StartLine, m.StartColumn, firstLine(m.Text)); err != nil {
			return err
		}
	}
	return nil
}
