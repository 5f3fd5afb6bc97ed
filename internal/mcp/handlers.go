package mcp

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/tgrep/internal/search"
	"github.com/standardbeagle/tgrep/internal/walk"
	"github.com/standardbeagle/tgrep/pkg/pathutil"
)

var errAcceleratorUnavailable = errors.New("accelerator unavailable: log classification requires the tg-accel pipeline")

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p SearchParams
	warnings, err := decodeParams(req.Params.Arguments, &p)
	if err == nil {
		err = p.validate()
	}
	if err != nil {
		return createErrorResponse("tg_search", err)
	}

	return s.recoverFromPanic("tg_search", func() (*mcp.CallToolResult, error) {
		text, err := s.search(ctx, p)
		if err != nil {
			return nil, err
		}
		return createTextResponse(text, warnings), nil
	})
}

func (s *Server) search(ctx context.Context, p SearchParams) (string, error) {
	q := search.Query{
		Pattern:    p.Pattern,
		Mode:       search.ModeRegex,
		IgnoreCase: p.IgnoreCase,
		Invert:     p.Invert,
		WordRegexp: p.WordRegexp,
		MaxCount:   p.MaxCount,
		Before:     p.Context,
		After:      p.Context,
	}
	if p.FixedStrings {
		q.Mode = search.ModeLiteral
	}
	// a bad pattern fails before any file is touched
	if _, err := search.Compile(q); err != nil {
		return "", err
	}

	if !walk.IsDir(p.Path) {
		return s.searchFile(ctx, q, p)
	}

	files, err := walk.Resolve(p.Path, s.requestWalkOptions(p.Glob, p.TypeFilter))
	if err != nil {
		return "", err
	}
	root := pathutil.DisplayRoot(p.Path, true)

	if p.Count {
		counts, err := s.engine.CountFiles(ctx, q, files)
		if err != nil {
			return "", err
		}
		return formatCounts(counts, p), nil
	}

	ms, err := s.engine.SearchFiles(ctx, q, files)
	if err != nil {
		return "", err
	}
	return formatSearch(pathutil.ToRelativeMatches(ms, root), p), nil
}

// searchFile handles a target that is not a directory. Read failures are
// returned instead of skipped.
func (s *Server) searchFile(ctx context.Context, q search.Query, p SearchParams) (string, error) {
	if p.Count {
		counts, err := s.engine.CountPerFile(ctx, q, p.Path)
		if err != nil {
			return "", err
		}
		return formatCounts(counts, p), nil
	}

	ms, err := s.engine.Search(ctx, q, p.Path)
	if err != nil {
		return "", err
	}
	return formatSearch(pathutil.ToRelativeMatches(ms, pathutil.DisplayRoot(p.Path, false)), p), nil
}

func formatCounts(counts []search.FileCount, p SearchParams) string {
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	if total == 0 {
		return fmt.Sprintf("No matches found for '%s' in %s.", p.Pattern, p.Path)
	}
	return fmt.Sprintf("Found a total of %d matches across %d files in %s.", total, len(counts), p.Path)
}

func formatSearch(ms []search.Match, p SearchParams) string {
	selected := search.Selected(ms)
	if selected == 0 {
		return fmt.Sprintf("No matches found for '%s' in %s.", p.Pattern, p.Path)
	}
	groups := groupSearchMatches(ms)
	return formatGroups(fmt.Sprintf("Found %d matches across %d files:", selected, len(groups)), groups)
}

// requestWalkOptions layers a request's glob and type filter over the
// server's walk options.
func (s *Server) requestWalkOptions(glob, typeFilter string) walk.Options {
	opts := s.walkOpts
	if glob != "" {
		opts.Globs = append(append([]string(nil), s.walkOpts.Globs...), glob)
	}
	if typeFilter != "" {
		opts.Types = append(append([]string(nil), s.walkOpts.Types...), typeFilter)
	}
	return opts
}

func (s *Server) handleASTSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p ASTSearchParams
	warnings, err := decodeParams(req.Params.Arguments, &p)
	if err == nil {
		err = p.validate()
	}
	if err != nil {
		return createErrorResponse("tg_ast_search", err)
	}

	return s.recoverFromPanic("tg_ast_search", func() (*mcp.CallToolResult, error) {
		ms, err := s.astEngine.RunTarget(ctx, p.Lang, p.Pattern, p.Path, s.walkOpts)
		if err != nil {
			return nil, err
		}
		if len(ms) == 0 {
			return createTextResponse(fmt.Sprintf("No AST matches found for pattern in %s.", p.Path), warnings), nil
		}
		root := pathutil.DisplayRoot(p.Path, walk.IsDir(p.Path))
		groups := groupASTMatches(pathutil.ToRelativeASTMatches(ms, root))
		header := fmt.Sprintf("Found %d structural AST matches across %d files:", len(ms), len(groups))
		return createTextResponse(formatGroups(header, groups), warnings), nil
	})
}

func (s *Server) handleClassify(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p ClassifyParams
	warnings, err := decodeParams(req.Params.Arguments, &p)
	if err == nil {
		err = p.validate()
	}
	if err != nil {
		return createErrorResponse("tg_classify_logs", err)
	}

	return s.recoverFromPanic("tg_classify_logs", func() (*mcp.CallToolResult, error) {
		if s.accel == nil || !s.accel.Available(ctx) {
			return nil, errAcceleratorUnavailable
		}
		out, err := s.accel.Classify(ctx, p.FilePath)
		if err != nil {
			return nil, err
		}
		out = truncatePreview(out, classifyMaxPreview)
		if out == "" {
			return createTextResponse(fmt.Sprintf("No classification output for %s.", p.FilePath), warnings), nil
		}
		return createTextResponse(fmt.Sprintf("Semantic classification for %s:\n\n%s", p.FilePath, out), warnings), nil
	})
}

// truncatePreview cuts s to at most limit bytes without splitting a UTF-8
// sequence.
func truncatePreview(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (truncated)"
}
