// Package mcp serves tg's search, structural search and classification over
// the Model Context Protocol on stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/tgrep/internal/ast"
	"github.com/standardbeagle/tgrep/internal/backend"
	tgdebug "github.com/standardbeagle/tgrep/internal/debug"
	"github.com/standardbeagle/tgrep/internal/search"
	"github.com/standardbeagle/tgrep/internal/version"
	"github.com/standardbeagle/tgrep/internal/walk"
)

// Server exposes tg's engines as MCP tools.
type Server struct {
	server    *mcp.Server
	engine    *search.Engine
	astEngine *ast.Engine
	accel     *backend.Accelerated // nil when the accelerator is disabled
	walkOpts  walk.Options
}

// NewServer builds a server over the local backend. astEngine may be nil to
// use the default grammar registry; accel may be nil.
func NewServer(local *backend.Local, accel *backend.Accelerated, astEngine *ast.Engine, walkOpts walk.Options) (*Server, error) {
	if local == nil {
		return nil, errors.New("mcp: local backend is required")
	}
	if astEngine == nil {
		astEngine = ast.NewEngine(nil)
	}

	s := &Server{
		engine:    local.Engine(),
		astEngine: astEngine,
		accel:     accel,
		walkOpts:  walkOpts,
	}
	s.server = mcp.NewServer(serverInfo(), nil)
	s.registerTools()
	return s, nil
}

// serverInfo identifies the build to clients, commit included, so a stale
// binary behind a long-lived session is visible.
func serverInfo() *mcp.Implementation {
	return &mcp.Implementation{Name: serverName, Version: version.Current().Short()}
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "tg_search",
		Description: "Search files for a regex or literal pattern. Returns matching lines grouped by file (first 15 files, 10 lines each), or totals with count=true.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern": {
					Type:        "string",
					Description: "Regular expression (RE2) or, with fixed_strings, an exact string",
				},
				"path": {
					Type:        "string",
					Description: "File or directory to search (default: current directory)",
				},
				"ignore_case": {
					Type:        "boolean",
					Description: "Case-insensitive search (-i)",
				},
				"fixed_strings": {
					Type:        "boolean",
					Description: "Treat pattern as a literal string (-F)",
				},
				"invert": {
					Type:        "boolean",
					Description: "Select lines that do not match (-v)",
				},
				"word_regexp": {
					Type:        "boolean",
					Description: "Only match whole words (-w)",
				},
				"max_count": {
					Type:        "integer",
					Description: "Limit matching lines per file (-m); 0 = unlimited",
				},
				"context": {
					Type:        "integer",
					Description: "Lines of context to show around each match (-C)",
				},
				"glob": {
					Type:        "string",
					Description: "Include files matching glob, or exclude with a leading '!' (e.g. '*.log')",
				},
				"type_filter": {
					Type:        "string",
					Description: "Only search files of this type (e.g. 'py', 'log')",
				},
				"count": {
					Type:        "boolean",
					Description: "Only report match totals (-c)",
				},
			},
			Required: []string{"pattern"},
		},
	}, s.handleSearch)

	s.server.AddTool(&mcp.Tool{
		Name:        "tg_ast_search",
		Description: "Structural search with a tree-sitter query, e.g. '(function_definition name: (identifier) @name)'. The first capture of each match is reported.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern": {
					Type:        "string",
					Description: "Tree-sitter query pattern with at least one @capture",
				},
				"lang": {
					Type:        "string",
					Description: "Grammar to parse with (e.g. 'python', 'go', 'javascript')",
				},
				"path": {
					Type:        "string",
					Description: "File or directory to search (default: current directory)",
				},
			},
			Required: []string{"pattern", "lang"},
		},
	}, s.handleASTSearch)

	s.server.AddTool(&mcp.Tool{
		Name:        "tg_classify_logs",
		Description: "Classify a log file's lines with the accelerator's model. Requires the accelerator to be installed.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file_path": {
					Type:        "string",
					Description: "Log file to classify",
				},
			},
			Required: []string{"file_path"},
		},
	}, s.handleClassify)
}

// recoverFromPanic runs handler, turning returned errors and panics into
// error results so one bad request never takes the server down.
func (s *Server) recoverFromPanic(operation string, handler func() (*mcp.CallToolResult, error)) (result *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			tgdebug.LogMCP("PANIC RECOVERED in %s: %v\n%s", operation, r, debug.Stack())
			result, err = createErrorResponse(operation, fmt.Errorf("internal error: %v", r))
		}
	}()

	result, err = handler()
	if err != nil {
		tgdebug.LogMCP("Error in %s: %v\n", operation, err)
		return createErrorResponse(operation, err)
	}
	return result, nil
}

// Start serves on stdio until ctx is cancelled or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	tgdebug.LogMCP("Starting MCP server with stdio transport\n")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
