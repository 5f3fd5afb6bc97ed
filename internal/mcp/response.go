package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// createTextResponse wraps plain text, appending any parameter warnings.
func createTextResponse(text string, warnings []string) *mcp.CallToolResult {
	if len(warnings) > 0 {
		var sb strings.Builder
		sb.WriteString(text)
		sb.WriteString("\n")
		for _, w := range warnings {
			sb.WriteString("\nWarning: ")
			sb.WriteString(w)
		}
		text = sb.String()
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// createErrorResponse reports a tool failure inside the result with IsError
// set, so the calling model sees the error and can correct its request.
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	errorData := map[string]interface{}{
		"success":   false,
		"error":     err.Error(),
		"operation": operation,
	}
	content, marshalErr := json.Marshal(errorData)
	if marshalErr != nil {
		return nil, fmt.Errorf("failed to marshal error response: %w", marshalErr)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
		IsError: true,
	}, nil
}
