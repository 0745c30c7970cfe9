package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/idgrep/internal/errors"
)

// createJSONResponse creates a standardized JSON response for MCP tools
func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// createErrorResponse reports a tool failure inside the result with
// IsError set, so the model sees the message and can correct its call.
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	errorData := map[string]interface{}{
		"success":    false,
		"error":      err.Error(),
		"error_type": string(errors.TypeOf(err)),
		"operation":  operation,
	}
	if hint := errorHint(err); hint != "" {
		errorData["suggestion"] = hint
	}

	response, marshalErr := createJSONResponse(errorData)
	if marshalErr != nil {
		return nil, marshalErr
	}
	response.IsError = true
	return response, nil
}

// errorHint suggests a fix for errors a caller can correct
func errorHint(err error) string {
	switch errors.TypeOf(err) {
	case errors.ErrorTypePathNotFound:
		return "search_path is resolved against the server's search root; use path_info to check it"
	case errors.ErrorTypePathForbidden:
		return "system directories cannot be searched; choose a path under the project"
	case errors.ErrorTypeInvalidRequest:
		return "each query needs non-blank text and a type of phone, email, name or generic"
	case errors.ErrorTypeSpawn:
		return "the ripgrep binary could not be started; check search.binary in the configuration"
	default:
		return ""
	}
}
