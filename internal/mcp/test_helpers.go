package mcp

// CallTool invokes a tool handler directly, bypassing any transport.
//
// Usage:
//
//	server, _ := NewServer(cfg, NoOpLogger)
//	resultJSON, err := server.CallTool("expand_query", map[string]interface{}{
//	    "query": "555-123-4567", "type": "phone",
//	})

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GetHandlerForTesting returns the handler registered for toolName, or nil
func (s *Server) GetHandlerForTesting(toolName string) mcp.ToolHandler {
	switch toolName {
	case ToolSearchIdentifiers:
		return s.handleSearchIdentifiers
	case ToolPreviewSearch:
		return s.handlePreviewSearch
	case ToolExpandQuery:
		return s.handleExpandQuery
	case ToolPathInfo:
		return s.handlePathInfo
	default:
		return nil
	}
}

// CallTool is a test helper method to simulate MCP tool calls. Error
// results are returned as Go errors carrying the reported message.
func (s *Server) CallTool(toolName string, params map[string]interface{}) (string, error) {
	return s.CallToolContext(context.Background(), toolName, params)
}

// CallToolContext is CallTool with a caller supplied context
func (s *Server) CallToolContext(ctx context.Context, toolName string, params map[string]interface{}) (string, error) {
	handler := s.GetHandlerForTesting(toolName)
	if handler == nil {
		return "", fmt.Errorf("unknown tool: %s", toolName)
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal params: %w", err)
	}
	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      toolName,
			Arguments: paramsJSON,
		},
	}

	result, err := handler(ctx, req)
	if err != nil {
		return "", err
	}
	if result == nil || len(result.Content) == 0 {
		return "", nil
	}
	textContent, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		return "", fmt.Errorf("unexpected content type %T", result.Content[0])
	}
	if result.IsError {
		var response struct {
			Error      string `json:"error"`
			ErrorType  string `json:"error_type"`
			Suggestion string `json:"suggestion"`
		}
		if json.Unmarshal([]byte(textContent.Text), &response) == nil && response.Error != "" {
			return "", fmt.Errorf("MCP error (%s): %s", response.ErrorType, response.Error)
		}
		return "", fmt.Errorf("MCP error: %s", textContent.Text)
	}
	return textContent.Text, nil
}
