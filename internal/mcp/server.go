package mcp

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/idgrep/internal/config"
	"github.com/standardbeagle/idgrep/internal/version"
)

// Server exposes identifier search as MCP tools
type Server struct {
	mu  sync.RWMutex
	cfg *config.Config

	diagnosticLogger *DiagnosticLogger
	server           *mcp.Server
}

// NewServer creates an MCP server over cfg. Diagnostics go to logger,
// or to a file when logger is nil.
func NewServer(cfg *config.Config, logger *DiagnosticLogger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mcp server requires a configuration")
	}
	if logger == nil {
		logger = NewDiagnosticLogger(true)
	}

	s := &Server{
		cfg:              cfg,
		diagnosticLogger: logger,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "idgrep",
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	logger.Printf("MCP server initialized, search root %s", cfg.Search.Root)
	return s, nil
}

// Config returns the active configuration
func (s *Server) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// UpdateConfig swaps the configuration used by subsequent tool calls
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.diagnosticLogger.Printf("configuration reloaded from %s", cfg.Source)
}

func queriesSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: "Identifiers to search for. Variations of every query are pooled into one search.",
		Items: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {Type: "string", Description: "Identifier text, e.g. \"555-123-4567\" or \"John Smith\""},
				"type": {
					Type:        "string",
					Description: "Identifier kind",
					Enum:        []any{"phone", "email", "name", "generic"},
				},
			},
			Required: []string{"query"},
		},
	}
}

func searchSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"queries": queriesSchema(),
			"query":   {Type: "string", Description: "Shorthand for a single query"},
			"type": {
				Type:        "string",
				Description: "Kind of the shorthand query (default generic)",
				Enum:        []any{"phone", "email", "name", "generic"},
			},
			"search_path": {Type: "string", Description: "File or directory to search, relative to the search root (default \".\")"},
			"context":     {Type: "integer", Description: "Context lines around each match (default 1)"},
			"fold":        {Type: "boolean", Description: "Fold long lines around the match (default true)"},
			"include":     {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Only search files matching these globs"},
			"exclude":     {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Skip files matching these globs"},
			"max_results": {Type: "integer", Description: fmt.Sprintf("Maximum result lines returned (default %d)", DefaultMaxResults)},
		},
	}
}

// registerTools adds every tool to the MCP server
func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name: ToolSearchIdentifiers,
		Description: "Search files for a phone number, email, person name or other identifier in all its common spellings " +
			"(e.g. 555-123-4567, (555) 123-4567, 555.123.4567; \"John Smith\" and \"Smith, John\"). Returns matching lines with context.",
		InputSchema: searchSchema(),
	}, s.handleSearchIdentifiers)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolPreviewSearch,
		Description: "Show the ripgrep command and variations search_identifiers would use, without running it.",
		InputSchema: searchSchema(),
	}, s.handlePreviewSearch)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolExpandQuery,
		Description: "List the spellings generated for one identifier.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {Type: "string", Description: "Identifier text"},
				"type": {
					Type:        "string",
					Description: "Identifier kind (default generic)",
					Enum:        []any{"phone", "email", "name", "generic"},
				},
			},
			Required: []string{"query"},
		},
	}, s.handleExpandQuery)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolPathInfo,
		Description: "Report the size and file count of a search path and estimate how long a search takes.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"search_path":       {Type: "string", Description: "File or directory, relative to the search root (default \".\")"},
				"include":           {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
				"exclude":           {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
				"respect_gitignore": {Type: "boolean", Description: "Skip files ignored by the root .gitignore"},
			},
		},
	}, s.handlePathInfo)
}

// recoverFromPanic runs a tool handler, converting errors and panics into
// error results
func (s *Server) recoverFromPanic(operation string, handler func() (*mcp.CallToolResult, error)) (result *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.diagnosticLogger.Printf("PANIC RECOVERED in %s: %v", operation, r)
			s.diagnosticLogger.Printf("Stack trace: %s", debug.Stack())
			result, err = createErrorResponse(operation, fmt.Errorf("internal error: %v", r))
		}
	}()

	result, err = handler()
	if err != nil {
		s.diagnosticLogger.Printf("Error in %s: %v", operation, err)
		return createErrorResponse(operation, err)
	}
	return result, nil
}

// Start serves MCP over stdio until ctx is done or the client disconnects
func (s *Server) Start(ctx context.Context) error {
	s.diagnosticLogger.Printf("Starting MCP server with stdio transport")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves one session over t. Tests use it with in-memory transports.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

// HTTPHandler serves MCP over streamable HTTP
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// Shutdown releases the diagnostic log
func (s *Server) Shutdown(ctx context.Context) error {
	s.diagnosticLogger.Printf("MCP server shutdown complete")
	return s.diagnosticLogger.Close()
}
