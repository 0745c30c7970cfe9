package mcp

// Tool names
const (
	ToolSearchIdentifiers = "search_identifiers"
	ToolPreviewSearch     = "preview_search"
	ToolExpandQuery       = "expand_query"
	ToolPathInfo          = "path_info"
)

// Result limits for tool responses
const (
	// DefaultMaxResults caps the records returned by search_identifiers
	// when the caller does not say otherwise. Larger outputs crowd the
	// model's context window.
	DefaultMaxResults = 200

	// MaxResultsCeiling is the most a caller may ask for
	MaxResultsCeiling = 5000
)
