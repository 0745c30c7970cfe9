package server

import (
	"github.com/standardbeagle/idgrep/internal/invocation"
)

// HTTP request/response types shared by SearchServer and Client

// SearchRequest is the body of /search, /search/stream and /search/preview
type SearchRequest = invocation.Request

// PreviewResponse describes the command a search would run
type PreviewResponse struct {
	CommandExecuted string   `json:"command_executed"`
	Variations      []string `json:"variations"`
}

// PathInfoRequest asks for the size of a search target
type PathInfoRequest struct {
	SearchPath       string   `json:"search_path,omitempty"`
	Include          []string `json:"include,omitempty"`
	Exclude          []string `json:"exclude,omitempty"`
	RespectGitignore bool     `json:"respect_gitignore,omitempty"`
}

// PingResponse contains server health information
type PingResponse struct {
	Status  string  `json:"status"`
	Uptime  float64 `json:"uptime"`
	Version string  `json:"version"`
	BuildID string  `json:"build_id"`
}

// ShutdownResponse confirms shutdown
type ShutdownResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Response headers
const (
	HeaderFingerprint = "X-Idgrep-Fingerprint"
	HeaderSessionID   = "X-Idgrep-Session"

	contentTypeJSON   = "application/json"
	contentTypeNDJSON = "application/x-ndjson"
)
