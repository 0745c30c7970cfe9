package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/idgrep/internal/errors"
	"github.com/standardbeagle/idgrep/internal/invocation"
	"github.com/standardbeagle/idgrep/internal/pathinfo"
	"github.com/standardbeagle/idgrep/internal/pattern"
	"github.com/standardbeagle/idgrep/internal/rgjson"
	"github.com/standardbeagle/idgrep/internal/session"
	"github.com/standardbeagle/idgrep/internal/variation"
)

// SearchResponse is the search_identifiers result
type SearchResponse struct {
	Matches         []rgjson.Record `json:"matches"`
	TotalMatches    int             `json:"total_matches"`
	Returned        int             `json:"returned"`
	Truncated       bool            `json:"truncated,omitempty"`
	OriginalQuery   []string        `json:"original_query"`
	Variations      []string        `json:"variations"`
	CommandExecuted string          `json:"command_executed"`
	SessionID       string          `json:"session_id"`
	Warnings        []UnknownField  `json:"warnings,omitempty"`
}

// PreviewResponse is the preview_search result
type PreviewResponse struct {
	CommandExecuted string         `json:"command_executed"`
	Variations      []string       `json:"variations"`
	Wildcards       []string       `json:"wildcards,omitempty"`
	Fingerprint     string         `json:"fingerprint"`
	Warnings        []UnknownField `json:"warnings,omitempty"`
}

// ExpandResponse is the expand_query result
type ExpandResponse struct {
	Query      string         `json:"query"`
	Type       variation.Kind `json:"type"`
	Shape      string         `json:"shape"`
	Variations []string       `json:"variations"`
	Wildcards  []string       `json:"wildcards,omitempty"`
	Warnings   []UnknownField `json:"warnings,omitempty"`
}

func decodeArgs(req *mcp.CallToolRequest, v any) error {
	var raw json.RawMessage
	if req != nil && req.Params != nil {
		raw = req.Params.Arguments
	}
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.NewRequestError("", "invalid arguments: %v", err)
	}
	return nil
}

// sessionSink buffers a stream up to a record limit while still counting
// every match
type sessionSink struct {
	limit int
	resp  *SearchResponse
}

func (k *sessionSink) Emit(ev session.Event) error {
	switch e := ev.(type) {
	case *session.PreviewEvent:
		k.resp.Variations = e.Variations
		k.resp.CommandExecuted = e.CommandExecuted
		k.resp.SessionID = e.SessionID
	case *session.LineEvent:
		if len(k.resp.Matches) < k.limit {
			k.resp.Matches = append(k.resp.Matches, e.Record)
		} else {
			k.resp.Truncated = true
		}
	case *session.DoneEvent:
		k.resp.TotalMatches = e.TotalMatches
		k.resp.OriginalQuery = e.OriginalQuery
	}
	return nil
}

func (s *Server) handleSearchIdentifiers(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic(ToolSearchIdentifiers, func() (*mcp.CallToolResult, error) {
		var params SearchParams
		if err := decodeArgs(req, &params); err != nil {
			return nil, err
		}
		sreq, err := params.toRequest()
		if err != nil {
			return nil, err
		}

		sess, err := session.New(s.Config(), sreq)
		if err != nil {
			return nil, err
		}
		resp := &SearchResponse{Matches: []rgjson.Record{}, Warnings: params.Warnings}
		if err := sess.Stream(ctx, &sessionSink{limit: params.maxResults(), resp: resp}); err != nil {
			return nil, err
		}
		resp.Returned = len(resp.Matches)
		s.diagnosticLogger.Printf("%s %s: %d matches, %d lines returned",
			ToolSearchIdentifiers, sess.ID, resp.TotalMatches, resp.Returned)
		return createJSONResponse(resp)
	})
}

func (s *Server) handlePreviewSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic(ToolPreviewSearch, func() (*mcp.CallToolResult, error) {
		var params SearchParams
		if err := decodeArgs(req, &params); err != nil {
			return nil, err
		}
		sreq, err := params.toRequest()
		if err != nil {
			return nil, err
		}
		inv, err := invocation.NewBuilder(s.Config()).Build(sreq)
		if err != nil {
			return nil, err
		}
		return createJSONResponse(PreviewResponse{
			CommandExecuted: invocation.Render(inv),
			Variations:      inv.Variations,
			Wildcards:       inv.Wildcards,
			Fingerprint:     inv.FingerprintHex(),
			Warnings:        params.Warnings,
		})
	})
}

func (s *Server) handleExpandQuery(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic(ToolExpandQuery, func() (*mcp.CallToolResult, error) {
		var params ExpandParams
		if err := decodeArgs(req, &params); err != nil {
			return nil, err
		}
		kindText := params.Type
		if kindText == "" {
			kindText = string(variation.KindGeneric)
		}
		kind, err := variation.ParseKind(kindText)
		if err != nil {
			return nil, errors.NewRequestError("type", "%v", err)
		}
		q := variation.Query{Text: params.Query, Kind: kind}
		if err := (&invocation.Request{Queries: []variation.Query{q}}).Validate(0, 0); err != nil {
			return nil, err
		}

		resp := ExpandResponse{
			Query:      params.Query,
			Type:       kind,
			Shape:      variation.Classify(params.Query).String(),
			Variations: variation.Generate(params.Query, kind).Sorted(),
			Warnings:   params.Warnings,
		}
		if variation.IsNameShaped(q) {
			first, last, _ := variation.NameParts(params.Query)
			resp.Wildcards = pattern.NameWildcards(first, last)
		}
		return createJSONResponse(resp)
	})
}

func (s *Server) handlePathInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic(ToolPathInfo, func() (*mcp.CallToolResult, error) {
		var params PathInfoParams
		if err := decodeArgs(req, &params); err != nil {
			return nil, err
		}
		opts := pathinfo.OptionsFromConfig(s.Config())
		opts.Include = params.Include
		opts.Exclude = params.Exclude
		opts.RespectGitignore = params.RespectGitignore

		info, err := pathinfo.Stat(params.SearchPath, opts)
		if err != nil {
			return nil, err
		}
		return createJSONResponse(info)
	})
}
