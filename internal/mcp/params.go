package mcp

import (
	"encoding/json"
	"strings"

	"github.com/standardbeagle/idgrep/internal/errors"
	"github.com/standardbeagle/idgrep/internal/invocation"
	"github.com/standardbeagle/idgrep/internal/variation"
)

// SearchParams are the arguments of search_identifiers and preview_search.
// A single query may be given inline with query/type instead of queries.
type SearchParams struct {
	Queries    []variation.Query `json:"queries,omitempty"`
	Query      string            `json:"query,omitempty"`
	Type       string            `json:"type,omitempty"`
	SearchPath string            `json:"search_path,omitempty"`
	Context    *int              `json:"context,omitempty"`
	Fold       *bool             `json:"fold,omitempty"`
	Include    []string          `json:"include,omitempty"`
	Exclude    []string          `json:"exclude,omitempty"`
	MaxResults int               `json:"max_results,omitempty"`

	Warnings []UnknownField `json:"-"`
}

var searchParamFields = map[string]struct{}{
	"queries": {}, "query": {}, "type": {}, "search_path": {}, "context": {},
	"fold": {}, "include": {}, "exclude": {}, "max_results": {},
}

var queryFields = map[string]map[string]struct{}{
	"queries": {"query": {}, "type": {}},
}

// UnmarshalJSON accepts unknown fields, recording them as warnings
func (p *SearchParams) UnmarshalJSON(data []byte) error {
	type Alias SearchParams
	_, warnings, err := collectUnknownFields(data, searchParamFields, queryFields)
	if err != nil {
		return err
	}
	var alias Alias
	if len(data) > 0 {
		if err := json.Unmarshal(data, &alias); err != nil {
			return err
		}
	}
	*p = SearchParams(alias)
	p.Warnings = warnings
	return nil
}

// toRequest converts the arguments to a search request. Validation of the
// request itself happens when it is built.
func (p *SearchParams) toRequest() (*invocation.Request, error) {
	queries := append([]variation.Query(nil), p.Queries...)
	if strings.TrimSpace(p.Query) != "" {
		kind := variation.Kind(p.Type)
		if kind == "" {
			kind = variation.KindGeneric
		}
		queries = append(queries, variation.Query{Text: p.Query, Kind: kind})
	} else if p.Type != "" && len(p.Queries) == 0 {
		return nil, errors.NewRequestError("type", "%q given without a query", p.Type)
	}
	for i := range queries {
		if queries[i].Kind == "" {
			queries[i].Kind = variation.KindGeneric
		}
	}

	return &invocation.Request{
		Queries:    queries,
		SearchPath: p.SearchPath,
		Context:    p.Context,
		Fold:       p.Fold,
		Include:    p.Include,
		Exclude:    p.Exclude,
	}, nil
}

// maxResults resolves the result cap
func (p *SearchParams) maxResults() int {
	switch {
	case p.MaxResults <= 0:
		return DefaultMaxResults
	case p.MaxResults > MaxResultsCeiling:
		return MaxResultsCeiling
	default:
		return p.MaxResults
	}
}

// ExpandParams are the arguments of expand_query
type ExpandParams struct {
	Query string `json:"query"`
	Type  string `json:"type,omitempty"`

	Warnings []UnknownField `json:"-"`
}

var expandParamFields = map[string]struct{}{"query": {}, "type": {}}

// UnmarshalJSON accepts unknown fields, recording them as warnings
func (p *ExpandParams) UnmarshalJSON(data []byte) error {
	type Alias ExpandParams
	_, warnings, err := collectUnknownFields(data, expandParamFields, nil)
	if err != nil {
		return err
	}
	var alias Alias
	if len(data) > 0 {
		if err := json.Unmarshal(data, &alias); err != nil {
			return err
		}
	}
	*p = ExpandParams(alias)
	p.Warnings = warnings
	return nil
}

// PathInfoParams are the arguments of path_info
type PathInfoParams struct {
	SearchPath       string   `json:"search_path,omitempty"`
	Include          []string `json:"include,omitempty"`
	Exclude          []string `json:"exclude,omitempty"`
	RespectGitignore bool     `json:"respect_gitignore,omitempty"`
}
