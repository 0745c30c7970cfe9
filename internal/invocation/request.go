package invocation

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/idgrep/internal/errors"
	"github.com/standardbeagle/idgrep/internal/variation"
)

// Request is a search as submitted by a caller. Optional fields use
// pointers so an omitted value can be told apart from zero.
type Request struct {
	Queries    []variation.Query `json:"queries"`
	SearchPath string            `json:"search_path,omitempty"`
	Context    *int              `json:"context,omitempty"`
	Fold       *bool             `json:"fold,omitempty"`
	Include    []string          `json:"include,omitempty"`
	Exclude    []string          `json:"exclude,omitempty"`
}

// ContextLines returns the requested context, or def when omitted
func (r Request) ContextLines(def int) int {
	if r.Context == nil {
		return def
	}
	return *r.Context
}

// FoldLines reports whether long lines are folded (the default)
func (r Request) FoldLines() bool {
	return r.Fold == nil || *r.Fold
}

// Path returns the requested search path, "." when omitted
func (r Request) Path() string {
	if strings.TrimSpace(r.SearchPath) == "" {
		return "."
	}
	return r.SearchPath
}

// QueryTexts returns the query strings in submission order
func (r Request) QueryTexts() []string {
	out := make([]string, len(r.Queries))
	for i, q := range r.Queries {
		out[i] = q.Text
	}
	return out
}

// Validate checks the request shape. Kinds are normalized in place.
// Errors are *errors.RequestError.
func (r *Request) Validate(defaultContext, maxContext int) error {
	if len(r.Queries) == 0 {
		return errors.NewRequestError("queries", "at least one query is required")
	}
	for i := range r.Queries {
		q := &r.Queries[i]
		if strings.TrimSpace(q.Text) == "" {
			return errors.NewRequestError("queries", "query %d is blank", i)
		}
		kind, err := variation.ParseKind(string(q.Kind))
		if err != nil {
			return errors.NewRequestError("queries", "query %d: %v", i, err)
		}
		q.Kind = kind
	}

	if ctx := r.ContextLines(defaultContext); ctx < 0 || ctx > maxContext {
		return errors.NewRequestError("context", "must be between 0 and %d, got %d", maxContext, ctx)
	}

	for _, g := range r.Include {
		if err := validateGlob(g); err != nil {
			return errors.NewRequestError("include", "%v", err)
		}
	}
	for _, g := range r.Exclude {
		if err := validateGlob(g); err != nil {
			return errors.NewRequestError("exclude", "%v", err)
		}
	}
	return nil
}

func validateGlob(g string) error {
	if strings.TrimSpace(g) == "" {
		return errors.NewRequestError("", "glob cannot be blank")
	}
	if strings.HasPrefix(g, "!") {
		return errors.NewRequestError("", "glob %q must not start with '!'; use exclude instead", g)
	}
	if !doublestar.ValidatePattern(g) {
		return errors.NewRequestError("", "invalid glob %q", g)
	}
	return nil
}
