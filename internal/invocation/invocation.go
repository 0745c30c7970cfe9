// Package invocation assembles the ripgrep command line for a request.
//
// Every literal variation is regex-escaped and passed as its own `-e`
// argument; name wildcards follow as raw patterns. Arguments are always a
// discrete argv list and never pass through a shell.
package invocation

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/idgrep/internal/config"
	"github.com/standardbeagle/idgrep/internal/debug"
	"github.com/standardbeagle/idgrep/internal/pattern"
	"github.com/standardbeagle/idgrep/internal/security"
	"github.com/standardbeagle/idgrep/internal/variation"
)

// Invocation is a fully built engine command
type Invocation struct {
	Binary     string
	Args       []string
	Variations []string // Pooled literal variations, sorted
	Wildcards  []string // Name wildcard regexes, in query order
	Path       string   // Canonical search path
	Context    int
}

// Argv returns the binary followed by its arguments
func (inv *Invocation) Argv() []string {
	return append([]string{inv.Binary}, inv.Args...)
}

// Fingerprint identifies the command for log correlation
func (inv *Invocation) Fingerprint() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(inv.Binary)
	for _, a := range inv.Args {
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(a)
	}
	return d.Sum64()
}

// FingerprintHex is Fingerprint as fixed-width hex
func (inv *Invocation) FingerprintHex() string {
	s := strconv.FormatUint(inv.Fingerprint(), 16)
	return strings.Repeat("0", 16-len(s)) + s
}

// Builder turns requests into invocations under one configuration
type Builder struct {
	Binary         string
	MaxCount       int
	DefaultContext int
	MaxContext     int
	Paths          *security.PathValidator
}

// NewBuilder creates a builder from the search and security settings
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{
		Binary:         cfg.Search.Binary,
		MaxCount:       cfg.Search.MaxCount,
		DefaultContext: cfg.Search.DefaultContext,
		MaxContext:     cfg.Search.MaxContext,
		Paths:          security.NewPathValidator(cfg.Search.Root, cfg.Security.ForbiddenPrefixes),
	}
}

// Build validates req and produces the command that would run it.
// Nothing is executed. Request problems are *errors.RequestError and path
// rejections are *errors.PathError.
func (b *Builder) Build(req *Request) (*Invocation, error) {
	if err := req.Validate(b.DefaultContext, b.MaxContext); err != nil {
		return nil, err
	}

	path, err := b.Paths.Validate(req.Path())
	if err != nil {
		return nil, err
	}

	pooled := variation.NewSet()
	var wildcards []string
	seenWildcard := make(map[string]bool)
	for _, q := range req.Queries {
		pooled.Union(variation.Generate(q.Text, q.Kind))

		if !variation.IsNameShaped(q) {
			continue
		}
		first, last, _ := variation.NameParts(q.Text)
		for _, w := range pattern.NameWildcards(first, last) {
			if !seenWildcard[w] {
				seenWildcard[w] = true
				wildcards = append(wildcards, w)
			}
		}
	}
	variations := pooled.Sorted()
	context := req.ContextLines(b.DefaultContext)

	args := []string{"--json", "-i", "--max-count", strconv.Itoa(b.MaxCount)}
	for _, v := range variations {
		args = append(args, "-e", pattern.Escape(v))
	}
	for _, w := range wildcards {
		args = append(args, "-e", w)
	}
	for _, g := range req.Include {
		args = append(args, "-g", g)
	}
	for _, g := range req.Exclude {
		args = append(args, "-g", "!"+g)
	}
	args = append(args, "-C", strconv.Itoa(context), path)

	inv := &Invocation{
		Binary:     b.Binary,
		Args:       args,
		Variations: variations,
		Wildcards:  wildcards,
		Path:       path,
		Context:    context,
	}
	debug.LogSearch("built invocation %s: %d variations, %d wildcards, path %s",
		inv.FingerprintHex(), len(variations), len(wildcards), path)
	return inv, nil
}

// Render formats an invocation for display. The value following each -e is
// single-quoted; other arguments are double-quoted only when they contain a
// space. The result is not meant to be pasted into a shell.
func Render(inv *Invocation) string {
	argv := inv.Argv()
	out := make([]string, 0, len(argv))
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if arg == "-e" && i > 0 {
			out = append(out, "-e")
			if i+1 < len(argv) {
				out = append(out, "'"+argv[i+1]+"'")
				i++
			}
			continue
		}
		if strings.Contains(arg, " ") {
			out = append(out, `"`+arg+`"`)
		} else {
			out = append(out, arg)
		}
	}
	return strings.Join(out, " ")
}
