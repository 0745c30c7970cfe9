package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/idgrep/internal/display"
	"github.com/standardbeagle/idgrep/internal/invocation"
	"github.com/standardbeagle/idgrep/internal/pathinfo"
	"github.com/standardbeagle/idgrep/internal/pattern"
	"github.com/standardbeagle/idgrep/internal/server"
	"github.com/standardbeagle/idgrep/internal/session"
	"github.com/standardbeagle/idgrep/internal/variation"
)

// errNoMatches is returned by a search that completed without a match so
// the process exits 1 like grep
var errNoMatches = errors.New("no matches")

// buildRequest turns command flags and arguments into a search request
func buildRequest(c *cli.Context) (*invocation.Request, error) {
	kind, err := variation.ParseKind(c.String("type"))
	if err != nil {
		return nil, err
	}

	var queries []variation.Query
	for _, text := range c.Args().Slice() {
		queries = append(queries, variation.Query{Text: text, Kind: kind})
	}
	for _, flagKind := range []variation.Kind{variation.KindPhone, variation.KindEmail, variation.KindName} {
		for _, text := range c.StringSlice(string(flagKind)) {
			queries = append(queries, variation.Query{Text: text, Kind: flagKind})
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("at least one query is required (see --help)")
	}

	req := &invocation.Request{
		Queries:    queries,
		SearchPath: c.String("path"),
		Include:    c.StringSlice("include"),
		Exclude:    c.StringSlice("exclude"),
	}
	if n := c.Int("context"); n >= 0 {
		req.Context = &n
	}
	if c.Bool("no-fold") {
		fold := false
		req.Fold = &fold
	}
	return req, nil
}

// countingSink forwards events and remembers the final match count
type countingSink struct {
	next  session.Sink
	total int
	done  bool
}

func (s *countingSink) Emit(ev session.Event) error {
	if d, ok := ev.(*session.DoneEvent); ok {
		s.total = d.TotalMatches
		s.done = true
	}
	return s.next.Emit(ev)
}

func searchCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	req, err := buildRequest(c)
	if err != nil {
		return err
	}

	var out session.Sink
	if c.Bool("json") {
		out = display.NewJSONSink(c.App.Writer)
	} else {
		printer, err := newPrinter(c, c.App.Writer, cfg.Search.Root)
		if err != nil {
			return err
		}
		out = printer
	}
	sink := &countingSink{next: out}

	ctx, cancel := signalContext()
	defer cancel()

	if c.Bool("remote") {
		client := server.NewClient(cfg.Server.Listen)
		defer client.CloseIdleConnections()
		if err := client.Stream(ctx, req, sink.Emit); err != nil {
			return err
		}
	} else {
		sess, err := session.New(cfg, req)
		if err != nil {
			return err
		}
		if err := sess.Stream(ctx, sink); err != nil {
			if errors.Is(err, session.ErrCancelled) {
				return fmt.Errorf("search interrupted")
			}
			return err
		}
	}

	if sink.done && sink.total == 0 {
		return errNoMatches
	}
	return nil
}

func previewCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	req, err := buildRequest(c)
	if err != nil {
		return err
	}
	inv, err := invocation.NewBuilder(cfg).Build(req)
	if err != nil {
		return err
	}

	resp := server.PreviewResponse{CommandExecuted: invocation.Render(inv), Variations: inv.Variations}
	if c.Bool("json") {
		return writeJSON(c.App.Writer, resp)
	}
	printer, err := newPrinter(c, c.App.Writer, cfg.Search.Root)
	if err != nil {
		return err
	}
	printer.Command(resp.CommandExecuted, append(append([]string(nil), resp.Variations...), inv.Wildcards...))
	return nil
}

func expandCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expand takes exactly one query")
	}
	text := c.Args().First()
	kind, err := variation.ParseKind(c.String("type"))
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("query cannot be blank")
	}

	w := c.App.Writer
	for _, v := range variation.Generate(text, kind).Sorted() {
		fmt.Fprintln(w, v)
	}
	q := variation.Query{Text: text, Kind: kind}
	if variation.IsNameShaped(q) {
		first, last, _ := variation.NameParts(text)
		for _, wc := range pattern.NameWildcards(first, last) {
			fmt.Fprintf(w, "/%s/\n", wc)
		}
	}
	return nil
}

func pathInfoCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	target := c.Args().First()
	if target == "" {
		target = "."
	}

	opts := pathinfo.OptionsFromConfig(cfg)
	opts.Include = c.StringSlice("include")
	opts.Exclude = c.StringSlice("exclude")
	opts.RespectGitignore = c.Bool("gitignore")

	info, err := pathinfo.Stat(target, opts)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return writeJSON(c.App.Writer, info)
	}
	printer, err := newPrinter(c, c.App.Writer, cfg.Search.Root)
	if err != nil {
		return err
	}
	printer.PathInfo(info)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
