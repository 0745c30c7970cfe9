// Package display renders search results for people. Output follows grep
// conventions: "path:line:text" for matches and "path-line-text" for
// context. By default color is used only when the writer is a terminal.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/standardbeagle/idgrep/internal/pathinfo"
	"github.com/standardbeagle/idgrep/internal/rgjson"
	"github.com/standardbeagle/idgrep/internal/session"
	"github.com/standardbeagle/idgrep/pkg/pathutil"
)

// ColorMode selects when output is styled
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode converts a flag value into a ColorMode
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ColorAuto, nil
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	default:
		return "", fmt.Errorf("unknown color mode %q (want auto, always or never)", s)
	}
}

// Options controls a Printer
type Options struct {
	Color   ColorMode
	Verbose bool   // Print the command line and variations before results
	Root    string // Result paths under Root are printed relative to it
}

// Printer writes human readable search output. It implements
// session.Sink so a stream can be printed as it arrives.
type Printer struct {
	w       io.Writer
	styled  bool
	styles  Styles
	verbose bool
	root    string

	variations []string // Highlighted in match lines
}

// NewPrinter creates a printer writing to w
func NewPrinter(w io.Writer, opts Options) *Printer {
	p := &Printer{w: w, verbose: opts.Verbose, root: opts.Root}
	switch opts.Color {
	case ColorAlways:
		p.styled = true
	case ColorNever:
		p.styled = false
	default:
		p.styled = isTerminal(w)
	}
	if p.styled {
		r := lipgloss.NewRenderer(w)
		if opts.Color == ColorAlways {
			r.SetColorProfile(termenv.ANSI256)
		}
		p.styles = newStyles(r)
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *Printer) paint(style lipgloss.Style, s string) string {
	if !p.styled || s == "" {
		return s
	}
	return style.Render(s)
}

// Emit prints one stream event
func (p *Printer) Emit(ev session.Event) error {
	switch e := ev.(type) {
	case *session.PreviewEvent:
		p.Preview(e.CommandExecuted, e.Variations)
	case *session.LineEvent:
		p.Line(e.Record)
	case *session.DoneEvent:
		p.Summary(e.TotalMatches, e.OriginalQuery)
	}
	return nil
}

// Preview remembers the variations for highlighting and, when verbose,
// prints the command line and the variations
func (p *Printer) Preview(command string, variations []string) {
	p.variations = variations
	if !p.verbose {
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.paint(p.styles.Header, "$"), command)
	fmt.Fprintf(p.w, "%s %s\n", p.paint(p.styles.Header, "variations:"), strings.Join(variations, ", "))
}

// Line prints one result line
func (p *Printer) Line(rec rgjson.Record) {
	rec = pathutil.ToRelativeRecord(rec, p.root)
	sep := "-"
	content := p.paint(p.styles.Context, rec.Content)
	if rec.IsMatch {
		sep = ":"
		content = p.highlight(rec.Content)
	}
	fmt.Fprintf(p.w, "%s%s%s%s%s\n",
		p.paint(p.styles.Path, rec.FilePath), sep,
		p.paint(p.styles.LineNum, fmt.Sprint(rec.LineNumber)), sep,
		content)
}

// Summary prints the closing line of a search
func (p *Printer) Summary(total int, queries []string) {
	noun := "matches"
	if total == 1 {
		noun = "match"
	}
	line := fmt.Sprintf("%d %s for %s", total, noun, strings.Join(quoteAll(queries), ", "))
	if total == 0 {
		fmt.Fprintln(p.w, p.paint(p.styles.Warning, line))
		return
	}
	fmt.Fprintln(p.w, p.paint(p.styles.Summary, line))
}

// Outcome prints a batch result
func (p *Printer) Outcome(o *session.Outcome) {
	p.Preview(o.CommandExecuted, o.Variations)
	for _, rec := range o.Matches {
		p.Line(rec)
	}
	p.Summary(o.TotalMatches, o.OriginalQuery)
}

// Command prints a command line and its variations without running it
func (p *Printer) Command(command string, variations []string) {
	fmt.Fprintln(p.w, command)
	for _, v := range variations {
		fmt.Fprintf(p.w, "  %s\n", p.paint(p.styles.Context, v))
	}
}

// PathInfo prints a path size report
func (p *Printer) PathInfo(info *pathinfo.Info) {
	fmt.Fprintf(p.w, "%s\n", p.paint(p.styles.Path, info.ResolvedPath))
	fmt.Fprintf(p.w, "  files: %d\n", info.FileCount)
	fmt.Fprintf(p.w, "  size:  %s\n", HumanBytes(info.TotalSizeBytes))
	fmt.Fprintf(p.w, "  est. search time: %.2fs\n", info.EstSearchSeconds)
}

// highlight styles every case-insensitive occurrence of a variation,
// preferring the longest at each position
func (p *Printer) highlight(content string) string {
	if !p.styled || len(p.variations) == 0 {
		return content
	}
	spans := findSpans(content, p.variations)
	if len(spans) == 0 {
		return content
	}

	var sb strings.Builder
	last := 0
	for _, sp := range spans {
		sb.WriteString(content[last:sp[0]])
		sb.WriteString(p.styles.Match.Render(content[sp[0]:sp[1]]))
		last = sp[1]
	}
	sb.WriteString(content[last:])
	return sb.String()
}

// findSpans returns non-overlapping [start, end) byte ranges of the
// variations inside content, ignoring ASCII case
func findSpans(content string, variations []string) [][2]int {
	needles := make([]string, 0, len(variations))
	for _, v := range variations {
		if v != "" {
			needles = append(needles, asciiLower(v))
		}
	}
	sort.Slice(needles, func(i, j int) bool { return len(needles[i]) > len(needles[j]) })

	lower := asciiLower(content)
	var spans [][2]int
	for i := 0; i < len(lower); {
		matched := 0
		for _, n := range needles {
			if strings.HasPrefix(lower[i:], n) {
				matched = len(n)
				break
			}
		}
		if matched == 0 {
			i++
			continue
		}
		spans = append(spans, [2]int{i, i + matched})
		i += matched
	}
	return spans
}

// asciiLower lowercases ASCII letters only so byte offsets stay aligned
// with the original string
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func quoteAll(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}

// HumanBytes formats a byte count with binary units
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// JSONSink writes each event as one NDJSON line, the same encoding the
// server streams
type JSONSink struct {
	enc *json.Encoder
}

// NewJSONSink creates a sink writing to w
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

// Emit writes ev followed by a newline
func (s *JSONSink) Emit(ev session.Event) error {
	return s.enc.Encode(ev)
}
