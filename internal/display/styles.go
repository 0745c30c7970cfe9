package display

import "github.com/charmbracelet/lipgloss"

var (
	colorPath    = lipgloss.Color("#A78BFA")
	colorLineNum = lipgloss.Color("#10B981")
	colorMuted   = lipgloss.Color("#6B7280")
	colorWarning = lipgloss.Color("#F59E0B")
	colorMatchFg = lipgloss.Color("#FCD34D")
	colorMatchBg = lipgloss.Color("#78350F")
)

// Styles holds the styles used by a colored Printer
type Styles struct {
	Path    lipgloss.Style
	LineNum lipgloss.Style
	Match   lipgloss.Style
	Context lipgloss.Style
	Header  lipgloss.Style
	Summary lipgloss.Style
	Warning lipgloss.Style
}

// newStyles builds styles bound to r so color detection follows the
// printer's writer instead of stdout
func newStyles(r *lipgloss.Renderer) Styles {
	// Result lines are printed as found; tabs stay tabs.
	base := r.NewStyle().TabWidth(lipgloss.NoTabConversion)
	return Styles{
		Path:    base.Foreground(colorPath),
		LineNum: base.Foreground(colorLineNum),
		Match:   base.Bold(true).Foreground(colorMatchFg).Background(colorMatchBg),
		Context: base.Foreground(colorMuted),
		Header:  base.Bold(true),
		Summary: base.Foreground(colorLineNum),
		Warning: base.Foreground(colorWarning),
	}
}
