package output

import "github.com/charmbracelet/lipgloss"

// Color palette. Single accent color, muted support colors.
const (
	ColorAccent   = "45"  // cyan accent for SKUs and headers
	ColorWhite    = "255" // primary text
	ColorGray     = "245" // secondary text, labels
	ColorDarkGray = "238" // separators
	ColorRed      = "196" // errors
	ColorYellow   = "220" // warnings, suggestions
	ColorGreen    = "78"  // success
)

// Styles holds the render styles for result output.
type Styles struct {
	Header     lipgloss.Style
	SKU        lipgloss.Style
	Label      lipgloss.Style
	Dim        lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	Error      lipgloss.Style
	Suggestion lipgloss.Style
}

// DefaultStyles returns styled components for terminal output.
func DefaultStyles() Styles {
	return Styles{
		Header:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		SKU:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Label:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Dim:        lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Success:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
		Warning:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Suggestion: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
	}
}

// NoColorStyles returns unstyled components for plain mode (pipes, CI).
func NoColorStyles() Styles {
	return Styles{
		Header:     lipgloss.NewStyle(),
		SKU:        lipgloss.NewStyle(),
		Label:      lipgloss.NewStyle(),
		Dim:        lipgloss.NewStyle(),
		Success:    lipgloss.NewStyle(),
		Warning:    lipgloss.NewStyle(),
		Error:      lipgloss.NewStyle(),
		Suggestion: lipgloss.NewStyle(),
	}
}
