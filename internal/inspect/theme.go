package inspect

import "github.com/charmbracelet/lipgloss"

// Theme holds every style used by the text renderers.
type Theme struct {
	Title  lipgloss.Style
	Header lipgloss.Style
	Label  lipgloss.Style
	Dim    lipgloss.Style

	StatusOK      lipgloss.Style
	StatusRunning lipgloss.Style
	StatusFailed  lipgloss.Style
}

// NewDefaultTheme is used when writing to a terminal. lipgloss drops the
// colors on its own when the output is not a TTY.
func NewDefaultTheme() Theme {
	return Theme{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#874BFD")),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#61AFEF")),
		Label: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		Dim:   lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),

		StatusOK:      lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		StatusRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		StatusFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
	}
}

// PlainTheme renders without any styling.
func PlainTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{
		Title: plain, Header: plain, Label: plain, Dim: plain,
		StatusOK: plain, StatusRunning: plain, StatusFailed: plain,
	}
}

func (t Theme) status(s string) string {
	switch s {
	case "succeeded", "ok":
		return t.StatusOK.Render(s)
	case "running":
		return t.StatusRunning.Render(s)
	default:
		return t.StatusFailed.Render(s)
	}
}
