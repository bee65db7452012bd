package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorNavy   = lipgloss.Color("#1B1F3B")
	ColorBlue   = lipgloss.Color("#5FAFFF")
	ColorGray   = lipgloss.Color("245")
	ColorWhite  = lipgloss.Color("255")
	ColorGreen  = lipgloss.Color("#44FF44")
	ColorYellow = lipgloss.Color("#FFAA00")
	ColorRed    = lipgloss.Color("#FF6666")
)

// barPalette colors consecutive keys in the bar and distribution panels.
var barPalette = []lipgloss.Color{"39", "208", "196", "201", "214", "12", "9", "118", "220", "141"}

var (
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1)

	activeSectionStyle = sectionStyle.
				BorderForeground(ColorBlue)

	chartTitleStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Italic(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(ColorWhite)

	errorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)
)

func paletteStyle(i int) lipgloss.Style {
	c := barPalette[i%len(barPalette)]
	return lipgloss.NewStyle().Foreground(c).Background(c)
}

func paletteText(i int) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(barPalette[i%len(barPalette)])
}

// truncate shortens s to at most width cells, marking the cut with "...".
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if width <= 3 {
		return string(runes[:min(width, len(runes))])
	}
	for len(runes) > 0 && lipgloss.Width(string(runes))+3 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
