package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const helpText = `Alert Dashboard

PANELS:
  Alerts by Source IP  - one bar per source IP, in order of first appearance
  Alert Categories     - share of each category
  Alerts over Time     - one bar per calendar date, in order of first appearance

Records missing a field are left out of that panel only. Timestamps without
a date/time separator are counted as bad timestamps on the timeline panel.

A failed reload keeps the previous charts on screen and shows the error in
the status line.`

// HelpPage shows key bindings and a short description of the panels.
type HelpPage struct {
	keys KeyMap
	help help.Model
}

// NewHelpPage creates the help page.
func NewHelpPage() *HelpPage {
	h := help.New()
	h.ShowAll = true
	return &HelpPage{keys: DefaultKeyMap(), help: h}
}

func (p *HelpPage) ID() string    { return HelpPageID }
func (p *HelpPage) Init() tea.Cmd { return nil }

func (p *HelpPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil, nil
	}
	switch {
	case key.Matches(km, p.keys.Quit), key.Matches(km, p.keys.ForceQuit):
		return tea.Quit, nil
	case key.Matches(km, p.keys.Help), key.Matches(km, p.keys.Escape):
		return nil, &PageNav{PageID: DashboardPageID}
	}
	return nil, nil
}

func (p *HelpPage) View(width, height int) string {
	if width <= 0 {
		width = 80
	}
	modalWidth := min(width-4, 84)
	p.help.Width = modalWidth - 4

	header := lipgloss.NewStyle().
		Foreground(ColorBlue).
		Bold(true).
		Render("Help")
	body := lipgloss.NewStyle().Foreground(ColorWhite).Render(helpText)
	footer := helpStyle.Render("?/esc: back to dashboard")

	modal := lipgloss.NewStyle().
		Width(modalWidth).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBlue).
		Padding(0, 1).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", p.help.View(p.keys), "", footer))

	if height <= 0 {
		return modal
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modal)
}
