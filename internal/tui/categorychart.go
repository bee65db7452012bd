package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/alertscope/internal/model"
)

const categoryBarWidth = 12

// CategoryPanel shows the share of each alert category as percentage bars.
type CategoryPanel struct {
	slices  []model.LabelValue
	total   int
	skipped int
}

// NewCategoryPanel creates a new category distribution panel.
func NewCategoryPanel() *CategoryPanel {
	return &CategoryPanel{}
}

func (p *CategoryPanel) ID() string    { return "category" }
func (p *CategoryPanel) Title() string { return "Alert Categories" }

func (p *CategoryPanel) SetSnapshot(snap *model.Snapshot) {
	p.slices = append([]model.LabelValue(nil), snap.Charts.Pie...)
	p.total = 0
	for _, s := range p.slices {
		p.total += s.Values
	}
	p.skipped = snap.Result.Skipped.Category
}

func (p *CategoryPanel) ContentLines(ctx ViewContext) int {
	if len(p.slices) == 0 {
		return 1
	}
	return min(len(p.slices), chartHeightFor(ctx))
}

func (p *CategoryPanel) Render(ctx ViewContext, width, height int, active bool) string {
	var stats string
	if len(p.slices) > 0 {
		stats = fmt.Sprintf("%d categories", len(p.slices))
		if p.skipped > 0 {
			stats += fmt.Sprintf(" | %d uncategorized", p.skipped)
		}
	}
	title := headerWithStats(p.Title(), stats, width)

	var content string
	switch {
	case len(p.slices) > 0:
		content = p.renderContent(width, p.ContentLines(ctx))
	case ctx.Loading:
		content = renderLoadingPlaceholder(width-4, 1)
	default:
		content = helpStyle.Render("No categorized alerts")
	}

	return panelFrame(width, height, active, title, content)
}

func (p *CategoryPanel) renderContent(width, rows int) string {
	labelWidth := width - categoryBarWidth - 24
	if labelWidth < 8 {
		labelWidth = 8
	}

	maxCount := 0
	for _, s := range p.slices {
		maxCount = max(maxCount, s.Values)
	}

	gray := lipgloss.NewStyle().Foreground(ColorGray)
	white := lipgloss.NewStyle().Foreground(ColorWhite)

	var lines []string
	for i, s := range p.slices {
		if i >= rows {
			break
		}
		if i == rows-1 && len(p.slices) > rows {
			rest := 0
			for _, r := range p.slices[i:] {
				rest += r.Values
			}
			lines = append(lines, gray.Render(fmt.Sprintf("+%d more categories (%d alerts)", len(p.slices)-i, rest)))
			break
		}

		fill := 0
		if maxCount > 0 {
			fill = s.Values * categoryBarWidth / maxCount
		}
		if fill == 0 && s.Values > 0 {
			fill = 1
		}
		bar := strings.Repeat("█", fill) + strings.Repeat("░", categoryBarWidth-fill)

		pct := 0.0
		if p.total > 0 {
			pct = float64(s.Values) * 100 / float64(p.total)
		}

		label := s.Labels
		if label == "" {
			label = "(empty)"
		}

		lines = append(lines, fmt.Sprintf("%s %s %s │ %s",
			paletteText(i).Render(bar),
			gray.Render(fmt.Sprintf("%5.1f%%", pct)),
			gray.Render(fmt.Sprintf("%6d", s.Values)),
			white.Render(truncate(label, labelWidth)),
		))
	}
	return strings.Join(lines, "\n")
}
