package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/alertscope/internal/model"
)

var timelineBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Background(lipgloss.Color("39"))

// TimelinePanel shows alert counts per calendar date, in the order the dates
// first appear in the data.
type TimelinePanel struct {
	points    []model.XY
	malformed int
}

// NewTimelinePanel creates a new timeline panel.
func NewTimelinePanel() *TimelinePanel {
	return &TimelinePanel{}
}

func (p *TimelinePanel) ID() string    { return "timeline" }
func (p *TimelinePanel) Title() string { return "Alerts over Time" }

func (p *TimelinePanel) SetSnapshot(snap *model.Snapshot) {
	p.points = append([]model.XY(nil), snap.Charts.TimeSeries...)
	p.malformed = snap.Result.Skipped.MalformedTimestamp
}

func (p *TimelinePanel) ContentLines(ctx ViewContext) int {
	if len(p.points) == 0 {
		return 1
	}
	return chartHeightFor(ctx)
}

func (p *TimelinePanel) Render(ctx ViewContext, width, height int, active bool) string {
	var stats string
	if len(p.points) > 0 {
		minY, maxY := p.points[0].Y, p.points[0].Y
		for _, pt := range p.points {
			minY = min(minY, pt.Y)
			maxY = max(maxY, pt.Y)
		}
		stats = fmt.Sprintf("Min: %d | Max: %d", minY, maxY)
	}
	title := headerWithStats(p.Title(), stats, width)

	var content string
	switch {
	case len(p.points) > 0:
		h := chartHeightFor(ctx)
		content = renderBars(p.points, width, h, func(int) lipgloss.Style { return timelineBarStyle }, p.legend(h))
	case ctx.Loading:
		content = renderLoadingPlaceholder(width-4, 1)
	default:
		content = helpStyle.Render("No dated alerts")
	}

	return panelFrame(width, height, active, title, content)
}

func (p *TimelinePanel) legend(height int) []string {
	gray := lipgloss.NewStyle().Foreground(ColorGray)
	white := lipgloss.NewStyle().Foreground(ColorWhite)

	first, last := p.points[0], p.points[len(p.points)-1]
	peak := first
	for _, pt := range p.points {
		if pt.Y > peak.Y {
			peak = pt
		}
	}

	lines := []string{
		gray.Render("First ") + white.Render(fmt.Sprintf("%-12s %6d", first.X, first.Y)),
		gray.Render("Last  ") + white.Render(fmt.Sprintf("%-12s %6d", last.X, last.Y)),
		gray.Render("Peak  ") + white.Render(fmt.Sprintf("%-12s %6d", peak.X, peak.Y)),
		gray.Render("Days  ") + white.Render(fmt.Sprintf("%d", len(p.points))),
	}
	if p.malformed > 0 {
		lines = append(lines, errorStyle.Render(fmt.Sprintf("%d bad timestamps", p.malformed)))
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return lines
}
