package tui

import (
	"fmt"

	"github.com/tinytelemetry/alertscope/internal/model"
)

// SourceIPPanel shows alert counts per source IP as a bar chart.
type SourceIPPanel struct {
	points  []model.XY
	skipped int
}

// NewSourceIPPanel creates a new source IP panel.
func NewSourceIPPanel() *SourceIPPanel {
	return &SourceIPPanel{}
}

func (p *SourceIPPanel) ID() string    { return "source-ip" }
func (p *SourceIPPanel) Title() string { return "Alerts by Source IP" }

func (p *SourceIPPanel) SetSnapshot(snap *model.Snapshot) {
	p.points = append([]model.XY(nil), snap.Charts.Bar...)
	p.skipped = snap.Result.Skipped.SourceIP
}

func (p *SourceIPPanel) ContentLines(ctx ViewContext) int {
	if len(p.points) == 0 {
		return 1
	}
	return chartHeightFor(ctx)
}

func (p *SourceIPPanel) Render(ctx ViewContext, width, height int, active bool) string {
	var stats string
	if len(p.points) > 0 {
		stats = fmt.Sprintf("%d IPs | %d alerts", len(p.points), sumXY(p.points))
		if p.skipped > 0 {
			stats += fmt.Sprintf(" | %d without IP", p.skipped)
		}
	}
	title := headerWithStats(p.Title(), stats, width)

	var content string
	switch {
	case len(p.points) > 0:
		h := chartHeightFor(ctx)
		content = renderBars(p.points, width, h, paletteStyle, legendLines(p.points, h, paletteText))
	case ctx.Loading:
		content = renderLoadingPlaceholder(width-4, 1)
	default:
		content = helpStyle.Render("No alerts loaded")
	}

	return panelFrame(width, height, active, title, content)
}
