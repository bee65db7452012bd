package tui

import (
	"github.com/tinytelemetry/alertscope/internal/model"
)

// ChartPanel is one chart of the alert dashboard.
type ChartPanel interface {
	ID() string
	Title() string
	SetSnapshot(snap *model.Snapshot) // called whenever a new snapshot arrives
	Render(ctx ViewContext, width, height int, active bool) string
	ContentLines(ctx ViewContext) int
}

// DefaultPanels returns the source IP, category and timeline panels.
func DefaultPanels() []ChartPanel {
	return []ChartPanel{
		NewSourceIPPanel(),
		NewCategoryPanel(),
		NewTimelinePanel(),
	}
}
