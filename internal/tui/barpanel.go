package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/alertscope/internal/model"
)

const legendWidth = 26

// chartHeightFor returns the bar area height for the terminal width.
func chartHeightFor(ctx ViewContext) int {
	if ctx.compact() {
		return 6
	}
	return 8
}

// panelFrame wraps a titled body in the section border.
func panelFrame(width, height int, active bool, title, body string) string {
	style := sectionStyle.Width(width).Height(height)
	if active {
		style = activeSectionStyle.Width(width).Height(height)
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, chartTitleStyle.Render(title), body))
}

// headerWithStats left-aligns title and right-aligns stats within width.
func headerWithStats(title, stats string, width int) string {
	available := width - 4
	spacer := available - lipgloss.Width(title) - lipgloss.Width(stats)
	if stats == "" || spacer <= 0 {
		return title
	}
	return title + strings.Repeat(" ", spacer) + stats
}

// renderBars draws points as a bar chart in their given order, with a legend
// column on the right. colorFor picks the style of the i-th bar.
// Points that do not fit are dropped from the end.
func renderBars(points []model.XY, width, chartHeight int, colorFor func(i int) lipgloss.Style, legend []string) string {
	chartWidth := width - legendWidth - 4
	if chartWidth < 10 {
		chartWidth = 10
	}

	maxBars := chartWidth / 2
	shown := points
	if len(shown) > maxBars {
		shown = shown[:maxBars]
	}

	bc := barchart.New(chartWidth, chartHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(1),
		barchart.WithNoAxis(),
	)
	for i, p := range shown {
		bc.Push(barchart.BarData{
			Label: "",
			Values: []barchart.BarValue{
				{Name: p.X, Value: float64(p.Y), Style: colorFor(i)},
			},
		})
	}
	bc.Draw()

	chartLines := strings.Split(bc.View(), "\n")
	for len(chartLines) < chartHeight {
		chartLines = append(chartLines, "")
	}
	for len(legend) < chartHeight {
		legend = append(legend, "")
	}

	lines := make([]string, 0, chartHeight)
	for i := 0; i < chartHeight; i++ {
		line := chartLines[i]
		if pad := chartWidth - lipgloss.Width(line); pad > 0 {
			line += strings.Repeat(" ", pad)
		}
		lines = append(lines, line+"  "+legend[i])
	}
	return strings.Join(lines, "\n")
}

// legendLines formats up to n points as "key  count" rows.
func legendLines(points []model.XY, n int, style func(i int) lipgloss.Style) []string {
	lines := make([]string, 0, n)
	for i, p := range points {
		if i >= n {
			break
		}
		label := p.X
		if label == "" {
			label = "(empty)"
		}
		label = truncate(label, legendWidth-9)
		row := fmt.Sprintf("%-*s %7d", legendWidth-9, label, p.Y)
		lines = append(lines, style(i).Render(row))
	}
	if len(points) > n && n > 0 {
		more := fmt.Sprintf("+%d more", len(points)-n+1)
		lines[n-1] = lipgloss.NewStyle().Foreground(ColorGray).Render(more)
	}
	return lines
}

func sumXY(points []model.XY) int {
	total := 0
	for _, p := range points {
		total += p.Y
	}
	return total
}
