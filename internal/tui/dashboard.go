package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/alertscope/internal/model"
)

const (
	DashboardPageID = "dashboard"
	HelpPageID      = "help"
)

// DashboardConfig controls how the dashboard page talks to its provider.
type DashboardConfig struct {
	// ReloadOnStart asks the provider to reload instead of reading its
	// current snapshot on startup. Local sources need this; a remote server
	// already has a snapshot.
	ReloadOnStart bool
	// PollInterval re-reads the provider's snapshot periodically. 0 disables.
	PollInterval time.Duration
	// ReloadTimeout bounds a reload request. Defaults to 2 minutes.
	ReloadTimeout time.Duration
}

// snapshotMsg carries the result of a snapshot read or reload.
type snapshotMsg struct {
	snap   *model.Snapshot
	err    error
	reload bool
}

// pollTickMsg triggers a periodic snapshot read.
type pollTickMsg struct{}

// DashboardPage renders the three alert charts for one SnapshotProvider.
type DashboardPage struct {
	provider model.SnapshotProvider
	conf     DashboardConfig
	keys     KeyMap

	panels    []ChartPanel
	activeIdx int

	snap      *model.Snapshot
	started   bool // first snapshot message received
	reloading bool
	lastErr   string
}

// NewDashboardPage creates the dashboard page.
func NewDashboardPage(provider model.SnapshotProvider, conf DashboardConfig) *DashboardPage {
	if conf.ReloadTimeout <= 0 {
		conf.ReloadTimeout = 2 * time.Minute
	}
	return &DashboardPage{
		provider: provider,
		conf:     conf,
		keys:     DefaultKeyMap(),
		panels:   DefaultPanels(),
	}
}

func (d *DashboardPage) ID() string { return DashboardPageID }

func (d *DashboardPage) Init() tea.Cmd {
	cmds := []tea.Cmd{spinnerTick()}
	if d.conf.ReloadOnStart {
		d.reloading = true
		cmds = append(cmds, d.reloadCmd())
	} else {
		cmds = append(cmds, d.fetchCmd())
	}
	if d.conf.PollInterval > 0 {
		cmds = append(cmds, d.pollCmd())
	}
	return tea.Batch(cmds...)
}

func (d *DashboardPage) fetchCmd() tea.Cmd {
	provider := d.provider
	return func() tea.Msg {
		snap, err := provider.Snapshot()
		return snapshotMsg{snap: snap, err: err}
	}
}

func (d *DashboardPage) reloadCmd() tea.Cmd {
	provider, timeout := d.provider, d.conf.ReloadTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		snap, err := provider.Reload(ctx)
		return snapshotMsg{snap: snap, err: err, reload: true}
	}
}

func (d *DashboardPage) pollCmd() tea.Cmd {
	return tea.Tick(d.conf.PollInterval, func(_ time.Time) tea.Msg { return pollTickMsg{} })
}

func (d *DashboardPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case snapshotMsg:
		d.applySnapshot(msg)
		return nil, nil

	case pollTickMsg:
		return tea.Batch(d.fetchCmd(), d.pollCmd()), nil

	case SpinnerTickMsg:
		if d.loading() {
			return spinnerTick(), nil
		}
		return nil, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, d.keys.Quit), key.Matches(msg, d.keys.ForceQuit):
			return tea.Quit, nil
		case key.Matches(msg, d.keys.Help):
			return nil, &PageNav{PageID: HelpPageID}
		case key.Matches(msg, d.keys.NextSection):
			if len(d.panels) > 0 {
				d.activeIdx = (d.activeIdx + 1) % len(d.panels)
			}
		case key.Matches(msg, d.keys.PrevSection):
			if len(d.panels) > 0 {
				d.activeIdx = (d.activeIdx - 1 + len(d.panels)) % len(d.panels)
			}
		case key.Matches(msg, d.keys.Reload):
			if d.reloading {
				return nil, nil
			}
			d.reloading = true
			return tea.Batch(d.reloadCmd(), spinnerTick()), nil
		}
	}
	return nil, nil
}

func (d *DashboardPage) applySnapshot(msg snapshotMsg) {
	d.started = true
	if msg.reload {
		d.reloading = false
	}

	if msg.err != nil {
		d.lastErr = msg.err.Error()
		// A failed reload may still hand back the stale snapshot.
		if msg.snap == nil {
			return
		}
	} else {
		d.lastErr = msg.snap.LastError
	}

	d.snap = msg.snap
	for _, p := range d.panels {
		p.SetSnapshot(msg.snap)
	}
}

// loading reports whether a fetch is in flight.
func (d *DashboardPage) loading() bool {
	return d.reloading || !d.started
}

// Snapshot returns the snapshot currently on screen, or nil.
func (d *DashboardPage) Snapshot() *model.Snapshot { return d.snap }

func (d *DashboardPage) viewContext(width int) ViewContext {
	return ViewContext{
		ContentWidth: width,
		Loading:      d.loading() && !d.snap.Loaded(),
	}
}

func (d *DashboardPage) View(width, height int) string {
	if width <= 0 {
		width = 80
	}
	ctx := d.viewContext(width)

	header := d.renderHeader(width)
	status := d.renderStatusLine(width)

	if len(d.panels) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, "No panels registered", status)
	}

	panelWidth := width - 2
	var rows []string
	for i, p := range d.panels {
		h := p.ContentLines(ctx) + 1
		rows = append(rows, p.Render(ctx, panelWidth, h, i == d.activeIdx))
	}

	body := lipgloss.JoinVertical(lipgloss.Left, rows...)
	view := lipgloss.JoinVertical(lipgloss.Left, header, body, status)
	if height > 0 {
		view = lipgloss.NewStyle().MaxHeight(height).Render(view)
	}
	return view
}

func (d *DashboardPage) renderHeader(width int) string {
	brand := lipgloss.NewStyle().Foreground(ColorBlue).Bold(true).Render("alertscope")

	var info string
	switch {
	case d.snap.Loaded():
		info = fmt.Sprintf("%s  •  %d alerts  •  loaded %s",
			d.snap.Source, d.snap.Result.Records, d.snap.LoadedAt.Local().Format("15:04:05"))
	case d.snap != nil:
		info = d.snap.Source + "  •  not loaded"
	default:
		info = "connecting"
	}

	// Green while the data is fresh, yellow once a reload has failed.
	dot := lipgloss.NewStyle().Foreground(ColorGreen).Render("●")
	if d.lastErr != "" {
		dot = lipgloss.NewStyle().Foreground(ColorYellow).Render("●")
	}
	info = dot + " " + helpStyle.Render(info)

	gap := width - lipgloss.Width(brand) - lipgloss.Width(info) - 2
	if gap < 1 {
		return brand
	}
	return " " + brand + strings.Repeat(" ", gap) + info
}

func (d *DashboardPage) renderStatusLine(width int) string {
	left := " "
	if len(d.panels) > 0 {
		left += d.panels[d.activeIdx].Title()
	}
	if d.loading() {
		left += "  " + spinnerFrames[time.Now().UnixMilli()/spinnerInterval.Milliseconds()%int64(len(spinnerFrames))] + " loading"
	}

	var right string
	if d.lastErr != "" {
		right = errorStyle.Background(ColorNavy).Render("load failed: "+truncate(d.lastErr, max(width/2, 10))) + statusBarStyle.Render(" ")
	} else {
		right = statusBarStyle.Render("r reload • tab panel • ? help • q quit ")
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return statusBarStyle.Width(width).Render(truncate(left, width))
	}
	return statusBarStyle.Render(left+strings.Repeat(" ", gap)) + right
}
