package tui

import tea "github.com/charmbracelet/bubbletea"

// App is the top-level Bubble Tea model that routes between pages.
type App struct {
	pages  map[string]Page
	order  []string
	active string
	width  int
	height int
}

// NewApp creates an App over pages. The first page is shown at startup.
func NewApp(pages ...Page) *App {
	a := &App{pages: make(map[string]Page, len(pages))}
	for _, p := range pages {
		if _, dup := a.pages[p.ID()]; dup {
			continue
		}
		a.pages[p.ID()] = p
		a.order = append(a.order, p.ID())
	}
	if len(a.order) > 0 {
		a.active = a.order[0]
	}
	return a
}

// ActivePage returns the ID of the page currently shown.
func (a *App) ActivePage() string { return a.active }

func (a *App) Init() tea.Cmd {
	// Every page gets to start its background work, not just the visible one.
	cmds := make([]tea.Cmd, 0, len(a.order))
	for _, id := range a.order {
		cmds = append(cmds, a.pages[id].Init())
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
	}

	p, ok := a.pages[a.active]
	if !ok {
		return a, nil
	}

	var cmds []tea.Cmd
	cmd, nav := p.Update(msg)
	cmds = append(cmds, cmd)

	// Non-key messages (data loads, ticks) also reach background pages so
	// their state stays current while hidden.
	if _, isKey := msg.(tea.KeyMsg); !isKey {
		for _, id := range a.order {
			if id == a.active {
				continue
			}
			bgCmd, _ := a.pages[id].Update(msg)
			cmds = append(cmds, bgCmd)
		}
	}

	if nav != nil {
		if _, exists := a.pages[nav.PageID]; exists && nav.PageID != a.active {
			a.active = nav.PageID
		}
	}
	return a, tea.Batch(cmds...)
}

func (a *App) View() string {
	if p, ok := a.pages[a.active]; ok {
		return p.View(a.width, a.height)
	}
	return "No active page"
}
