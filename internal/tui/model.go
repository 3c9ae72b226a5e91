// Package tui is a terminal map surface: a list of annotations to pick from
// and a panel showing the panorama the core is displaying.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/streetside/panoview/internal/annotation"
	"github.com/streetside/panoview/internal/app"
	"github.com/streetside/panoview/internal/mapstyle"
	"github.com/streetside/panoview/internal/scene"
	"github.com/streetside/panoview/internal/selection"
)

const refreshInterval = 200 * time.Millisecond

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89b4fa"))
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f9e2af"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	panelStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#585b70")).
			Padding(0, 1)
)

type refreshMsg struct{}

type tickMsg time.Time

// snapshot is what the view renders, read from the app on every refresh.
type snapshot struct {
	scene    scene.State
	phase    selection.Phase
	request  scene.Request
	hasReq   bool
	stats    selection.Stats
	style    mapstyle.State
	applied  mapstyle.RenderConfiguration
	selected string
}

// Model is the bubbletea model.
type Model struct {
	app     *app.App
	items   []annotation.Annotation
	cursor  int
	status  string
	failed  bool
	width   int
	snap    snapshot
	updates chan struct{}
	unsubs  []func()
}

// New creates a model over a running app and subscribes to its stores.
func New(a *app.App) *Model {
	m := &Model{
		app:     a,
		items:   a.Annotations().All(),
		updates: make(chan struct{}, 1),
	}
	notify := func() {
		select {
		case m.updates <- struct{}{}:
		default:
		}
	}
	m.unsubs = append(m.unsubs,
		a.Scenes().Subscribe(func(scene.State) { notify() }),
		a.Styles().Subscribe(func(mapstyle.State) { notify() }),
	)
	m.refresh()
	return m
}

// Close drops the store subscriptions.
func (m *Model) Close() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), tick())
}

func (m *Model) waitForUpdate() tea.Cmd {
	ch := m.updates
	return func() tea.Msg {
		<-ch
		return refreshMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) refresh() {
	req, ok := m.app.Coordinator().Current()
	applied, _ := m.app.Adapter().Applied()
	m.snap = snapshot{
		scene:    m.app.Scenes().State(),
		phase:    m.app.Coordinator().Phase(),
		request:  req,
		hasReq:   ok,
		stats:    m.app.Coordinator().Stats(),
		style:    m.app.Styles().State(),
		applied:  applied,
		selected: m.app.Adapter().Selected(),
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case refreshMsg:
		m.refresh()
		return m, m.waitForUpdate()
	case tickMsg:
		m.refresh()
		return m, tick()
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.items) == 0 {
			return m, nil
		}
		item := m.items[m.cursor]
		m.report(m.app.Select(item.ID), "Selected "+item.Title)
	case "esc":
		m.report(m.app.Deselect(), "Selection cleared")
	case "m":
		m.report(m.app.UpdateStyle(func(st mapstyle.State) mapstyle.State {
			st.Map = st.Map.Next()
			return st
		}), "Map style changed")
	case "e":
		m.report(m.app.UpdateStyle(func(st mapstyle.State) mapstyle.State {
			st.Elevation = st.Elevation.Next()
			return st
		}), "Elevation style changed")
	case "p":
		m.report(m.app.UpdateStyle(func(st mapstyle.State) mapstyle.State {
			st.Emphasis = st.Emphasis.Next()
			return st
		}), "Emphasis style changed")
	}
	return m, nil
}

func (m *Model) report(err error, ok string) {
	if err != nil {
		m.status = err.Error()
		m.failed = true
		return
	}
	m.status = ok
	m.failed = false
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("panoview"))
	b.WriteString("\n\n")

	for i, item := range m.items {
		line := fmt.Sprintf("  %s  %s", item.Title, mutedStyle.Render(item.Coordinate.String()))
		switch {
		case i == m.cursor:
			line = cursorStyle.Render("> " + item.Title)
			line += "  " + mutedStyle.Render(item.Coordinate.String())
		case item.ID == m.snap.selected:
			line = selectedStyle.Render("* " + item.Title)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.items) == 0 {
		b.WriteString(mutedStyle.Render("  no annotations configured"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(panelStyle.Render(m.panel()))
	b.WriteString("\n")

	if m.status != "" {
		if m.failed {
			b.WriteString(errorStyle.Render(m.status))
		} else {
			b.WriteString(mutedStyle.Render(m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render("↑/↓ move • enter select • esc deselect • m/e/p style • q quit"))
	return b.String()
}

func (m *Model) panel() string {
	s := m.snap
	lines := []string{
		"phase:  " + s.phase.String(),
	}

	if s.scene.Displayed() {
		sc := s.scene.Current
		lines = append(lines,
			fmt.Sprintf("scene:  %s (request %d)", sc.ID, s.scene.ProducingRequestID),
			fmt.Sprintf("        %s heading %.0f°", sc.Coordinate, sc.Heading))
	} else {
		lines = append(lines, "scene:  none")
	}

	if s.hasReq && s.request.Status == scene.Failed && s.request.Err != nil {
		lines = append(lines, errorStyle.Render("error:  "+s.request.Err.Error()))
	}

	lines = append(lines,
		"style:  "+s.style.String(),
		"render: "+s.applied.String(),
		fmt.Sprintf("stats:  issued %d, shown %d, failed %d, superseded %d, discarded %d",
			s.stats.Issued, s.stats.Accepted, s.stats.Failed, s.stats.Superseded, s.stats.Discarded),
	)
	return strings.Join(lines, "\n")
}
