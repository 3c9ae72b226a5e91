package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetside/panoview/internal/app"
	"github.com/streetside/panoview/internal/config"
	"github.com/streetside/panoview/internal/geo"
	"github.com/streetside/panoview/internal/mapstyle"
	"github.com/streetside/panoview/internal/provider"
	"github.com/streetside/panoview/internal/scene"
	"github.com/streetside/panoview/internal/selection"
)

func newModel(t *testing.T, p provider.Func) *Model {
	t.Helper()

	a, err := app.New(context.Background(), app.Settings{
		Journal: config.JournalConfig{Type: "memory"},
		Style:   config.StyleConfig{Map: "standard", Elevation: "realistic", Emphasis: "default"},
		Annotations: []config.AnnotationConfig{
			{ID: "mitaka-station", Title: "Mitaka Station", Latitude: 35.7027, Longitude: 139.5606},
			{ID: "ghibli-museum", Title: "Ghibli Museum", Latitude: 35.6962, Longitude: 139.5704},
		},
	}, app.Options{Provider: p}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	m := New(a)
	t.Cleanup(m.Close)
	return m
}

func instant(_ context.Context, c geo.Coordinate) (*scene.Scene, error) {
	return &scene.Scene{ID: "pano-1", Coordinate: c, Heading: 90}, nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestModel_ListsAnnotationsByTitle(t *testing.T) {
	m := newModel(t, instant)

	require.Len(t, m.items, 2)
	assert.Equal(t, "ghibli-museum", m.items[0].ID)

	view := m.View()
	assert.Contains(t, view, "Ghibli Museum")
	assert.Contains(t, view, "Mitaka Station")
	assert.Contains(t, view, "phase:  idle")
	assert.Contains(t, view, "scene:  none")
}

func TestModel_CursorBounds(t *testing.T) {
	m := newModel(t, instant)

	m.Update(key("up"))
	assert.Equal(t, 0, m.cursor)

	m.Update(key("down"))
	m.Update(key("down"))
	assert.Equal(t, 1, m.cursor)

	m.Update(key("k"))
	assert.Equal(t, 0, m.cursor)
}

func TestModel_EnterSelects(t *testing.T) {
	m := newModel(t, instant)

	m.Update(key("down"))
	m.Update(key("enter"))
	assert.Equal(t, "Selected Mitaka Station", m.status)

	require.Eventually(t, func() bool {
		m.Update(refreshMsg{})
		return m.snap.phase == selection.Displayed
	}, 2*time.Second, 5*time.Millisecond)

	view := m.View()
	assert.Contains(t, view, "scene:  pano-1 (request 1)")
	assert.Contains(t, view, "heading 90°")
}

func TestModel_EscDeselects(t *testing.T) {
	m := newModel(t, instant)

	m.Update(key("enter"))
	require.Eventually(t, func() bool {
		m.Update(refreshMsg{})
		return m.snap.scene.Displayed()
	}, 2*time.Second, 5*time.Millisecond)

	m.Update(key("esc"))
	require.Eventually(t, func() bool {
		m.Update(refreshMsg{})
		return m.snap.phase == selection.Idle && !m.snap.scene.Displayed()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestModel_ShowsFailure(t *testing.T) {
	m := newModel(t, func(context.Context, geo.Coordinate) (*scene.Scene, error) {
		return nil, errors.New("no coverage")
	})

	m.Update(key("enter"))
	require.Eventually(t, func() bool {
		m.Update(refreshMsg{})
		return m.snap.phase == selection.Failed
	}, 2*time.Second, 5*time.Millisecond)

	assert.Contains(t, m.View(), "no coverage")
}

func TestModel_StyleKeys(t *testing.T) {
	m := newModel(t, instant)

	m.Update(key("m"))
	m.Update(key("e"))
	require.Eventually(t, func() bool {
		m.Update(refreshMsg{})
		return m.snap.style == mapstyle.State{Map: mapstyle.Hybrid, Elevation: mapstyle.Flat}
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, mapstyle.BaseHybrid, m.snap.applied.Base)
	assert.Contains(t, m.View(), "render: hybrid/flat labels=true")
}

func TestModel_Quit(t *testing.T) {
	m := newModel(t, instant)

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModel_WindowSize(t *testing.T) {
	m := newModel(t, instant)

	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, m.width)
}
