// internal/tui/model.go
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/rusenback/docker-stats/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A6E3A1")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0)
)

// Event is one item of a followed container's stream: a derived record or
// the error that replaced it
type Event struct {
	Container string
	Stats     *model.Stats
	Err       error
}

// Model holds the latest record of every followed container. Rows keep the
// order in which containers first reported.
type Model struct {
	events <-chan Event
	order  []string
	rows   map[string]model.Stats
	errs   map[string]error
	width  int
	done   bool
}

// eventMsg carries the next event of the merged streams
type eventMsg Event

// streamsDoneMsg is sent once every stream has ended
type streamsDoneMsg struct{}

// NewModel returns a model that redraws as events arrive. The program quits
// once events is closed.
func NewModel(events <-chan Event) Model {
	return Model{
		events: events,
		rows:   make(map[string]model.Stats),
		errs:   make(map[string]error),
	}
}

// Rows returns the latest records in display order
func (m Model) Rows() []model.ContainerStats {
	rows := make([]model.ContainerStats, 0, len(m.order))
	for _, name := range m.order {
		if s, ok := m.rows[name]; ok {
			rows = append(rows, model.ContainerStats{Container: name, Stats: s})
		}
	}
	return rows
}
