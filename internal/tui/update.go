package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Init starts waiting on the streams
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

// Update handles messages and updates the model state
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case eventMsg:
		m.apply(Event(msg))
		return m, waitForEvent(m.events)

	case streamsDoneMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) apply(ev Event) {
	if _, seen := m.rows[ev.Container]; !seen {
		if _, failed := m.errs[ev.Container]; !failed {
			m.order = append(m.order, ev.Container)
		}
	}

	if ev.Err != nil {
		m.errs[ev.Container] = ev.Err
		return
	}
	if ev.Stats != nil {
		m.rows[ev.Container] = *ev.Stats
		delete(m.errs, ev.Container)
	}
}
