package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// waitForEvent creates a command that waits for the next stream event
func waitForEvent(events <-chan Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamsDoneMsg{}
		}
		return eventMsg(ev)
	}
}
