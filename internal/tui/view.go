package tui

import (
	"fmt"
	"strings"

	"github.com/rusenback/docker-stats/internal/render"
)

// View renders the table of latest records followed by per-container errors
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("🐳 Docker Stats") + "\n\n")

	rows := m.Rows()
	if len(rows) == 0 && len(m.errs) == 0 {
		s.WriteString("Waiting for stats...\n")
	} else {
		s.WriteString(render.Table(rows))
	}

	for _, name := range m.order {
		if err, ok := m.errs[name]; ok {
			s.WriteString(errorStyle.Render(fmt.Sprintf("Stats error (%s): %v", name, err)) + "\n")
		}
	}

	if m.width > 4 {
		s.WriteString(strings.Repeat("─", m.width-4) + "\n")
	}
	if m.done {
		s.WriteString(helpStyle.Render("All streams ended"))
	} else {
		s.WriteString(helpStyle.Render("[q] quit"))
	}

	return s.String()
}
