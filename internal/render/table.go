// internal/render/table.go
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rusenback/docker-stats/internal/model"
	"github.com/rusenback/docker-stats/internal/stats"
	"github.com/rusenback/docker-stats/internal/storage"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1E1E2E")).
			Background(lipgloss.Color("#CBA6F7"))

	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F5C2E7"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#89B4FA"))
)

const barWidth = 20

const rowFormat = "%-20s %8s %-22s %21s %-22s %10s %10s %19s"

// Table renders one line per container. Percent bars are clamped to 0..100,
// the numbers next to them are not.
func Table(rows []model.ContainerStats) string {
	var s strings.Builder

	header := fmt.Sprintf(rowFormat,
		"CONTAINER", "CPU %", "", "MEM USAGE / LIMIT", "MEM %", "NET TX", "NET RX", "TIMESTAMP")
	s.WriteString(headerStyle.Render(header) + "\n")

	for _, row := range rows {
		line := fmt.Sprintf(rowFormat,
			truncate(row.Container, 20),
			fmt.Sprintf("%.2f%%", row.CPUPercent),
			renderProgressBar(row.CPUPercent, 100, barWidth),
			FormatKB(row.MemoryUsageKB)+" / "+FormatKB(row.MemoryLimitKB),
			renderProgressBar(row.MemoryPercent, 100, barWidth)+fmt.Sprintf(" %.1f%%", row.MemoryPercent),
			FormatKB(row.NetworkTxKB),
			FormatKB(row.NetworkRxKB),
			row.Timestamp,
		)
		s.WriteString(line + "\n")
	}

	return s.String()
}

// History renders stored data points of one container, in UTC or local time
// like live records
func History(container string, timeRange storage.TimeRange, points []storage.DataPoint, utc bool) string {
	var s strings.Builder

	s.WriteString(nameStyle.Render(fmt.Sprintf("%s (%s)", container, timeRange)) + "\n")
	if len(points) == 0 {
		s.WriteString("No data yet...\n")
		return s.String()
	}

	header := fmt.Sprintf("%-19s %8s %-22s %8s %-22s", "TIME", "CPU %", "", "MEM %", "")
	s.WriteString(headerStyle.Render(header) + "\n")

	for _, p := range points {
		s.WriteString(fmt.Sprintf("%-19s %8s %-22s %8s %-22s\n",
			stats.FormatTimestamp(p.Timestamp, utc),
			fmt.Sprintf("%.2f%%", p.CPUPercent),
			renderProgressBar(p.CPUPercent, 100, barWidth),
			fmt.Sprintf("%.2f%%", p.MemoryPercent),
			renderProgressBar(p.MemoryPercent, 100, barWidth),
		))
	}

	return s.String()
}

// renderProgressBar draws an ASCII progress bar
func renderProgressBar(value, max float64, width int) string {
	if max == 0 {
		max = 1
	}

	percent := value / max
	if percent > 1 {
		percent = 1
	}
	if percent < 0 {
		percent = 0
	}

	filled := int(percent * float64(width))
	empty := width - filled

	bar := "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
	return barStyle.Render(bar)
}

// FormatKB formats kilobytes in a human readable way
func FormatKB(kb float64) string {
	const (
		MB = 1024
		GB = MB * 1024
	)

	switch {
	case kb >= GB:
		return fmt.Sprintf("%.2f GB", kb/GB)
	case kb >= MB:
		return fmt.Sprintf("%.2f MB", kb/MB)
	default:
		return fmt.Sprintf("%.2f KB", kb)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
