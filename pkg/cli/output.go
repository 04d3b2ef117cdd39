package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	colorMuted = lipgloss.Color("8")
	colorGood  = lipgloss.Color("10")
	colorBad   = lipgloss.Color("9")
	colorWarn  = lipgloss.Color("11")

	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// renderTable draws rows under headers. The cells of statusCol are colored by
// their value; pass -1 for none.
func renderTable(headers []string, rows [][]string, statusCol int) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusCol && row >= 0 && row < len(rows) {
				return statusStyle(rows[row][col])
			}
			return cellStyle
		})

	return t.Render()
}

func statusStyle(status string) lipgloss.Style {
	switch strings.ToLower(status) {
	case "running", "success":
		return cellStyle.Foreground(colorGood)
	case "error", "timeout", "io-failure", "engine-error":
		return cellStyle.Foreground(colorBad)
	case "starting", "stopping", "precondition-failed":
		return cellStyle.Foreground(colorWarn)
	}
	return cellStyle
}
