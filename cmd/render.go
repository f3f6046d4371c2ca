package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tidechart/tidechart/internal/chart"
)

var (
	styleHeading   = lipgloss.NewStyle().Bold(true)
	styleCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	stylePaused    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleMuted     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func statusStyle(s chart.Status) lipgloss.Style {
	switch s {
	case chart.StatusCompleted:
		return styleCompleted
	case chart.StatusFailed, chart.StatusCancelled:
		return styleFailed
	case chart.StatusPaused:
		return stylePaused
	default:
		return styleMuted
	}
}

// renderSummary formats the final line printed for a single download.
func renderSummary(chartID string, p chart.DownloadProgress) string {
	status := statusStyle(p.Status).Render(string(p.Status))
	line := fmt.Sprintf("%s  %s  %s", chartID, status, humanBytes(p.DownloadedBytes))
	if p.Error != "" {
		line += "  " + styleMuted.Render(p.Error)
	}
	return line
}

// renderBatchLine formats the single carriage-return progress line for a
// batch, suitable for repeated printing with fmt.Print.
func renderBatchLine(agg chart.BatchDownloadProgress) string {
	bar := progressBar(agg.OverallProgress, 24)
	return fmt.Sprintf("\r%s %5.1f%%  %d/%d done, %d failed  %s",
		bar, agg.OverallProgress*100,
		agg.CompletedCharts, agg.TotalCharts, agg.FailedCharts,
		statusStyle(chart.Status(agg.Status)).Render(string(agg.Status)))
}

func progressBar(ratio float64, width int) string {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
