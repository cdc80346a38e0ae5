package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/arin/streamrows/internal/stats"
	"github.com/fatih/color"
)

// RenderSummary writes the run statistics dashboard.
func RenderSummary(w io.Writer, title string, s *stats.Summary) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprintf(w, "\n  %s\n\n", title)

	if s == nil || s.TotalRuns == 0 {
		dimColor.Fprintln(w, "  No runs recorded yet.")
		fmt.Fprintln(w)
		return
	}

	green.Fprintf(w, "  Runs:      ")
	fmt.Fprintf(w, "%d total", s.TotalRuns)
	dimColor.Fprintf(w, "  (%d today, %d this week)\n", s.TodayCount, s.ThisWeekCount)

	green.Fprintf(w, "  Success:   ")
	if s.SuccessRate >= 90 {
		fmt.Fprintf(w, "%.0f%%", s.SuccessRate)
	} else {
		yellow.Fprintf(w, "%.0f%%", s.SuccessRate)
	}
	dimColor.Fprintf(w, "  (%d completed, %d aborted, %d failed)\n", s.Completed, s.Aborted, s.Failed)

	green.Fprintf(w, "  Latency:   ")
	fmt.Fprintf(w, "%dms avg\n", s.AvgLatencyMs)

	if len(s.Rows) > 0 {
		fmt.Fprintln(w)
		cyan.Fprintln(w, "  Rows")
		for _, r := range s.Rows {
			pct := float64(r.Completed) / float64(r.Runs) * 100
			bar := strings.Repeat("█", int(pct/10))
			dimColor.Fprintf(w, "  %-10s ", r.Row)
			fmt.Fprintf(w, "%-10s %d/%d ok", bar, r.Completed, r.Runs)
			dimColor.Fprintf(w, "  %dms avg\n", r.AvgLatencyMs)
		}
	}
	fmt.Fprintln(w)
}
