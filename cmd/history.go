package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/arin/streamrows/internal/ai"
	"github.com/arin/streamrows/internal/history"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past prompts and how each row answered",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := history.Load(historyLimit)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		printHistory(cmd.OutOrStdout(), entries, verbose)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Number of history entries to show")
}

// printHistory lists entries oldest first. With full set every row's
// answer is printed, otherwise only the first line of each.
func printHistory(w io.Writer, entries []history.Entry, full bool) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No history yet.")
		return
	}

	red := color.New(color.FgRed)

	for i, e := range entries {
		dim.Fprintf(w, "[%s] ", e.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "%s ", e.Prompt)
		cyan.Fprintf(w, "→ %d/%d ", e.Completed(), len(e.Rows))
		if e.Completed() == len(e.Rows) {
			green.Fprintln(w, "✓")
		} else {
			red.Fprintln(w, "✗")
		}
		for _, r := range e.Rows {
			out := r.Output
			if !full {
				out, _, _ = strings.Cut(out, "\n")
			}
			dim.Fprintf(w, "    %s ", r.Row)
			switch r.Result {
			case ai.Completed.String():
				fmt.Fprintln(w, out)
			case ai.Aborted.String():
				yellow.Fprintln(w, out)
			default:
				red.Fprintln(w, out)
			}
		}
		if i < len(entries)-1 {
			fmt.Fprintln(w)
		}
	}
}
