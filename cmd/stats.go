package cmd

import (
	"fmt"

	"github.com/arin/streamrows/internal/stats"
	"github.com/arin/streamrows/internal/ui"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show run statistics",
	Long: `Display how rows' runs have ended: completed, aborted and failed
counts, success rate and mean latency, overall and per row.

Data is collected automatically and stored locally in ~/.streamrows/stats.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := stats.Summarize()
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}
		ui.RenderSummary(cmd.ErrOrStderr(), "streamrows stats", summary)
		return nil
	},
}
