package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/arin/streamrows/internal/ai"
	"github.com/arin/streamrows/internal/config"
	"github.com/arin/streamrows/internal/history"
	"github.com/arin/streamrows/internal/stats"
	"github.com/arin/streamrows/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errNoneCompleted = errors.New("no row completed")

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Send one prompt to every row and print the results",
	Long: `Send a single prompt to every row, wait for all of them to finish
and print each row. Ctrl-C aborts the rows that are still running.

Examples:
  streamrows ask "Say hi"
  streamrows ask --rows 5 "Name a colour"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		prompt := strings.TrimSpace(strings.Join(args, " "))

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		showProgress := term.IsTerminal(int(os.Stderr.Fd()))
		return ask(ctx, cfg, newLogger(cfg), prompt, os.Stdout, os.Stderr, showProgress)
	},
}

// ask runs one prompt across cfg.Rows rows. Rows go to out, progress and
// the summary to errOut.
func ask(ctx context.Context, cfg *config.Config, log zerolog.Logger, prompt string, out, errOut io.Writer, showProgress bool) error {
	if prompt == "" {
		return ai.ErrEmptyPrompt
	}

	var observer ai.Observer
	var sp *ui.Spinner
	if showProgress {
		sp = ui.NewSpinner(errOut, "Generating...")
		progress := ui.NewProgress(rowNames(cfg.Rows), sp.SetMessage)
		observer = progress.Observe
	}

	ctrl := newController(cfg, log, observer)
	defer ctrl.Close()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	if sp != nil {
		sp.Start()
	}
	start := time.Now()
	batch, err := ctrl.Generate(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("some rows did not start")
	}

	done := make(chan []ai.Outcome, 1)
	go func() { done <- batch.Wait() }()

	var outcomes []ai.Outcome
wait:
	for {
		select {
		case <-sigs:
			ctrl.Stop()
		case outcomes = <-done:
			break wait
		}
	}
	summary := stats.SummarizeOutcomes(outcomes, time.Now())
	if sp != nil {
		if summary.Completed > 0 {
			sp.Success(fmt.Sprintf("%d/%d rows completed", summary.Completed, summary.TotalRuns))
		} else {
			sp.Fail("no row completed")
		}
	}

	snaps := make([]ai.Snapshot, 0, ctrl.Len())
	for _, c := range ctrl.Clients() {
		snaps = append(snaps, c.Snapshot())
	}
	ui.RenderRows(out, snaps)

	record(log, cfg.Model, prompt, outcomes)

	dim.Fprintf(errOut, "  %d rows: %d completed, %d aborted, %d failed · %dms avg · %s total\n",
		summary.TotalRuns, summary.Completed, summary.Aborted, summary.Failed,
		summary.AvgLatencyMs, time.Since(start).Round(time.Millisecond))

	if summary.Completed == 0 {
		return errNoneCompleted
	}
	return nil
}

// record persists a finished batch. Failures are logged and never change
// what the rows show.
func record(log zerolog.Logger, model, prompt string, outcomes []ai.Outcome) {
	if err := stats.Save(stats.FromOutcomes(model, outcomes...)...); err != nil {
		log.Warn().Err(err).Msg("failed to save stats")
	}
	if err := history.Save(history.FromOutcomes(prompt, outcomes)); err != nil {
		log.Warn().Err(err).Msg("failed to save history")
	}
}
