package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"

	"github.com/arin/streamrows/internal/ai"
	"github.com/arin/streamrows/internal/config"
	"github.com/arin/streamrows/internal/controller"
	"github.com/arin/streamrows/internal/history"
	"github.com/arin/streamrows/internal/stats"
	"github.com/arin/streamrows/internal/ui"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	cyan   = color.New(color.FgCyan, color.Bold)
	dim    = color.New(color.FgHiBlack)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
)

const sessionHelp = `  <prompt>          send the prompt to every row
  /stop             abort every active row
  /clear            clear every row's output
  /key <key>        use <key> for every row from the next prompt on
  /rowkey <n> <key> use <key> for row n only
  /url <n> <url>    point row n at another endpoint
  /show             print every row
  /stats            show run statistics
  /history [n]      show the last n prompts (default 5)
  /help             show this help
  /quit             leave the session
`

// lockedWriter serialises writes from outcome goroutines and the prompt.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// session is one interactive run of the board.
type session struct {
	cfg         *config.Config
	log         zerolog.Logger
	ctrl        *controller.Controller
	out         io.Writer
	interactive bool
	pending     sync.WaitGroup

	// progress follows every row as it streams. While a batch runs on a
	// terminal its line is shown next to the spinner.
	progress *ui.Progress
	spinMu   sync.Mutex
	spin     *ui.Spinner
}

func newSession(cfg *config.Config, log zerolog.Logger, out io.Writer, interactive bool) *session {
	s := &session{
		cfg:         cfg,
		log:         log,
		out:         &lockedWriter{w: out},
		interactive: interactive,
	}
	s.progress = ui.NewProgress(rowNames(cfg.Rows), s.status)
	s.ctrl = newController(cfg, log, s.progress.Observe)
	return s
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	s := newSession(cfg, log, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
	defer s.ctrl.Close()

	return s.run(cmd.Context(), os.Stdin)
}

func (s *session) run(ctx context.Context, in io.Reader) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.interactive {
		fmt.Fprintln(s.out)
		cyan.Fprintf(s.out, "  streamrows")
		dim.Fprintf(s.out, "  %d rows · %s\n", s.ctrl.Len(), s.cfg.Model)
		dim.Fprintf(s.out, "  Type a prompt, /help for commands, /quit to leave.\n\n")
		warnMissingKey(s.cfg)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	// Ctrl-C aborts the active rows; on an idle board it ends the session.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for {
			select {
			case <-sigs:
				if s.busy() {
					yellow.Fprintln(s.out, "\n  Stopping...")
					s.ctrl.Stop()
					continue
				}
				fmt.Fprintln(s.out)
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		s.prompt()
		select {
		case <-ctx.Done():
			s.pending.Wait()
			return nil
		case line, ok := <-lines:
			if !ok {
				s.pending.Wait()
				return nil
			}
			if quit := s.handle(ctx, strings.TrimSpace(line)); quit {
				s.ctrl.Stop()
				s.pending.Wait()
				return nil
			}
		}
	}
}

func (s *session) prompt() {
	if s.interactive {
		green.Fprint(s.out, "  prompt → ")
	}
}

func (s *session) busy() bool {
	for _, c := range s.ctrl.Clients() {
		if c.Generating() {
			return true
		}
	}
	return false
}

// handle runs one input line and reports whether the session should end.
func (s *session) handle(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		s.generate(ctx, line)
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprint(s.out, sessionHelp)
	case "/stop":
		s.ctrl.Stop()
	case "/clear":
		s.ctrl.Clear()
		s.show()
	case "/show":
		s.show()
	case "/key":
		if len(fields) != 2 {
			s.usage("/key <key>")
			return false
		}
		s.ctrl.UpdateAPIKey(fields[1])
		dim.Fprintf(s.out, "  API key updated for %d rows.\n", s.ctrl.Len())
	case "/rowkey":
		client, ok := s.row(fields, "/rowkey <n> <key>")
		if !ok {
			return false
		}
		client.UpdateAPIKey(fields[2])
		dim.Fprintf(s.out, "  API key updated for %s.\n", client.Name())
	case "/url":
		client, ok := s.row(fields, "/url <n> <url>")
		if !ok {
			return false
		}
		client.SetEndpoint(fields[2])
		dim.Fprintf(s.out, "  %s now uses %s\n", client.Name(), fields[2])
	case "/stats":
		summary, err := stats.Summarize()
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to load stats")
			yellow.Fprintf(s.out, "  Could not load stats: %v\n", err)
			return false
		}
		ui.RenderSummary(s.out, "streamrows stats", summary)
	case "/history":
		limit := 5
		if len(fields) == 2 {
			n, err := strconv.Atoi(fields[1])
			if err != nil || n <= 0 {
				s.usage("/history [n]")
				return false
			}
			limit = n
		}
		entries, err := history.Load(limit)
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to load history")
			yellow.Fprintf(s.out, "  Could not load history: %v\n", err)
			return false
		}
		printHistory(s.out, entries, false)
	default:
		yellow.Fprintf(s.out, "  Unknown command %s. Type /help.\n", fields[0])
	}
	return false
}

func (s *session) usage(u string) {
	yellow.Fprintf(s.out, "  Usage: %s\n", u)
}

// row resolves the one-based row number in fields[1].
func (s *session) row(fields []string, usage string) (*ai.Client, bool) {
	if len(fields) != 3 {
		s.usage(usage)
		return nil, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		s.usage(usage)
		return nil, false
	}
	client, err := s.ctrl.Client(n - 1)
	if err != nil {
		yellow.Fprintf(s.out, "  %v\n", err)
		return nil, false
	}
	return client, true
}

func (s *session) show() {
	snaps := make([]ai.Snapshot, 0, s.ctrl.Len())
	for _, c := range s.ctrl.Clients() {
		snaps = append(snaps, c.Snapshot())
	}
	ui.RenderRows(s.out, snaps)
}

// generate starts prompt on every row. On a terminal a spinner shows each
// row's progress while it streams and the rows are printed once the batch
// ends. Piped sessions wait for the batch before reading on.
func (s *session) generate(ctx context.Context, prompt string) {
	batch, err := s.ctrl.Generate(ctx, prompt)
	if err != nil {
		s.log.Warn().Err(err).Msg("some rows did not start")
		if errors.Is(err, ai.ErrEmptyPrompt) {
			return
		}
	}
	if batch.Len() == 0 {
		return
	}
	var sp *ui.Spinner
	if s.interactive {
		sp = s.startSpinner(fmt.Sprintf("Generating on %d rows...", batch.Len()))
	}

	s.pending.Add(1)
	finish := func() {
		defer s.pending.Done()
		outcomes := batch.Wait()
		s.stopSpinner(sp)
		for _, o := range outcomes {
			s.report(o)
		}
		if s.interactive {
			s.prompt()
		}
		record(s.log, s.cfg.Model, prompt, outcomes)
	}
	if s.interactive {
		go finish()
		return
	}
	finish()
}

func (s *session) report(o ai.Outcome) {
	if o.Result == ai.Superseded {
		return
	}
	for i, c := range s.ctrl.Clients() {
		if c.Name() != o.Row {
			continue
		}
		snap := c.Snapshot()
		snap.Output, snap.Generating = o.Text, false
		ui.RenderRow(s.out, i+1, snap)
		ui.RenderOutcome(s.out, o)
		return
	}
}

// status shows the latest progress line on the running spinner, if any.
func (s *session) status(line string) {
	s.spinMu.Lock()
	defer s.spinMu.Unlock()
	if s.spin != nil {
		s.spin.SetMessage(line)
	}
}

// startSpinner replaces any spinner left by a superseded batch.
func (s *session) startSpinner(msg string) *ui.Spinner {
	s.spinMu.Lock()
	defer s.spinMu.Unlock()
	if s.spin != nil {
		s.spin.Stop()
	}
	s.spin = ui.NewSpinner(s.out, msg)
	s.spin.Start()
	return s.spin
}

func (s *session) stopSpinner(sp *ui.Spinner) {
	if sp == nil {
		return
	}
	s.spinMu.Lock()
	defer s.spinMu.Unlock()
	sp.Stop()
	if s.spin == sp {
		s.spin = nil
	}
}
