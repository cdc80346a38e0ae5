package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/arin/streamrows/internal/ai"
	"github.com/fatih/color"
)

var (
	titleColor    = color.New(color.FgCyan, color.Bold)
	dimColor      = color.New(color.FgHiBlack)
	abortedColor  = color.New(color.FgYellow)
	failedColor   = color.New(color.FgRed)
	promptColor   = color.New(color.FgGreen)
	finishedColor = color.New(color.FgGreen)
)

// RenderRow writes one row block: a title with the model, the endpoint,
// the prompt and the current output. index is one-based.
func RenderRow(w io.Writer, index int, s ai.Snapshot) {
	titleColor.Fprintf(w, "  [%d] %s", index, s.Row)
	dimColor.Fprintf(w, "  Model: %s\n", s.Model)
	dimColor.Fprintf(w, "      %s\n", s.Endpoint)
	if s.Input != "" {
		promptColor.Fprint(w, "    > ")
		fmt.Fprintln(w, s.Input)
	}

	out := s.Output
	if out == "" {
		fmt.Fprintln(w)
		return
	}
	body := indent(strings.TrimRight(out, "\n"), "    ")
	switch out {
	case ai.AbortedText:
		abortedColor.Fprintln(w, body)
	case ai.FailedText:
		failedColor.Fprintln(w, body)
	case ai.GeneratingText:
		dimColor.Fprintln(w, body)
	default:
		fmt.Fprintln(w, body)
	}
	fmt.Fprintln(w)
}

// RenderRows writes every snapshot in order.
func RenderRows(w io.Writer, snaps []ai.Snapshot) {
	for i, s := range snaps {
		RenderRow(w, i+1, s)
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// Progress tracks per-row character counts for a spinner line. Its
// Observe method is an ai.Observer.
type Progress struct {
	mu     sync.Mutex
	order  []string
	chars  map[string]int
	state  map[string]string
	onLine func(string)
}

// NewProgress creates a tracker for rows in display order. onLine receives
// the refreshed summary after every change; it may be nil.
func NewProgress(rows []string, onLine func(string)) *Progress {
	p := &Progress{
		order:  append([]string(nil), rows...),
		chars:  make(map[string]int, len(rows)),
		state:  make(map[string]string, len(rows)),
		onLine: onLine,
	}
	return p
}

// Observe records a row snapshot.
func (p *Progress) Observe(s ai.Snapshot) {
	p.mu.Lock()
	switch {
	case s.Generating && s.Output == ai.GeneratingText:
		p.state[s.Row] = "…"
		p.chars[s.Row] = 0
	case s.Generating:
		p.state[s.Row] = ""
		p.chars[s.Row] = utf8.RuneCountInString(s.Output)
	case s.Output == ai.AbortedText:
		p.state[s.Row] = "aborted"
	case s.Output == ai.FailedText:
		p.state[s.Row] = "failed"
	default:
		p.state[s.Row] = "done"
		p.chars[s.Row] = utf8.RuneCountInString(s.Output)
	}
	line := p.lineLocked()
	fn := p.onLine
	p.mu.Unlock()

	if fn != nil {
		fn(line)
	}
}

// Line returns the current summary, e.g. "row-1 12 · row-2 done (40)".
func (p *Progress) Line() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lineLocked()
}

func (p *Progress) lineLocked() string {
	parts := make([]string, 0, len(p.order))
	for _, row := range p.order {
		st, seen := p.state[row]
		switch {
		case !seen:
			parts = append(parts, row+" -")
		case st == "":
			parts = append(parts, fmt.Sprintf("%s %d", row, p.chars[row]))
		case st == "done":
			parts = append(parts, fmt.Sprintf("%s done (%d)", row, p.chars[row]))
		default:
			parts = append(parts, row+" "+st)
		}
	}
	return strings.Join(parts, " · ")
}

// RenderOutcome writes a short status line for a finished run.
func RenderOutcome(w io.Writer, o ai.Outcome) {
	switch o.Result {
	case ai.Completed:
		finishedColor.Fprintf(w, "  ✓ %s", o.Row)
	case ai.Aborted:
		abortedColor.Fprintf(w, "  ■ %s", o.Row)
	case ai.Failed:
		failedColor.Fprintf(w, "  ✗ %s", o.Row)
	default:
		return
	}
	dimColor.Fprintf(w, "  %s in %s\n", o.Result, o.Elapsed.Round(time.Millisecond))
}
