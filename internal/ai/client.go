// Package ai streams chat completions from OpenAI-compatible endpoints.
// A Client is one independent row: it owns its endpoint, its credential,
// its accumulated output and at most one in-flight request.
package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/arin/streamrows/internal/config"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const readSize = 4096

// Client is a streaming completion row.
//
// Lifecycle: Idle → Generating → {Completed, Aborted, Failed} → Idle.
// Every method is safe to call at any point of that lifecycle.
type Client struct {
	name      string
	model     string
	maxTokens int
	timeout   time.Duration
	http      Doer
	log       zerolog.Logger
	observer  Observer

	mu         sync.Mutex
	endpoint   string
	apiKey     string
	input      string
	output     string
	generating bool
	cancel     context.CancelCauseFunc
	epoch      uint64
	closed     bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithObserver registers fn to receive a Snapshot after every state change.
func WithObserver(fn Observer) Option {
	return func(c *Client) { c.observer = fn }
}

// WithTimeout bounds each run. Zero means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a row named name, seeded from cfg.
func NewClient(name string, cfg *config.Config, opts ...Option) *Client {
	c := &Client{
		name:      name,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		// No client-wide timeout: it would cut long streams short.
		http: &http.Client{},
		log:  zerolog.Nop(),
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("row", name).Logger()
	return c
}

// run is the per-Generate state handed to the read goroutine.
type run struct {
	id       string
	epoch    uint64
	cancel   context.CancelCauseFunc
	endpoint string
	apiKey   string
	prompt   string
}

// Generate starts streaming a completion for prompt and returns at once.
// The returned channel receives one Outcome when the run ends.
//
// An empty prompt is rejected with ErrEmptyPrompt and nothing changes.
// Calling Generate while a run is active cancels that run first; only
// the newest run writes to the Client.
func (c *Client) Generate(ctx context.Context, prompt string) (<-chan Outcome, error) {
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.cancel != nil {
		c.cancel(errSuperseded)
	}
	c.epoch++
	runCtx, cancel := context.WithCancelCause(ctx)
	r := &run{
		id:       uuid.NewString(),
		epoch:    c.epoch,
		cancel:   cancel,
		endpoint: c.endpoint,
		apiKey:   c.apiKey,
		prompt:   prompt,
	}
	c.cancel = cancel
	c.input = prompt
	c.output = GeneratingText
	c.generating = true
	c.notifyLocked()
	c.mu.Unlock()

	done := make(chan Outcome, 1)
	go c.run(runCtx, r, done)
	return done, nil
}

func (c *Client) run(ctx context.Context, r *run, done chan<- Outcome) {
	defer close(done)
	defer r.cancel(nil)

	start := time.Now()
	log := c.log.With().Str("run_id", r.id).Logger()
	log.Debug().Str("endpoint", r.endpoint).Int("prompt_len", len(r.prompt)).Msg("generation started")

	streamCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		streamCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	text, err := c.stream(streamCtx, r, log)

	out := Outcome{Row: c.name, RunID: r.id, Elapsed: time.Since(start)}
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, errSuperseded), errors.Is(cause, ErrClosed):
		out.Result, out.Err = Superseded, cause
		log.Debug().Err(cause).Msg("generation retired")
	case err == nil:
		out.Result, out.Text = Completed, text
		log.Debug().Int("chars", len(text)).Dur("elapsed", out.Elapsed).Msg("generation completed")
	case errors.Is(cause, ErrAborted):
		out.Result, out.Text, out.Err = Aborted, AbortedText, ErrAborted
		log.Info().Dur("elapsed", out.Elapsed).Msg("generation aborted")
	default:
		out.Result, out.Text, out.Err = Failed, FailedText, err
		log.Error().Err(err).Str("endpoint", r.endpoint).Dur("elapsed", out.Elapsed).Msg("generation failed")
	}

	c.mu.Lock()
	if c.epoch == r.epoch {
		c.output = out.Text
		c.generating = false
		c.cancel = nil
		c.notifyLocked()
	}
	c.mu.Unlock()

	done <- out
}

// stream issues the request and reads the body chunk by chunk until the
// stream ends, fails, or ctx is cancelled.
func (c *Client) stream(ctx context.Context, r *run, log zerolog.Logger) (string, error) {
	req, err := newRequest(ctx, r.endpoint, r.apiKey, chatRequest{
		Model:     c.model,
		Messages:  []Message{{Role: "user", Content: r.prompt}},
		MaxTokens: c.maxTokens,
		Stream:    true,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &TransportError{Op: "request failed", Err: err}
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	if err := checkResponse(resp); err != nil {
		return "", err
	}

	dec := NewDecoder()
	buf := make([]byte, readSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if err := dec.Write(buf[:n]); err != nil {
				return "", err
			}
			log.Trace().Int("bytes", n).Int("frames", dec.Frames()).Msg("chunk")
			c.publish(r.epoch, dec.Text())
			if dec.Done() {
				return dec.Text(), nil
			}
		}

		switch {
		case errors.Is(rerr, io.EOF):
			if err := dec.Close(); err != nil {
				return "", err
			}
			c.publish(r.epoch, dec.Text())
			return dec.Text(), nil
		case rerr != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", &TransportError{Op: "read failed", Err: rerr}
		}
	}
}

// publish shows partial progress. Nothing is published until the first
// delta arrives so the placeholder stays visible until then.
func (c *Client) publish(epoch uint64, text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	c.output = text
	c.notifyLocked()
}

// Stop cancels the active run, which then ends as Aborted. It is a no-op
// when the Client is idle.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return
	}
	c.log.Debug().Msg("stop requested")
	c.cancel(ErrAborted)
}

// Clear empties the output. An active run is not cancelled and its next
// chunk will overwrite the cleared output.
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.output = ""
	c.notifyLocked()
}

// UpdateAPIKey replaces the credential used by the next Generate.
func (c *Client) UpdateAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = key
}

// SetEndpoint replaces the URL used by the next Generate.
func (c *Client) SetEndpoint(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoint = url
	c.notifyLocked()
}

// Close tears the row down, cancelling any active run. Later calls to
// Generate return ErrClosed.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel(ErrClosed)
		c.cancel = nil
	}
	c.epoch++
	if c.generating {
		c.generating = false
		c.notifyLocked()
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

func (c *Client) APIKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apiKey
}

func (c *Client) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

func (c *Client) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output
}

func (c *Client) Generating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generating
}

// Snapshot returns all observable fields at once.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Client) snapshotLocked() Snapshot {
	return Snapshot{
		Row:        c.name,
		Endpoint:   c.endpoint,
		Model:      c.model,
		Input:      c.input,
		Output:     c.output,
		Generating: c.generating,
	}
}

func (c *Client) notifyLocked() {
	if c.observer != nil {
		c.observer(c.snapshotLocked())
	}
}
