// Package controller fans user actions out to a set of independent rows.
// It holds no lifecycle state of its own: every row decides for itself.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/arin/streamrows/internal/ai"
)

// ErrNoSuchRow is returned by Client for an out-of-range index.
var ErrNoSuchRow = errors.New("no such row")

// Controller owns an ordered list of rows.
type Controller struct {
	mu      sync.RWMutex
	clients []*ai.Client
}

// New creates a controller over clients, in display order.
func New(clients ...*ai.Client) *Controller {
	return &Controller{clients: append([]*ai.Client(nil), clients...)}
}

// Add appends a row.
func (c *Controller) Add(client *ai.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients = append(c.clients, client)
}

// Clients returns the rows in display order.
func (c *Controller) Clients() []*ai.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*ai.Client(nil), c.clients...)
}

// Len reports the number of rows.
func (c *Controller) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clients)
}

// Client returns the row at index i (zero-based).
func (c *Controller) Client(i int) (*ai.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.clients) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrNoSuchRow, i+1, len(c.clients))
	}
	return c.clients[i], nil
}

// Batch tracks the runs started by one Generate call.
type Batch struct {
	runs []<-chan ai.Outcome
}

// Len reports how many rows actually started a run.
func (b *Batch) Len() int { return len(b.runs) }

// Wait blocks until every started run has ended and returns their
// outcomes in row order.
func (b *Batch) Wait() []ai.Outcome {
	out := make([]ai.Outcome, 0, len(b.runs))
	for _, ch := range b.runs {
		if o, ok := <-ch; ok {
			out = append(out, o)
		}
	}
	return out
}

// Each calls fn for every outcome as soon as it arrives, in arrival order,
// and returns once all runs have ended.
func (b *Batch) Each(fn func(ai.Outcome)) {
	merged := make(chan ai.Outcome)
	var wg sync.WaitGroup
	for _, ch := range b.runs {
		wg.Add(1)
		go func(ch <-chan ai.Outcome) {
			defer wg.Done()
			if o, ok := <-ch; ok {
				merged <- o
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()
	for o := range merged {
		fn(o)
	}
}

// Generate starts prompt on every row. Rows that refuse the prompt are
// reported in the joined error; the rest run regardless. An empty prompt
// is rejected once, before any row is touched.
func (c *Controller) Generate(ctx context.Context, prompt string) (*Batch, error) {
	if prompt == "" {
		return &Batch{}, ai.ErrEmptyPrompt
	}

	batch := &Batch{}
	var errs []error
	for _, client := range c.Clients() {
		ch, err := client.Generate(ctx, prompt)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", client.Name(), err))
			continue
		}
		batch.runs = append(batch.runs, ch)
	}
	return batch, errors.Join(errs...)
}

// Clear empties every row's output.
func (c *Controller) Clear() {
	for _, client := range c.Clients() {
		client.Clear()
	}
}

// Stop aborts every active run. Idle rows are untouched.
func (c *Controller) Stop() {
	for _, client := range c.Clients() {
		client.Stop()
	}
}

// UpdateAPIKey gives every row the same credential for its next run.
func (c *Controller) UpdateAPIKey(key string) {
	for _, client := range c.Clients() {
		client.UpdateAPIKey(key)
	}
}

// Close tears every row down.
func (c *Controller) Close() {
	for _, client := range c.Clients() {
		client.Close()
	}
}
