// Package history keeps past prompts together with how every row answered.
// History is stored as a JSON file in the user's config directory.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arin/streamrows/internal/ai"
	"github.com/arin/streamrows/internal/config"
)

const (
	fileName   = "history.json"
	maxEntries = 500
	// maxOutput bounds each stored answer.
	maxOutput = 2000
)

// fileMu guards concurrent access to the history file.
var fileMu sync.Mutex

// RowResult is one row's answer to a prompt.
type RowResult struct {
	Row    string `json:"row"`
	Result string `json:"result"`
	Output string `json:"output,omitempty"`
}

// Entry represents a single prompt sent to the board.
type Entry struct {
	Timestamp time.Time   `json:"timestamp"`
	Prompt    string      `json:"prompt"`
	Rows      []RowResult `json:"rows"`
}

// Completed reports how many rows finished normally.
func (e Entry) Completed() int {
	n := 0
	for _, r := range e.Rows {
		if r.Result == ai.Completed.String() {
			n++
		}
	}
	return n
}

// FromOutcomes builds an entry for prompt. Superseded runs are skipped.
func FromOutcomes(prompt string, outcomes []ai.Outcome) Entry {
	e := Entry{Prompt: prompt}
	for _, o := range outcomes {
		if o.Result == ai.Superseded {
			continue
		}
		out := o.Text
		if r := []rune(out); len(r) > maxOutput {
			out = string(r[:maxOutput]) + "..."
		}
		e.Rows = append(e.Rows, RowResult{Row: o.Row, Result: o.Result.String(), Output: out})
	}
	return e
}

func historyPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Save appends a new entry to the history file. Entries without any row
// are dropped.
func Save(entry Entry) error {
	if len(entry.Rows) == 0 {
		return nil
	}
	fileMu.Lock()
	defer fileMu.Unlock()

	entry.Timestamp = time.Now()

	entries, err := loadAll()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", fileName, err)
	}
	entries = append(entries, entry)

	// Trim to max entries, keeping the most recent.
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(historyPath(), data, 0o600)
}

// Load returns the most recent n history entries.
func Load(limit int) ([]Entry, error) {
	fileMu.Lock()
	defer fileMu.Unlock()

	entries, err := loadAll()
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	return entries, nil
}

func loadAll() ([]Entry, error) {
	data, err := os.ReadFile(historyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}
