// Package stats records how each row's runs ended and persists them to
// ~/.streamrows/stats.json so summaries survive across sessions.
package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/arin/streamrows/internal/ai"
	"github.com/arin/streamrows/internal/config"
)

const (
	fileName   = "stats.json"
	maxRecords = 1000
)

// Record is one finished run of one row.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Row       string    `json:"row"`
	Model     string    `json:"model,omitempty"`
	Result    string    `json:"result"`
	Chars     int       `json:"chars"`
	LatencyMs int64     `json:"latency_ms"`
}

// RowSummary aggregates the runs of a single row.
type RowSummary struct {
	Row          string `json:"row"`
	Runs         int    `json:"runs"`
	Completed    int    `json:"completed"`
	Aborted      int    `json:"aborted"`
	Failed       int    `json:"failed"`
	AvgLatencyMs int64  `json:"avg_latency_ms"`
}

// Summary is the aggregated dashboard.
type Summary struct {
	TotalRuns     int          `json:"total_runs"`
	Completed     int          `json:"completed"`
	Aborted       int          `json:"aborted"`
	Failed        int          `json:"failed"`
	SuccessRate   float64      `json:"success_rate"`
	AvgLatencyMs  int64        `json:"avg_latency_ms"`
	Rows          []RowSummary `json:"rows"`
	TodayCount    int          `json:"today_count"`
	ThisWeekCount int          `json:"this_week_count"`
}

// FromOutcomes converts finished runs into records. Superseded runs never
// owned their row and are skipped.
func FromOutcomes(model string, outcomes ...ai.Outcome) []Record {
	now := time.Now()
	var records []Record
	for _, o := range outcomes {
		if o.Result == ai.Superseded {
			continue
		}
		r := Record{
			Timestamp: now,
			RunID:     o.RunID,
			Row:       o.Row,
			Model:     model,
			Result:    o.Result.String(),
			LatencyMs: o.Elapsed.Milliseconds(),
		}
		if o.Result == ai.Completed {
			r.Chars = len([]rune(o.Text))
		}
		records = append(records, r)
	}
	return records
}

var fileMu sync.Mutex

func statsPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Save appends records to the stats file. An unreadable or corrupt file is
// reported and left untouched.
func Save(records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	fileMu.Lock()
	defer fileMu.Unlock()

	all, err := loadAll()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", fileName, err)
	}
	for _, r := range records {
		if r.Timestamp.IsZero() {
			r.Timestamp = time.Now()
		}
		all = append(all, r)
	}
	if len(all) > maxRecords {
		all = all[len(all)-maxRecords:]
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statsPath(), data, 0o600)
}

// LoadAll returns all stored records.
func LoadAll() ([]Record, error) {
	fileMu.Lock()
	defer fileMu.Unlock()
	return loadAll()
}

func loadAll() ([]Record, error) {
	data, err := os.ReadFile(statsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Summarize computes aggregated stats from the stats file.
func Summarize() (*Summary, error) {
	records, err := LoadAll()
	if err != nil {
		return nil, err
	}
	return SummarizeRecords(records, time.Now()), nil
}

// SummarizeRecords aggregates records into a Summary.
func SummarizeRecords(records []Record, now time.Time) *Summary {
	s := &Summary{TotalRuns: len(records)}
	if len(records) == 0 {
		return s
	}

	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	weekAgo := now.AddDate(0, 0, -7)

	var total int64
	rows := map[string]*RowSummary{}
	rowLatency := map[string]int64{}

	for _, r := range records {
		row, ok := rows[r.Row]
		if !ok {
			row = &RowSummary{Row: r.Row}
			rows[r.Row] = row
		}
		row.Runs++
		switch r.Result {
		case ai.Completed.String():
			s.Completed++
			row.Completed++
		case ai.Aborted.String():
			s.Aborted++
			row.Aborted++
		case ai.Failed.String():
			s.Failed++
			row.Failed++
		}
		total += r.LatencyMs
		rowLatency[r.Row] += r.LatencyMs

		if !r.Timestamp.Before(today) {
			s.TodayCount++
		}
		if r.Timestamp.After(weekAgo) {
			s.ThisWeekCount++
		}
	}

	s.SuccessRate = float64(s.Completed) / float64(len(records)) * 100
	s.AvgLatencyMs = total / int64(len(records))

	for name, row := range rows {
		row.AvgLatencyMs = rowLatency[name] / int64(row.Runs)
		s.Rows = append(s.Rows, *row)
	}
	sort.Slice(s.Rows, func(i, j int) bool { return s.Rows[i].Row < s.Rows[j].Row })
	return s
}

// SummarizeOutcomes aggregates runs that have not been saved.
func SummarizeOutcomes(outcomes []ai.Outcome, now time.Time) *Summary {
	return SummarizeRecords(FromOutcomes("", outcomes...), now)
}
