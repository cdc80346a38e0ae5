package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arin/streamrows/internal/ai"
	"github.com/arin/streamrows/internal/config"
)

func setupTestDir(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func entry(prompt string) Entry {
	return Entry{Prompt: prompt, Rows: []RowResult{{Row: "row-1", Result: "completed", Output: "ok"}}}
}

func TestSave_SingleEntry(t *testing.T) {
	setupTestDir(t)

	err := Save(Entry{Prompt: "Say hi", Rows: []RowResult{
		{Row: "row-1", Result: "completed", Output: "Hello"},
		{Row: "row-2", Result: "failed", Output: ai.FailedText},
	}})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := Load(10)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Prompt != "Say hi" {
		t.Errorf("expected prompt 'Say hi', got %q", e.Prompt)
	}
	if len(e.Rows) != 2 || e.Rows[0].Output != "Hello" {
		t.Errorf("unexpected rows: %+v", e.Rows)
	}
	if e.Completed() != 1 {
		t.Errorf("expected 1 completed row, got %d", e.Completed())
	}
	if e.Timestamp.IsZero() {
		t.Error("expected non-zero timestamp")
	}
}

func TestSave_SkipsEmptyEntry(t *testing.T) {
	setupTestDir(t)

	if err := Save(Entry{Prompt: "nothing ran"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	entries, _ := Load(0)
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestSave_TrimsToMaxEntries(t *testing.T) {
	setupTestDir(t)

	for i := 0; i < maxEntries+10; i++ {
		Save(entry("test"))
	}

	entries, err := Load(0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) > maxEntries {
		t.Errorf("expected at most %d entries, got %d", maxEntries, len(entries))
	}
}

func TestLoad_WithLimit(t *testing.T) {
	setupTestDir(t)

	for i := 0; i < 20; i++ {
		Save(entry("test"))
	}

	entries, err := Load(5)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("expected 5 entries with limit, got %d", len(entries))
	}

	// limit=0 should return all.
	all, _ := Load(0)
	if len(all) != 20 {
		t.Errorf("expected 20 entries with limit=0, got %d", len(all))
	}
}

func TestLoad_NoFile(t *testing.T) {
	setupTestDir(t)

	entries, err := Load(10)
	if err != nil {
		t.Fatalf("Load on missing file should not error: %v", err)
	}
	if entries != nil {
		t.Errorf("expected nil entries, got %v", entries)
	}
}

func TestFromOutcomes(t *testing.T) {
	long := strings.Repeat("é", maxOutput+5)
	e := FromOutcomes("Say hi", []ai.Outcome{
		{Row: "row-1", Result: ai.Completed, Text: "Hello"},
		{Row: "row-2", Result: ai.Superseded},
		{Row: "row-3", Result: ai.Aborted, Text: ai.AbortedText},
		{Row: "row-4", Result: ai.Completed, Text: long},
	})

	if e.Prompt != "Say hi" || len(e.Rows) != 3 {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Rows[1].Result != "aborted" || e.Rows[1].Output != ai.AbortedText {
		t.Errorf("unexpected aborted row: %+v", e.Rows[1])
	}
	if got := []rune(e.Rows[2].Output); len(got) != maxOutput+3 {
		t.Errorf("expected truncated output, got %d runes", len(got))
	}
	if e.Completed() != 2 {
		t.Errorf("expected 2 completed, got %d", e.Completed())
	}
}

func TestSave_CorruptFileIsLeftAlone(t *testing.T) {
	setupTestDir(t)

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(config.Dir(), fileName)
	corrupt := []byte(`[{"prompt":"earlier"`)
	if err := os.WriteFile(path, corrupt, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := Save(entry("next")); err == nil {
		t.Fatal("expected Save to report the unreadable file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(corrupt) {
		t.Errorf("expected file to be untouched, got %s", data)
	}
}
