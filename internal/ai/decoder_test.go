package ai

import (
	"errors"
	"strings"
	"testing"
)

// decodeChunks feeds each chunk to a fresh Decoder and closes it.
func decodeChunks(t *testing.T, chunks ...string) (string, *Decoder, error) {
	t.Helper()
	dec := NewDecoder()
	for _, c := range chunks {
		if err := dec.Write([]byte(c)); err != nil {
			return dec.Text(), dec, err
		}
	}
	if err := dec.Close(); err != nil {
		return dec.Text(), dec, err
	}
	return dec.Text(), dec, nil
}

func frame(content string) string {
	return `data: {"choices":[{"delta":{"content":"` + content + `"}}]}` + "\n"
}

// splitEvery cuts s into pieces of the given sizes, cycling through them.
func splitEvery(s string, sizes ...int) []string {
	var out []string
	for i := 0; len(s) > 0; i++ {
		n := sizes[i%len(sizes)]
		if n > len(s) {
			n = len(s)
		}
		out = append(out, s[:n])
		s = s[n:]
	}
	return out
}

// --- Scenarios ---

func TestDecoder_TwoChunkHello(t *testing.T) {
	got, dec, err := decodeChunks(t,
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`+"\n",
		`data: {"choices":[{"delta":{"content":"lo"}}]}`+"\n\ndata: [DONE]\n",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello" {
		t.Errorf("expected 'Hello', got %q", got)
	}
	if !dec.Done() {
		t.Error("expected decoder to be done after [DONE]")
	}
	if dec.Frames() != 2 {
		t.Errorf("expected 2 frames, got %d", dec.Frames())
	}
}

func TestDecoder_MalformedLineFails(t *testing.T) {
	_, _, err := decodeChunks(t, frame("ok"), "data: {not json}\n", frame("never"))
	if err == nil {
		t.Fatal("expected error for malformed frame")
	}
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProtocolError, got %T: %v", err, err)
	}
	if perr.Line != "{not json}" {
		t.Errorf("unexpected line in error: %q", perr.Line)
	}
}

func TestDecoder_MalformedTrailingLineFailsOnClose(t *testing.T) {
	dec := NewDecoder()
	if err := dec.Write([]byte(frame("a") + "data: {broken")); err != nil {
		t.Fatalf("unterminated line should wait for more input, got: %v", err)
	}
	if err := dec.Close(); err == nil {
		t.Fatal("expected error flushing a broken trailing line")
	}
}

// --- Chunk boundaries ---

func TestDecoder_ChunkBoundaryIdempotence(t *testing.T) {
	stream := `data: {"choices":[{"delta":{"role":"assistant"}}]}` + "\n\n" +
		frame("héllo ") + "\n" +
		frame("世界 ") + "\n" +
		frame("\U0001F389!") + "\n" +
		"data: [DONE]\n\n"

	want, _, err := decodeChunks(t, stream)
	if err != nil {
		t.Fatalf("unexpected error on whole stream: %v", err)
	}
	if want != "héllo 世界 \U0001F389!" {
		t.Fatalf("unexpected whole-stream text: %q", want)
	}

	// Every two-way split, including inside frames and inside runes.
	for i := 1; i < len(stream); i++ {
		got, _, err := decodeChunks(t, stream[:i], stream[i:])
		if err != nil {
			t.Fatalf("split at %d: unexpected error: %v", i, err)
		}
		if got != want {
			t.Fatalf("split at %d: expected %q, got %q", i, want, got)
		}
	}

	for _, sizes := range [][]int{{1}, {2}, {3}, {5, 1, 7}, {13, 2}, {64}} {
		got, _, err := decodeChunks(t, splitEvery(stream, sizes...)...)
		if err != nil {
			t.Fatalf("sizes %v: unexpected error: %v", sizes, err)
		}
		if got != want {
			t.Errorf("sizes %v: expected %q, got %q", sizes, want, got)
		}
	}
}

func TestDecoder_SplitRuneIsHeldBack(t *testing.T) {
	dec := NewDecoder()
	full := []byte(frame("é"))
	// Cut between the two bytes of é.
	cut := strings.Index(string(full), "é") + 1

	if err := dec.Write(full[:cut]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Text() != "" {
		t.Errorf("expected nothing before the line completes, got %q", dec.Text())
	}
	if err := dec.Write(full[cut:]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Text() != "é" {
		t.Errorf("expected %q, got %q", "é", dec.Text())
	}
}

func TestDecoder_UnterminatedLastLineFlushedOnClose(t *testing.T) {
	got, _, err := decodeChunks(t, frame("a"), `data: {"choices":[{"delta":{"content":"b"}}]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ab" {
		t.Errorf("expected 'ab', got %q", got)
	}
}

func TestDecoder_InvalidUTF8Replaced(t *testing.T) {
	got, _, err := decodeChunks(t, "data: {\"choices\":[{\"delta\":{\"content\":\"a\xffb\"}}]}\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a\uFFFDb" {
		t.Errorf("expected replacement rune, got %q", got)
	}
}

// --- Line handling ---

func TestDecoder_FrameWithoutContentContributesNothing(t *testing.T) {
	got, _, err := decodeChunks(t,
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`+"\n",
		`data: {"choices":[{"delta":{}}]}`+"\n",
		`data: {"choices":[{"delta":{"content":null}}]}`+"\n",
		`data: {"choices":[]}`+"\n",
		`data: {"id":"x"}`+"\n",
		frame("x"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "x" {
		t.Errorf("expected 'x', got %q", got)
	}
}

func TestDecoder_DoneStopsAccumulation(t *testing.T) {
	got, dec, err := decodeChunks(t, frame("a"), "data: [DONE]\n", frame("b"), "data: {not json}\n")
	if err != nil {
		t.Fatalf("lines after [DONE] should be ignored, got: %v", err)
	}
	if got != "a" {
		t.Errorf("expected 'a', got %q", got)
	}
	if strings.Contains(got, "DONE") {
		t.Error("[DONE] marker leaked into output")
	}
	if !dec.Done() {
		t.Error("expected Done after marker")
	}
}

func TestDecoder_LineVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"crlf", "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\r\n\r\n", "a"},
		{"no space after prefix", `data:{"choices":[{"delta":{"content":"b"}}]}` + "\n", "b"},
		{"bare json", `{"choices":[{"delta":{"content":"c"}}]}` + "\n", "c"},
		{"comment", ": keep-alive\n" + frame("d"), "d"},
		{"blank lines", "\n\n   \n" + frame("e") + "\n\n", "e"},
		{"empty data", "data:\n" + frame("f"), "f"},
		{"done with spaces", frame("g") + "data:   [DONE]  \n", "g"},
	}
	for _, tt := range tests {
		got, _, err := decodeChunks(t, tt.input)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, got)
		}
	}
}

func TestDecoder_ErrorFrameFails(t *testing.T) {
	_, _, err := decodeChunks(t, frame("a"), `data: {"error":{"message":"quota exceeded","type":"insufficient_quota"}}`+"\n")
	if err == nil {
		t.Fatal("expected error frame to fail the stream")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("expected server message in error, got: %v", err)
	}
}

func TestDecoder_EmptyStream(t *testing.T) {
	got, dec, err := decodeChunks(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" || dec.Frames() != 0 || dec.Done() {
		t.Errorf("expected untouched decoder, got text=%q frames=%d done=%v", got, dec.Frames(), dec.Done())
	}
}
