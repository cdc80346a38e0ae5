package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	dataPrefix = "data:"
	doneMarker = "[DONE]"
)

// Decoder turns response body chunks into accumulated completion text.
//
// Chunk boundaries are arbitrary: a chunk may end in the middle of a
// UTF-8 sequence, a line, or a JSON frame. Undecoded bytes and the
// unterminated last line are carried into the next Write.
//
// A malformed frame fails the whole stream. After Write or Close returns
// an error the Decoder must not be used again.
type Decoder struct {
	utf8    transform.Transformer
	pending []byte // incomplete trailing rune
	partial string // unterminated trailing line
	text    strings.Builder
	frames  int
	done    bool
}

// NewDecoder returns a Decoder with empty state.
func NewDecoder() *Decoder {
	return &Decoder{utf8: unicode.UTF8.NewDecoder()}
}

// Write consumes one chunk of the response body.
func (d *Decoder) Write(chunk []byte) error {
	if d.done {
		return nil
	}
	s, err := d.decode(chunk, false)
	if err != nil {
		return err
	}
	lines := strings.Split(d.partial+s, "\n")
	d.partial = lines[len(lines)-1]
	return d.consume(lines[:len(lines)-1])
}

// Close flushes held-back bytes and the final unterminated line. Call it
// once the body reports EOF.
func (d *Decoder) Close() error {
	if d.done {
		return nil
	}
	s, err := d.decode(nil, true)
	if err != nil {
		return err
	}
	rest := d.partial + s
	d.partial = ""
	if rest == "" {
		return nil
	}
	return d.consume(strings.Split(rest, "\n"))
}

// Text returns everything accumulated so far.
func (d *Decoder) Text() string { return d.text.String() }

// Done reports whether the end-of-stream marker has been seen.
func (d *Decoder) Done() bool { return d.done }

// Frames returns the number of frames parsed.
func (d *Decoder) Frames() int { return d.frames }

func (d *Decoder) decode(chunk []byte, atEOF bool) (string, error) {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}
	if len(src) == 0 {
		return "", nil
	}

	// Each invalid byte may grow into a 3-byte replacement rune.
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	var out strings.Builder
	for {
		nDst, nSrc, err := d.utf8.Transform(dst, src, atEOF)
		out.Write(dst[:nDst])
		src = src[nSrc:]
		switch {
		case err == nil:
			return out.String(), nil
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
			return out.String(), nil
		case errors.Is(err, transform.ErrShortDst):
			if nSrc == 0 {
				dst = make([]byte, 2*len(dst))
			}
		default:
			return "", fmt.Errorf("failed to decode chunk: %w", err)
		}
	}
}

func (d *Decoder) consume(lines []string) error {
	for _, line := range lines {
		if d.done {
			return nil
		}
		if err := d.line(line); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) line(raw string) error {
	line := strings.TrimSpace(raw)
	// Blank separators and SSE comments (keep-alives) carry no frame.
	if line == "" || strings.HasPrefix(line, ":") {
		return nil
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if line == "" {
		return nil
	}
	if line == doneMarker {
		d.done = true
		return nil
	}

	var f Frame
	if err := json.Unmarshal([]byte(line), &f); err != nil {
		return &ProtocolError{Line: line, Err: err}
	}
	d.frames++
	if f.Error != nil {
		return &ProtocolError{Line: line, Err: fmt.Errorf("server error: %s", f.Error.Message)}
	}
	d.text.WriteString(f.Text())
	return nil
}
