package ai

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrEmptyPrompt is returned synchronously by Generate for an empty prompt.
	ErrEmptyPrompt = errors.New("please enter a prompt")
	// ErrAborted is the cancellation cause used by Stop.
	ErrAborted = errors.New("request aborted")
	// ErrClosed is returned by Generate after Close, and is the cause used
	// to cancel a run on teardown.
	ErrClosed = errors.New("client closed")

	errSuperseded = errors.New("superseded by a newer request")
	errNoBody     = errors.New("response body is missing")
)

// TransportError covers connection failures, non-2xx responses and
// missing bodies.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a stream line that could not be used as a frame.
type ProtocolError struct {
	Line string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed frame %q: %v", truncate(e.Line, 120), e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... (truncated)"
}
