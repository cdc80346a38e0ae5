// Package ai provides types for the OpenAI-compatible chat completions wire format.
package ai

// Sentinel texts shown in place of real output while a row is busy or
// after a run did not complete.
const (
	GeneratingText = "Generating..."
	AbortedText    = "Request aborted."
	FailedText     = "Error occurred while generating."
)

const (
	// DefaultEndpoint is where a freshly created row points.
	DefaultEndpoint  = "https://api.openai.com/v1/chat/completions"
	DefaultModel     = "gpt-3.5-turbo"
	DefaultMaxTokens = 100
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// chatRequest is the request body sent to the completions endpoint.
type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	Stream    bool      `json:"stream"`
}

// Frame is one JSON object carried on a "data:" line of the response.
type Frame struct {
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

// Choice is a single streamed choice. Only the delta is consumed.
type Choice struct {
	Index int   `json:"index"`
	Delta Delta `json:"delta"`
}

// Delta is the incremental text fragment of a choice.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// APIError is the error object some servers emit inside the stream.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    any    `json:"code,omitempty"`
}

// Text returns the first choice's delta content, or "" when the frame
// carries none.
func (f *Frame) Text() string {
	if len(f.Choices) == 0 {
		return ""
	}
	return f.Choices[0].Delta.Content
}
