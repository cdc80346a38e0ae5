package ai

import "time"

// Result is the terminal state of one Generate call.
type Result int

const (
	// Completed means the stream reached its natural end.
	Completed Result = iota
	// Aborted means Stop was called while the run was active.
	Aborted
	// Failed covers transport, status and protocol errors.
	Failed
	// Superseded means a newer Generate or Close retired this run.
	// A superseded run leaves the Client's state alone.
	Superseded
)

func (r Result) String() string {
	switch r {
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	case Failed:
		return "failed"
	case Superseded:
		return "superseded"
	}
	return "unknown"
}

// Outcome is delivered exactly once per Generate call.
type Outcome struct {
	Row    string
	RunID  string
	Result Result
	// Text is the output left on the row: the completion for Completed,
	// otherwise the matching sentinel. Empty for Superseded.
	Text    string
	Err     error
	Elapsed time.Duration
}

// Snapshot is a consistent copy of a Client's observable fields.
type Snapshot struct {
	Row        string
	Endpoint   string
	Model      string
	Input      string
	Output     string
	Generating bool
}

// Observer is notified after every change to a Client's observable state.
// Calls for one Client are serialised and arrive in order. Observers run
// with the Client locked and must not call back into it.
type Observer func(Snapshot)
