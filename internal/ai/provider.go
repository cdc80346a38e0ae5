package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a non-2xx body is kept for diagnostics.
const maxErrorBody = 512

// Doer sends HTTP requests. *http.Client satisfies it; tests swap in
// their own transport through WithHTTPClient.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// newRequest builds the streaming chat completion request for one run.
func newRequest(ctx context.Context, endpoint, apiKey string, body chatRequest) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, &TransportError{Op: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req, nil
}

// checkResponse turns a non-2xx or bodiless response into a TransportError.
func checkResponse(resp *http.Response) error {
	noBody := resp.Body == nil || resp.Body == http.NoBody
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		terr := &TransportError{Op: "unexpected response", StatusCode: resp.StatusCode}
		if !noBody {
			excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
			terr.Body = truncate(strings.TrimSpace(string(excerpt)), maxErrorBody)
		}
		return terr
	}
	if noBody {
		return &TransportError{Op: "unexpected response", Err: errNoBody}
	}
	return nil
}
