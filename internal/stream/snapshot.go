package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// HTTPStatusError is returned when the log source answers with a non-2xx status.
type HTTPStatusError struct {
	Status int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP error! Status: %d", e.Status)
}

// snapshotResponse is the body of the point-in-time log endpoint.
type snapshotResponse struct {
	Logs    []string `json:"logs"`
	Error   bool     `json:"error"`
	Message string   `json:"message"`
}

// SnapshotClient fetches the full current log for a training run.
type SnapshotClient struct {
	HTTP *http.Client // defaults to http.DefaultClient
}

// Fetch returns every line logged so far. A response without a logs array
// yields nil lines and no error.
func (c *SnapshotClient) Fetch(ctx context.Context, t Target) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.SnapshotURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("stream: snapshot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &HTTPStatusError{Status: resp.StatusCode}
	}

	var body snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if body.Error {
		if body.Message == "" {
			body.Message = "Failed to fetch logs"
		}
		return nil, errors.New(body.Message)
	}
	return body.Logs, nil
}
