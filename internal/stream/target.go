package stream

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Target identifies the log source endpoints for one training run.
type Target struct {
	BaseURL    string // e.g. http://localhost:8080/api/model/training-logs
	TrainingID string
	ConfigID   int
}

func (t Target) path(suffix string) string {
	return strings.TrimRight(t.BaseURL, "/") + "/" + url.PathEscape(t.TrainingID) + suffix
}

// SnapshotURL is the point-in-time full log endpoint.
func (t Target) SnapshotURL() string {
	return t.path("")
}

// StreamURL is the server-push event stream endpoint.
func (t Target) StreamURL() string {
	return t.path("/stream") + "?configId=" + strconv.Itoa(t.ConfigID)
}

// SocketURL is the websocket endpoint, with the scheme switched to ws/wss.
func (t Target) SocketURL() (string, error) {
	u, err := url.Parse(t.path("/ws"))
	if err != nil {
		return "", fmt.Errorf("stream: socket url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("stream: socket url: unsupported scheme %q", u.Scheme)
	}
	q := u.Query()
	q.Set("configId", strconv.Itoa(t.ConfigID))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
