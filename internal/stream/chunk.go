package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event names carried by the push stream.
const (
	EventMessage = "message"
	EventLog     = "log"
	EventHistory = "history"
)

// Chunk is one unit of data received from a transport.
type Chunk struct {
	Event string   // "", "message", "log" or "history"
	Data  string   // raw payload
	Lines []string // already-decoded batch; takes precedence over Data
}

// Normalize turns a chunk into log lines in arrival order. batch reports
// whether the chunk was a backlog delivery rather than a single line.
func (c Chunk) Normalize() (lines []string, batch bool, err error) {
	if c.Lines != nil {
		return c.Lines, true, nil
	}
	switch c.Event {
	case EventHistory:
		lines, err := decodeLineArray([]byte(c.Data))
		if err != nil {
			return nil, false, fmt.Errorf("stream: history payload: %w", err)
		}
		return lines, true, nil
	case EventLog:
		return []string{c.Data}, false, nil
	default:
		return normalizeMessage(c.Data)
	}
}

// normalizeMessage handles unlabeled messages: either a bare line or a JSON
// envelope with a "log" or "logs" field.
func normalizeMessage(data string) ([]string, bool, error) {
	trimmed := strings.TrimSpace(data)
	if !strings.HasPrefix(trimmed, "{") {
		return []string{data}, false, nil
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return []string{data}, false, nil
	}
	if raw, ok := env["logs"]; ok {
		lines, err := decodeLineArray(raw)
		if err != nil {
			return nil, false, fmt.Errorf("stream: logs envelope: %w", err)
		}
		return lines, true, nil
	}
	if raw, ok := env["log"]; ok {
		var line string
		if err := json.Unmarshal(raw, &line); err == nil {
			return []string{line}, false, nil
		}
	}
	// A JSON line without an envelope field, e.g. a metrics record.
	return []string{data}, false, nil
}

// decodeLineArray decodes a JSON array of lines. Non-string elements are kept
// as their JSON text.
func decodeLineArray(data []byte) ([]string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			lines = append(lines, s)
			continue
		}
		lines = append(lines, string(r))
	}
	return lines, nil
}
