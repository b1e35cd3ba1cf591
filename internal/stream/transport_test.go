package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// recordingSink collects transport callbacks.
type recordingSink struct {
	mu      sync.Mutex
	opened  int
	chunks  []Chunk
	reports []error
}

func (r *recordingSink) Opened() {
	r.mu.Lock()
	r.opened++
	r.mu.Unlock()
}

func (r *recordingSink) Deliver(c Chunk) {
	r.mu.Lock()
	r.chunks = append(r.chunks, c)
	r.mu.Unlock()
}

func (r *recordingSink) Report(err error) {
	r.mu.Lock()
	r.reports = append(r.reports, err)
	r.mu.Unlock()
}

func (r *recordingSink) snapshot() (int, []Chunk, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened, append([]Chunk(nil), r.chunks...), append([]error(nil), r.reports...)
}

// everySchedule fires at a fixed sub-second interval, which cron's own
// descriptors round up to a second.
type everySchedule time.Duration

func (e everySchedule) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

func TestSnapshotClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/logs/ok":
			fmt.Fprint(w, `{"logs":["a","b"]}`)
		case "/logs/flagged":
			fmt.Fprint(w, `{"logs":[],"error":true,"message":"training not found"}`)
		case "/logs/flagged-empty":
			fmt.Fprint(w, `{"error":true}`)
		case "/logs/nologs":
			fmt.Fprint(w, `{}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := &SnapshotClient{}
	ctx := context.Background()
	tg := func(id string) Target { return Target{BaseURL: srv.URL + "/logs", TrainingID: id} }

	lines, err := c.Fetch(ctx, tg("ok"))
	if err != nil || len(lines) != 2 || lines[1] != "b" {
		t.Errorf("Fetch(ok) = %v, %v", lines, err)
	}

	_, err = c.Fetch(ctx, tg("flagged"))
	if err == nil || err.Error() != "training not found" {
		t.Errorf("Fetch(flagged) err = %v", err)
	}

	_, err = c.Fetch(ctx, tg("flagged-empty"))
	if err == nil || err.Error() != "Failed to fetch logs" {
		t.Errorf("Fetch(flagged-empty) err = %v", err)
	}

	lines, err = c.Fetch(ctx, tg("nologs"))
	if err != nil || lines != nil {
		t.Errorf("Fetch(nologs) = %v, %v; want nil, nil", lines, err)
	}

	_, err = c.Fetch(ctx, tg("boom"))
	var se *HTTPStatusError
	if !errors.As(err, &se) || se.Status != 500 {
		t.Errorf("Fetch(boom) err = %v, want HTTPStatusError 500", err)
	}
	if err.Error() != "HTTP error! Status: 500" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestSSETransport_ParsesEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/logs/t1/stream" || r.URL.Query().Get("configId") != "4" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": comment\n\n")
		fmt.Fprint(w, "event: history\ndata: [\"a\",\"b\"]\n\n")
		fmt.Fprint(w, "data: plain line\n\n")
		fmt.Fprint(w, "event: log\ndata:no-space\n\n")
		fmt.Fprint(w, "data: first\ndata: second\n\n")
		fmt.Fprint(w, "event: log\n\n") // no data: not dispatched
	}))
	defer srv.Close()

	sink := &recordingSink{}
	err := (&SSETransport{}).Run(context.Background(), Target{BaseURL: srv.URL + "/logs", TrainingID: "t1", ConfigID: 4}, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	opened, chunks, _ := sink.snapshot()
	if opened != 1 {
		t.Errorf("opened = %d, want 1", opened)
	}
	want := []Chunk{
		{Event: "history", Data: `["a","b"]`},
		{Event: "", Data: "plain line"},
		{Event: "log", Data: "no-space"},
		{Event: "", Data: "first\nsecond"},
	}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %+v, want %+v", chunks, want)
	}
	for i := range want {
		if chunks[i].Event != want[i].Event || chunks[i].Data != want[i].Data {
			t.Errorf("chunk[%d] = %+v, want %+v", i, chunks[i], want[i])
		}
	}
}

func TestSSETransport_DropsUnknownEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: ping\ndata: keepalive\n\n")
		fmt.Fprint(w, "event: progress\ndata: {\"pct\":40}\n\n")
		fmt.Fprint(w, "event: message\ndata: named default\n\n")
		fmt.Fprint(w, "event: log\ndata: real\n\n")
	}))
	defer srv.Close()

	sink := &recordingSink{}
	if err := (&SSETransport{}).Run(context.Background(), Target{BaseURL: srv.URL, TrainingID: "t1"}, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	_, chunks, _ := sink.snapshot()
	want := []Chunk{
		{Event: EventMessage, Data: "named default"},
		{Event: EventLog, Data: "real"},
	}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %+v, want %+v", chunks, want)
	}
	for i := range want {
		if chunks[i].Event != want[i].Event || chunks[i].Data != want[i].Data {
			t.Errorf("chunk[%d] = %+v, want %+v", i, chunks[i], want[i])
		}
	}
}

func TestSSETransport_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/logs/html") {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html></html>")
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	sink := &recordingSink{}
	err := (&SSETransport{}).Run(context.Background(), Target{BaseURL: srv.URL + "/logs", TrainingID: "t1"}, sink)
	var se *HTTPStatusError
	if !errors.As(err, &se) || se.Status != 404 {
		t.Errorf("err = %v, want 404", err)
	}

	err = (&SSETransport{}).Run(context.Background(), Target{BaseURL: srv.URL + "/logs", TrainingID: "html"}, sink)
	if err == nil || !strings.Contains(err.Error(), "content type") {
		t.Errorf("err = %v, want content type error", err)
	}
	if opened, _, _ := sink.snapshot(); opened != 0 {
		t.Errorf("opened = %d, want 0", opened)
	}
}

func TestSSETransport_CancelStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	sink := &recordingSink{}
	go func() {
		errCh <- (&SSETransport{}).Run(ctx, Target{BaseURL: srv.URL, TrainingID: "t1"}, sink)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if opened, _, _ := sink.snapshot(); opened == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSocketTransport_ReadsFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/logs/t1/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"logs":["a","b"]}`))
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x1})
		conn.WriteMessage(websocket.TextMessage, []byte("c"))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		conn.ReadMessage()
	}))
	defer srv.Close()

	sink := &recordingSink{}
	err := (&SocketTransport{}).Run(context.Background(), Target{BaseURL: srv.URL + "/logs", TrainingID: "t1"}, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	opened, chunks, _ := sink.snapshot()
	if opened != 1 {
		t.Errorf("opened = %d, want 1", opened)
	}
	if len(chunks) != 2 || chunks[0].Data != `{"logs":["a","b"]}` || chunks[1].Data != "c" {
		t.Errorf("chunks = %+v", chunks)
	}
}

func TestSocketTransport_HandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	err := (&SocketTransport{}).Run(context.Background(), Target{BaseURL: srv.URL, TrainingID: "t1"}, &recordingSink{})
	var se *HTTPStatusError
	if !errors.As(err, &se) || se.Status != 404 {
		t.Errorf("err = %v, want 404", err)
	}
}

func TestPollTransport_DeliversAndReports(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, `{"logs":["line %d"]}`, n)
	}))
	defer srv.Close()

	pt := &PollTransport{Client: &SnapshotClient{}, Schedule: everySchedule(10 * time.Millisecond)}
	ctx, cancel := context.WithCancel(context.Background())
	sink := &recordingSink{}
	errCh := make(chan error, 1)
	go func() { errCh <- pt.Run(ctx, Target{BaseURL: srv.URL, TrainingID: "t1"}, sink) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, chunks, _ := sink.snapshot(); len(chunks) >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}

	opened, chunks, reports := sink.snapshot()
	if opened != 1 {
		t.Errorf("opened = %d, want 1", opened)
	}
	if len(chunks) < 2 || chunks[0].Lines[0] != "line 1" || chunks[1].Lines[0] != "line 3" {
		t.Errorf("chunks = %+v", chunks)
	}
	if len(reports) != 1 {
		t.Errorf("reports = %v, want one", reports)
	}
}

func TestNewPollTransport_DefaultSchedule(t *testing.T) {
	pt, err := NewPollTransport(nil, "")
	if err != nil {
		t.Fatalf("NewPollTransport: %v", err)
	}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := pt.Schedule.Next(now).Sub(now); got != 2*time.Second {
		t.Errorf("interval = %v, want 2s", got)
	}
	if pt.Client == nil {
		t.Error("client should default")
	}
}
