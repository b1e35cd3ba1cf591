package stream

import (
	"reflect"
	"testing"
)

func TestChunk_Normalize(t *testing.T) {
	tests := []struct {
		name      string
		chunk     Chunk
		wantLines []string
		wantBatch bool
		wantErr   bool
	}{
		{"plain message", Chunk{Data: "epoch 1"}, []string{"epoch 1"}, false, false},
		{"labeled log", Chunk{Event: EventLog, Data: `{"log":"not unwrapped"}`}, []string{`{"log":"not unwrapped"}`}, false, false},
		{"history array", Chunk{Event: EventHistory, Data: `["a","b","c"]`}, []string{"a", "b", "c"}, true, false},
		{"history non-strings kept as json", Chunk{Event: EventHistory, Data: `["a",1,{"x":2}]`}, []string{"a", "1", `{"x":2}`}, true, false},
		{"history not array", Chunk{Event: EventHistory, Data: `{"logs":[]}`}, nil, false, true},
		{"log envelope", Chunk{Event: EventMessage, Data: `{"log":"step done"}`}, []string{"step done"}, false, false},
		{"logs envelope", Chunk{Data: `{"logs":["x","y"]}`}, []string{"x", "y"}, true, false},
		{"logs envelope bad", Chunk{Data: `{"logs":"x"}`}, nil, false, true},
		{"metrics line stays opaque", Chunk{Data: `{"step":1,"epoch":0,"loss":2}`}, []string{`{"step":1,"epoch":0,"loss":2}`}, false, false},
		{"broken json stays opaque", Chunk{Data: `{not json`}, []string{`{not json`}, false, false},
		{"decoded batch", Chunk{Lines: []string{"p", "q"}}, []string{"p", "q"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, batch, err := tt.chunk.Normalize()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(lines, tt.wantLines) {
				t.Errorf("lines = %q, want %q", lines, tt.wantLines)
			}
			if batch != tt.wantBatch {
				t.Errorf("batch = %v, want %v", batch, tt.wantBatch)
			}
		})
	}
}

func TestTarget_URLs(t *testing.T) {
	tg := Target{BaseURL: "http://localhost:8080/api/model/training-logs/", TrainingID: "run 7", ConfigID: 3}

	if got, want := tg.SnapshotURL(), "http://localhost:8080/api/model/training-logs/run%207"; got != want {
		t.Errorf("SnapshotURL = %q, want %q", got, want)
	}
	if got, want := tg.StreamURL(), "http://localhost:8080/api/model/training-logs/run%207/stream?configId=3"; got != want {
		t.Errorf("StreamURL = %q, want %q", got, want)
	}
	got, err := tg.SocketURL()
	if err != nil {
		t.Fatalf("SocketURL: %v", err)
	}
	if want := "ws://localhost:8080/api/model/training-logs/run%207/ws?configId=3"; got != want {
		t.Errorf("SocketURL = %q, want %q", got, want)
	}

	tg.BaseURL = "https://logs.example.com/api"
	got, _ = tg.SocketURL()
	if want := "wss://logs.example.com/api/run%207/ws?configId=3"; got != want {
		t.Errorf("SocketURL = %q, want %q", got, want)
	}

	tg.BaseURL = "ftp://example.com"
	if _, err := tg.SocketURL(); err == nil {
		t.Error("expected error for ftp scheme")
	}
}

func TestBuildTransports(t *testing.T) {
	tr, err := BuildTransports(nil, BuildOpts{})
	if err != nil {
		t.Fatalf("BuildTransports: %v", err)
	}
	var names []string
	for _, x := range tr {
		names = append(names, x.Name())
	}
	if want := []string{NameSSE, NameSocket, NamePoll}; !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}

	if _, err := BuildTransports([]string{"carrier-pigeon"}, BuildOpts{}); err == nil {
		t.Error("expected error for unknown transport")
	}
	if _, err := BuildTransports([]string{"poll"}, BuildOpts{PollSchedule: "not a schedule"}); err == nil {
		t.Error("expected error for bad poll schedule")
	}
}
