package stream

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// SocketTransport reads text frames from a websocket. Each frame is treated
// like an unlabeled push-stream message.
type SocketTransport struct {
	Dialer *websocket.Dialer // defaults to a dialer with a 10s handshake timeout
}

func (s *SocketTransport) Name() string { return NameSocket }

// Run dials the socket endpoint and delivers frames until the peer closes.
func (s *SocketTransport) Run(ctx context.Context, t Target, sink Sink) error {
	u, err := t.SocketURL()
	if err != nil {
		return err
	}
	dialer := s.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}

	conn, resp, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != 0 && resp.StatusCode != 101 {
			return &HTTPStatusError{Status: resp.StatusCode}
		}
		return err
	}
	defer conn.Close()
	sink.Opened()

	// ReadMessage does not observe ctx; closing the conn unblocks it.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if typ != websocket.TextMessage {
			continue
		}
		sink.Deliver(Chunk{Event: EventMessage, Data: string(msg)})
	}
}
