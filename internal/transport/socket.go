package transport

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
)

// Socket is the minimal surface Conn needs from an underlying connection.
// The production implementation wraps coder/websocket; tests provide an
// in-process fake.
type Socket interface {
	// Read blocks until a full frame arrives or the connection fails.
	Read(ctx context.Context) ([]byte, error)
	// Write sends one frame.
	Write(ctx context.Context, data []byte) error
	// Close closes the connection with a normal-closure status.
	Close(reason string) error
}

// DialFunc opens a Socket.
type DialFunc func(ctx context.Context) (Socket, error)

// Dialer returns a DialFunc that opens a WebSocket to url.
func Dialer(url string) DialFunc {
	return func(ctx context.Context) (Socket, error) {
		conn, _, err := websocket.Dial(ctx, url, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", url, err)
		}
		conn.SetReadLimit(1 << 20)
		return &wsSocket{conn: conn}, nil
	}
}

type wsSocket struct {
	conn *websocket.Conn
}

func (s *wsSocket) Read(ctx context.Context) ([]byte, error) {
	_, data, err := s.conn.Read(ctx)
	return data, err
}

func (s *wsSocket) Write(ctx context.Context, data []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, data)
}

func (s *wsSocket) Close(reason string) error {
	return s.conn.Close(websocket.StatusNormalClosure, reason)
}
