// ABOUTME: Socket and Dialer abstractions over the coder/websocket connection
// ABOUTME: Interfaces exist so tests can script a fake backend without a network

package conn

import (
	"context"

	"github.com/coder/websocket"
)

// Socket is one established text-frame connection to the gateway.
type Socket interface {
	ReadText(ctx context.Context) ([]byte, error)
	WriteText(ctx context.Context, data []byte) error
	Close() error
}

// Dialer establishes Sockets. The Manager takes a Dialer so tests can
// inject scripted connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// WebsocketDialer is the production Dialer.
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(ctx context.Context, url string) (Socket, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &websocketSocket{conn: c}, nil
}

type websocketSocket struct {
	conn *websocket.Conn
}

func (s *websocketSocket) ReadText(ctx context.Context) ([]byte, error) {
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *websocketSocket) WriteText(ctx context.Context, data []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, data)
}

func (s *websocketSocket) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
