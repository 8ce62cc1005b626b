package msgchannel

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
)

// Conn is the socket the client speaks STOMP over. *websocket.Conn
// satisfies it.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// DialFunc opens a new socket.
type DialFunc func(ctx context.Context) (Conn, error)

const defaultReadLimit = 1 << 20

// WebSocketDialer dials url with the session cookies attached.
func WebSocketDialer(url string, cookies []*http.Cookie, client *http.Client) DialFunc {
	header := make(http.Header)
	req := &http.Request{Header: header}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	return func(ctx context.Context) (Conn, error) {
		conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{ //nolint:bodyclose // websocket.Dial closes the response body
			HTTPClient:   client,
			HTTPHeader:   header.Clone(),
			Subprotocols: []string{"v12.stomp", "v11.stomp", "v10.stomp"},
		})
		if err != nil {
			return nil, err
		}
		conn.SetReadLimit(defaultReadLimit)
		return conn, nil
	}
}
