package engineio

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is a duplex frame stream to the server.
//
// Read is called from a single goroutine. Send may be called concurrently;
// frames reach the wire in call order.
type Transport interface {
	Send(frame []byte) error
	Read() ([]byte, error)
	Close() error
}

// WebSocketTransport carries Engine.IO frames as websocket text messages.
type WebSocketTransport struct {
	// WriteTimeout bounds each Send. Zero means no deadline.
	WriteTimeout time.Duration

	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    bool
}

// DefaultWriteTimeout is the WriteTimeout of a dialled transport.
const DefaultWriteTimeout = 10 * time.Second

var DefaultDialer = &websocket.Dialer{
	Proxy:            http.ProxyFromEnvironment,
	HandshakeTimeout: 20 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// Dial opens the websocket. A nil dialer means DefaultDialer.
func Dial(ctx context.Context, url string, header http.Header, dialer *websocket.Dialer) (*WebSocketTransport, error) {
	if dialer == nil {
		dialer = DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, &ConnectError{URL: url, Err: err}
	}

	return &WebSocketTransport{conn: conn, WriteTimeout: DefaultWriteTimeout}, nil
}

// Send writes one text frame.
func (t *WebSocketTransport) Send(frame []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.closed {
		return ErrSendClosed
	}
	if t.WriteTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.WriteTimeout)); err != nil {
			return err
		}
	}
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

// Read blocks for the next frame. Binary frames are returned as-is.
func (t *WebSocketTransport) Read() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

// Close sends a normal closure and releases the connection.
func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		t.closed = true
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		t.writeMu.Unlock()

		err = t.conn.Close()
	})
	return err
}
