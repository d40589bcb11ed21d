package siotest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var ErrTimeout = errors.New("siotest: no frame before timeout")

// Conn is the server end of one client connection. Message frames from the
// client are queued for Next; pings, pongs and namespace handshakes are
// handled by the server unless configured otherwise.
type Conn struct {
	id     string
	ws     *websocket.Conn
	server *Server

	writeMu  sync.Mutex
	incoming chan string
	pongs    atomic.Int32

	pingTimer *time.Timer
	timerMu   sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(id string, ws *websocket.Conn, server *Server) *Conn {
	return &Conn{
		id:       id,
		ws:       ws,
		server:   server,
		incoming: make(chan string, 256),
		closed:   make(chan struct{}),
	}
}

// ID returns the Engine.IO session id.
func (c *Conn) ID() string {
	return c.id
}

// Send writes a raw Engine.IO frame.
func (c *Conn) Send(frame string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, []byte(frame))
}

// Emit sends an EVENT to the client.
func (c *Conn) Emit(namespace, event string, args ...interface{}) error {
	return c.Send(EncodeEvent(namespace, nil, event, args...))
}

// Ack answers an EVENT that carried ackID.
func (c *Conn) Ack(namespace string, ackID int, args ...interface{}) error {
	if args == nil {
		args = []interface{}{}
	}
	data, _ := json.Marshal(args)
	prefix := "43"
	if namespace != "" && namespace != "/" {
		prefix += namespace + ","
	}
	return c.Send(fmt.Sprintf("%s%d%s", prefix, ackID, data))
}

// Ping sends one heartbeat.
func (c *Conn) Ping() error {
	return c.Send("2")
}

// Pongs counts heartbeats answered by the client.
func (c *Conn) Pongs() int {
	return int(c.pongs.Load())
}

// Next returns the next message frame from the client, e.g. `42["a"]`.
func (c *Conn) Next(timeout time.Duration) (string, error) {
	select {
	case frame, ok := <-c.incoming:
		if !ok {
			return "", errors.New("siotest: connection closed")
		}
		return frame, nil
	case <-time.After(timeout):
		return "", ErrTimeout
	}
}

// Done is closed when the connection is gone.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// Close ends the session with a close packet.
func (c *Conn) Close() {
	_ = c.Send("1")
	c.Drop()
}

// Drop cuts the connection without an Engine.IO close packet.
func (c *Conn) Drop() {
	c.closeOnce.Do(func() {
		close(c.closed)

		c.timerMu.Lock()
		if c.pingTimer != nil {
			c.pingTimer.Stop()
		}
		c.timerMu.Unlock()

		c.ws.Close()
		c.server.conns.Delete(c.id)
	})
}

func (c *Conn) readLoop() {
	defer close(c.incoming)
	defer c.Drop()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		frame := string(data)

		switch {
		case frame == "":
		case frame[0] == '3':
			c.pongs.Add(1)
		case frame[0] == '1':
			return
		case frame[0] == '4':
			if c.handleNamespace(frame[1:]) {
				continue
			}
			select {
			case c.incoming <- frame:
			default:
			}
		}
	}
}

// handleNamespace answers CONNECT packets unless ManualConnect is set.
func (c *Conn) handleNamespace(packet string) bool {
	if c.server.config.ManualConnect || !strings.HasPrefix(packet, "0") {
		return false
	}

	namespace, payload := "/", packet[1:]
	if strings.HasPrefix(payload, "/") {
		if i := strings.IndexByte(payload, ','); i >= 0 {
			namespace, payload = payload[:i], payload[i+1:]
		} else {
			namespace, payload = payload, ""
		}
	}

	var auth map[string]interface{}
	if payload != "" {
		_ = json.Unmarshal([]byte(payload), &auth)
	}

	segment := ""
	if namespace != "/" {
		segment = namespace + ","
	}

	if authorize := c.server.config.Authorize; authorize != nil {
		if err := authorize(namespace, auth); err != nil {
			data, _ := json.Marshal(map[string]string{"message": err.Error()})
			_ = c.Send("44" + segment + string(data))
			return true
		}
	}

	data, _ := json.Marshal(map[string]string{"sid": c.id + namespace})
	_ = c.Send("40" + segment + string(data))

	if joined := c.server.config.OnNamespace; joined != nil {
		joined(c, namespace)
	}
	return true
}

func (c *Conn) schedulePing() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()

	select {
	case <-c.closed:
		return
	default:
	}

	interval := time.Duration(c.server.config.PingInterval) * time.Millisecond
	c.pingTimer = time.AfterFunc(interval, func() {
		if err := c.Ping(); err != nil {
			return
		}
		c.schedulePing()
	})
}
