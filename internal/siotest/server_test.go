package siotest

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(s.URL(), "http") + "/socket.io/?EIO=4&transport=websocket"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func read(t *testing.T, ws *websocket.Conn) string {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestServerHandshakeAndNamespace(t *testing.T) {
	conns := make(chan *Conn, 1)
	s := NewServer(nil, func(c *Conn) { conns <- c })
	defer s.Close()

	ws := dial(t, s)
	assert.True(t, strings.HasPrefix(read(t, ws), `0{`))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`40/admin,{"token":"x"}`)))
	assert.True(t, strings.HasPrefix(read(t, ws), `40/admin,{"sid":`))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`42["hi"]`)))
	c := <-conns
	frame, err := c.Next(time.Second)
	require.NoError(t, err)
	assert.Equal(t, `42["hi"]`, frame)
	assert.Equal(t, 1, s.Accepted())
}

func TestServerRejectNext(t *testing.T) {
	s := NewServer(nil, nil)
	defer s.Close()
	s.RejectNext(1)

	url := "ws" + strings.TrimPrefix(s.URL(), "http") + "/socket.io/?EIO=4&transport=websocket"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	dial(t, s)
	assert.Equal(t, 1, s.Accepted())
	assert.Len(t, s.Requests(), 2)
}

func TestEncodeEvent(t *testing.T) {
	id := 3
	assert.Equal(t, `42["a",1]`, EncodeEvent("/", nil, "a", 1))
	assert.Equal(t, `42/chat,3["a"]`, EncodeEvent("/chat", &id, "a"))
}

func TestAckWithoutArgs(t *testing.T) {
	conns := make(chan *Conn, 1)
	s := NewServer(nil, func(c *Conn) { conns <- c })
	defer s.Close()

	ws := dial(t, s)
	read(t, ws)

	require.NoError(t, (<-conns).Ack("/chat", 4))
	assert.Equal(t, `43/chat,4[]`, read(t, ws))
}
