package engineio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoServer(t *testing.T) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketTransportEcho(t *testing.T) {
	tr, err := Dial(context.Background(), echoServer(t), nil, nil)
	require.NoError(t, err)

	for _, frame := range []string{"2", `42["a"]`, `42["b"]`} {
		require.NoError(t, tr.Send([]byte(frame)))
	}
	for _, want := range []string{"2", `42["a"]`, `42["b"]`} {
		got, err := tr.Read()
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}

	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.Send([]byte("3")), ErrSendClosed)
	assert.NoError(t, tr.Close())

	_, err = tr.Read()
	assert.Error(t, err)
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil, nil)

	var connectErr *ConnectError
	require.True(t, errors.As(err, &connectErr))
	assert.True(t, errors.Is(err, websocket.ErrBadHandshake))
}

func TestSendWriteTimeout(t *testing.T) {
	release := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	tr, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil, nil)
	require.NoError(t, err)
	defer tr.Close()
	assert.Equal(t, DefaultWriteTimeout, tr.WriteTimeout)

	tr.WriteTimeout = 20 * time.Millisecond
	frame := []byte("4" + strings.Repeat("x", 64<<10))

	deadline := time.Now().Add(5 * time.Second)
	for err == nil && time.Now().Before(deadline) {
		err = tr.Send(frame)
	}
	assert.Error(t, err, "send to a peer that never reads should time out")
}
