package engineio

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSession(t *testing.T, ft *fakeTransport, intervalMS, timeoutMS, maxPayload int) *Session {
	t.Helper()

	ft.push(openFrame("sid-1", intervalMS, timeoutMS, maxPayload))
	s, err := Open(context.Background(), ft, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenHandshake(t *testing.T) {
	ft := newFakeTransport()
	ft.push("6")
	s := openSession(t, ft, 25000, 20000, 1000000)

	assert.Equal(t, "sid-1", s.ID())
	assert.Equal(t, StateOpen, s.State())
	assert.Equal(t, 1000000, s.Handshake().MaxPayload)
	assert.NoError(t, s.Err())
}

func TestOpenRejectsNonOpenPacket(t *testing.T) {
	ft := newFakeTransport()
	ft.push(`40`)

	_, err := Open(context.Background(), ft, nil)

	var connectErr *ConnectError
	require.True(t, errors.As(err, &connectErr))
	assert.True(t, ft.isClosed())
}

func TestOpenTimeout(t *testing.T) {
	ft := newFakeTransport()

	_, err := Open(context.Background(), ft, &Config{ConnectTimeout: 20 * time.Millisecond})

	var connectErr *ConnectError
	require.True(t, errors.As(err, &connectErr))
	assert.Contains(t, err.Error(), "no handshake")
	assert.True(t, ft.isClosed())
}

func TestOpenContextCancelled(t *testing.T) {
	ft := newFakeTransport()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, ft, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPingAnsweredWithPong(t *testing.T) {
	ft := newFakeTransport()
	s := openSession(t, ft, 25000, 20000, 0)
	opened := s.LastPing()

	ft.push("2")

	require.Eventually(t, func() bool {
		sent := ft.Sent()
		return len(sent) == 1 && sent[0] == "3"
	}, time.Second, 5*time.Millisecond)
	assert.True(t, !s.LastPing().Before(opened))
}

func TestHeartbeatTimeout(t *testing.T) {
	ft := newFakeTransport()
	start := time.Now()
	s := openSession(t, ft, 25, 5, 0)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session still open without pings")
	}

	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.ErrorIs(t, s.Err(), ErrHeartbeatTimeout)
	assert.Equal(t, StateClosed, s.State())
	assert.True(t, ft.isClosed())

	_, ok := <-s.Messages()
	assert.False(t, ok)
}

func TestPingsKeepSessionAlive(t *testing.T) {
	ft := newFakeTransport()
	s := openSession(t, ft, 40, 20, 0)

	for i := 0; i < 8; i++ {
		time.Sleep(10 * time.Millisecond)
		ft.push("2")
	}

	assert.Equal(t, StateOpen, s.State())
}

func TestMessagesDeliveredInOrderBeforeClose(t *testing.T) {
	ft := newFakeTransport()
	s := openSession(t, ft, 25000, 20000, 0)

	ft.push(`42["a"]`, "", "9bogus", `42["b"]`, "1")

	var got []string
	for msg := range s.Messages() {
		got = append(got, string(msg))
	}

	assert.Equal(t, []string{`2["a"]`, `2["b"]`}, got)
	assert.ErrorIs(t, s.Err(), ErrServerClose)
}

func TestTransportFailureClosesSession(t *testing.T) {
	ft := newFakeTransport()
	s := openSession(t, ft, 25000, 20000, 0)

	_ = ft.Close()

	<-s.Done()
	assert.ErrorIs(t, s.Err(), ErrTransportClose)
}

func TestCloseSendsClosePacket(t *testing.T) {
	ft := newFakeTransport()
	s := openSession(t, ft, 25000, 20000, 0)

	require.NoError(t, s.SendMessage([]byte(`2["bye"]`)))
	require.NoError(t, s.Close())

	assert.Equal(t, []string{`42["bye"]`, "1"}, ft.Sent())
	assert.ErrorIs(t, s.Err(), ErrClientClose)
	assert.ErrorIs(t, s.SendMessage([]byte("2")), ErrSessionClosed)
}

func TestSendRespectsMaxPayload(t *testing.T) {
	ft := newFakeTransport()
	s := openSession(t, ft, 25000, 20000, 8)

	err := s.SendMessage([]byte(strings.Repeat("x", 16)))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Empty(t, ft.Sent())
}
