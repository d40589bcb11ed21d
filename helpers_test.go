package sioclient

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/require"

	"github.com/ramory-l/sioclient/internal/siotest"
)

const waitTimeout = 2 * time.Second

type client struct {
	done   chan error
	cancel context.CancelFunc
}

// startIO runs IO against srv on its own goroutine.
func startIO(t *testing.T, srv *siotest.Server, opts *Options, onReady func(*Socket)) *client {
	t.Helper()

	if opts == nil {
		opts = &Options{}
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = quietLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{done: make(chan error, 1), cancel: cancel}
	go func() {
		c.done <- IO(ctx, srv.URL(), opts, onReady)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-c.done:
		case <-time.After(waitTimeout):
		}
	})
	return c
}

func (c *client) wait(t *testing.T) error {
	t.Helper()

	select {
	case err := <-c.done:
		c.done <- err
		return err
	case <-time.After(waitTimeout):
		t.Fatal("IO did not return")
		return nil
	}
}

func quietLogger() logr.Logger {
	return funcr.New(func(prefix, args string) {}, funcr.Options{})
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		var zero T
		t.Fatalf("nothing received within %s", waitTimeout)
		return zero
	}
}

func newServer(t *testing.T, config *siotest.Config, onConnect func(*siotest.Conn)) *siotest.Server {
	t.Helper()

	if config == nil {
		config = siotest.DefaultConfig()
	}
	srv := siotest.NewServer(config, onConnect)
	t.Cleanup(srv.Close)
	return srv
}

// connChan hands server-side connections to the test.
func connChan() (chan *siotest.Conn, func(*siotest.Conn)) {
	ch := make(chan *siotest.Conn, 8)
	return ch, func(c *siotest.Conn) { ch <- c }
}

func nextFrame(t *testing.T, c *siotest.Conn) string {
	t.Helper()

	frame, err := c.Next(waitTimeout)
	require.NoError(t, err)
	return frame
}
