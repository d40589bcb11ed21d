package sioclient

import "context"

// IO connects to a Socket.IO server and serves the connection on the calling
// goroutine. onReady receives the entry namespace socket once it has
// connected; register handlers and emit from there. IO returns when the
// connection is closed for good: every socket disconnected, ctx done, or
// reconnection exhausted.
//
//	err := sioclient.IO(ctx, "http://localhost:4000", nil, func(socket *sioclient.Socket) {
//	    socket.On("message", func(args ...interface{}) { log.Println(args...) })
//	    socket.Send("hi")
//	})
func IO(ctx context.Context, uri string, opts *Options, onReady func(*Socket)) error {
	m, err := NewManager(uri, opts)
	if err != nil {
		return err
	}
	return m.Run(ctx, onReady)
}
