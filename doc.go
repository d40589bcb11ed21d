// Package sioclient provides a Socket.IO v4 client implementation in Go.
//
// This library implements the client side of the Socket.IO v4 protocol over
// the WebSocket transport only (Engine.IO v4). It is built for load-testing
// and automation workloads where each virtual user drives one connection.
//
// # Features
//
//   - Socket.IO v4 protocol support
//   - WebSocket transport only (Engine.IO v4)
//   - Namespaces multiplexed over one connection
//   - Event acknowledgments in both directions
//   - Server heartbeat supervision
//   - Reconnection with exponential backoff
//   - Compatible with official Socket.IO servers
//
// # Quick Start
//
//	err := sioclient.IO(ctx, "http://localhost:3000", nil, func(socket *sioclient.Socket) {
//	    log.Printf("Connected: %s", socket.ID())
//
//	    socket.On("message", func(data ...interface{}) {
//	        log.Printf("Received: %v", data)
//	    })
//
//	    socket.On("disconnect", func(data ...interface{}) {
//	        log.Printf("Disconnected: %v", data[0])
//	    })
//
//	    socket.Emit("join", "lobby")
//	})
//
// IO blocks until the connection is closed for good. Every handler and
// acknowledgment runs on the goroutine that called IO, one at a time and in
// the order the server sent them.
//
// # Namespaces
//
// The path of the server address names the entry namespace. More namespaces
// share the same connection through the Manager:
//
//	// Entry namespace "/admin"
//	sioclient.IO(ctx, "http://localhost:3000/admin", nil, onReady)
//
//	// Additional namespace
//	news := socket.Manager().Socket("/news")
//	news.On("connect", func(...interface{}) {
//	    news.Emit("subscribe", "sports")
//	})
//
// # Event Acknowledgments
//
// Request acknowledgments from the server:
//
//	socket.EmitWithAck("question", func(err error, response ...interface{}) {
//	    if err != nil {
//	        return // ErrDisconnected or ErrAckTimeout
//	    }
//	    log.Printf("Server answered: %v", response)
//	}, "What's your name?")
//
// Handle acknowledgment requests from the server:
//
//	socket.On("ping", func(data ...interface{}) {
//	    // Last argument is the ack function if the server requested acknowledgment
//	    if len(data) > 0 {
//	        if ackFn, ok := data[len(data)-1].(func(...interface{})); ok {
//	            ackFn("pong")
//	        }
//	    }
//	})
//
// # Reconnection
//
// A connection lost to a transport failure or a missed heartbeat is retried
// with exponential backoff. A server DISCONNECT, Socket.Disconnect and
// Manager.Close end it for good.
//
//	opts := &sioclient.Options{
//	    ReconnectionAttempts: 5,
//	    ReconnectionDelay:    time.Second,
//	    ReconnectionDelayMax: 5 * time.Second,
//	    RandomizationFactor:  0.5,
//	}
//
// # Thread Safety
//
// Emit, Send, Disconnect and the handler registration methods are
// goroutine-safe. Emits made from several goroutines get distinct
// acknowledgment ids.
package sioclient
