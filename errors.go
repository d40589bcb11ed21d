package sioclient

import (
	"errors"
	"fmt"

	"github.com/ramory-l/sioclient/engineio"
)

var (
	ErrNotConnected         = errors.New("socket not connected")
	ErrDisconnected         = errors.New("disconnected before acknowledgement")
	ErrAckTimeout           = errors.New("acknowledgement timed out")
	ErrReconnectFailed      = errors.New("reconnection attempts exhausted")
	ErrReservedEvent        = errors.New("reserved event name")
	ErrUnsupportedTransport = errors.New("unsupported transport")
	ErrUnsupportedScheme    = errors.New("unsupported scheme")

	// Re-exported so callers need not import engineio to match close reasons.
	ErrHeartbeatTimeout = engineio.ErrHeartbeatTimeout
	ErrSendClosed       = engineio.ErrSendClosed
)

// DecodeError reports a Socket.IO packet that could not be parsed.
type DecodeError struct {
	Packet string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("socketio: decode %q: %s: %v", e.Packet, e.Reason, e.Err)
	}
	return fmt.Sprintf("socketio: decode %q: %s", e.Packet, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ConnectError reports a failed connection, either at the transport and
// handshake level or a CONNECT_ERROR refusal from the namespace.
type ConnectError struct {
	Namespace string
	// Data is the payload of a CONNECT_ERROR packet, nil otherwise.
	Data interface{}
	Err  error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("socketio: connect %s refused: %v", e.Namespace, e.Data)
	}
	return fmt.Sprintf("socketio: connect %s: %v", e.Namespace, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Message returns the server-supplied reason of a CONNECT_ERROR.
func (e *ConnectError) Message() string {
	switch v := e.Data.(type) {
	case string:
		return v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			return msg
		}
	}
	return ""
}
