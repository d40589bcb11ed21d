package engineio

import (
	"errors"
	"fmt"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSendClosed    = errors.New("send on closed transport")

	// Close reasons reported by Session.Err.
	ErrHeartbeatTimeout = errors.New("ping timeout")
	ErrServerClose      = errors.New("server closed the session")
	ErrClientClose      = errors.New("client closed the session")
	ErrTransportClose   = errors.New("transport close")
)

// DecodeError reports a frame that could not be parsed.
type DecodeError struct {
	Frame  []byte
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engineio: decode %q: %s: %v", e.Frame, e.Reason, e.Err)
	}
	return fmt.Sprintf("engineio: decode %q: %s", e.Frame, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ConnectError reports a failure before the session reached the open state.
type ConnectError struct {
	URL string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("engineio: connect %s: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
