package sioclient

import (
	"errors"

	"github.com/gorilla/websocket"

	"github.com/ramory-l/sioclient/engineio"
)

// Reason is passed as the first argument of the "disconnect" event.
type Reason string

const (
	ReasonIOServerDisconnect Reason = "io server disconnect"
	ReasonIOClientDisconnect Reason = "io client disconnect"
	ReasonPingTimeout        Reason = "ping timeout"
	ReasonTransportClose     Reason = "transport close"
	ReasonTransportError     Reason = "transport error"
)

func reasonFor(err error) Reason {
	var closeErr *websocket.CloseError

	switch {
	case errors.Is(err, engineio.ErrHeartbeatTimeout):
		return ReasonPingTimeout
	case errors.Is(err, engineio.ErrClientClose):
		return ReasonIOClientDisconnect
	case errors.Is(err, engineio.ErrServerClose):
		return ReasonTransportClose
	case errors.As(err, &closeErr):
		return ReasonTransportClose
	default:
		return ReasonTransportError
	}
}
