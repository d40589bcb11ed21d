package sioclient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
)

const (
	TransportWebSocket = "websocket"
	TransportPolling   = "polling"
)

// Options configures a Manager. The zero value is usable.
type Options struct {
	// Path is the handshake endpoint, "/socket.io/" by default.
	Path string
	// Namespace the entrypoint socket joins. Defaults to the URL path when
	// that is not "/", otherwise "/".
	Namespace string
	// Transports in order of preference. Only websocket is implemented.
	Transports []string

	// Reconnection defaults to true.
	Reconnection *bool
	// ReconnectionAttempts caps consecutive retries; zero means no cap.
	ReconnectionAttempts int
	ReconnectionDelay    time.Duration
	ReconnectionDelayMax time.Duration
	// RandomizationFactor spreads each delay by up to this fraction.
	RandomizationFactor float64

	// Query is added to the handshake URL.
	Query        map[string]interface{}
	ExtraHeaders http.Header
	// Auth is sent with every namespace CONNECT packet.
	Auth map[string]interface{}

	// ConnectTimeout bounds the dial and the Engine.IO handshake.
	ConnectTimeout time.Duration
	// WriteTimeout bounds each frame write. Defaults to 10s.
	WriteTimeout time.Duration
	// AckTimeout fails pending acknowledgements with ErrAckTimeout. Zero
	// disables it.
	AckTimeout time.Duration

	Dialer *websocket.Dialer
	Logger logr.Logger
}

// Bool is a helper for Options.Reconnection.
func Bool(b bool) *bool {
	return &b
}

// DefaultOptions returns the defaults applied to unset fields.
func DefaultOptions() *Options {
	return &Options{
		Path:                 "/socket.io/",
		Transports:           []string{TransportWebSocket},
		Reconnection:         Bool(true),
		ReconnectionDelay:    time.Second,
		ReconnectionDelayMax: 5 * time.Second,
		ConnectTimeout:       20 * time.Second,
		WriteTimeout:         10 * time.Second,
	}
}

func (o *Options) withDefaults() *Options {
	def := DefaultOptions()
	if o == nil {
		return def
	}

	opts := *o
	if opts.Path == "" {
		opts.Path = def.Path
	}
	if len(opts.Transports) == 0 {
		opts.Transports = def.Transports
	}
	if opts.Reconnection == nil {
		opts.Reconnection = def.Reconnection
	}
	if opts.ReconnectionDelay <= 0 {
		opts.ReconnectionDelay = def.ReconnectionDelay
	}
	if opts.ReconnectionDelayMax <= 0 {
		opts.ReconnectionDelayMax = def.ReconnectionDelayMax
	}
	if opts.ReconnectionDelayMax < opts.ReconnectionDelay {
		opts.ReconnectionDelayMax = opts.ReconnectionDelay
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	return &opts
}

func (o *Options) validate() error {
	for _, t := range o.Transports {
		if t == TransportWebSocket {
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrUnsupportedTransport, o.Transports)
}
