package engineio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/ramory-l/sioclient/logger"
)

var ErrPayloadTooLarge = errors.New("payload exceeds maxPayload")

// Config holds Engine.IO session tunables
type Config struct {
	// ConnectTimeout bounds the wait for the open packet. Zero means 20s.
	ConnectTimeout time.Duration
	// MessageBuffer is the capacity of the Messages channel. Zero means 256.
	MessageBuffer int
	Logger        logr.Logger
}

// DefaultConfig returns default Engine.IO configuration
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout: 20 * time.Second,
		MessageBuffer:  256,
	}
}

// Session is the client side of one Engine.IO connection.
//
// The server pings and the session answers with pongs. A session that sees
// no ping within pingInterval+pingTimeout closes itself with
// ErrHeartbeatTimeout.
type Session struct {
	transport Transport
	log       logr.Logger
	handshake *HandshakeData

	mu        sync.Mutex
	state     State
	lastPing  time.Time
	heartbeat *time.Timer
	err       error

	messages  chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

// Open waits for the handshake on t and starts the session loops. On failure
// the transport is closed and a *ConnectError is returned.
func Open(ctx context.Context, t Transport, config *Config) (*Session, error) {
	cfg := DefaultConfig()
	if config != nil {
		if config.ConnectTimeout > 0 {
			cfg.ConnectTimeout = config.ConnectTimeout
		}
		if config.MessageBuffer > 0 {
			cfg.MessageBuffer = config.MessageBuffer
		}
		cfg.Logger = config.Logger
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logger.GetLogger("engineio")
	}

	s := &Session{
		transport: t,
		log:       cfg.Logger,
		state:     StateConnecting,
		messages:  make(chan []byte, cfg.MessageBuffer),
		closed:    make(chan struct{}),
	}

	hs, err := s.awaitOpen(ctx, cfg.ConnectTimeout)
	if err != nil {
		_ = t.Close()
		return nil, &ConnectError{Err: err}
	}

	s.handshake = hs
	s.log = s.log.WithValues("sid", hs.SID)

	s.mu.Lock()
	s.state = StateOpen
	s.lastPing = time.Now()
	s.heartbeat = time.AfterFunc(s.deadline(), s.onHeartbeatTimeout)
	s.mu.Unlock()

	s.log.V(1).Info("session open", "pingInterval", hs.Interval(), "pingTimeout", hs.Timeout())

	go s.readLoop()

	return s, nil
}

func (s *Session) awaitOpen(ctx context.Context, timeout time.Duration) (*HandshakeData, error) {
	type result struct {
		packet *Packet
		err    error
	}

	ch := make(chan result, 1)
	go func() {
		for {
			data, err := s.transport.Read()
			if err != nil {
				ch <- result{err: err}
				return
			}
			packet, err := DecodePacket(data)
			if err != nil {
				ch <- result{err: err}
				return
			}
			if packet.Type == PacketTypeNoop {
				continue
			}
			ch <- result{packet: packet}
			return
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if r.packet.Type != PacketTypeOpen {
			return nil, fmt.Errorf("expected open packet, got %s", r.packet.Type)
		}
		return DecodeHandshake(r.packet.Data)
	case <-timer.C:
		return nil, fmt.Errorf("no handshake within %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.handshake.SID
}

func (s *Session) Handshake() HandshakeData {
	return *s.handshake
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastPing reports when the last ping arrived, or the open time if none has.
func (s *Session) LastPing() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPing
}

// Messages yields message payloads in arrival order. It is closed once the
// session has terminated.
func (s *Session) Messages() <-chan []byte {
	return s.messages
}

// Done is closed when the session reaches StateClosed.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// Err returns the close reason, nil while the session is open.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Send sends a packet to the server
func (s *Session) Send(packet *Packet) error {
	if s.State() != StateOpen {
		return ErrSessionClosed
	}

	frame := packet.Encode()
	if max := s.handshake.MaxPayload; max > 0 && len(frame) > max {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(frame), max)
	}

	if err := s.transport.Send(frame); err != nil {
		return fmt.Errorf("send %s: %w", packet.Type, err)
	}
	return nil
}

// SendMessage wraps data in a message packet.
func (s *Session) SendMessage(data []byte) error {
	return s.Send(&Packet{Type: PacketTypeMessage, Data: data})
}

// Close sends a close packet and tears the session down.
func (s *Session) Close() error {
	s.terminate(ErrClientClose, true)
	return nil
}

func (s *Session) readLoop() {
	defer close(s.messages)

	for {
		data, err := s.transport.Read()
		if err != nil {
			s.terminate(fmt.Errorf("%w: %w", ErrTransportClose, err), false)
			return
		}

		packet, err := DecodePacket(data)
		if err != nil {
			s.log.V(1).Info("dropping frame", "err", err)
			continue
		}

		switch packet.Type {
		case PacketTypePing:
			s.handlePing(packet)
		case PacketTypeMessage:
			select {
			case s.messages <- packet.Data:
			case <-s.closed:
				return
			}
		case PacketTypeClose:
			s.terminate(ErrServerClose, false)
			return
		case PacketTypeOpen:
			s.log.V(1).Info("ignoring open packet on open session")
		}
	}
}

func (s *Session) handlePing(ping *Packet) {
	s.mu.Lock()
	s.lastPing = time.Now()
	if s.heartbeat != nil {
		s.heartbeat.Reset(s.deadline())
	}
	s.mu.Unlock()

	if err := s.Send(&Packet{Type: PacketTypePong, Data: ping.Data}); err != nil {
		s.log.V(1).Info("pong failed", "err", err)
	}
}

func (s *Session) deadline() time.Duration {
	return s.handshake.Interval() + s.handshake.Timeout()
}

func (s *Session) onHeartbeatTimeout() {
	s.log.Info("heartbeat lost", "lastPing", s.LastPing())
	s.terminate(ErrHeartbeatTimeout, false)
}

func (s *Session) terminate(reason error, sendClose bool) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		wasOpen := s.state == StateOpen
		s.state = StateClosing
		s.err = reason
		if s.heartbeat != nil {
			s.heartbeat.Stop()
		}
		s.mu.Unlock()

		if sendClose && wasOpen {
			_ = s.transport.Send((&Packet{Type: PacketTypeClose}).Encode())
		}
		_ = s.transport.Close()

		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()

		close(s.closed)
		s.log.V(1).Info("session closed", "reason", reason)
	})
}
