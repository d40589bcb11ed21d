package sioclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/ramory-l/sioclient/engineio"
	"github.com/ramory-l/sioclient/logger"
)

type reconnectState int

const (
	reconnectIdle reconnectState = iota
	reconnectWaiting
	reconnectConnecting
)

// Manager owns one Engine.IO connection and the namespace sockets sharing it.
//
// All socket events and acknowledgements are delivered on the goroutine
// running Run, one at a time and in wire order.
type Manager struct {
	uri       string
	wsURL     string
	namespace string
	opts      *Options
	log       logr.Logger

	mu      sync.RWMutex
	session *engineio.Session
	sockets map[string]*Socket
	closed  bool

	// Owned by the loop.
	backoff        *Backoff
	reconnect      reconnectState
	reconnectTimer *time.Timer
	ready          bool
	lastErr        error

	queueMu sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}

	closeOnce sync.Once
	closing   chan struct{}
}

// NewManager validates the options and prepares a Manager for uri. Nothing
// is dialled until Run.
func NewManager(uri string, opts *Options) (*Manager, error) {
	o := opts.withDefaults()
	if err := o.validate(); err != nil {
		return nil, err
	}

	wsURL, err := buildURL(uri, o)
	if err != nil {
		return nil, err
	}

	log := o.Logger
	if log.GetSink() == nil {
		log = logger.GetLogger("manager")
	}

	return &Manager{
		uri:       uri,
		wsURL:     wsURL,
		namespace: namespaceFromURL(uri, o.Namespace),
		opts:      o,
		log:       log.WithValues("url", uri),
		sockets:   make(map[string]*Socket),
		backoff:   NewBackoff(o.ReconnectionDelay, o.ReconnectionDelayMax, o.RandomizationFactor),
		wake:      make(chan struct{}, 1),
		closing:   make(chan struct{}),
	}, nil
}

// URL returns the websocket handshake URL.
func (m *Manager) URL() string {
	return m.wsURL
}

// Socket returns the socket of a namespace, creating it if it doesn't exist.
// A new socket joins its namespace as soon as the connection is open.
func (m *Manager) Socket(namespace string) *Socket {
	namespace = normalizeNamespace(namespace)

	m.mu.RLock()
	s, exists := m.sockets[namespace]
	m.mu.RUnlock()

	if exists {
		return s
	}

	m.mu.Lock()
	if s, exists := m.sockets[namespace]; exists {
		m.mu.Unlock()
		return s
	}
	s = newSocket(namespace, m)
	m.sockets[namespace] = s
	open := m.session != nil && m.session.State() == engineio.StateOpen
	m.mu.Unlock()

	if open {
		if err := s.sendConnect(); err != nil {
			m.log.V(1).Info("connect not sent", "nsp", namespace, "err", err)
		}
	}
	return s
}

func (m *Manager) connectSocket(s *Socket) error {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return engineio.ErrSessionClosed
	}
	return s.sendConnect()
}

// Close disconnects every socket and ends Run without reconnecting.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		session := m.session
		m.mu.Unlock()

		if session != nil {
			_ = session.Close()
		}
		close(m.closing)
	})
	return nil
}

// release closes the Manager once no socket wants the connection.
func (m *Manager) release() {
	if len(m.activeSockets()) > 0 {
		return
	}
	m.log.V(1).Info("no active socket left, closing")
	_ = m.Close()
}

func (m *Manager) sendPacket(packet *Packet) error {
	m.mu.RLock()
	session := m.session
	m.mu.RUnlock()

	if session == nil {
		return ErrNotConnected
	}

	encoded, err := packet.Encode()
	if err != nil {
		return err
	}
	return session.SendMessage([]byte(encoded))
}

// enqueue schedules fn on the loop, or runs it at once if the loop ended.
func (m *Manager) enqueue(fn func()) {
	m.queueMu.Lock()
	if m.stopped {
		m.queueMu.Unlock()
		fn()
		return
	}
	m.queue = append(m.queue, fn)
	m.queueMu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) drain() {
	m.queueMu.Lock()
	queue := m.queue
	m.queue = nil
	m.queueMu.Unlock()

	for _, fn := range queue {
		fn()
	}
}

func (m *Manager) stop() {
	m.queueMu.Lock()
	m.stopped = true
	m.queueMu.Unlock()
	m.drain()

	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
	}
	_ = m.Close()
}

// Run connects and serves the connection on the calling goroutine until the
// Manager is closed, ctx is done, or reconnection gives up. onReady is
// called once, when the entry namespace socket first connects.
//
// Run reports an error only when no connection was ever established.
func (m *Manager) Run(ctx context.Context, onReady func(*Socket)) error {
	entry := m.Socket(m.namespace)
	defer m.stop()

	if err := m.open(ctx); err != nil {
		m.connectFailed(err)
	}

	for {
		if m.isClosed() && m.currentSession() == nil {
			return m.result(ctx)
		}
		if m.reconnect == reconnectIdle && m.currentSession() == nil {
			return m.result(ctx)
		}

		var messages <-chan []byte
		if session := m.currentSession(); session != nil {
			messages = session.Messages()
		}
		var retry <-chan time.Time
		if m.reconnect == reconnectWaiting {
			retry = m.reconnectTimer.C
		}

		select {
		case <-ctx.Done():
			m.log.V(1).Info("context done, closing", "err", ctx.Err())
			_ = m.Close()
			if messages == nil {
				return m.result(ctx)
			}
			for range messages {
			}
			m.onSessionClose()

		case <-m.closing:
			if messages == nil {
				return m.result(ctx)
			}
			for range messages {
			}
			m.onSessionClose()

		case <-m.wake:
			m.drain()

		case data, ok := <-messages:
			if !ok {
				m.onSessionClose()
				continue
			}
			m.dispatch(data, entry, onReady)

		case <-retry:
			m.tryReconnect(ctx)
		}
	}
}

func (m *Manager) result(ctx context.Context) error {
	if m.ready {
		return nil
	}
	if m.lastErr != nil {
		return m.lastErr
	}
	return ctx.Err()
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Manager) currentSession() *engineio.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// activeSockets checks each socket outside m.mu; Socket methods take s.mu
// before m.mu.
func (m *Manager) activeSockets() []*Socket {
	all := m.allSockets()

	sockets := all[:0]
	for _, s := range all {
		if s.Active() {
			sockets = append(sockets, s)
		}
	}
	return sockets
}

func (m *Manager) allSockets() []*Socket {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sockets := make([]*Socket, 0, len(m.sockets))
	for _, s := range m.sockets {
		sockets = append(sockets, s)
	}
	return sockets
}

// open dials, completes the Engine.IO handshake and asks every active
// socket to join its namespace.
func (m *Manager) open(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	transport, err := engineio.Dial(ctx, m.wsURL, m.opts.ExtraHeaders, m.opts.Dialer)
	if err != nil {
		return &ConnectError{Namespace: m.namespace, Err: err}
	}
	transport.WriteTimeout = m.opts.WriteTimeout

	session, err := engineio.Open(ctx, transport, &engineio.Config{
		ConnectTimeout: m.opts.ConnectTimeout,
		Logger:         m.log.WithName("engineio"),
	})
	if err != nil {
		return &ConnectError{Namespace: m.namespace, Err: err}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = session.Close()
		return &ConnectError{Namespace: m.namespace, Err: engineio.ErrSessionClosed}
	}
	m.session = session
	m.mu.Unlock()

	m.log.Info("connected", "sid", session.ID())

	for _, s := range m.activeSockets() {
		if err := s.sendConnect(); err != nil {
			m.log.V(1).Info("connect not sent", "nsp", s.namespace, "err", err)
		}
	}
	return nil
}

func (m *Manager) dispatch(data []byte, entry *Socket, onReady func(*Socket)) {
	packet, err := DecodePacket(string(data))
	if err != nil {
		m.log.V(1).Info("dropping packet", "err", err)
		return
	}

	m.mu.RLock()
	s, ok := m.sockets[packet.Namespace]
	m.mu.RUnlock()

	if !ok {
		m.log.V(1).Info("packet for unknown namespace", "nsp", packet.Namespace, "type", packet.Type)
		return
	}

	s.onPacket(packet)

	switch {
	case packet.Type == PacketTypeConnect && s == entry && !m.ready:
		m.ready = true
		if onReady != nil {
			entry.invoke("ready", func() { onReady(entry) })
		}
	case packet.Type == PacketTypeConnectError && s == entry && !m.ready:
		m.lastErr = &ConnectError{Namespace: s.namespace, Data: packet.Data}
	}
}

// onSessionClose tears the sockets down after the Engine.IO session ended
// and decides whether to reconnect.
func (m *Manager) onSessionClose() {
	m.mu.Lock()
	session := m.session
	m.session = nil
	closed := m.closed
	m.mu.Unlock()

	if session == nil {
		return
	}

	cause := session.Err()
	reason := reasonFor(cause)
	if closed {
		reason = ReasonIOClientDisconnect
	}
	m.log.Info("disconnected", "reason", reason, "err", cause)

	m.drain()
	for _, s := range m.allSockets() {
		s.onClose(reason)
	}

	if closed || !*m.opts.Reconnection || len(m.activeSockets()) == 0 {
		return
	}
	m.scheduleReconnect()
}

func (m *Manager) connectFailed(err error) {
	m.lastErr = err
	m.log.Info("connect failed", "err", err)

	for _, s := range m.activeSockets() {
		s.fire(EventConnectError, err)
	}

	if m.isClosed() || !*m.opts.Reconnection {
		m.reconnect = reconnectIdle
		return
	}
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	if max := m.opts.ReconnectionAttempts; max > 0 && m.backoff.Attempts() >= max {
		m.log.Info("reconnection attempts exhausted", "attempts", m.backoff.Attempts())
		m.reconnect = reconnectIdle

		err := fmt.Errorf("%w after %d attempts", ErrReconnectFailed, m.backoff.Attempts())
		if !m.ready {
			err = &ConnectError{Namespace: m.namespace, Err: errors.Join(err, m.lastErr)}
		}
		m.lastErr = err
		for _, s := range m.activeSockets() {
			s.fire(EventConnectError, err)
		}
		return
	}

	delay := m.backoff.Duration()
	m.log.Info("reconnecting", "in", delay, "attempt", m.backoff.Attempts())

	if m.reconnectTimer == nil {
		m.reconnectTimer = time.NewTimer(delay)
	} else {
		m.reconnectTimer.Reset(delay)
	}
	m.reconnect = reconnectWaiting
}

func (m *Manager) tryReconnect(ctx context.Context) {
	m.reconnect = reconnectConnecting

	if err := m.open(ctx); err != nil {
		m.connectFailed(err)
		return
	}

	m.log.Info("reconnected", "attempts", m.backoff.Attempts())
	m.backoff.Reset()
	m.reconnect = reconnectIdle
}
