// Package siotest runs a scripted Engine.IO v4 / Socket.IO v4 server for
// client tests.
package siotest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Config holds server behaviour. Durations are milliseconds, as on the wire.
type Config struct {
	PingInterval int
	PingTimeout  int
	MaxPayload   int

	// DisablePing stops the server from sending heartbeats.
	DisablePing bool
	// SkipHandshake leaves the open packet to the OnConnect handler.
	SkipHandshake bool
	// ManualConnect leaves namespace CONNECT packets unanswered.
	ManualConnect bool
	// Authorize refuses a namespace with CONNECT_ERROR when it returns an
	// error.
	Authorize func(namespace string, auth map[string]interface{}) error
	// OnNamespace runs right after a namespace CONNECT was accepted.
	OnNamespace func(c *Conn, namespace string)
}

// DefaultConfig returns default Engine.IO configuration
func DefaultConfig() *Config {
	return &Config{
		PingInterval: 25000,
		PingTimeout:  20000,
		MaxPayload:   1e6,
	}
}

// Server represents a scripted Engine.IO server
type Server struct {
	config   *Config
	upgrader websocket.Upgrader
	http     *httptest.Server

	conns     sync.Map
	accepted  atomic.Int32
	reject    atomic.Int32
	onConnect func(*Conn)

	mu       sync.Mutex
	requests []*http.Request
}

// NewServer starts a server. A nil config means DefaultConfig.
func NewServer(config *Config, onConnect func(*Conn)) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	s := &Server{
		config:    config,
		onConnect: onConnect,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.http = httptest.NewServer(s)
	return s
}

// URL is the http:// address clients are given.
func (s *Server) URL() string {
	return s.http.URL
}

// RejectNext makes the next n upgrade attempts fail with 503.
func (s *Server) RejectNext(n int) {
	s.reject.Store(int32(n))
}

// Accepted counts successful websocket upgrades.
func (s *Server) Accepted() int {
	return int(s.accepted.Load())
}

// Requests returns the handshake requests seen so far.
func (s *Server) Requests() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*http.Request(nil), s.requests...)
}

// ServeHTTP handles HTTP requests and upgrades to WebSocket
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Clone(r.Context()))
	s.mu.Unlock()

	if !strings.HasPrefix(r.URL.Path, "/socket.io/") {
		http.NotFound(w, r)
		return
	}
	if r.URL.Query().Get("transport") != "websocket" || r.URL.Query().Get("EIO") != "4" {
		http.Error(w, "Only WebSocket transport is supported", http.StatusBadRequest)
		return
	}
	if s.reject.Load() > 0 {
		s.reject.Add(-1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.accepted.Add(1)

	c := newConn(uuid.NewString(), ws, s)
	s.conns.Store(c.id, c)

	if !s.config.SkipHandshake {
		if err := c.Send(handshake(c.id, s.config)); err != nil {
			c.Drop()
			return
		}
		if !s.config.DisablePing {
			c.schedulePing()
		}
	}

	go c.readLoop()

	if s.onConnect != nil {
		go s.onConnect(c)
	}
}

// Close drops every connection and stops listening.
func (s *Server) Close() {
	s.conns.Range(func(key, value interface{}) bool {
		value.(*Conn).Drop()
		return true
	})
	s.http.Close()
}

func handshake(sid string, config *Config) string {
	data, _ := json.Marshal(map[string]interface{}{
		"sid":          sid,
		"upgrades":     []string{},
		"pingInterval": config.PingInterval,
		"pingTimeout":  config.PingTimeout,
		"maxPayload":   config.MaxPayload,
	})
	return "0" + string(data)
}

// EncodeEvent renders a Socket.IO EVENT inside an Engine.IO message.
func EncodeEvent(namespace string, ackID *int, event string, args ...interface{}) string {
	data, _ := json.Marshal(append([]interface{}{event}, args...))

	var b strings.Builder
	b.WriteString("42")
	if namespace != "" && namespace != "/" {
		b.WriteString(namespace)
		b.WriteByte(',')
	}
	if ackID != nil {
		fmt.Fprint(&b, *ackID)
	}
	b.Write(data)
	return b.String()
}
