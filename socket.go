package sioclient

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// EventHandler handles Socket.IO events. When the server asked for an
// acknowledgement, the last argument is a func(...interface{}) that sends it.
type EventHandler func(...interface{})

// AckFunc receives the server's acknowledgement of an emitted event, or a
// non-nil err (ErrDisconnected, ErrAckTimeout) when none will arrive.
type AckFunc func(err error, args ...interface{})

// AnyHandler receives every server event after the named handlers ran.
type AnyHandler func(event string, args ...interface{})

// Events synthesized by the socket itself.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
)

func isReserved(event string) bool {
	switch event {
	case EventConnect, EventDisconnect, EventConnectError, "disconnecting", "newListener", "removeListener":
		return true
	}
	return false
}

type pendingAck struct {
	fn    AckFunc
	timer *time.Timer
}

// Socket is the client end of one namespace on a Manager's connection.
type Socket struct {
	namespace string
	manager   *Manager
	log       logr.Logger

	mu        sync.Mutex
	id        string
	connected bool
	active    bool
	nextAckID int
	acks      map[int]*pendingAck

	handlersMu  sync.RWMutex
	handlers    map[string][]EventHandler
	anyHandlers []AnyHandler
}

func newSocket(namespace string, manager *Manager) *Socket {
	return &Socket{
		namespace: namespace,
		manager:   manager,
		log:       manager.log.WithValues("nsp", namespace),
		active:    true,
		acks:      make(map[int]*pendingAck),
		handlers:  make(map[string][]EventHandler),
	}
}

// ID returns the socket ID assigned by the server on connect
func (s *Socket) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Socket) Namespace() string {
	return s.namespace
}

func (s *Socket) Manager() *Manager {
	return s.manager
}

func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Active reports whether the socket rejoins its namespace when the Manager
// reconnects. It turns false after Disconnect or a server DISCONNECT.
func (s *Socket) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// On registers an event handler. Handlers run in registration order.
func (s *Socket) On(event string, handler EventHandler) {
	s.handlersMu.Lock()
	s.handlers[event] = append(s.handlers[event], handler)
	s.handlersMu.Unlock()
}

// OnAny registers a handler for every server event.
func (s *Socket) OnAny(handler AnyHandler) {
	s.handlersMu.Lock()
	s.anyHandlers = append(s.anyHandlers, handler)
	s.handlersMu.Unlock()
}

// Off removes event handlers
func (s *Socket) Off(event string) {
	s.handlersMu.Lock()
	delete(s.handlers, event)
	s.handlersMu.Unlock()
}

// Emit sends an event to the server. A trailing AckFunc argument requests an
// acknowledgement, as EmitWithAck does. A trailing func(...interface{}) or
// EventHandler also requests one; it only sees a successful acknowledgement,
// a failed one is logged.
func (s *Socket) Emit(event string, args ...interface{}) error {
	if n := len(args); n > 0 {
		switch ack := args[n-1].(type) {
		case AckFunc:
			return s.emit(event, ack, args[:n-1])
		case func(error, ...interface{}):
			return s.emit(event, ack, args[:n-1])
		case EventHandler:
			return s.emit(event, s.successOnly(event, ack), args[:n-1])
		case func(...interface{}):
			return s.emit(event, s.successOnly(event, ack), args[:n-1])
		}
	}
	return s.emit(event, nil, args)
}

func (s *Socket) successOnly(event string, fn func(...interface{})) AckFunc {
	return func(err error, args ...interface{}) {
		if err != nil {
			s.log.V(1).Info("acknowledgement failed", "event", event, "err", err)
			return
		}
		fn(args...)
	}
}

// EmitWithAck sends an event and expects an acknowledgment. Without
// Options.AckTimeout the ack waits until it arrives or the connection drops.
func (s *Socket) EmitWithAck(event string, ack AckFunc, args ...interface{}) error {
	return s.emit(event, ack, args)
}

// Send emits the conventional "message" event.
func (s *Socket) Send(args ...interface{}) error {
	return s.Emit("message", args...)
}

func (s *Socket) emit(event string, ack AckFunc, args []interface{}) error {
	if isReserved(event) {
		return fmt.Errorf("%w: %q", ErrReservedEvent, event)
	}

	data := make([]interface{}, 0, len(args)+1)
	data = append(data, event)
	data = append(data, args...)

	packet := &Packet{
		Type:      PacketTypeEvent,
		Namespace: s.namespace,
		Data:      data,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}

	if ack != nil {
		id := s.nextAckID
		s.nextAckID++
		packet.ID = &id
		s.acks[id] = s.newPendingAck(id, ack)
	}

	if err := s.manager.sendPacket(packet); err != nil {
		if packet.ID != nil {
			s.dropAck(*packet.ID)
		}
		return err
	}
	return nil
}

func (s *Socket) newPendingAck(id int, fn AckFunc) *pendingAck {
	pa := &pendingAck{fn: fn}

	if timeout := s.manager.opts.AckTimeout; timeout > 0 {
		pa.timer = time.AfterFunc(timeout, func() {
			s.manager.enqueue(func() {
				s.mu.Lock()
				pending, ok := s.acks[id]
				if ok && pending == pa {
					delete(s.acks, id)
				}
				s.mu.Unlock()

				if ok && pending == pa {
					s.invoke("ack", func() { fn(ErrAckTimeout) })
				}
			})
		})
	}
	return pa
}

// dropAck is called with s.mu held.
func (s *Socket) dropAck(id int) {
	if pa, ok := s.acks[id]; ok {
		if pa.timer != nil {
			pa.timer.Stop()
		}
		delete(s.acks, id)
	}
}

// Connect rejoins the namespace after Disconnect.
func (s *Socket) Connect() error {
	s.mu.Lock()
	s.active = true
	connected := s.connected
	s.mu.Unlock()

	if connected {
		return nil
	}
	return s.manager.connectSocket(s)
}

// Disconnect leaves the namespace. When no other socket of the Manager is
// active, the whole connection is closed and no reconnection follows.
func (s *Socket) Disconnect() error {
	s.mu.Lock()
	s.active = false
	wasConnected := s.connected
	if wasConnected {
		_ = s.manager.sendPacket(&Packet{Type: PacketTypeDisconnect, Namespace: s.namespace})
	}
	acks := s.takeAcks()
	s.connected = false
	s.mu.Unlock()

	s.manager.enqueue(func() {
		s.failAcks(acks, ErrDisconnected)
		if wasConnected {
			s.fire(EventDisconnect, ReasonIOClientDisconnect)
		}
	})
	s.manager.release()
	return nil
}

func (s *Socket) sendConnect() error {
	packet := &Packet{Type: PacketTypeConnect, Namespace: s.namespace}
	if auth := s.manager.opts.Auth; len(auth) > 0 {
		packet.Data = auth
	}
	return s.manager.sendPacket(packet)
}

// onPacket runs on the Manager's loop.
func (s *Socket) onPacket(packet *Packet) {
	switch packet.Type {
	case PacketTypeConnect:
		s.onConnect(packet)
	case PacketTypeEvent, PacketTypeBinaryEvent:
		s.onEvent(packet)
	case PacketTypeAck, PacketTypeBinaryAck:
		s.onAck(packet)
	case PacketTypeConnectError:
		s.onConnectError(packet)
	case PacketTypeDisconnect:
		s.onServerDisconnect()
	}
}

func (s *Socket) onConnect(packet *Packet) {
	sid := ""
	if data, ok := packet.Data.(map[string]interface{}); ok {
		sid, _ = data["sid"].(string)
	}

	s.mu.Lock()
	s.id = sid
	s.connected = true
	s.mu.Unlock()

	s.log.V(1).Info("namespace connected", "id", sid)
	s.fire(EventConnect)
}

func (s *Socket) onConnectError(packet *Packet) {
	s.mu.Lock()
	s.active = false
	s.connected = false
	s.mu.Unlock()

	err := &ConnectError{Namespace: s.namespace, Data: packet.Data}
	s.log.Info("namespace refused", "err", err)
	s.fire(EventConnectError, err)
	s.manager.release()
}

func (s *Socket) onEvent(packet *Packet) {
	data := packet.Args()
	event := data[0].(string)
	args := append([]interface{}(nil), data[1:]...)

	if packet.ID != nil {
		args = append(args, s.ackSender(*packet.ID))
	}

	s.fire(event, args...)
}

func (s *Socket) ackSender(id int) func(...interface{}) {
	var once sync.Once
	return func(ackData ...interface{}) {
		once.Do(func() {
			if ackData == nil {
				ackData = []interface{}{}
			}
			ackPacket := &Packet{
				Type:      PacketTypeAck,
				Namespace: s.namespace,
				Data:      ackData,
				ID:        &id,
			}
			if err := s.manager.sendPacket(ackPacket); err != nil {
				s.log.V(1).Info("ack not sent", "id", id, "err", err)
			}
		})
	}
}

func (s *Socket) onAck(packet *Packet) {
	id := *packet.ID

	s.mu.Lock()
	pa, ok := s.acks[id]
	if ok {
		delete(s.acks, id)
	}
	s.mu.Unlock()

	if !ok {
		s.log.V(1).Info("discarding ack without pending emit", "id", id)
		return
	}
	if pa.timer != nil {
		pa.timer.Stop()
	}

	args := packet.Args()
	s.invoke("ack", func() { pa.fn(nil, args...) })
}

func (s *Socket) onServerDisconnect() {
	s.mu.Lock()
	s.active = false
	wasConnected := s.connected
	s.connected = false
	acks := s.takeAcks()
	s.mu.Unlock()

	s.failAcks(acks, ErrDisconnected)
	if wasConnected {
		s.fire(EventDisconnect, ReasonIOServerDisconnect)
	}
	s.manager.release()
}

// onClose runs on the Manager's loop when the Engine.IO session ended.
func (s *Socket) onClose(reason Reason) {
	s.mu.Lock()
	wasConnected := s.connected
	s.connected = false
	acks := s.takeAcks()
	s.mu.Unlock()

	s.failAcks(acks, ErrDisconnected)
	if wasConnected {
		s.fire(EventDisconnect, reason)
	}
}

// takeAcks is called with s.mu held.
func (s *Socket) takeAcks() map[int]*pendingAck {
	acks := s.acks
	s.acks = make(map[int]*pendingAck)
	return acks
}

func (s *Socket) failAcks(acks map[int]*pendingAck, err error) {
	ids := make([]int, 0, len(acks))
	for id := range acks {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		pa := acks[id]
		if pa.timer != nil {
			pa.timer.Stop()
		}
		s.invoke("ack", func() { pa.fn(err) })
	}
}

func (s *Socket) fire(event string, args ...interface{}) {
	s.handlersMu.RLock()
	handlers := append([]EventHandler(nil), s.handlers[event]...)
	var anyHandlers []AnyHandler
	if !isReserved(event) {
		anyHandlers = append(anyHandlers, s.anyHandlers...)
	}
	s.handlersMu.RUnlock()

	for _, handler := range handlers {
		s.invoke(event, func() { handler(args...) })
	}
	for _, handler := range anyHandlers {
		s.invoke(event, func() { handler(event, args...) })
	}
}

// invoke isolates a user callback so one failing handler cannot stop the
// dispatch of the others.
func (s *Socket) invoke(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(fmt.Errorf("%v", r), "handler panicked", "event", event)
		}
	}()
	fn()
}
