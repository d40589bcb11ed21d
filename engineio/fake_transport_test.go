package engineio

import (
	"fmt"
	"io"
	"sync"
)

type fakeTransport struct {
	in        chan []byte
	mu        sync.Mutex
	sent      []string
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) push(frames ...string) {
	for _, frame := range frames {
		f.in <- []byte(frame)
	}
}

func (f *fakeTransport) Read() ([]byte, error) {
	select {
	case data := <-f.in:
		return data, nil
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakeTransport) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.closed:
		return ErrSendClosed
	default:
	}
	f.sent = append(f.sent, string(frame))
	return nil
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func openFrame(sid string, intervalMS, timeoutMS, maxPayload int) string {
	return fmt.Sprintf(`0{"sid":%q,"upgrades":[],"pingInterval":%d,"pingTimeout":%d,"maxPayload":%d}`,
		sid, intervalMS, timeoutMS, maxPayload)
}
