package modem

import (
	"context"
	"io"
	"strings"
	"sync"
)

// TestTransport is a test helper that simulates a blocking transport using channels.
// This is needed because the Loop's scanner goroutine continuously reads from the transport,
// and we need reads to block until data is available (like a real serial port would).
// Every written line is recorded and published on Writes.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	writes   chan string
	written  []string
	closed   bool
	// pending holds the part of a chunk that did not fit into the last Read
	pending []byte
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 10),
		writes:   make(chan string, 64),
	}
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	line := strings.TrimSuffix(string(p), "\r\n")
	t.written = append(t.written, line)
	select {
	case t.writes <- line:
	default:
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	if len(t.pending) == 0 {
		data, ok := <-t.readChan
		if !ok {
			return 0, io.EOF
		}
		t.pending = data
	}
	n = copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving data from the module.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// Writes publishes each written line without its terminator.
func (t *TestTransport) Writes() <-chan string {
	return t.writes
}

// Written returns every line written so far.
func (t *TestTransport) Written() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.written...)
}

// Dial implements Dialer so a TestTransport can be handed to New directly.
func (t *TestTransport) Dial(context.Context) (Transport, error) {
	return t, nil
}
