package modem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"i4.energy/across/loragw/at"
)

// Modem represents a session with a LoRaWAN radio module that communicates
// via AT commands. It provides thread-safe access to the module through a
// centralized event loop that owns all transport reads.
type Modem struct {
	// transport provides the physical connection to the module (serial, TCP, etc.)
	transport Transport
	// config contains the modem configuration settings
	config Config
	logger *slog.Logger

	mu          sync.Mutex
	closed      bool
	loopRunning bool
	loopCancel  context.CancelFunc
	// loopDone is closed when the running Loop returns
	loopDone chan struct{}

	// commands hands AT command requests to the Loop
	commands chan *commandRequest

	// The reader outlives a single Loop run and stops on Close
	readerOnce sync.Once
	reader     *lineReader
	session    context.Context
	endSession context.CancelFunc
}

// New creates a new Modem instance with the given configuration and
// establishes the transport connection. No command is sent until Loop runs.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial modem: %w", err)
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	session, endSession := context.WithCancel(context.Background())
	return &Modem{
		transport:  transport,
		config:     config,
		logger:     config.logger,
		commands:   make(chan *commandRequest),
		session:    session,
		endSession: endSession,
	}, nil
}

// Loop is the main event loop that handles all transport I/O operations.
// It must be running for Send and the LoRaWAN operations to work:
//
// 1. Queues command requests from Send calls in submission order
// 2. Writes the oldest command once the previous one completed or expired
// 3. Reads and classifies lines from the transport
// 4. Dispatches unsolicited events to the EventHandler
// 5. Returns terminal statuses to the waiting Send call
//
// The Loop runs until the provided context is cancelled, the Modem is
// closed, or the transport fails. Transport reads happen on a single reader
// goroutine started by the first Loop, so a Loop restarted after its
// context was cancelled continues with the next unread line. Once the
// transport has failed every further Loop returns immediately.
//
// Usage:
//
//	m, err := New(ctx, config)
//	if err != nil { return err }
//
//	go m.Loop(ctx)
//
//	status, err := m.Send(ctx, "at+join", 30*time.Second)
func (m *Modem) Loop(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	if m.loopRunning {
		m.mu.Unlock()
		return ErrLoopRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.loopRunning = true
	m.loopCancel = cancel
	m.loopDone = done
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		m.loopRunning = false
		m.loopCancel = nil
		m.mu.Unlock()
		close(done)
	}()

	m.readerOnce.Do(func() {
		m.reader = m.startReader(m.session)
	})
	reader := m.reader

	var (
		queue    commandQueue
		inflight *commandRequest
	)
	// fail leaves no caller waiting once the Loop is gone
	fail := func(err error) error {
		if inflight != nil {
			inflight.complete(at.StatusTimeout, err)
			inflight = nil
		}
		queue.failAll(err)
		return err
	}

	for {
		if inflight == nil && queue.len() > 0 {
			var err error
			if inflight, err = m.writeNext(&queue); err != nil {
				return fail(err)
			}
		}

		// nil while idle, which blocks forever in select
		var expired <-chan struct{}
		if inflight != nil {
			expired = inflight.ctx.Done()
		}

		select {
		case <-ctx.Done():
			return fail(ctx.Err())

		case req := <-m.commands:
			queue.push(req)

		case <-expired:
			// The caller has already returned StatusTimeout. A response
			// arriving from now on is stray unless another command is written.
			m.logger.Debug("command expired", "cmd", inflight.cmd)
			inflight.complete(at.StatusTimeout, nil)
			inflight = nil

		case line, ok := <-reader.lines:
			if !ok {
				if reader.err != nil {
					return fail(fmt.Errorf("scanner error: %w", reader.err))
				}
				if ctx.Err() != nil {
					return fail(ctx.Err())
				}
				return fail(io.EOF)
			}
			inflight = m.handleLine(line, inflight)
		}
	}
}

// lineReader carries normalized, non-empty lines from the scanner goroutine.
// err is set before lines is closed.
type lineReader struct {
	lines chan string
	err   error
}

func (m *Modem) startReader(ctx context.Context) *lineReader {
	r := &lineReader{lines: make(chan string, 16)}

	scanner := bufio.NewScanner(m.transport)
	scanner.Buffer(make([]byte, 0, min(256, m.config.maxLineBytes)), m.config.maxLineBytes)
	scanner.Split(at.Splitter)

	go func() {
		defer close(r.lines)
		for scanner.Scan() {
			line := at.Normalize(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case r.lines <- line:
			case <-ctx.Done():
				return
			}
		}
		err := scanner.Err()
		if errors.Is(err, bufio.ErrTooLong) {
			err = ErrLineTooLong
		}
		r.err = err
	}()
	return r
}

// writeNext writes the oldest live request and returns it as the new
// in-flight command. Requests whose caller already gave up are skipped.
// A write failure is fatal to the session.
func (m *Modem) writeNext(queue *commandQueue) (*commandRequest, error) {
	for req := queue.pop(); req != nil; req = queue.pop() {
		if req.ctx.Err() != nil {
			req.complete(at.StatusTimeout, nil)
			continue
		}

		wire := req.cmd + at.CRLF
		if _, err := m.transport.Write([]byte(wire)); err != nil {
			err = fmt.Errorf("write command %q: %w", req.cmd, err)
			m.logger.Error("transport write failed", "cmd", req.cmd, "error", err)
			req.complete(at.StatusTimeout, err)
			return nil, err
		}
		m.logger.Debug("command written", "cmd", req.cmd)
		return req, nil
	}
	return nil, nil
}

// handleLine classifies one line and returns the in-flight command that
// remains after it.
func (m *Modem) handleLine(line string, inflight *commandRequest) *commandRequest {
	resp := at.Classify(line)

	switch resp.Type {
	case at.TypeIgnorable:
		m.logger.Debug("ignoring line", "line", line)

	case at.TypeEvent:
		joined := false
		for _, ev := range resp.Events {
			m.dispatch(ev)
			if jc, ok := ev.(at.JoinCompletion); ok && jc.Success {
				joined = true
			}
		}
		// at+join is answered by the join event, not by a plain OK
		if joined && inflight != nil && inflight.isJoin() {
			inflight.complete(at.StatusSuccess, nil)
			return nil
		}

	case at.TypeStatus:
		if inflight == nil {
			m.logger.Warn("discarding stray status", "line", line, "status", resp.Status.String())
			return nil
		}
		if inflight.isJoin() {
			if resp.Status.OK() {
				m.logger.Debug("join accepted, waiting for result", "line", line)
				return inflight
			}
			m.dispatch(at.JoinCompletion{Success: false})
		}
		m.logger.Debug("command completed", "cmd", inflight.cmd, "status", resp.Status.String())
		inflight.complete(resp.Status, nil)
		return nil
	}
	return inflight
}

// Send writes cmd followed by CRLF and waits up to timeout for its terminal
// status. A zero timeout uses the configured AT timeout.
//
// Device-reported errors and timeouts are returned as statuses with a nil
// error. A non-nil error means the command could not be issued or the session
// failed; the status is then StatusResponseInvalid for argument and state
// errors and StatusTimeout otherwise.
//
// Concurrent calls are safe: commands are written one at a time in
// submission order. Responses carry no command tag, so correlation assumes
// the module answers each command exactly once and before the next one is
// written. A reply arriving after its command expired is discarded if no
// other command is in flight, otherwise it is attributed to that command.
func (m *Modem) Send(ctx context.Context, cmd string, timeout time.Duration) (at.Status, error) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return at.StatusResponseInvalid, ErrEmptyCommand
	}
	if strings.ContainsAny(cmd, "\r\n") {
		return at.StatusResponseInvalid, fmt.Errorf("%w: line break in %q", ErrInvalidCommand, cmd)
	}
	if timeout <= 0 {
		timeout = m.config.atTimeout
	}

	m.mu.Lock()
	closed, done := m.closed, m.loopDone
	m.mu.Unlock()

	switch {
	case closed:
		return at.StatusResponseInvalid, ErrAlreadyClosed
	case m.transport == nil:
		return at.StatusResponseInvalid, ErrNotInitialized
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req := newCommandRequest(ctx, cmd)

	// A Loop started concurrently with Send picks the request up late
	select {
	case m.commands <- req:
	case <-done:
		return at.StatusTimeout, ErrLoopNotRunning
	case <-ctx.Done():
		if !m.looping() {
			return at.StatusTimeout, ErrLoopNotRunning
		}
		return at.StatusTimeout, parent.Err()
	}

	// The Loop completes an expired request with a bare StatusTimeout. The
	// caller's own cancellation is reported in its place.
	result := func(resp commandResponse) (at.Status, error) {
		if resp.status == at.StatusTimeout && resp.err == nil {
			return at.StatusTimeout, parent.Err()
		}
		return resp.status, resp.err
	}

	select {
	case resp := <-req.respChan:
		return result(resp)
	case <-ctx.Done():
	}

	// Prefer a status that raced with the deadline
	select {
	case resp := <-req.respChan:
		return result(resp)
	default:
	}
	return at.StatusTimeout, parent.Err()
}

func (m *Modem) looping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loopRunning
}

// Close shuts down the modem and releases all resources.
// It stops the event loop, closes the transport connection, and marks
// the modem as closed. Closing the transport unblocks the pending read.
// After calling Close(), the modem cannot be reused.
func (m *Modem) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	m.closed = true
	cancel := m.loopCancel
	m.mu.Unlock()

	// Stop the Loop if it's running
	if cancel != nil {
		cancel()
	}
	if m.endSession != nil {
		m.endSession()
	}

	if m.transport != nil {
		return m.transport.Close()
	}

	return nil
}
