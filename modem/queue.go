package modem

import (
	"context"
	"strings"

	"i4.energy/across/loragw/at"
)

// commandRequest represents an AT command waiting to be written or for its
// terminal status. It is completed exactly once.
type commandRequest struct {
	// cmd is the AT command line without terminator
	cmd string
	// ctx expires when the caller stops waiting
	ctx context.Context
	// respChan receives the command outcome from the Loop
	respChan chan commandResponse
	next     *commandRequest
}

// commandResponse contains the result of an AT command execution.
type commandResponse struct {
	status at.Status
	err    error
}

func newCommandRequest(ctx context.Context, cmd string) *commandRequest {
	return &commandRequest{
		cmd:      cmd,
		ctx:      ctx,
		respChan: make(chan commandResponse, 1), // Buffered so the Loop never blocks
	}
}

func (r *commandRequest) isJoin() bool {
	return strings.EqualFold(r.cmd, at.CmdJoin)
}

func (r *commandRequest) complete(status at.Status, err error) {
	select {
	case r.respChan <- commandResponse{status: status, err: err}:
	default:
	}
}

// commandQueue holds requests in submission order.
type commandQueue struct {
	head *commandRequest
	tail *commandRequest
	size int
}

func (q *commandQueue) push(r *commandRequest) {
	r.next = nil
	if q.head == nil {
		q.head = r
	} else {
		q.tail.next = r
	}
	q.tail = r
	q.size++
}

// pop removes the oldest request, or returns nil on an empty queue.
func (q *commandQueue) pop() *commandRequest {
	r := q.head
	if r == nil {
		return nil
	}
	if q.head = r.next; q.head == nil {
		q.tail = nil
	}
	r.next = nil
	q.size--
	return r
}

func (q *commandQueue) len() int {
	return q.size
}

// failAll completes every queued request with err and empties the queue.
func (q *commandQueue) failAll(err error) {
	for r := q.pop(); r != nil; r = q.pop() {
		r.complete(at.StatusTimeout, err)
	}
}
