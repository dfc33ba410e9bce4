package modem_test

import (
	"io"

	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/loragw/modem"
)

// MockSequenceBuilder scripts command/response exchanges on a MockTransport.
//
// The Loop reads continuously, so every scripted Read blocks until the
// matching Write happened. Reads are matched in declaration order.
type MockSequenceBuilder struct {
	transport *modem.MockTransport
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// Command expects cmd on the wire and answers with resp.
func (b *MockSequenceBuilder) Command(cmd, resp string) *MockSequenceBuilder {
	written := make(chan struct{})
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(cmd+"\r\n")).DoAndReturn(func(p []byte) (int, error) {
			close(written)
			return len(p), nil
		}),
	)
	b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
		<-written
		return copy(p, resp), nil
	})
	return b
}

func (b *MockSequenceBuilder) OK(cmd string) *MockSequenceBuilder {
	return b.Command(cmd, cmd+"\r\nOK\r\n")
}

func (b *MockSequenceBuilder) Error(cmd string, code string) *MockSequenceBuilder {
	return b.Command(cmd, "ERROR: "+code+"\r\n")
}

// Hold parks the reader until done is closed and then reports EOF.
func (b *MockSequenceBuilder) Hold(done <-chan struct{}) *MockSequenceBuilder {
	b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
		<-done
		return 0, io.EOF
	}).AnyTimes()
	return b
}

// Build returns the scripted writes for gomock.InOrder.
func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}
