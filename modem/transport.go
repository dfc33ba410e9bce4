package modem

//go:generate go tool mockgen -source=transport.go -destination=mock_transport.go -package=modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Transport represents an established, bidirectional byte stream to a
// LoRaWAN radio module.
//
// A Transport is assumed to be already connected and ready for use. It provides
// the low-level I/O primitives required to send AT commands and receive responses.
// Typical implementations include serial ports, TCP connections to emulators,
// or in-memory fakes used for testing. Close must unblock a pending Read.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a radio module.
//
// Dialer abstracts how the connection is created (for example, via a
// serial port, TCP-based emulator, or test double) and is intended to be used
// during modem construction only. Once a Transport is obtained, the Dialer is
// no longer needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}

// DefaultBaudRate is the factory UART speed of RAK811 modules.
const DefaultBaudRate = 115200

// SerialDialer opens a radio module over a serial port using go.bug.st/serial.
type SerialDialer struct {
	PortName string
	BaudRate int
	// Mode overrides BaudRate when set. The default is 8N1 without flow control.
	Mode *serial.Mode
	// ReadTimeout bounds each underlying read. Zero blocks until data arrives
	// or the port is closed.
	ReadTimeout time.Duration
}

// Dial implements Dialer.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("modem: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("modem: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud == 0 {
			baud = DefaultBaudRate
		}
		mode = &serial.Mode{
			BaudRate: baud,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}
	if d.ReadTimeout > 0 {
		if err := port.SetReadTimeout(d.ReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", d.PortName, err)
		}
	}
	// Drop banner bytes buffered before we attached
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("reset input buffer on %s: %w", d.PortName, err)
	}
	return &serialTransport{Port: port}, nil
}

// serialTransport hides read timeouts from bufio.Scanner, which treats
// repeated empty reads as an error.
type serialTransport struct {
	serial.Port
}

func (s *serialTransport) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := s.Port.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
	}
}
