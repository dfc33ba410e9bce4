package modem

import "errors"

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the radio module.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has no transport.
	//
	// This can occur if the Dialer returned a nil Transport or if the Modem
	// was not created via New.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed, and by every operation attempted afterwards.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrLoopRunning is returned when Loop is called while another Loop is
	// still running on the same Modem.
	ErrLoopRunning = errors.New("modem loop already running")

	// ErrLoopNotRunning is returned by Send when no Loop is reading the
	// transport, so no response could ever be correlated.
	ErrLoopNotRunning = errors.New("modem loop not running")

	// ErrEmptyCommand is returned by Send before any I/O for a blank command.
	ErrEmptyCommand = errors.New("empty command")

	// ErrInvalidCommand is returned by Send before any I/O for a command
	// containing a line break.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrLineTooLong is returned when a module output line exceeds the
	// maximum allowed length.
	//
	// This typically indicates a baud rate mismatch or a framing error.
	ErrLineTooLong = errors.New("response line too long")
)

// Argument validation errors. They are returned before anything is written
// to the transport.
var (
	ErrInvalidPort      = errors.New("port must be in range 1..223")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrPayloadTooLong   = errors.New("payload too long")
	ErrClassUnsupported = errors.New("device class not supported")
	ErrInvalidRegion    = errors.New("invalid region")
	ErrInvalidKey       = errors.New("invalid key material")
)
