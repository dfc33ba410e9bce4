// Package payload converts uplink and downlink payloads between raw bytes
// and the upper case hex text carried on the AT command line.
package payload

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFormat is returned for odd-length input or non-hex characters.
var ErrInvalidFormat = errors.New("payload: invalid hex format")

// BytesToHex encodes b as upper case hex, two digits per byte.
func BytesToHex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// HexToBytes decodes s, accepting either letter case.
func HexToBytes(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrInvalidFormat, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return b, nil
}

// Valid reports whether s is a well-formed hex payload.
func Valid(s string) bool {
	_, err := HexToBytes(s)
	return err == nil
}
