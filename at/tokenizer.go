package at

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// Splitter is used for tokenizing module output. It uses the signature of
// bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// Lines are terminated by LF; a preceding CR is dropped. The module pads
// some lines with NUL bytes after waking up, so tokens are not trimmed here;
// see Normalize.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, bytes.TrimSuffix(data[0:i], []byte{'\r'}), nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Normalize strips NUL padding and surrounding whitespace from a raw line.
func Normalize(line string) string {
	return strings.Trim(line, "\x00 \t\r\n")
}

// ResponseType is the coarse classification of a module line.
type ResponseType int

const (
	TypeIgnorable ResponseType = iota // blank lines, banners, echo
	TypeEvent                         // unsolicited notifications
	TypeStatus                        // terminal status of the in-flight command
)

func (t ResponseType) String() string {
	switch t {
	case TypeIgnorable:
		return "ignorable"
	case TypeEvent:
		return "event"
	case TypeStatus:
		return "status"
	}
	return "unknown"
}

// Response is the result of classifying one line.
// Status is only meaningful for TypeStatus, Events only for TypeEvent.
type Response struct {
	Type   ResponseType
	Status Status
	Events []Event
}

func ignorable() Response { return Response{Type: TypeIgnorable} }

func status(s Status) Response { return Response{Type: TypeStatus, Status: s} }

func events(evs ...Event) Response { return Response{Type: TypeEvent, Events: evs} }

// Classify identifies the nature of a module output line. It is pure: the
// same line always yields the same Response.
func Classify(line string) Response {
	line = Normalize(line)
	if line == "" {
		return ignorable()
	}

	// Direct matches
	switch line {
	case OK, InitOK, WakeUpOK, SleepOK:
		return status(StatusSuccess)
	case JoinSuccess:
		return events(JoinCompletion{Success: true})
	}

	// Prefix matches
	switch {
	case strings.HasPrefix(line, RecvPrefix):
		return classifyRecv(strings.TrimPrefix(line, RecvPrefix))
	case strings.HasPrefix(line, ErrorPrefix):
		code, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, ErrorPrefix)))
		if err != nil {
			return status(StatusResponseInvalid)
		}
		return status(LookupErrorCode(code))
	case strings.HasPrefix(strings.ToLower(line), Prefix):
		// UART echo of a command we wrote
		return ignorable()
	case isNoise(line):
		return ignorable()
	default:
		return status(StatusResponseInvalid)
	}
}

func isNoise(line string) bool {
	for _, p := range noisePrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// classifyRecv parses "<port>,<rssi>,<snr>,<length>[,<payload>]". Firmware
// releases differ in using ',' or ':' before the payload, both are accepted.
func classifyRecv(args string) Response {
	fields := strings.FieldsFunc(args, func(r rune) bool {
		return r == ',' || r == ':'
	})
	if len(fields) < recvFieldCount {
		return status(StatusResponseInvalid)
	}

	var nums [recvFieldCount]int
	for i := range nums {
		n, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return status(StatusResponseInvalid)
		}
		nums[i] = n
	}
	port, rssi, snr, length := nums[0], nums[1], nums[2], nums[3]

	confirmation := MessageConfirmation{RSSI: rssi, SNR: snr}
	if length <= 0 {
		return events(confirmation)
	}
	if len(fields) <= recvFieldCount {
		return status(StatusResponseInvalid)
	}
	return events(confirmation, DownlinkReceived{
		Port:    port,
		RSSI:    rssi,
		SNR:     snr,
		Payload: strings.TrimSpace(fields[recvFieldCount]),
	})
}
