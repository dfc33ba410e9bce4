package at

import "fmt"

// Status is the terminal outcome of exactly one command.
type Status int

const (
	StatusSuccess Status = iota
	StatusTimeout
	StatusResponseInvalid

	// Module errors
	StatusUnsupportedCommand
	StatusInvalidParameter
	StatusIOError
	StatusInvalidDeviceState

	// LoRaWAN MAC layer errors
	StatusLoRaBusy
	StatusLoRaServiceUnknown
	StatusLoRaParameterInvalid
	StatusLoRaFrequencyInvalid
	StatusLoRaDataRateInvalid
	StatusLoRaFrequencyAndDataRateInvalid
	StatusLoRaNotJoined
	StatusLoRaPacketTooLong
	StatusLoRaServiceClosedByServer
	StatusLoRaRegionUnsupported
	StatusLoRaDutyCycleRestricted
	StatusLoRaNoValidChannel
	StatusLoRaNoFreeChannel
	StatusLoRaStatusError
	StatusLoRaTxTimeout
	StatusLoRaRx1Timeout
	StatusLoRaRx2Timeout
	StatusLoRaRx1ReceiveError
	StatusLoRaRx2ReceiveError
	StatusLoRaJoinFailed
	StatusLoRaDownlinkRepeated
	StatusLoRaPayloadSizeInvalid
	StatusLoRaTooManyDownlinkFramesLost
	StatusLoRaAddressFail
	StatusLoRaMICVerifyError
)

// errorCodes maps the numeric part of "ERROR: <n>" lines.
var errorCodes = map[int]Status{
	1:   StatusUnsupportedCommand,
	2:   StatusInvalidParameter,
	3:   StatusIOError,
	4:   StatusIOError,
	5:   StatusInvalidParameter, // UART send failure
	41:  StatusInvalidDeviceState,
	80:  StatusLoRaBusy,
	81:  StatusLoRaServiceUnknown,
	82:  StatusLoRaParameterInvalid,
	83:  StatusLoRaFrequencyInvalid,
	84:  StatusLoRaDataRateInvalid,
	85:  StatusLoRaFrequencyAndDataRateInvalid,
	86:  StatusLoRaNotJoined,
	87:  StatusLoRaPacketTooLong,
	88:  StatusLoRaServiceClosedByServer,
	89:  StatusLoRaRegionUnsupported,
	90:  StatusLoRaDutyCycleRestricted,
	91:  StatusLoRaNoValidChannel,
	92:  StatusLoRaNoFreeChannel,
	93:  StatusLoRaStatusError,
	94:  StatusLoRaTxTimeout,
	95:  StatusLoRaRx1Timeout,
	96:  StatusLoRaRx2Timeout,
	97:  StatusLoRaRx1ReceiveError,
	98:  StatusLoRaRx2ReceiveError,
	99:  StatusLoRaJoinFailed,
	100: StatusLoRaDownlinkRepeated,
	101: StatusLoRaPayloadSizeInvalid,
	102: StatusLoRaTooManyDownlinkFramesLost,
	103: StatusLoRaAddressFail,
	104: StatusLoRaMICVerifyError,
}

var statusNames = map[Status]string{
	StatusSuccess:                         "success",
	StatusTimeout:                         "timeout",
	StatusResponseInvalid:                 "response invalid",
	StatusUnsupportedCommand:              "unsupported command",
	StatusInvalidParameter:                "invalid parameter",
	StatusIOError:                         "flash or IIC I/O error",
	StatusInvalidDeviceState:              "invalid device state",
	StatusLoRaBusy:                        "LoRa busy",
	StatusLoRaServiceUnknown:              "LoRa service unknown",
	StatusLoRaParameterInvalid:            "LoRa parameter invalid",
	StatusLoRaFrequencyInvalid:            "LoRa frequency invalid",
	StatusLoRaDataRateInvalid:             "LoRa data rate invalid",
	StatusLoRaFrequencyAndDataRateInvalid: "LoRa frequency and data rate invalid",
	StatusLoRaNotJoined:                   "LoRa not joined",
	StatusLoRaPacketTooLong:               "LoRa packet too long",
	StatusLoRaServiceClosedByServer:       "LoRa service closed by server",
	StatusLoRaRegionUnsupported:           "LoRa region unsupported",
	StatusLoRaDutyCycleRestricted:         "LoRa duty cycle restricted",
	StatusLoRaNoValidChannel:              "LoRa no valid channel",
	StatusLoRaNoFreeChannel:               "LoRa no free channel",
	StatusLoRaStatusError:                 "LoRa status error",
	StatusLoRaTxTimeout:                   "LoRa TX timeout",
	StatusLoRaRx1Timeout:                  "LoRa RX1 timeout",
	StatusLoRaRx2Timeout:                  "LoRa RX2 timeout",
	StatusLoRaRx1ReceiveError:             "LoRa RX1 receive error",
	StatusLoRaRx2ReceiveError:             "LoRa RX2 receive error",
	StatusLoRaJoinFailed:                  "LoRa join failed",
	StatusLoRaDownlinkRepeated:            "LoRa downlink repeated",
	StatusLoRaPayloadSizeInvalid:          "LoRa payload size invalid for data rate",
	StatusLoRaTooManyDownlinkFramesLost:   "LoRa too many downlink frames lost",
	StatusLoRaAddressFail:                 "LoRa address fail",
	StatusLoRaMICVerifyError:              "LoRa MIC verify error",
}

// LookupErrorCode returns the status for a numeric device error code.
// Codes outside the table classify as StatusResponseInvalid.
func LookupErrorCode(code int) Status {
	if s, ok := errorCodes[code]; ok {
		return s
	}
	return StatusResponseInvalid
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// OK reports whether the command succeeded.
func (s Status) OK() bool {
	return s == StatusSuccess
}

// Err returns nil for StatusSuccess and a *StatusError otherwise.
func (s Status) Err() error {
	if s == StatusSuccess {
		return nil
	}
	return &StatusError{Status: s}
}

// StatusError wraps a non-success Status for callers that work with errors.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string {
	return "device: " + e.Status.String()
}

// Is matches another *StatusError carrying the same Status.
func (e *StatusError) Is(target error) bool {
	t, ok := target.(*StatusError)
	return ok && t.Status == e.Status
}
