package at

// Event is an unsolicited notification emitted by the module.
// It is one of JoinCompletion, MessageConfirmation or DownlinkReceived.
type Event interface {
	// Kind is a short stable name, used as topic suffix and JSON tag.
	Kind() string
	isEvent()
}

// JoinCompletion reports the outcome of an at+join request.
type JoinCompletion struct {
	Success bool `json:"success"`
}

// MessageConfirmation is emitted for every at+recv line, i.e. after each
// uplink's receive windows closed.
type MessageConfirmation struct {
	RSSI int `json:"rssi"`
	SNR  int `json:"snr"`
}

// DownlinkReceived carries an application payload sent by the network.
type DownlinkReceived struct {
	Port    int    `json:"port"`
	RSSI    int    `json:"rssi"`
	SNR     int    `json:"snr"`
	Payload string `json:"payload"`
}

func (JoinCompletion) Kind() string      { return "join" }
func (MessageConfirmation) Kind() string { return "confirmation" }
func (DownlinkReceived) Kind() string    { return "downlink" }

func (JoinCompletion) isEvent()      {}
func (MessageConfirmation) isEvent() {}
func (DownlinkReceived) isEvent()    {}
