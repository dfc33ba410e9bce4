package at

const (
	// Terminal Control
	CRLF = "\r\n"

	// Command prefix and verbs
	Prefix       = "at+"
	CmdJoin      = "at+join"
	CmdVersion   = "at+version"
	CmdSetConfig = "at+set_config="
	CmdSend      = "at+send=lora:%d:%s"

	// Device configuration keys, appended to CmdSetConfig
	CfgRestart  = "device:restart"
	CfgSleep    = "device:sleep:%d"
	CfgClass    = "lora:class:%d"
	CfgRegion   = "lora:region:%s"
	CfgConfirm  = "lora:confirm:%d"
	CfgADR      = "lora:adr:%d"
	CfgJoinMode = "lora:join_mode:%d"
	CfgDevEUI   = "lora:dev_eui:%s"
	CfgAppEUI   = "lora:app_eui:%s"
	CfgAppKey   = "lora:app_key:%s"
	CfgDevAddr  = "lora:dev_addr:%s"
	CfgNwkSKey  = "lora:nwks_key:%s"
	CfgAppSKey  = "lora:apps_key:%s"

	// Response Codes
	OK             = "OK"
	InitOK         = "Initialization OK"
	WakeUpOK       = "OK Wake Up"
	SleepOK        = "OK Sleep"
	ErrorPrefix    = "ERROR:"
	JoinSuccess    = "OK Join Success"
	RecvPrefix     = "at+recv="
	recvFieldCount = 4
)

// Join modes understood by lora:join_mode.
const (
	JoinModeOTAA = 0
	JoinModeABP  = 1
)

// noisePrefixes are boot banner and diagnostic lines the module prints
// without being asked. They never terminate a command.
var noisePrefixes = []string{
	"RAK811",
	"UART1",
	"UART3",
	"LoRa (R) is a registered",
	"LoRaWAN",
	"Current work_mode",
	"Current region",
	"Selected LoraWAN",
	"Version",
	"==",
}

// Config builds a full set_config command line from one of the Cfg* templates.
func Config(key string) string {
	return CmdSetConfig + key
}
