package modem

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brocaar/lorawan"
	"github.com/brocaar/lorawan/band"

	"i4.energy/across/loragw/at"
	"i4.energy/across/loragw/payload"
)

const (
	// MinPort and MaxPort bound the application FPort of an uplink.
	MinPort = 1
	MaxPort = 223
	// MaxPayloadBytes is the largest uplink the module accepts.
	MaxPayloadBytes = 242

	regionLength = 5
)

// Class is the LoRaWAN device class.
type Class int

const (
	ClassA Class = iota
	ClassB
	ClassC
)

func (c Class) String() string {
	switch c {
	case ClassA:
		return "A"
	case ClassB:
		return "B"
	case ClassC:
		return "C"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// ParseClass accepts "A", "B" or "C" in either case.
func ParseClass(s string) (Class, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return ClassA, nil
	case "B":
		return ClassB, nil
	case "C":
		return ClassC, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrClassUnsupported, s)
}

// Regions the module firmware can be switched to.
var regions = map[band.Name]bool{
	band.EU868: true,
	band.US915: true,
	band.AU915: true,
	band.KR920: true,
	band.AS923: true,
	band.IN865: true,
	band.CN470: true,
	band.EU433: true,
}

// minTimeout is used once the context deadline has passed, so Send expires
// the command at once instead of falling back to its default.
const minTimeout = time.Nanosecond

// timeoutFor returns def, shortened to the context deadline if that is sooner.
func timeoutFor(ctx context.Context, def time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < def {
			return max(left, minTimeout)
		}
	}
	return def
}

func boolFlag(on bool) int {
	if on {
		return 1
	}
	return 0
}

// setConfig sends one at+set_config command with the AT timeout.
func (m *Modem) setConfig(ctx context.Context, format string, args ...any) (at.Status, error) {
	cmd := at.Config(fmt.Sprintf(format, args...))
	return m.Send(ctx, cmd, timeoutFor(ctx, m.config.atTimeout))
}

// sequence runs commands in order and stops at the first non-success status.
func (m *Modem) sequence(ctx context.Context, cmds ...string) (at.Status, error) {
	for _, cmd := range cmds {
		status, err := m.Send(ctx, cmd, timeoutFor(ctx, m.config.atTimeout))
		if err != nil || !status.OK() {
			return status, err
		}
	}
	return at.StatusSuccess, nil
}

// Restart reboots the module and waits for "Initialization OK".
func (m *Modem) Restart(ctx context.Context) (at.Status, error) {
	return m.Send(ctx, at.Config(at.CfgRestart), timeoutFor(ctx, m.config.initTimeout))
}

// Sleep puts the module into low power mode.
func (m *Modem) Sleep(ctx context.Context) (at.Status, error) {
	return m.setConfig(ctx, at.CfgSleep, 1)
}

// Wake leaves low power mode.
func (m *Modem) Wake(ctx context.Context) (at.Status, error) {
	return m.setConfig(ctx, at.CfgSleep, 0)
}

// SetClass selects class A or C. Class B is not supported by the module.
func (m *Modem) SetClass(ctx context.Context, class Class) (at.Status, error) {
	switch class {
	case ClassA:
		return m.setConfig(ctx, at.CfgClass, 0)
	case ClassC:
		return m.setConfig(ctx, at.CfgClass, 2)
	}
	return at.StatusResponseInvalid, fmt.Errorf("%w: %s", ErrClassUnsupported, class)
}

// SetRegion switches the frequency plan, e.g. "EU868".
func (m *Modem) SetRegion(ctx context.Context, region string) (at.Status, error) {
	if len(region) != regionLength || !regions[band.Name(strings.ToUpper(region))] {
		return at.StatusResponseInvalid, fmt.Errorf("%w: %q", ErrInvalidRegion, region)
	}
	return m.setConfig(ctx, at.CfgRegion, strings.ToUpper(region))
}

// SetConfirmed selects confirmed or unconfirmed uplinks.
func (m *Modem) SetConfirmed(ctx context.Context, confirmed bool) (at.Status, error) {
	return m.setConfig(ctx, at.CfgConfirm, boolFlag(confirmed))
}

// SetADR enables or disables adaptive data rate.
func (m *Modem) SetADR(ctx context.Context, on bool) (at.Status, error) {
	return m.setConfig(ctx, at.CfgADR, boolFlag(on))
}

// SetDevEUI overrides the factory device EUI used by OTAA.
func (m *Modem) SetDevEUI(ctx context.Context, devEUI string) (at.Status, error) {
	var eui lorawan.EUI64
	if err := eui.UnmarshalText([]byte(devEUI)); err != nil {
		return at.StatusResponseInvalid, fmt.Errorf("%w: dev_eui: %v", ErrInvalidKey, err)
	}
	return m.setConfig(ctx, at.CfgDevEUI, strings.ToUpper(eui.String()))
}

// InitOTAA switches to over-the-air activation with the given join EUI
// (16 hex digits) and application key (32 hex digits).
func (m *Modem) InitOTAA(ctx context.Context, appEUI, appKey string) (at.Status, error) {
	var eui lorawan.EUI64
	if err := eui.UnmarshalText([]byte(appEUI)); err != nil {
		return at.StatusResponseInvalid, fmt.Errorf("%w: app_eui: %v", ErrInvalidKey, err)
	}
	var key lorawan.AES128Key
	if err := key.UnmarshalText([]byte(appKey)); err != nil {
		return at.StatusResponseInvalid, fmt.Errorf("%w: app_key: %v", ErrInvalidKey, err)
	}

	return m.sequence(ctx,
		at.Config(fmt.Sprintf(at.CfgJoinMode, at.JoinModeOTAA)),
		at.Config(fmt.Sprintf(at.CfgAppEUI, strings.ToUpper(eui.String()))),
		at.Config(fmt.Sprintf(at.CfgAppKey, strings.ToUpper(key.String()))),
	)
}

// InitABP switches to activation by personalization with the given device
// address (8 hex digits) and session keys (32 hex digits each).
func (m *Modem) InitABP(ctx context.Context, devAddr, nwkSKey, appSKey string) (at.Status, error) {
	var addr lorawan.DevAddr
	if err := addr.UnmarshalText([]byte(devAddr)); err != nil {
		return at.StatusResponseInvalid, fmt.Errorf("%w: dev_addr: %v", ErrInvalidKey, err)
	}
	var nwk, app lorawan.AES128Key
	if err := nwk.UnmarshalText([]byte(nwkSKey)); err != nil {
		return at.StatusResponseInvalid, fmt.Errorf("%w: nwks_key: %v", ErrInvalidKey, err)
	}
	if err := app.UnmarshalText([]byte(appSKey)); err != nil {
		return at.StatusResponseInvalid, fmt.Errorf("%w: apps_key: %v", ErrInvalidKey, err)
	}

	return m.sequence(ctx,
		at.Config(fmt.Sprintf(at.CfgJoinMode, at.JoinModeABP)),
		at.Config(fmt.Sprintf(at.CfgDevAddr, strings.ToUpper(addr.String()))),
		at.Config(fmt.Sprintf(at.CfgNwkSKey, strings.ToUpper(nwk.String()))),
		at.Config(fmt.Sprintf(at.CfgAppSKey, strings.ToUpper(app.String()))),
	)
}

// Join issues at+join and waits for the join result. A zero timeout uses the
// configured join timeout. The EventHandler also receives a JoinCompletion.
func (m *Modem) Join(ctx context.Context, timeout time.Duration) (at.Status, error) {
	if timeout <= 0 {
		timeout = timeoutFor(ctx, m.config.joinTimeout)
	}
	return m.Send(ctx, at.CmdJoin, timeout)
}

// SendUplink transmits a hex encoded payload on port.
func (m *Modem) SendUplink(ctx context.Context, port int, hexPayload string) (at.Status, error) {
	if port < MinPort || port > MaxPort {
		return at.StatusResponseInvalid, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	data, err := payload.HexToBytes(hexPayload)
	if err != nil {
		return at.StatusResponseInvalid, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return m.sendUplink(ctx, port, data)
}

// SendUplinkBytes transmits raw bytes on port.
func (m *Modem) SendUplinkBytes(ctx context.Context, port int, data []byte) (at.Status, error) {
	if port < MinPort || port > MaxPort {
		return at.StatusResponseInvalid, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	return m.sendUplink(ctx, port, data)
}

func (m *Modem) sendUplink(ctx context.Context, port int, data []byte) (at.Status, error) {
	switch {
	case len(data) == 0:
		return at.StatusResponseInvalid, fmt.Errorf("%w: empty", ErrInvalidPayload)
	case len(data) > MaxPayloadBytes:
		return at.StatusResponseInvalid, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLong, len(data), MaxPayloadBytes)
	}
	cmd := fmt.Sprintf(at.CmdSend, port, payload.BytesToHex(data))
	return m.Send(ctx, cmd, timeoutFor(ctx, m.config.sendTimeout))
}
