package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"i4.energy/across/loragw/at"
	"i4.energy/across/loragw/modem"
)

// Radio is the modem as seen by the shell commands.
type Radio interface {
	Send(ctx context.Context, cmd string, timeout time.Duration) (at.Status, error)
	Join(ctx context.Context, timeout time.Duration) (at.Status, error)
	SendUplink(ctx context.Context, port int, hexPayload string) (at.Status, error)
	SetRegion(ctx context.Context, region string) (at.Status, error)
	SetClass(ctx context.Context, class modem.Class) (at.Status, error)
	SetADR(ctx context.Context, on bool) (at.Status, error)
	SetConfirmed(ctx context.Context, confirmed bool) (at.Status, error)
	Sleep(ctx context.Context) (at.Status, error)
	Wake(ctx context.Context) (at.Status, error)
	Restart(ctx context.Context) (at.Status, error)
}

const (
	radioKey   = "$radio"
	timeoutKey = "$timeout"
	// joinTimeout covers both receive windows of a join accept
	joinTimeout = 30 * time.Second
)

var commands = []*ishell.Cmd{
	{
		Name: "raw",
		Help: "CMD: send an AT command line as is, e.g. raw at+version",
		Func: withArgs(1, func(c *ishell.Context, r Radio, ctx context.Context) (at.Status, error) {
			return r.Send(ctx, strings.Join(c.Args, " "), 0)
		}),
	},
	{
		Name: "join",
		Help: "join the network with the stored activation settings",
		Func: withTimeout(joinTimeout, func(c *ishell.Context, r Radio, ctx context.Context) (at.Status, error) {
			return r.Join(ctx, joinTimeout)
		}),
	},
	{
		Name:    "send",
		Aliases: []string{"uplink"},
		Help:    "PORT HEX: transmit an uplink",
		Func: withArgs(2, func(c *ishell.Context, r Radio, ctx context.Context) (at.Status, error) {
			port, payload, err := parseSendArgs(c.Args)
			if err != nil {
				return at.StatusResponseInvalid, err
			}
			return r.SendUplink(ctx, port, payload)
		}),
	},
	{
		Name: "region",
		Help: "NAME: switch the frequency plan, e.g. EU868",
		Func: withArgs(1, func(c *ishell.Context, r Radio, ctx context.Context) (at.Status, error) {
			return r.SetRegion(ctx, c.Args[0])
		}),
	},
	{
		Name: "class",
		Help: "A|C: set the device class",
		Func: withArgs(1, func(c *ishell.Context, r Radio, ctx context.Context) (at.Status, error) {
			class, err := modem.ParseClass(c.Args[0])
			if err != nil {
				return at.StatusResponseInvalid, err
			}
			return r.SetClass(ctx, class)
		}),
	},
	{
		Name: "adr",
		Help: "on|off: adaptive data rate",
		Func: withArgs(1, func(c *ishell.Context, r Radio, ctx context.Context) (at.Status, error) {
			on, err := parseOnOff(c.Args[0])
			if err != nil {
				return at.StatusResponseInvalid, err
			}
			return r.SetADR(ctx, on)
		}),
	},
	{
		Name: "confirm",
		Help: "on|off: confirmed uplinks",
		Func: withArgs(1, func(c *ishell.Context, r Radio, ctx context.Context) (at.Status, error) {
			on, err := parseOnOff(c.Args[0])
			if err != nil {
				return at.StatusResponseInvalid, err
			}
			return r.SetConfirmed(ctx, on)
		}),
	},
	{
		Name: "sleep",
		Help: "enter low power mode",
		Func: withArgs(0, func(c *ishell.Context, r Radio, ctx context.Context) (at.Status, error) {
			return r.Sleep(ctx)
		}),
	},
	{
		Name: "wake",
		Help: "leave low power mode",
		Func: withArgs(0, func(c *ishell.Context, r Radio, ctx context.Context) (at.Status, error) {
			return r.Wake(ctx)
		}),
	},
	{
		Name: "restart",
		Help: "reboot the module",
		Func: withArgs(0, func(c *ishell.Context, r Radio, ctx context.Context) (at.Status, error) {
			return r.Restart(ctx)
		}),
	},
}

type radioFunc func(c *ishell.Context, r Radio, ctx context.Context) (at.Status, error)

// withArgs checks the argument count and runs fn with the shell timeout.
func withArgs(n int, fn radioFunc) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if len(c.Args) < n {
			c.Err(fmt.Errorf("%d argument(s) required", n))
			return
		}
		timeout, _ := c.Get(timeoutKey).(time.Duration)
		withTimeout(timeout, fn)(c)
	}
}

func withTimeout(timeout time.Duration, fn radioFunc) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		r, ok := c.Get(radioKey).(Radio)
		if !ok {
			c.Err(errors.New("no radio"))
			return
		}
		limit := timeout
		if limit <= 0 {
			limit = 5 * time.Second
		}
		// the modem applies the command timeout, this only bounds the wait
		ctx, cancel := context.WithTimeout(context.Background(), limit+time.Second)
		defer cancel()

		status, err := fn(c, r, ctx)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(status.String())
	}
}

func parseSendArgs(args []string) (int, string, error) {
	if len(args) < 2 {
		return 0, "", errors.New("PORT and HEX required")
	}
	port, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, "", fmt.Errorf("invalid PORT: %v", err)
	}
	return port, strings.Join(args[1:], ""), nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func formatEvent(ev at.Event) string {
	data, err := json.Marshal(ev)
	if err != nil {
		return ev.Kind()
	}
	return fmt.Sprintf("<< %s %s", ev.Kind(), data)
}
