package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/abiosoft/ishell"

	"i4.energy/across/loragw/at"
	"i4.energy/across/loragw/modem"
)

var (
	portName   = flag.String("port", "/dev/ttyUSB0", "Serial port of the LoRaWAN module")
	baudRate   = flag.Int("baud", modem.DefaultBaudRate, "Baud rate")
	cmdTimeout = flag.Duration("timeout", 5*time.Second, "Timeout of a single command")
	debug      = flag.Bool("debug", false, "Log module traffic to stderr")
)

func main() {
	flag.Parse()

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	shell := ishell.New()

	config, err := modem.NewConfigBuilder().
		WithDialer(modem.SerialDialer{PortName: *portName, BaudRate: *baudRate}).
		WithATTimeout(*cmdTimeout).
		WithEventHandler(modem.EventHandlerFunc(func(ev at.Event) {
			shell.Println(formatEvent(ev))
		})).
		WithLogger(logger).
		Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, err := modem.New(ctx, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", *portName, err)
		os.Exit(1)
	}
	defer m.Close()

	go func() {
		if err := m.Loop(ctx); err != nil && ctx.Err() == nil {
			shell.Println("session ended:", err)
		}
	}()

	shell.Set(radioKey, Radio(m))
	shell.Set(timeoutKey, *cmdTimeout)
	shell.SetPrompt(fmt.Sprintf("[%s] > ", *portName))
	for _, cmd := range commands {
		shell.AddCmd(cmd)
	}

	if args := flag.Args(); len(args) > 0 {
		if err := shell.Process(args...); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	shell.Run()
}
