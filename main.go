package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"i4.energy/across/loragw/modem"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port of the LoRaWAN module")
	flag.Int("baud-rate", modem.DefaultBaudRate, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("region", "", "LoRaWAN region, e.g. EU868")
	flag.String("class", "A", "Device class (A or C)")
	flag.Bool("adr", false, "Enable adaptive data rate")
	flag.Bool("confirmed", false, "Send confirmed uplinks")
	flag.String("join-mode", "", "Activation mode (otaa, abp), empty keeps the module setting")
	flag.String("mqtt-broker", "", "MQTT broker URL, e.g. mqtt://localhost:1883/loragw")
	flag.String("mqtt-topic-prefix", "", "MQTT topic prefix, overrides the broker URL path")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithFile(*configPath), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: config.SlogLevel()}))

	hub := NewHub(logger.With("component", "hub"))

	modemConfig, err := modem.NewConfigBuilder().
		WithJoinTimeout(config.LoRa.JoinTimeout).
		WithSendTimeout(config.LoRa.SendTimeout).
		WithDialer(modem.SerialDialer{
			PortName:    config.SerialPort,
			BaudRate:    config.BaudRate,
			ReadTimeout: config.ReadTimeout,
		}).
		WithEventHandler(hub).
		WithLogger(logger.With("component", "modem")).
		Build()
	if err != nil {
		logger.Error("Failed to create modem config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		logger.Error("Failed to open modem", "error", err, "port", config.SerialPort)
		os.Exit(1)
	}

	logger.Info("Starting LoRaWAN gateway", "port", config.SerialPort, "baud", config.BaudRate)

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- m.Loop(ctx)
	}()

	go func() {
		if err := Provision(ctx, m, config.LoRa, logger.With("component", "provision")); err != nil {
			logger.Error("Provisioning failed", "error", err)
		}
	}()

	if config.MQTT.Broker != "" {
		bridge, err := NewMQTTBridge(config.MQTT, m, hub, logger.With("component", "mqtt"))
		if err != nil {
			logger.Error("Invalid MQTT configuration", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.Error("MQTT bridge stopped", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger:      logger.With("component", "server"),
			Device:      m,
			Hub:         hub,
			JoinTimeout: config.LoRa.JoinTimeout,
		},
	}

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-loopErr:
		logger.Error("Modem loop stopped", "error", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
		exitCode = 1
	}

	logger.Info("Closing modem connection")
	if err := m.Close(); err != nil {
		logger.Error("Failed to close modem", "error", err)
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
