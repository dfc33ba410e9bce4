package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"i4.energy/across/loragw/at"
	"i4.energy/across/loragw/modem"
)

// Provisioner is the part of the modem used to bring it onto the network.
type Provisioner interface {
	Wake(ctx context.Context) (at.Status, error)
	SetRegion(ctx context.Context, region string) (at.Status, error)
	SetClass(ctx context.Context, class modem.Class) (at.Status, error)
	SetADR(ctx context.Context, on bool) (at.Status, error)
	SetConfirmed(ctx context.Context, confirmed bool) (at.Status, error)
	SetDevEUI(ctx context.Context, devEUI string) (at.Status, error)
	InitOTAA(ctx context.Context, appEUI, appKey string) (at.Status, error)
	InitABP(ctx context.Context, devAddr, nwkSKey, appSKey string) (at.Status, error)
	Join(ctx context.Context, timeout time.Duration) (at.Status, error)
}

// joinBackoff is the pause after the first failed join, doubled per attempt
var joinBackoff = 5 * time.Second

func check(step string, status at.Status, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	if !status.OK() {
		return fmt.Errorf("%s: %w", step, status.Err())
	}
	return nil
}

// Provision applies cfg to the module and joins the network. Settings are
// applied in order and the first failure aborts.
func Provision(ctx context.Context, dev Provisioner, cfg LoRaConfig, logger *slog.Logger) error {
	// An awake module may reject the wake command
	if status, err := dev.Wake(ctx); err != nil || !status.OK() {
		logger.Debug("Wake not acknowledged", "status", status.String(), "error", err)
	}

	if cfg.Region != "" {
		status, err := dev.SetRegion(ctx, cfg.Region)
		if err := check("set region", status, err); err != nil {
			return err
		}
	}

	if cfg.Class != "" {
		class, err := modem.ParseClass(cfg.Class)
		if err != nil {
			return err
		}
		status, err := dev.SetClass(ctx, class)
		if err := check("set class", status, err); err != nil {
			return err
		}
	}

	status, err := dev.SetADR(ctx, cfg.ADR)
	if err := check("set adr", status, err); err != nil {
		return err
	}
	status, err = dev.SetConfirmed(ctx, cfg.Confirmed)
	if err := check("set confirm", status, err); err != nil {
		return err
	}

	switch cfg.JoinMode {
	case JoinModeOTAA:
		if cfg.DevEUI != "" {
			status, err := dev.SetDevEUI(ctx, cfg.DevEUI)
			if err := check("set dev eui", status, err); err != nil {
				return err
			}
		}
		status, err := dev.InitOTAA(ctx, cfg.AppEUI, cfg.AppKey)
		if err := check("init otaa", status, err); err != nil {
			return err
		}
	case JoinModeABP:
		status, err := dev.InitABP(ctx, cfg.DevAddr, cfg.NwkSKey, cfg.AppSKey)
		if err := check("init abp", status, err); err != nil {
			return err
		}
	}
	logger.Info("Module configured", "region", cfg.Region, "class", cfg.Class, "join_mode", cfg.JoinMode)

	if cfg.JoinAttempts == 0 {
		return nil
	}
	return joinWithRetry(ctx, dev, cfg, logger)
}

func joinWithRetry(ctx context.Context, dev Provisioner, cfg LoRaConfig, logger *slog.Logger) error {
	backoff := joinBackoff
	var last error
	for attempt := 1; attempt <= cfg.JoinAttempts; attempt++ {
		status, err := dev.Join(ctx, cfg.JoinTimeout)
		if last = check("join", status, err); last == nil {
			logger.Info("Joined network", "attempt", attempt)
			return nil
		}
		if err != nil {
			// session errors are not retried
			return last
		}
		logger.Warn("Join attempt failed", "attempt", attempt, "status", status.String())

		if attempt == cfg.JoinAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("giving up after %d attempts: %w", cfg.JoinAttempts, last)
}
