package modem_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"i4.energy/across/loragw/at"
	"i4.energy/across/loragw/modem"
)

func TestConfig(t *testing.T) {
	t.Run("ErrNoDialer when no dialer provided", func(t *testing.T) {
		_, err := modem.NewConfigBuilder().Build()

		if err != modem.ErrNoDialer {
			t.Errorf("expected ErrNoDialer, got: %v", err)
		}
	})

	t.Run("Builds with every option", func(t *testing.T) {
		_, err := modem.NewConfigBuilder().
			WithDialer(modem.NewTestTransport()).
			WithATTimeout(time.Second).
			WithInitTimeout(2 * time.Second).
			WithJoinTimeout(time.Minute).
			WithSendTimeout(3 * time.Second).
			WithMaxLineBytes(512).
			WithEventHandler(modem.EventHandlerFunc(func(at.Event) {})).
			WithLogger(slog.New(slog.DiscardHandler)).
			Build()
		if err != nil {
			t.Errorf("unexpected error from Build(): %v", err)
		}
	})

	t.Run("Default AT timeout applies to Send", func(t *testing.T) {
		m, tt, _ := startTestModem(t, modem.NewConfigBuilder().WithATTimeout(30*time.Millisecond))

		start := time.Now()
		status, err := m.Send(context.Background(), "at+version", 0)
		if err != nil || status != at.StatusTimeout {
			t.Errorf("expected StatusTimeout, got status %v err %v", status, err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("Send ignored the configured AT timeout, took %v", elapsed)
		}
		expectWrite(t, tt, "at+version")
	})
}
