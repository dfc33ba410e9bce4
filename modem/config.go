package modem

import (
	"log/slog"
	"time"
)

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

// Config holds the settings of a Modem. Use ConfigBuilder to create one.
type Config struct {
	dialer       Dialer
	atTimeout    time.Duration
	initTimeout  time.Duration
	joinTimeout  time.Duration
	sendTimeout  time.Duration
	maxLineBytes int
	handler      EventHandler
	logger       *slog.Logger
}

func (c *Config) setDefaults() {
	if c.atTimeout == 0 {
		c.atTimeout = 5 * time.Second
	}
	if c.initTimeout == 0 {
		c.initTimeout = 10 * time.Second
	}
	if c.joinTimeout == 0 {
		c.joinTimeout = 30 * time.Second
	}
	if c.sendTimeout == 0 {
		c.sendTimeout = 10 * time.Second
	}
	if c.maxLineBytes == 0 {
		c.maxLineBytes = 1024
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns a builder with no dialer and default timeouts.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

// WithDialer sets the Dialer used by New to open the transport.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithATTimeout sets the default timeout of configuration commands.
func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.atTimeout = d
	return b
}

// WithInitTimeout sets the timeout of a module restart.
func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.config.initTimeout = d
	return b
}

// WithJoinTimeout sets the default timeout of at+join.
func (b *ConfigBuilder) WithJoinTimeout(d time.Duration) *ConfigBuilder {
	b.config.joinTimeout = d
	return b
}

// WithSendTimeout sets the default timeout of an uplink.
func (b *ConfigBuilder) WithSendTimeout(d time.Duration) *ConfigBuilder {
	b.config.sendTimeout = d
	return b
}

// WithMaxLineBytes limits the length of a single module output line.
func (b *ConfigBuilder) WithMaxLineBytes(n int) *ConfigBuilder {
	b.config.maxLineBytes = n
	return b
}

// WithEventHandler registers the receiver of unsolicited events.
func (b *ConfigBuilder) WithEventHandler(h EventHandler) *ConfigBuilder {
	b.config.handler = h
	return b
}

// WithLogger sets the logger of the Modem.
func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build applies defaults and validates the configuration.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	c.setDefaults()
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
