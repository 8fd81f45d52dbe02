package session

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-kaiwa/pkg/conversation"
)

// Config holds session configuration.
type Config struct {
	// Persona is the initial persona name.
	Persona string

	// Voice is the initial voice; empty keeps the synthesizer's voice.
	Voice string

	// IdleTimeout is how long the session waits for a message before
	// logging and waiting again. The connection stays open.
	IdleTimeout time.Duration

	// History bounds
	HistoryLimit     int
	HistoryRetention int

	Logger *slog.Logger
}

// Option is a functional option for configuring a session.
type Option func(*Config)

// WithPersona sets the initial persona and voice.
func WithPersona(name, voice string) Option {
	return func(c *Config) {
		c.Persona = name
		c.Voice = voice
	}
}

// WithIdleTimeout sets the idle liveness interval.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.IdleTimeout = d
		}
	}
}

// WithHistory sets the window sent to the model and the stored history size.
func WithHistory(limit, retention int) Option {
	return func(c *Config) {
		c.HistoryLimit = limit
		c.HistoryRetention = retention
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() *Config {
	return &Config{
		IdleTimeout:      DefaultIdleTimeout,
		HistoryLimit:     conversation.DefaultHistoryLimit,
		HistoryRetention: conversation.DefaultHistoryRetention,
		Logger:           slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
