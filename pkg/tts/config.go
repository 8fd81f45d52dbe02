package tts

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config holds synthesis client configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// BaseURL of the backend, without the /v1 suffix.
	BaseURL string

	// ReferenceID is the initial voice profile.
	ReferenceID string

	// Normalize asks the backend to normalize input text.
	Normalize bool

	// Latency is LatencyNormal or LatencyBalanced; empty uses the backend default.
	Latency string

	// ChunkLength tunes backend segmenting; zero uses the backend default.
	ChunkLength int

	// Timeouts
	Timeout       time.Duration
	StreamTimeout time.Duration

	// HTTPClient overrides the pooled client. Its transport is shared by
	// the streaming client.
	HTTPClient *http.Client

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithBaseURL sets the backend base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = strings.TrimRight(url, "/")
	}
}

// WithReference sets the initial voice reference id.
func WithReference(referenceID string) Option {
	return func(c *Config) {
		c.ReferenceID = referenceID
	}
}

// WithNormalize toggles backend text normalization.
func WithNormalize(normalize bool) Option {
	return func(c *Config) {
		c.Normalize = normalize
	}
}

// WithLatency sets the backend latency mode.
func WithLatency(mode string) Option {
	return func(c *Config) {
		c.Latency = mode
	}
}

// WithChunkLength sets the backend chunk length.
func WithChunkLength(n int) Option {
	return func(c *Config) {
		c.ChunkLength = n
	}
}

// WithTimeout sets the request timeout for single-shot requests and probes.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithStreamTimeout bounds a whole streaming response. Zero means no bound
// beyond the request context.
func WithStreamTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.StreamTimeout = timeout
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithLogger sets the structured logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "http://localhost:8080",
		Normalize:     true,
		Timeout:       30 * time.Second,
		StreamTimeout: 120 * time.Second,
		Logger:        slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	return nil
}
