// Package config loads kaiwa settings. Built-in defaults are overridden by
// the TOML file, which is overridden by environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: KAIWA_SERVER_ADDR sets server.addr.
const EnvPrefix = "KAIWA"

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Session   SessionConfig   `mapstructure:"session"`
	Synthesis SynthesisConfig `mapstructure:"synthesis"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Emotion   EmotionConfig   `mapstructure:"emotion"`
	Personas  PersonaConfig   `mapstructure:"personas"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	CORSOrigins     string        `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type SessionConfig struct {
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	HistoryLimit     int           `mapstructure:"history_limit"`
	HistoryRetention int           `mapstructure:"history_retention"`
}

type SynthesisConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	StreamTimeout time.Duration `mapstructure:"stream_timeout"`
	HealthRetries int           `mapstructure:"health_retries"`
	HealthDelay   time.Duration `mapstructure:"health_delay"`
	Normalize     bool          `mapstructure:"normalize"`
	Latency       string        `mapstructure:"latency"`
	ChunkLength   int           `mapstructure:"chunk_length"`
}

// LLMConfig configures the primary OpenAI-compatible provider and an
// optional Gemini fallback, enabled when GeminiModel and GeminiAPIKey are set.
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`

	GeminiModel  string `mapstructure:"gemini_model"`
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
}

// EmotionConfig selects the analyzer. With no ClassifierURL the keyword
// lexicon is used alone.
type EmotionConfig struct {
	ClassifierURL     string        `mapstructure:"classifier_url"`
	ClassifierTimeout time.Duration `mapstructure:"classifier_timeout"`
}

type PersonaConfig struct {
	Path    string `mapstructure:"path"`
	Default string `mapstructure:"default"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Dir    string `mapstructure:"dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("session.idle_timeout", 60*time.Second)
	v.SetDefault("session.history_limit", 20)
	v.SetDefault("session.history_retention", 200)

	v.SetDefault("synthesis.base_url", "http://localhost:8080")
	v.SetDefault("synthesis.timeout", 30*time.Second)
	v.SetDefault("synthesis.stream_timeout", 120*time.Second)
	v.SetDefault("synthesis.health_retries", 3)
	v.SetDefault("synthesis.health_delay", 5*time.Second)
	v.SetDefault("synthesis.normalize", true)
	v.SetDefault("synthesis.latency", "")
	v.SetDefault("synthesis.chunk_length", 0)

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.gemini_model", "")
	v.SetDefault("llm.gemini_api_key", "")

	v.SetDefault("emotion.classifier_url", "")
	v.SetDefault("emotion.classifier_timeout", 5*time.Second)

	v.SetDefault("personas.path", "character.toml")
	v.SetDefault("personas.default", "marui")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.dir", "")
}

// Load reads the TOML file at path, applies environment overrides and
// returns the validated configuration. An empty path uses defaults and
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Conventional provider variables.
	_ = v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.gemini_api_key", EnvPrefix+"_LLM_GEMINI_API_KEY", "GOOGLE_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Synthesis.BaseURL == "" {
		errs = append(errs, errors.New("synthesis.base_url is required"))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.Personas.Path == "" {
		errs = append(errs, errors.New("personas.path is required"))
	}
	if c.Personas.Default == "" {
		errs = append(errs, errors.New("personas.default is required"))
	}
	if c.Session.HistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("session.history_limit must be positive, got %d", c.Session.HistoryLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
