// Package kaiwa wires the speech server from configuration.
package kaiwa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/teslashibe/go-kaiwa/internal/config"
	"github.com/teslashibe/go-kaiwa/pkg/emotions"
	"github.com/teslashibe/go-kaiwa/pkg/hub"
	"github.com/teslashibe/go-kaiwa/pkg/inference"
	"github.com/teslashibe/go-kaiwa/pkg/persona"
	"github.com/teslashibe/go-kaiwa/pkg/session"
	"github.com/teslashibe/go-kaiwa/pkg/tts"
	"github.com/teslashibe/go-kaiwa/pkg/web"
)

// App is the kaiwa application orchestrator.
// It owns every shared component and their lifecycle.
type App struct {
	config *config.Config
	base   *slog.Logger
	logger *slog.Logger

	personas *persona.Table
	active   persona.Persona
	prompter *persona.Prompter
	synth    *tts.FishSpeech
	llm      inference.Provider
	analyzer emotions.Analyzer
	hub      *hub.Hub

	server *web.Server
}

// New creates an application for cfg.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		config: cfg,
		base:   logger,
		logger: logger.With("component", "kaiwa"),
	}, nil
}

// Init loads personas, builds the clients and waits for the synthesis
// backend. It fails with tts.ErrBackendUnavailable when the backend never
// answers. Call this after New and before Run.
func (a *App) Init(ctx context.Context) error {
	if err := a.initPersonas(); err != nil {
		return fmt.Errorf("personas: %w", err)
	}
	if err := a.initSynthesis(ctx); err != nil {
		return fmt.Errorf("synthesis: %w", err)
	}
	if err := a.initLLM(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	a.initAnalyzer()

	a.hub = hub.New("sessions", hub.Selection{Name: a.active.Name, Voice: a.active.Voice()}, a.base)

	synth := a.synth
	a.server = web.NewServer(web.Config{
		Addr:             a.config.Server.Addr,
		CORSOrigins:      a.config.Server.CORSOrigins,
		IdleTimeout:      a.config.Session.IdleTimeout,
		HistoryLimit:     a.config.Session.HistoryLimit,
		HistoryRetention: a.config.Session.HistoryRetention,
		Logger:           a.base,
	}, web.Deps{
		Personas:        a.personas,
		Prompter:        a.prompter,
		Hub:             a.hub,
		Replier:         inference.NewReplier(a.llm, a.prompter, a.base),
		Analyzer:        a.analyzer,
		NewSynthesizer:  func() session.Synthesizer { return synth.Clone() },
		SynthesisHealth: synth.Health,
	})

	a.logger.Info("initialized",
		"persona", a.active.Name,
		"voice", a.active.Voice(),
		"personas", len(a.personas.Names()),
	)
	return nil
}

// Run serves until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	return a.run(ctx, func() error { return a.server.Start() })
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	return a.run(ctx, func() error { return a.server.Serve(ln) })
}

func (a *App) run(ctx context.Context, serve func() error) error {
	if a.server == nil {
		return errors.New("kaiwa: Init not called")
	}

	errc := make(chan error, 1)
	go func() { errc <- serve() }()

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
		return a.Shutdown()
	}
}

// Shutdown ends every session and stops the server.
func (a *App) Shutdown() error {
	if a.server == nil {
		return nil
	}
	a.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()
	err := a.server.Shutdown(ctx)
	if a.llm != nil {
		err = errors.Join(err, a.llm.Close())
	}
	if a.synth != nil {
		err = errors.Join(err, a.synth.Close())
	}
	return err
}

// Server returns the web server built by Init.
func (a *App) Server() *web.Server {
	return a.server
}

func (a *App) initPersonas() error {
	table, err := persona.Load(a.config.Personas.Path)
	if err != nil {
		return err
	}
	active, err := table.Lookup(a.config.Personas.Default)
	if err != nil {
		return err
	}

	prompter := persona.NewPrompter()
	if err := prompter.SetFromPersona(active); err != nil {
		return err
	}

	a.personas, a.active, a.prompter = table, active, prompter
	return nil
}

func (a *App) initSynthesis(ctx context.Context) error {
	cfg := a.config.Synthesis
	synth, err := tts.NewFishSpeech(
		tts.WithBaseURL(cfg.BaseURL),
		tts.WithReference(a.active.Voice()),
		tts.WithNormalize(cfg.Normalize),
		tts.WithLatency(cfg.Latency),
		tts.WithChunkLength(cfg.ChunkLength),
		tts.WithTimeout(cfg.Timeout),
		tts.WithStreamTimeout(cfg.StreamTimeout),
		tts.WithLogger(a.base),
	)
	if err != nil {
		return err
	}
	if err := synth.CheckAvailability(ctx, cfg.HealthRetries, cfg.HealthDelay); err != nil {
		return err
	}
	a.synth = synth
	return nil
}

func (a *App) initLLM() error {
	cfg := a.config.LLM
	if cfg.APIKey == "" {
		a.logger.Warn("no API key for the chat provider; set OPENAI_API_KEY unless the endpoint is local")
	}

	primary, err := inference.NewClient(
		inference.WithBaseURL(cfg.BaseURL),
		inference.WithAPIKey(cfg.APIKey),
		inference.WithModel(cfg.Model),
		inference.WithMaxTokens(cfg.MaxTokens),
		inference.WithTemperature(cfg.Temperature),
		inference.WithTimeout(cfg.Timeout),
		inference.WithLogger(a.base),
	)
	if err != nil {
		return err
	}
	if cfg.GeminiModel == "" || cfg.GeminiAPIKey == "" {
		a.llm = primary
		return nil
	}

	fallback, err := inference.NewGemini(
		inference.WithAPIKey(cfg.GeminiAPIKey),
		inference.WithModel(cfg.GeminiModel),
		inference.WithMaxTokens(cfg.MaxTokens),
		inference.WithTemperature(cfg.Temperature),
		inference.WithTimeout(cfg.Timeout),
		inference.WithLogger(a.base),
	)
	if err != nil {
		return err
	}
	chain, err := inference.NewChainWithLogger(a.base, primary, fallback)
	if err != nil {
		return err
	}
	a.logger.Info("chat fallback enabled", "model", cfg.GeminiModel)
	a.llm = chain
	return nil
}

func (a *App) initAnalyzer() {
	lexicon := emotions.NewLexicon(nil)
	url := a.config.Emotion.ClassifierURL
	if url == "" {
		a.analyzer = lexicon
		return
	}

	timeout := a.config.Emotion.ClassifierTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	classifier := emotions.NewClassifier(url, timeout, emotions.WithLogger(a.base))
	a.analyzer = emotions.NewFallback(classifier, lexicon, a.base)
}
