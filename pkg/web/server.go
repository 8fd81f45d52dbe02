// Package web serves the speech socket and the persona control API.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-kaiwa/pkg/emotions"
	"github.com/teslashibe/go-kaiwa/pkg/hub"
	"github.com/teslashibe/go-kaiwa/pkg/persona"
	"github.com/teslashibe/go-kaiwa/pkg/session"
)

// RootMessage is returned by the liveness endpoint.
const RootMessage = "WebSocketサーバーが稼働中です"

// healthProbeTimeout bounds the synthesis check made by GET /health.
const healthProbeTimeout = 3 * time.Second

// Config holds server settings.
type Config struct {
	Addr        string
	CORSOrigins string

	IdleTimeout      time.Duration
	HistoryLimit     int
	HistoryRetention int

	Logger *slog.Logger
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Personas *persona.Table
	Prompter *persona.Prompter
	Hub      *hub.Hub
	Replier  session.Replier
	Analyzer emotions.Analyzer

	// NewSynthesizer returns a synthesis handle owned by one session.
	NewSynthesizer func() session.Synthesizer

	// SynthesisHealth probes the synthesis backend once.
	SynthesisHealth func(ctx context.Context) error
}

// Server is the speech and control server.
type Server struct {
	app    *fiber.App
	config Config
	deps   Deps
	logger *slog.Logger

	// base is cancelled on shutdown and parents every session.
	base   context.Context
	cancel context.CancelFunc
}

// NewServer creates the server and its routes.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CORSOrigins == "" {
		cfg.CORSOrigins = "*"
	}

	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		config: cfg,
		deps:   deps,
		logger: cfg.Logger.With("component", "web"),
		base:   base,
		cancel: cancel,
	}

	app := fiber.New(fiber.Config{
		AppName:               "kaiwa",
		DisableStartupMessage: true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
	}))

	app.Get("/", s.handleRoot)
	app.Get("/health", s.handleHealth)
	app.Get("/character", s.handleGetCharacter)
	app.Post("/change_character", s.handleChangeCharacter)
	app.Post("/change_only_prompt", s.handleChangePrompt)

	// WebSocket upgrade middleware
	app.Use("/speech", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/speech", websocket.New(s.handleSpeechWS))

	s.app = app
	return s
}

// App exposes the fiber app for in-process requests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the persona hub and serves on the configured address until
// the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.config.Addr)
	go s.deps.Hub.Run(s.base)
	return s.app.Listen(s.config.Addr)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server listening", "addr", ln.Addr().String())
	go s.deps.Hub.Run(s.base)
	return s.app.Listener(ln)
}

// Shutdown ends every session and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	err := s.app.ShutdownWithContext(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("shutdown timed out")
	}
	return err
}
