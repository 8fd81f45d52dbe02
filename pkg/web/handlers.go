package web

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-kaiwa/pkg/hub"
	"github.com/teslashibe/go-kaiwa/pkg/persona"
	"github.com/teslashibe/go-kaiwa/pkg/session"
)

// ChangeCharacterRequest is the body of POST /change_character.
type ChangeCharacterRequest struct {
	CharacterName string `json:"character_name"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Synthesis string `json:"synthesis"`
	Sessions  int    `json:"sessions"`
}

func detail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"detail": msg})
}

// handleRoot reports liveness
func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": RootMessage})
}

// handleHealth probes the synthesis backend once
func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := HealthResponse{
		Status:    "ok",
		Synthesis: "ok",
		Sessions:  s.deps.Hub.Count(),
	}
	if s.deps.SynthesisHealth != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthProbeTimeout)
		defer cancel()
		if err := s.deps.SynthesisHealth(ctx); err != nil {
			s.logger.Warn("synthesis health check failed", "error", err)
			resp.Synthesis = "unavailable"
		}
	}
	return c.JSON(resp)
}

// handleGetCharacter returns the active persona
func (s *Server) handleGetCharacter(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"current_character": s.deps.Hub.Active().Name})
}

// handleChangeCharacter switches persona, voice and prompt for every session
func (s *Server) handleChangeCharacter(c *fiber.Ctx) error {
	var req ChangeCharacterRequest
	if err := c.BodyParser(&req); err != nil {
		return detail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	p, err := s.deps.Personas.Lookup(req.CharacterName)
	if err != nil {
		return detail(c, fiber.StatusBadRequest, "Character not found")
	}

	// The prompt is loaded first so a missing file leaves everything unchanged.
	if err := s.deps.Prompter.SetFromPersona(p); err != nil {
		s.logger.Error("failed to update character", "persona", p.Name, "error", err)
		return detail(c, fiber.StatusInternalServerError, "Failed to update character")
	}

	n, err := s.deps.Hub.SwitchPersona(c.UserContext(), hub.Selection{Name: p.Name, Voice: p.Voice()})
	if err != nil {
		s.logger.Error("failed to update character", "persona", p.Name, "error", err)
		return detail(c, fiber.StatusInternalServerError, "Failed to update character")
	}

	s.logger.Info("character changed", "persona", p.Name, "voice", p.Voice(), "sessions", n)
	return detail(c, fiber.StatusOK, "Character changed to "+p.Name)
}

// handleChangePrompt replaces the system prompt without touching voices or history
func (s *Server) handleChangePrompt(c *fiber.Ctx) error {
	character := c.Query("character")
	raw := c.Query("raw_prompt")

	if character == "" && raw == "" {
		return detail(c, fiber.StatusBadRequest, "Either character or prompt must be provided")
	}

	if character == "" {
		s.deps.Prompter.SetRaw(raw)
		s.logger.Info("prompt changed", "source", "raw", "chars", len([]rune(raw)))
		return detail(c, fiber.StatusOK, "Prompt changed successfully")
	}

	p, err := s.deps.Personas.Lookup(character)
	if err != nil {
		return detail(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid character: %s", character))
	}
	if err := s.deps.Prompter.SetFromPersona(p); err != nil {
		s.logger.Error("failed to update prompt", "persona", p.Name, "error", err)
		if errors.Is(err, persona.ErrPromptNotFound) {
			return detail(c, fiber.StatusNotFound, "Prompt file not found")
		}
		return detail(c, fiber.StatusInternalServerError, "Failed to update prompt")
	}

	s.logger.Info("prompt changed", "source", "persona", "persona", p.Name)
	return detail(c, fiber.StatusOK, "Prompt changed successfully")
}

// handleSpeechWS runs one speech session
func (s *Server) handleSpeechWS(c *websocket.Conn) {
	conn := hub.NewConn(c)
	// Run closes conn itself; this covers a rejected registration.
	defer conn.Close()

	active := s.deps.Hub.Active()
	sess := session.New(conn, s.deps.Replier, s.deps.Analyzer, s.deps.NewSynthesizer(),
		session.WithPersona(active.Name, active.Voice),
		session.WithIdleTimeout(s.config.IdleTimeout),
		session.WithHistory(s.config.HistoryLimit, s.config.HistoryRetention),
		session.WithLogger(s.config.Logger),
	)

	if err := s.deps.Hub.Register(s.base, sess); err != nil {
		s.logger.Warn("session rejected", "session_id", sess.ID(), "error", err)
		return
	}
	defer s.deps.Hub.Unregister(sess)

	err := sess.Run(s.base)
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
		s.logger.Warn("session ended unexpectedly", "session_id", sess.ID(), "error", err)
	}
}
