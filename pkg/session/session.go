// Package session runs one speech connection.
//
// A Session reads text fragments from the client, accumulates them into a
// turn, asks the language model for a reply and relays the reply as a
// metadata message, a sequence of binary audio frames and an end marker.
// Unparseable input is logged and dropped. Other per-exchange failures are
// reported to the client and never close the connection; only a transport
// error ends Run.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-kaiwa/pkg/conversation"
	"github.com/teslashibe/go-kaiwa/pkg/emotions"
	"github.com/teslashibe/go-kaiwa/pkg/inference"
	"github.com/teslashibe/go-kaiwa/pkg/protocol"
	"github.com/teslashibe/go-kaiwa/pkg/tts"
)

// Conn is the message-oriented transport. Both the fiber and gorilla
// websocket connections satisfy it. Close must unblock a pending
// ReadMessage.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Replier produces the assistant reply for a history window.
type Replier interface {
	Reply(ctx context.Context, history []conversation.Message) (string, error)
}

// Synthesizer streams speech for reply text.
type Synthesizer interface {
	SynthesizeStreaming(ctx context.Context, text string) (tts.AudioStream, error)
	SetVoice(referenceID string)
}

// Phase is the exchange state of a session.
type Phase int32

const (
	// Idle waits for the next fragment.
	Idle Phase = iota
	// AwaitingReply waits for the language model.
	AwaitingReply
	// Synthesizing relays audio to the client.
	Synthesizing
)

// String returns a human-readable phase.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case AwaitingReply:
		return "awaiting_reply"
	case Synthesizing:
		return "synthesizing"
	default:
		return "unknown"
	}
}

// DefaultIdleTimeout is how long a read may wait before a liveness log.
const DefaultIdleTimeout = 60 * time.Second

// inboundBuffer lets the read pump run ahead of a slow exchange so that a
// disconnect is noticed while audio is still streaming.
const inboundBuffer = 16

// Session owns the conversation state of one connection.
type Session struct {
	id       string
	conn     Conn
	state    *conversation.State
	replier  Replier
	analyzer emotions.Analyzer
	synth    Synthesizer
	config   *Config
	logger   *slog.Logger

	phase  atomic.Int32
	closed atomic.Bool
}

// New creates a session for conn. The synthesizer handle must be owned by
// this session since persona switches change its voice.
func New(conn Conn, replier Replier, analyzer emotions.Analyzer, synth Synthesizer, opts ...Option) *Session {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	id := uuid.NewString()
	if analyzer == nil {
		analyzer = emotions.Static(emotions.Normal)
	}
	if cfg.Voice != "" {
		synth.SetVoice(cfg.Voice)
	}

	return &Session{
		id:       id,
		conn:     conn,
		state:    conversation.NewState(cfg.Persona, cfg.HistoryLimit, cfg.HistoryRetention),
		replier:  replier,
		analyzer: analyzer,
		synth:    synth,
		config:   cfg,
		logger:   cfg.Logger.With("component", "session", "session_id", id),
	}
}

// ID returns the session id used for log correlation.
func (s *Session) ID() string { return s.id }

// Phase returns the current exchange phase.
func (s *Session) Phase() Phase { return Phase(s.phase.Load()) }

// Closed reports whether the connection has ended.
func (s *Session) Closed() bool { return s.closed.Load() }

// Persona returns the active persona name.
func (s *Session) Persona() string { return s.state.Persona() }

// State exposes the conversation state.
func (s *Session) State() *conversation.State { return s.state }

// SwitchPersona changes the persona and voice and clears the history.
// A turn in progress is kept. Safe to call from any goroutine.
func (s *Session) SwitchPersona(name, voice string) {
	s.state.SwitchPersona(name)
	s.synth.SetVoice(voice)
	s.logger.Info("persona switched", "persona", name, "voice", voice)
}

type inbound struct {
	msgType int
	data    []byte
}

// Run serves the connection until the transport fails or ctx is cancelled.
// Cancelling ctx or losing the connection aborts any exchange in flight.
// Run closes the connection and returns only after the read pump has
// stopped, so the connection is not touched once Run has returned.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	s.logger.Info("session started", "persona", s.Persona())

	frames := make(chan inbound, inboundBuffer)
	readErr := make(chan error, 1)
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		s.readPump(ctx, cancel, frames, readErr)
	}()
	defer func() {
		cancel()
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("close connection", "error", err)
		}
		<-pumpDone
		s.closed.Store(true)
	}()

	idle := time.NewTimer(s.config.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return s.closeWith(exitErr(ctx, readErr))
			}
			if err := s.handle(ctx, f); err != nil {
				return s.closeWith(err)
			}
			resetTimer(idle, s.config.IdleTimeout)

		case <-idle.C:
			s.logger.Debug("no message received, keeping connection", "idle", s.config.IdleTimeout)
			idle.Reset(s.config.IdleTimeout)

		case <-ctx.Done():
			return s.closeWith(exitErr(ctx, readErr))
		}
	}
}

// readPump reads frames until the transport fails. A read error cancels
// the session so that an exchange in flight stops promptly.
func (s *Session) readPump(ctx context.Context, cancel context.CancelFunc, frames chan<- inbound, readErr chan<- error) {
	defer close(frames)
	defer cancel()
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case frames <- inbound{msgType: msgType, data: data}:
		case <-ctx.Done():
			return
		}
	}
}

// exitErr prefers the transport error over the cancellation it caused.
func exitErr(ctx context.Context, readErr <-chan error) error {
	select {
	case err := <-readErr:
		return err
	default:
		return ctx.Err()
	}
}

func (s *Session) closeWith(err error) error {
	s.logger.Info("session closed", "reason", err)
	return err
}

// handle processes one inbound frame. Only transport errors are returned.
func (s *Session) handle(ctx context.Context, f inbound) error {
	if f.msgType != websocket.TextMessage {
		s.logger.Warn("binary frame ignored", "bytes", len(f.data))
		return s.sendError(fmt.Errorf("%w: expected a text frame", protocol.ErrMalformedInbound))
	}

	msg, err := protocol.ParseClientMessage(f.data)
	switch {
	case errors.Is(err, protocol.ErrInvalidJSON), errors.Is(err, protocol.ErrMissingText):
		s.logger.Warn("message dropped", "error", err, "payload", truncate(f.data, 200))
		return nil
	case err != nil:
		s.logger.Warn("invalid message", "error", err, "payload", truncate(f.data, 200))
		return s.sendError(err)
	}

	s.state.AppendSpeechFragment(msg.Text)
	return s.exchange(ctx)
}

// exchange finalizes the turn and relays one reply.
func (s *Session) exchange(ctx context.Context) error {
	defer s.phase.Store(int32(Idle))

	user := s.state.FinalizeTurn()
	if user == "" {
		return nil
	}

	s.phase.Store(int32(AwaitingReply))
	start := time.Now()
	generation := s.state.Generation()
	reply, err := s.replier.Reply(ctx, s.state.PendingHistory(user))
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, inference.ErrNoReply):
			s.logger.Info("no reply, turn discarded")
		default:
			s.logger.Error("reply failed, turn discarded", "error", err)
		}
		return nil
	}
	if !s.state.RecordExchangeAt(generation, user, reply) {
		s.logger.Info("persona switched while waiting for reply, reply discarded")
		return nil
	}

	emotion, err := s.analyzer.Analyze(ctx, reply)
	if err != nil {
		s.logger.Warn("emotion analysis failed", "error", err)
		emotion = emotions.Normal
	}

	s.logger.Info("reply ready",
		"chars", len([]rune(reply)),
		"emotion", emotion.String(),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if err := s.sendJSON(protocol.Metadata(reply, int(emotion))); err != nil {
		return err
	}

	s.phase.Store(int32(Synthesizing))
	return s.relayAudio(ctx, reply)
}

// relayAudio forwards synthesized chunks verbatim, then the end marker.
func (s *Session) relayAudio(ctx context.Context, text string) error {
	stream, err := s.synth.SynthesizeStreaming(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Error("synthesis failed", "error", err)
		return s.sendError(err)
	}
	defer stream.Close()

	// Closing the stream unblocks a pending Read on disconnect.
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	var chunks, total int
	for {
		chunk, err := stream.Read()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("audio relay aborted", "chunks", chunks)
				return nil
			}
			s.logger.Error("audio stream failed", "error", err, "chunks", chunks)
			return s.sendError(err)
		}
		if chunk == nil {
			break
		}
		if len(chunk) == 0 {
			continue
		}
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
		chunks++
		total += len(chunk)
	}

	s.logger.Debug("audio relayed", "chunks", chunks, "bytes", total)
	return s.sendJSON(protocol.End())
}

func (s *Session) sendError(err error) error {
	return s.sendJSON(protocol.Error(err.Error()))
}

func (s *Session) sendJSON(m *protocol.ServerMessage) error {
	data, err := m.Bytes()
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.Type, err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", m.Type, err)
	}
	return nil
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
