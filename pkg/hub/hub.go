// Package hub tracks live speech sessions and fans persona switches out to
// them, using a channel-owned registry loop.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrStopped is returned when the hub loop is no longer running.
var ErrStopped = errors.New("hub: stopped")

// Member is a registered session.
type Member interface {
	ID() string
	Persona() string
	SwitchPersona(name, voice string)
}

// Hub maintains the set of live sessions and the active persona.
type Hub struct {
	name   string
	logger *slog.Logger

	// Owned by the Run loop
	members map[string]Member

	register   chan registration
	unregister chan Member
	switches   chan switchRequest

	// Active persona and member count (read-only access from outside)
	mu     sync.RWMutex
	active Selection
	count  int

	done    chan struct{}
	running chan struct{}
	once    sync.Once
}

// New creates a hub with the initial persona selection.
func New(name string, initial Selection, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("component", "hub", "hub", name),
		members:    make(map[string]Member),
		register:   make(chan registration),
		unregister: make(chan Member),
		switches:   make(chan switchRequest),
		active:     initial,
		done:       make(chan struct{}),
		running:    make(chan struct{}),
	}
}

// Run owns the registry until ctx is cancelled.
// This should be called in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	h.once.Do(func() { close(h.running) })
	defer close(h.done)

	for {
		select {
		case r := <-h.register:
			active := h.Active()
			if r.member.Persona() != active.Name {
				r.member.SwitchPersona(active.Name, active.Voice)
			}
			h.members[r.member.ID()] = r.member
			count := h.setCount()
			h.logger.Info("session connected", "session_id", r.member.ID(), "sessions", count)
			close(r.done)

		case m := <-h.unregister:
			if _, ok := h.members[m.ID()]; ok {
				delete(h.members, m.ID())
				count := h.setCount()
				h.logger.Info("session disconnected", "session_id", m.ID(), "sessions", count)
			}

		case req := <-h.switches:
			h.mu.Lock()
			h.active = req.selection
			h.mu.Unlock()
			for _, m := range h.members {
				m.SwitchPersona(req.selection.Name, req.selection.Voice)
			}
			h.logger.Info("persona switched",
				"persona", req.selection.Name,
				"voice", req.selection.Voice,
				"sessions", len(h.members),
			)
			req.done <- len(h.members)

		case <-ctx.Done():
			h.logger.Debug("hub stopped", "sessions", len(h.members))
			return
		}
	}
}

// Register adds m to the hub. If the active persona changed since m was
// created, m is switched before it becomes visible to later switches.
func (h *Hub) Register(ctx context.Context, m Member) error {
	r := registration{member: m, done: make(chan struct{})}
	select {
	case h.register <- r:
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-r.done
	return nil
}

// Unregister removes m. It never blocks once the hub has stopped.
func (h *Hub) Unregister(m Member) {
	select {
	case h.unregister <- m:
	case <-h.done:
	}
}

// SwitchPersona makes sel the active persona and applies it to every live
// session. It returns the number of sessions switched.
func (h *Hub) SwitchPersona(ctx context.Context, sel Selection) (int, error) {
	req := switchRequest{selection: sel, done: make(chan int, 1)}
	select {
	case h.switches <- req:
	case <-h.done:
		return 0, ErrStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return <-req.done, nil
}

// Active returns the active persona selection.
func (h *Hub) Active() Selection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active
}

// Count returns the number of live sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// IsRunning reports whether Run has started and not yet returned.
func (h *Hub) IsRunning() bool {
	select {
	case <-h.running:
	default:
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *Hub) setCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count = len(h.members)
	return h.count
}
