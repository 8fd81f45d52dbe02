// Package conversation holds per-session dialogue state: the user turn being
// accumulated from speech-to-text fragments and the bounded history of
// completed exchanges.
//
// A State is owned by one session. Its methods are safe for concurrent use
// because persona switches arrive from the control surface while the session
// loop is running.
package conversation

import "sync"

// Role identifies the speaker of a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable history entry.
type Message struct {
	Role    Role
	Content string
}

// Defaults for history bounds.
const (
	DefaultHistoryLimit     = 20
	DefaultHistoryRetention = 200
)

// State bundles the turn, the history and the active persona of a session.
type State struct {
	mu      sync.Mutex
	turn    Turn
	history *History
	persona string
	limit   int

	// generation counts persona switches.
	generation uint64
}

// NewState creates session state for the given persona.
// limit bounds RecentHistory; retention bounds what is stored.
func NewState(persona string, limit, retention int) *State {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &State{
		history: NewHistory(retention),
		persona: persona,
		limit:   limit,
	}
}

// AppendSpeechFragment adds a fragment to the current turn and returns the
// accumulated text.
func (s *State) AppendSpeechFragment(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn.Append(text)
}

// CurrentTurn returns the accumulated text without resetting it.
func (s *State) CurrentTurn() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn.String()
}

// FinalizeTurn returns the trimmed turn text and starts a new turn.
func (s *State) FinalizeTurn() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn.Finalize()
}

// RecordExchange appends a completed user/assistant pair to the history.
func (s *State) RecordExchange(user, assistant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Record(user, assistant)
}

// RecordExchangeAt records the pair only if no persona switch happened since
// generation was read. It reports whether the pair was recorded.
func (s *State) RecordExchangeAt(generation uint64, user, assistant string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return false
	}
	s.history.Record(user, assistant)
	return true
}

// Generation identifies the current persona. It changes on every switch.
func (s *State) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// RecentHistory returns a copy of the last limit history entries.
func (s *State) RecentHistory() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Recent(s.limit)
}

// PendingHistory returns the window sent to the model for the next reply:
// the most recent history entries followed by user, limit entries at most.
// Nothing is stored; RecordExchange commits the pair once a reply exists.
func (s *State) PendingHistory(user string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(s.history.Recent(s.limit-1), Message{Role: RoleUser, Content: user})
}

// HistoryLen returns the number of stored history entries.
func (s *State) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Len()
}

// SwitchPersona sets the active persona and clears the history.
// The in-progress turn is kept.
func (s *State) SwitchPersona(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persona = name
	s.generation++
	s.history.Reset()
}

// Persona returns the active persona name.
func (s *State) Persona() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persona
}
