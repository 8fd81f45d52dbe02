package conversation

// History is an ordered log of user/assistant exchanges.
// Storage is capped at the retention given to NewHistory; the oldest
// entries are dropped first. History is not safe for concurrent use.
type History struct {
	messages  []Message
	retention int
}

// NewHistory creates an empty history. A retention of zero or less
// means DefaultHistoryRetention.
func NewHistory(retention int) *History {
	if retention <= 0 {
		retention = DefaultHistoryRetention
	}
	// Keep pairs together.
	retention += retention % 2
	return &History{retention: retention}
}

// Record appends a user entry followed by an assistant entry.
func (h *History) Record(user, assistant string) {
	h.Add(
		Message{Role: RoleUser, Content: user},
		Message{Role: RoleAssistant, Content: assistant},
	)
}

// Add appends entries in order.
func (h *History) Add(msgs ...Message) {
	h.messages = append(h.messages, msgs...)
	if over := len(h.messages) - h.retention; over > 0 {
		h.messages = append(h.messages[:0:0], h.messages[over:]...)
	}
}

// Recent returns a copy of the last n entries, or all of them when fewer
// are stored.
func (h *History) Recent(n int) []Message {
	if n <= 0 || len(h.messages) == 0 {
		return nil
	}
	start := len(h.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(h.messages)-start)
	copy(out, h.messages[start:])
	return out
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	return len(h.messages)
}

// Reset drops every entry.
func (h *History) Reset() {
	h.messages = nil
}
