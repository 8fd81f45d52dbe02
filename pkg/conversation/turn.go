package conversation

import "strings"

// Turn accumulates speech-to-text fragments into one user utterance.
// The zero value is an empty turn. Turn is not safe for concurrent use.
type Turn struct {
	b strings.Builder
}

// Append adds text followed by a single space and returns the full
// accumulated text.
func (t *Turn) Append(text string) string {
	t.b.WriteString(text)
	t.b.WriteByte(' ')
	return t.b.String()
}

// String returns the accumulated text.
func (t *Turn) String() string {
	return t.b.String()
}

// Finalize returns the trimmed accumulated text and resets the turn.
func (t *Turn) Finalize() string {
	text := strings.TrimSpace(t.b.String())
	t.b.Reset()
	return text
}
