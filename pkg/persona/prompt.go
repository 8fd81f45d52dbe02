package persona

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// ErrPromptNotFound is returned when a persona's prompt file is missing.
var ErrPromptNotFound = errors.New("persona: prompt file not found")

// Prompter holds the system prompt shared by every session.
// It is safe for concurrent use.
type Prompter struct {
	mu     sync.RWMutex
	prompt string
}

// NewPrompter creates an empty prompt holder.
func NewPrompter() *Prompter {
	return &Prompter{}
}

// SetFromPersona loads the persona's prompt file. The current prompt is
// unchanged on error.
func (p *Prompter) SetFromPersona(persona Persona) error {
	data, err := os.ReadFile(persona.PromptPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrPromptNotFound, persona.PromptPath)
		}
		return fmt.Errorf("persona: read prompt: %w", err)
	}
	p.SetRaw(strings.TrimSpace(string(data)))
	return nil
}

// SetRaw replaces the prompt text.
func (p *Prompter) SetRaw(prompt string) {
	p.mu.Lock()
	p.prompt = prompt
	p.mu.Unlock()
}

// Current returns the active prompt.
func (p *Prompter) Current() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prompt
}
