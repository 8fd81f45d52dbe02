package inference

import (
	"context"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-kaiwa/pkg/conversation"
)

// PromptSource supplies the active system prompt.
type PromptSource interface {
	Current() string
}

// Replier produces an assistant reply for a conversation history.
type Replier struct {
	provider Provider
	prompts  PromptSource
	logger   *slog.Logger
}

// NewReplier creates a Replier. prompts may be nil, in which case no system
// message is sent.
func NewReplier(provider Provider, prompts PromptSource, logger *slog.Logger) *Replier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Replier{
		provider: provider,
		prompts:  prompts,
		logger:   logger.With("component", "inference.replier"),
	}
}

// Reply sends the system prompt followed by history and returns the trimmed
// reply. It returns ErrNoReply when the model answers with nothing.
func (r *Replier) Reply(ctx context.Context, history []conversation.Message) (string, error) {
	msgs := make([]Message, 0, len(history)+1)
	if r.prompts != nil {
		if prompt := r.prompts.Current(); prompt != "" {
			msgs = append(msgs, NewSystemMessage(prompt))
		}
	}
	msgs = append(msgs, FromHistory(history)...)

	resp, err := r.provider.Chat(ctx, &ChatRequest{Messages: msgs})
	if err != nil {
		return "", err
	}

	reply := strings.TrimSpace(resp.Message.Content)
	if reply == "" {
		r.logger.Warn("empty reply", "finish_reason", resp.FinishReason)
		return "", ErrNoReply
	}
	return reply, nil
}
