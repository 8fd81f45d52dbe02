package emotions

import (
	"context"
	"log/slog"
)

// Fallback uses Secondary whenever Primary fails.
type Fallback struct {
	primary   Analyzer
	secondary Analyzer
	logger    *slog.Logger
}

// NewFallback chains two analyzers.
func NewFallback(primary, secondary Analyzer, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With("component", "emotions.fallback"),
	}
}

// Analyze tries the primary analyzer, then the secondary.
func (f *Fallback) Analyze(ctx context.Context, text string) (Code, error) {
	code, err := f.primary.Analyze(ctx, text)
	if err == nil {
		return code, nil
	}
	if ctx.Err() != nil {
		return Normal, ctx.Err()
	}
	f.logger.Warn("primary analyzer failed, using fallback", "error", err)
	return f.secondary.Analyze(ctx, text)
}

// Static always returns the same code. Useful in tests and when emotion
// metadata is not wanted.
type Static Code

// Analyze returns the static code.
func (s Static) Analyze(context.Context, string) (Code, error) {
	return Code(s), nil
}

var (
	_ Analyzer = (*Fallback)(nil)
	_ Analyzer = Static(Normal)
)
