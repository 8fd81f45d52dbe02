package tts

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-kaiwa/pkg/wav"
)

// Mock implements Provider for testing.
// All methods can be customized via function fields.
type Mock struct {
	// SynthesizeFunc is called when Synthesize is invoked.
	// If nil, returns silent audio of appropriate length.
	SynthesizeFunc func(ctx context.Context, text string) (*wav.Frame, error)

	// StreamFunc is called when SynthesizeStreaming is invoked.
	// If nil, the Synthesize result is split into chunks.
	StreamFunc func(ctx context.Context, text string) (AudioStream, error)

	// HealthFunc is called when Health is invoked.
	// If nil, returns nil (healthy).
	HealthFunc func(ctx context.Context) error

	// Tracking
	mu    sync.Mutex
	calls []MockCall
	voice string
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Text   string
	Voice  string
	Time   time.Time
}

// mockChunkSize splits default mock audio into several chunks.
const mockChunkSize = 960

// NewMock creates a new mock provider with sensible defaults.
func NewMock() *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, text string) (*wav.Frame, error) {
			// ~20ms of 24kHz PCM16 silence per character
			return &wav.Frame{
				SampleRate:    24000,
				PCM:           make([]byte, len([]rune(text))*960),
				FormatTag:     1,
				Channels:      1,
				BitsPerSample: 16,
			}, nil
		},
	}
}

// Synthesize calls SynthesizeFunc and records the call.
func (m *Mock) Synthesize(ctx context.Context, text string) (*wav.Frame, error) {
	m.recordCall("Synthesize", text)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	return nil, ErrBackendUnavailable
}

// SynthesizeStreaming calls StreamFunc and records the call.
func (m *Mock) SynthesizeStreaming(ctx context.Context, text string) (AudioStream, error) {
	m.recordCall("SynthesizeStreaming", text)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, text)
	}
	if m.SynthesizeFunc != nil {
		frame, err := m.SynthesizeFunc(ctx, text)
		if err != nil {
			return nil, err
		}
		return NewChunkStream(split(frame.PCM, mockChunkSize)...), nil
	}
	return nil, ErrBackendUnavailable
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.recordCall("Health", "")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// SetVoice records the voice for subsequent calls.
func (m *Mock) SetVoice(referenceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voice = referenceID
}

// Voice returns the last voice set.
func (m *Mock) Voice() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voice
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// recordCall adds a call to the tracking list.
func (m *Mock) recordCall(method, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method: method,
		Text:   text,
		Voice:  m.voice,
		Time:   time.Now(),
	})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// LastCall returns the most recent call, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError returns a mock that always returns the given error.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, text string) (*wav.Frame, error) {
			return nil, err
		},
		StreamFunc: func(ctx context.Context, text string) (AudioStream, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// ChunkStream is an in-memory AudioStream. Empty chunks are skipped.
type ChunkStream struct {
	mu     sync.Mutex
	chunks [][]byte
	closed bool
}

// NewChunkStream returns a stream that yields the given chunks in order.
func NewChunkStream(chunks ...[]byte) *ChunkStream {
	return &ChunkStream{chunks: chunks}
}

// Read returns the next non-empty chunk, or nil at the end.
func (s *ChunkStream) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	for len(s.chunks) > 0 {
		c := s.chunks[0]
		s.chunks = s.chunks[1:]
		if len(c) > 0 {
			return c, nil
		}
	}
	return nil, nil
}

// Close marks the stream closed.
func (s *ChunkStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *ChunkStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func split(b []byte, size int) [][]byte {
	var out [][]byte
	for len(b) > size {
		out = append(out, b[:size])
		b = b[size:]
	}
	if len(b) > 0 {
		out = append(out, b)
	}
	return out
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
