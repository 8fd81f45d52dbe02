package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/teslashibe/go-kaiwa/internal/httpc"
	"github.com/teslashibe/go-kaiwa/pkg/wav"
)

// probeTimeout bounds the single re-check made after a transport failure.
const probeTimeout = 3 * time.Second

// FishSpeech implements Provider for a Fish-Speech compatible backend.
//
// Apart from the selected voice the client holds no per-call state, so one
// instance may serve concurrent requests. Clone gives each session its own
// voice while sharing the connection pool.
type FishSpeech struct {
	config *Config
	client *http.Client
	stream *http.Client
	logger *slog.Logger

	healthURL string
	ttsURL    string

	mu    sync.RWMutex
	voice string
}

// NewFishSpeech creates a new synthesis client.
func NewFishSpeech(opts ...Option) (*FishSpeech, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := cfg.HTTPClient
	if client == nil {
		client = httpc.NewClient(cfg.Timeout)
	}

	return &FishSpeech{
		config:    cfg,
		client:    client,
		stream:    httpc.WithTimeout(client, cfg.StreamTimeout),
		logger:    cfg.Logger.With("component", "tts.fishspeech"),
		healthURL: cfg.BaseURL + healthPath,
		ttsURL:    cfg.BaseURL + ttsPath,
		voice:     cfg.ReferenceID,
	}, nil
}

// Clone returns a handle that shares the HTTP clients but carries its own voice.
func (f *FishSpeech) Clone() *FishSpeech {
	return &FishSpeech{
		config:    f.config,
		client:    f.client,
		stream:    f.stream,
		logger:    f.logger,
		healthURL: f.healthURL,
		ttsURL:    f.ttsURL,
		voice:     f.Voice(),
	}
}

// CheckAvailability polls the health endpoint until it answers 200.
// It makes at most maxRetries attempts, sleeping delay between them, and
// fails with ErrBackendUnavailable once they are exhausted.
func (f *FishSpeech) CheckAvailability(ctx context.Context, maxRetries int, delay time.Duration) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = f.Health(ctx)
		if lastErr == nil {
			f.logger.Info("synthesis backend available", "url", f.config.BaseURL)
			return nil
		}
		if attempt == maxRetries {
			break
		}

		f.logger.Warn("synthesis backend not reachable, retrying",
			"attempt", attempt,
			"max_retries", maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrBackendUnavailable, ctx.Err())
		case <-time.After(delay):
		}
	}

	f.logger.Error("synthesis backend unavailable, make sure the server is running",
		"url", f.config.BaseURL,
		"attempts", maxRetries,
	)
	return fmt.Errorf("%w: %d attempts: %w", ErrBackendUnavailable, maxRetries, lastErr)
}

// Health probes the backend once.
func (f *FishSpeech) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.healthURL, nil)
	if err != nil {
		return fmt.Errorf("tts: create health request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("tts: health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &RequestError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Synthesize requests a complete WAV file and decodes it.
func (f *FishSpeech) Synthesize(ctx context.Context, text string) (*wav.Frame, error) {
	start := time.Now()

	resp, err := f.post(ctx, f.client, f.buildRequest(text, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts: read response: %w", err)
	}

	frame, err := wav.Decode(audio)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("synthesized audio",
		"chars", len([]rune(text)),
		"bytes", len(frame.PCM),
		"sample_rate", frame.SampleRate,
		"latency_ms", time.Since(start).Milliseconds(),
		"voice", f.Voice(),
	)
	return frame, nil
}

// SynthesizeStreaming requests streamed audio and returns the chunk sequence.
// Cancelling ctx or closing the stream aborts the transfer.
func (f *FishSpeech) SynthesizeStreaming(ctx context.Context, text string) (AudioStream, error) {
	resp, err := f.post(ctx, f.stream, f.buildRequest(text, true))
	if err != nil {
		return nil, err
	}

	f.logger.Debug("synthesis stream opened",
		"chars", len([]rune(text)),
		"voice", f.Voice(),
	)
	return newHTTPStream(resp.Body), nil
}

// SetVoice selects the voice for subsequent requests. No network call is made.
func (f *FishSpeech) SetVoice(referenceID string) {
	f.mu.Lock()
	f.voice = referenceID
	f.mu.Unlock()
	f.logger.Info("updated reference id", "reference_id", referenceID)
}

// Voice returns the currently selected reference id.
func (f *FishSpeech) Voice() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.voice
}

// Close releases idle connections.
func (f *FishSpeech) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// buildRequest constructs the backend request for the current voice.
func (f *FishSpeech) buildRequest(text string, streaming bool) *Request {
	return &Request{
		Text:        text,
		ReferenceID: f.Voice(),
		Streaming:   streaming,
		Format:      FormatWAV,
		Normalize:   f.config.Normalize,
		ChunkLength: f.config.ChunkLength,
		Latency:     f.config.Latency,
	}
}

// post sends a TTS request and returns the response when it is 2xx.
// The caller owns the response body.
func (f *FishSpeech) post(ctx context.Context, client *http.Client, r *Request) (*http.Response, error) {
	body, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("tts: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.ttsURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	req.Header.Set("Content-Type", ContentTypeMsgpack)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, f.transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, parseError(resp)
	}
	return resp, nil
}

// transportError makes one best-effort availability probe so that a dead
// backend is reported as ErrBackendUnavailable. It never retries the request.
func (f *FishSpeech) transportError(ctx context.Context, cause error) error {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := f.Health(probeCtx); err != nil {
		f.logger.Error("synthesis backend unreachable", "error", cause)
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, cause)
	}
	return fmt.Errorf("tts: request: %w", cause)
}

// parseError reads a non-success response into a RequestError.
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &RequestError{
		StatusCode: resp.StatusCode,
		Body:       string(bytes.TrimSpace(body)),
	}
}

// httpStream wraps a streaming response body as AudioStream.
// Read is for a single consumer; Close may be called from any goroutine
// and unblocks a pending Read.
type httpStream struct {
	body   io.ReadCloser
	buf    []byte
	done   bool
	closed atomic.Bool
}

const streamReadSize = 32 << 10

func newHTTPStream(body io.ReadCloser) *httpStream {
	return &httpStream{
		body: body,
		buf:  make([]byte, streamReadSize),
	}
}

// Read returns the next non-empty chunk as delivered by the transport.
func (s *httpStream) Read() ([]byte, error) {
	for !s.done {
		if s.closed.Load() {
			return nil, ErrStreamClosed
		}
		n, err := s.body.Read(s.buf)
		if errors.Is(err, io.EOF) {
			s.done = true
		} else if err != nil {
			if s.closed.Load() {
				return nil, ErrStreamClosed
			}
			return nil, fmt.Errorf("tts: read stream: %w", err)
		}
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, s.buf[:n])
			return chunk, nil
		}
	}
	return nil, nil
}

// Close stops the stream.
func (s *httpStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.body.Close()
}

// Verify FishSpeech implements Provider at compile time.
var _ Provider = (*FishSpeech)(nil)
