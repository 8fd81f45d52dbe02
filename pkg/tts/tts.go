// Package tts is the client for the speech-synthesis backend.
//
// The backend speaks the Fish-Speech HTTP API: a health endpoint and a TTS
// endpoint that takes a msgpack-encoded request body. A request either returns
// a complete WAV file (single-shot) or a chunked stream of raw audio frames
// (streaming). Amplitude scaling and bit-depth conversion happen server-side,
// so streamed chunks are meant to be forwarded verbatim.
//
// Example usage:
//
//	client, _ := tts.NewFishSpeech(
//	    tts.WithBaseURL("http://localhost:8080"),
//	    tts.WithReference("marui"),
//	)
//	defer client.Close()
//
//	if err := client.CheckAvailability(ctx, 3, 5*time.Second); err != nil {
//	    return err
//	}
//
//	stream, _ := client.SynthesizeStreaming(ctx, "こんにちは")
//	defer stream.Close()
//	for {
//	    chunk, err := stream.Read()
//	    if err != nil || chunk == nil {
//	        break
//	    }
//	    forward(chunk)
//	}
package tts

import (
	"context"

	"github.com/teslashibe/go-kaiwa/pkg/wav"
)

// Provider defines the synthesis client interface.
type Provider interface {
	// Synthesize converts text to a complete, decoded WAV frame.
	Synthesize(ctx context.Context, text string) (*wav.Frame, error)

	// SynthesizeStreaming converts text to audio, returning raw chunks
	// as the backend produces them.
	SynthesizeStreaming(ctx context.Context, text string) (AudioStream, error)

	// SetVoice selects the voice profile for subsequent requests.
	SetVoice(referenceID string)

	// Voice returns the currently selected voice profile.
	Voice() string

	// Health probes the backend once.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioStream is a finite, forward-only sequence of audio chunks.
// Callers should read until Read returns a nil chunk, then call Close.
// A stream cannot be restarted; synthesize again to replay.
type AudioStream interface {
	// Read returns the next non-empty chunk.
	// Returns (nil, nil) when the stream is complete.
	Read() ([]byte, error)

	// Close stops the stream and releases resources.
	Close() error
}

// Wire constants for the backend protocol.
const (
	ContentTypeMsgpack = "application/msgpack"
	FormatWAV          = "wav"

	healthPath = "/v1/health"
	ttsPath    = "/v1/tts"
)

// Latency modes accepted by the backend.
const (
	LatencyNormal   = "normal"
	LatencyBalanced = "balanced"
)

// Request is the msgpack body sent to the TTS endpoint.
// Zero-valued tuning fields are omitted so backend defaults apply.
type Request struct {
	Text        string      `msgpack:"text"`
	ReferenceID string      `msgpack:"reference_id,omitempty"`
	References  []Reference `msgpack:"references,omitempty"`
	Streaming   bool        `msgpack:"streaming"`
	Format      string      `msgpack:"format"`
	Normalize   bool        `msgpack:"normalize"`

	ChunkLength       int     `msgpack:"chunk_length,omitempty"`
	MaxNewTokens      int     `msgpack:"max_new_tokens,omitempty"`
	TopP              float64 `msgpack:"top_p,omitempty"`
	RepetitionPenalty float64 `msgpack:"repetition_penalty,omitempty"`
	Temperature       float64 `msgpack:"temperature,omitempty"`
	Latency           string  `msgpack:"latency,omitempty"`
}

// Reference is an inline voice sample with its transcript, used when no
// server-side reference id is registered for a voice.
type Reference struct {
	Audio []byte `msgpack:"audio"`
	Text  string `msgpack:"text"`
}
