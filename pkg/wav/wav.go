// Package wav decodes RIFF/WAVE containers returned by the synthesis backend.
//
// Only the pieces the session pipeline needs are extracted: the sample rate
// from the fmt chunk and the raw PCM payload of the data chunk. Channel
// de-interleaving and resampling are left to the caller.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedContainer is returned when the input is not a decodable WAV stream.
var ErrMalformedContainer = errors.New("wav: malformed container")

const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	minFmtSize      = 8
	pcmFmtSize      = 16
)

// Frame is a decoded WAV payload.
type Frame struct {
	// SampleRate in Hz as declared by the fmt chunk.
	SampleRate uint32

	// PCM is the data chunk payload, verbatim (little-endian samples).
	// It shares memory with the buffer passed to Decode.
	PCM []byte

	// FormatTag is the fmt chunk audio format (1 = integer PCM).
	FormatTag uint16

	// Channels as declared by the fmt chunk. Not validated.
	Channels uint16

	// BitsPerSample is zero when the fmt chunk is shorter than 16 bytes.
	BitsPerSample uint16
}

// Duration estimates playback length from the PCM size.
// Returns zero when the header lacks the fields needed for the estimate.
func (f *Frame) Duration() time.Duration {
	if f.SampleRate == 0 || f.Channels == 0 || f.BitsPerSample == 0 {
		return 0
	}
	bytesPerSecond := float64(f.SampleRate) * float64(f.Channels) * float64(f.BitsPerSample) / 8
	return time.Duration(float64(len(f.PCM)) / bytesPerSecond * float64(time.Second))
}

// Decode parses a RIFF/WAVE byte stream into a Frame.
//
// Sub-chunks are scanned in order. Chunks other than "fmt " and "data" are
// skipped by their declared size, as is a "data" chunk that appears before
// "fmt ". The first "data" chunk after "fmt " ends the scan.
func Decode(b []byte) (*Frame, error) {
	if len(b) < riffHeaderSize {
		return nil, malformed("short header (%d bytes)", len(b))
	}
	if string(b[0:4]) != "RIFF" {
		return nil, malformed("RIFF marker not found")
	}
	if string(b[8:12]) != "WAVE" {
		return nil, malformed("WAVE marker not found")
	}

	var (
		frame   Frame
		haveFmt bool
		off     = riffHeaderSize
	)

	for {
		if len(b)-off < chunkHeaderSize {
			if !haveFmt {
				return nil, malformed("fmt chunk not found")
			}
			return nil, malformed("data chunk not found")
		}

		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + chunkHeaderSize
		if size < 0 || size > len(b)-body {
			return nil, malformed("chunk %q declares %d bytes, %d remain", id, size, len(b)-body)
		}

		switch {
		case id == "fmt ":
			if size < minFmtSize {
				return nil, malformed("fmt chunk too short (%d bytes)", size)
			}
			frame.FormatTag = binary.LittleEndian.Uint16(b[body : body+2])
			frame.Channels = binary.LittleEndian.Uint16(b[body+2 : body+4])
			frame.SampleRate = binary.LittleEndian.Uint32(b[body+4 : body+8])
			if size >= pcmFmtSize {
				frame.BitsPerSample = binary.LittleEndian.Uint16(b[body+14 : body+16])
			}
			haveFmt = true

		case id == "data" && haveFmt:
			frame.PCM = b[body : body+size]
			return &frame, nil
		}

		off = body + size
		// RIFF pads odd-sized chunks to an even boundary.
		if size%2 == 1 && off < len(b) {
			off++
		}
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedContainer, fmt.Sprintf(format, args...))
}
