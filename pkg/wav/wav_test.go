package wav_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-kaiwa/pkg/wav"
)

func chunk(id string, body []byte) []byte {
	out := make([]byte, 8, 8+len(body)+1)
	copy(out[0:4], id)
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(body)))
	out = append(out, body...)
	if len(body)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

func fmtBody(sampleRate uint32, channels, bits uint16) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint16(b[0:2], 1)
	binary.LittleEndian.PutUint16(b[2:4], channels)
	binary.LittleEndian.PutUint32(b[4:8], sampleRate)
	binary.LittleEndian.PutUint32(b[8:12], sampleRate*uint32(channels)*uint32(bits)/8)
	binary.LittleEndian.PutUint16(b[12:14], channels*bits/8)
	binary.LittleEndian.PutUint16(b[14:16], bits)
	return b
}

func container(chunks ...[]byte) []byte {
	var body []byte
	for _, c := range chunks {
		body = append(body, c...)
	}
	out := make([]byte, 12, 12+len(body))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(4+len(body)))
	copy(out[8:12], "WAVE")
	return append(out, body...)
}

func TestDecodeCanonical(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	frame, err := wav.Decode(wav.Encode(pcm, 24000, 16, 1))
	require.NoError(t, err)

	assert.Equal(t, uint32(24000), frame.SampleRate)
	assert.Equal(t, pcm, frame.PCM)
	assert.Equal(t, uint16(1), frame.FormatTag)
	assert.Equal(t, uint16(1), frame.Channels)
	assert.Equal(t, uint16(16), frame.BitsPerSample)
}

func TestDecodeChunkOrdering(t *testing.T) {
	pcm := []byte{0x10, 0x20, 0x30, 0x40}

	tests := []struct {
		name   string
		chunks [][]byte
	}{
		{
			name:   "unknown chunk before fmt",
			chunks: [][]byte{chunk("LIST", []byte("INFOtest")), chunk("fmt ", fmtBody(44100, 1, 16)), chunk("data", pcm)},
		},
		{
			name:   "unknown chunk between fmt and data",
			chunks: [][]byte{chunk("fmt ", fmtBody(44100, 1, 16)), chunk("fact", []byte{0, 0, 0, 0}), chunk("data", pcm)},
		},
		{
			name:   "odd sized unknown chunk is padded",
			chunks: [][]byte{chunk("fmt ", fmtBody(44100, 1, 16)), chunk("junk", []byte{9, 9, 9}), chunk("data", pcm)},
		},
		{
			name:   "data before fmt is skipped",
			chunks: [][]byte{chunk("data", []byte{0xff, 0xff}), chunk("fmt ", fmtBody(44100, 1, 16)), chunk("data", pcm)},
		},
		{
			name:   "extended fmt chunk",
			chunks: [][]byte{chunk("fmt ", append(fmtBody(44100, 1, 16), 0, 0)), chunk("data", pcm)},
		},
		{
			name:   "trailing chunk after data is ignored",
			chunks: [][]byte{chunk("fmt ", fmtBody(44100, 1, 16)), chunk("data", pcm), chunk("id3 ", []byte{1, 2})},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := wav.Decode(container(tt.chunks...))
			require.NoError(t, err)
			assert.Equal(t, uint32(44100), frame.SampleRate)
			assert.Equal(t, pcm, frame.PCM)
		})
	}
}

func TestDecodeShortFmtChunk(t *testing.T) {
	body := fmtBody(16000, 2, 16)[:8]
	frame, err := wav.Decode(container(chunk("fmt ", body), chunk("data", []byte{1, 2})))
	require.NoError(t, err)

	assert.Equal(t, uint32(16000), frame.SampleRate)
	assert.Equal(t, uint16(2), frame.Channels)
	assert.Zero(t, frame.BitsPerSample)
	assert.Zero(t, frame.Duration())
}

func TestDecodeMalformed(t *testing.T) {
	valid := wav.Encode([]byte{1, 2, 3, 4}, 22050, 16, 1)

	notRIFF := append([]byte(nil), valid...)
	copy(notRIFF[0:4], "RIFX")

	notWAVE := append([]byte(nil), valid...)
	copy(notWAVE[8:12], "AVI ")

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "empty", input: nil},
		{name: "short header", input: []byte("RIFF\x00\x00")},
		{name: "missing RIFF", input: notRIFF},
		{name: "missing WAVE", input: notWAVE},
		{name: "no chunks", input: container()},
		{name: "missing fmt", input: container(chunk("LIST", []byte("abcd")))},
		{name: "missing data", input: container(chunk("fmt ", fmtBody(8000, 1, 16)))},
		{name: "data only", input: container(chunk("data", []byte{1, 2}))},
		{name: "fmt too short", input: container(chunk("fmt ", []byte{1, 0, 1, 0}), chunk("data", []byte{1, 2}))},
		{name: "truncated data", input: valid[:len(valid)-2]},
		{name: "truncated fmt", input: valid[:30]},
		{name: "partial chunk header", input: valid[:40]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wav.Decode(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, wav.ErrMalformedContainer)
		})
	}
}

func TestDecodeOversizedChunk(t *testing.T) {
	b := container(chunk("fmt ", fmtBody(8000, 1, 16)), chunk("data", []byte{1, 2, 3, 4}))
	// Claim more data than is present.
	binary.LittleEndian.PutUint32(b[len(b)-8:len(b)-4], 0xFFFFFFF0)

	_, err := wav.Decode(b)
	assert.ErrorIs(t, err, wav.ErrMalformedContainer)
}

func TestFrameDuration(t *testing.T) {
	// One second of 16-bit mono at 8kHz.
	frame, err := wav.Decode(wav.Encode(make([]byte, 16000), 8000, 16, 1))
	require.NoError(t, err)
	assert.Equal(t, time.Second, frame.Duration())
}

func TestEncodeFrameDefaults(t *testing.T) {
	out := wav.EncodeFrame(&wav.Frame{SampleRate: 32000, PCM: []byte{7, 7}})

	frame, err := wav.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, uint32(32000), frame.SampleRate)
	assert.Equal(t, uint16(wav.DefaultChannels), frame.Channels)
	assert.Equal(t, uint16(wav.DefaultBitsPerSample), frame.BitsPerSample)
	assert.Equal(t, []byte{7, 7}, frame.PCM)
}
