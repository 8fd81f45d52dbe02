package wav

import "encoding/binary"

// Common synthesis output format.
const (
	DefaultSampleRate    = 44100
	DefaultBitsPerSample = 16
	DefaultChannels      = 1
)

// Encode wraps PCM data in a canonical 44-byte WAV header.
func Encode(pcm []byte, sampleRate, bitsPerSample, channels int) []byte {
	dataLen := len(pcm)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	out := make([]byte, 44, 44+dataLen)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataLen))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], pcmFmtSize)
	binary.LittleEndian.PutUint16(out[20:22], 1) // integer PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(bitsPerSample))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataLen))

	return append(out, pcm...)
}

// EncodeFrame re-wraps a decoded frame, defaulting missing header fields.
func EncodeFrame(f *Frame) []byte {
	bits := int(f.BitsPerSample)
	if bits == 0 {
		bits = DefaultBitsPerSample
	}
	channels := int(f.Channels)
	if channels == 0 {
		channels = DefaultChannels
	}
	return Encode(f.PCM, int(f.SampleRate), bits, channels)
}
