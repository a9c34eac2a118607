package audio

import (
	"bytes"
	"fmt"
	"os"

	"github.com/tosone/minimp3"
)

// Format is a container format recognized by Decode.
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatUnknown Format = "unknown"
)

// DetectFormat sniffs the header bytes.
func DetectFormat(data []byte) Format {
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("RIFF")):
		return FormatWAV
	case len(data) >= 3 && bytes.Equal(data[:3], []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// Decode turns WAV or MP3 bytes into mono samples and their sample rate.
// Unknown data is tried as WAV, then as MP3.
func Decode(data []byte) ([]float32, int, error) {
	switch DetectFormat(data) {
	case FormatWAV:
		return DecodeWAV(data)
	case FormatMP3:
		return DecodeMP3(data)
	default:
		samples, rate, err := DecodeWAV(data)
		if err == nil {
			return samples, rate, nil
		}
		return DecodeMP3(data)
	}
}

// DecodeFile reads and decodes an audio file.
func DecodeFile(filename string) ([]float32, int, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read file: %w", err)
	}
	return Decode(data)
}

// DecodeMP3 decodes an MP3 stream, mixing stereo down to mono.
func DecodeMP3(data []byte) ([]float32, int, error) {
	dec, pcm, err := minimp3.DecodeFull(data)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode MP3: %w", err)
	}
	defer dec.Close()

	ch := dec.Channels
	if ch <= 0 {
		ch = 1
	}
	return pcm16ToMono(pcm, ch), dec.SampleRate, nil
}

// pcm16ToMono converts interleaved little-endian int16 PCM to mono float32.
func pcm16ToMono(pcm []byte, ch int) []float32 {
	n := len(pcm) / 2 / ch
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for c := 0; c < ch; c++ {
			off := (i*ch + c) * 2
			sum += float32(int16(uint16(pcm[off])|uint16(pcm[off+1])<<8)) / 32768
		}
		out[i] = clamp(sum / float32(ch))
	}
	return out
}
