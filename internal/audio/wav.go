package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/youpy/go-wav"
)

const bitsPerSample = 16

// EncodeWAV renders mono float32 samples as a 16-bit PCM WAV file.
func EncodeWAV(samples []float32, rate int) ([]byte, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", rate)
	}

	var buf bytes.Buffer
	w := wav.NewWriter(&buf, uint32(len(samples)), channels, uint32(rate), bitsPerSample)

	out := make([]wav.Sample, len(samples))
	for i, s := range samples {
		out[i].Values[0] = int(clamp(s) * 32767)
	}
	if err := w.WriteSamples(out); err != nil {
		return nil, fmt.Errorf("failed to write WAV samples: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveToWAV writes samples to filename as a 16-bit mono WAV.
func SaveToWAV(filename string, samples []float32, rate int) error {
	data, err := EncodeWAV(samples, rate)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}

// DecodeWAV reads PCM WAV data, mixing stereo down to mono.
func DecodeWAV(data []byte) ([]float32, int, error) {
	r := wav.NewReader(bytes.NewReader(data))

	format, err := r.Format()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV format: %w", err)
	}

	scale := float32(int64(1) << (format.BitsPerSample - 1))
	if format.BitsPerSample == 0 {
		scale = 32768
	}

	var samples []float32
	for {
		chunk, err := r.ReadSamples()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read WAV samples: %w", err)
		}

		for _, s := range chunk {
			v := float32(r.IntValue(s, 0)) / scale
			if format.NumChannels == 2 {
				v = (v + float32(r.IntValue(s, 1))/scale) / 2
			}
			samples = append(samples, clamp(v))
		}
	}

	return samples, int(format.SampleRate), nil
}

// LoadFromWAV reads and decodes a WAV file.
func LoadFromWAV(filename string) ([]float32, int, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV file: %w", err)
	}
	return DecodeWAV(data)
}

func clamp(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
