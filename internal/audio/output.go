package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Player plays mono samples through the default output device.
type Player struct {
	stream      *portaudio.Stream
	samples     []float32
	position    int
	finished    bool
	interrupted bool
	mu          sync.Mutex
	sampleRate  int
}

// NewPlayer opens a callback-driven output stream at sampleRate.
func NewPlayer(sampleRate int) (*Player, error) {
	if err := GetManager().Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize audio manager: %w", err)
	}

	p := &Player{sampleRate: sampleRate, finished: true}

	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), framesPerBuffer, p.callback)
	if err != nil {
		_ = GetManager().Terminate()
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}

	p.stream = stream
	return p, nil
}

func (p *Player) callback(out []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interrupted {
		for i := range out {
			out[i] = 0
		}
		p.finished = true
		return
	}

	for i := range out {
		if p.position < len(p.samples) {
			out[i] = p.samples[p.position]
			p.position++
		} else {
			out[i] = 0
			p.finished = true
		}
	}
}

// PlayEncoded decodes WAV/MP3 bytes, resamples to the stream rate and plays them.
func (p *Player) PlayEncoded(ctx context.Context, data []byte) error {
	samples, rate, err := Decode(data)
	if err != nil {
		return fmt.Errorf("failed to decode audio: %w", err)
	}

	if rate != p.sampleRate {
		samples, err = Resample(samples, rate, p.sampleRate)
		if err != nil {
			return fmt.Errorf("failed to resample audio: %w", err)
		}
	}

	return p.PlaySamples(ctx, samples)
}

// PlaySamples blocks until the samples have been played or ctx is done.
func (p *Player) PlaySamples(ctx context.Context, samples []float32) error {
	if len(samples) == 0 {
		return errors.New("no audio samples to play")
	}

	p.mu.Lock()
	p.samples = make([]float32, len(samples))
	copy(p.samples, samples)
	p.position = 0
	p.finished = false
	p.interrupted = false
	p.mu.Unlock()

	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

wait:
	for {
		select {
		case <-ctx.Done():
			p.Interrupt()
			_ = p.stream.Stop()
			return ctx.Err()
		case <-ticker.C:
			p.mu.Lock()
			done := p.finished || p.interrupted
			p.mu.Unlock()
			if done {
				break wait
			}
		}
	}

	if err := p.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop audio stream: %w", err)
	}
	return nil
}

// Interrupt ends the current playback early.
func (p *Player) Interrupt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interrupted = true
	p.finished = true
}

func (p *Player) SampleRate() int { return p.sampleRate }

func (p *Player) Close() error {
	if p.stream != nil {
		if err := p.stream.Close(); err != nil {
			return fmt.Errorf("failed to close audio stream: %w", err)
		}
	}
	return GetManager().Terminate()
}
