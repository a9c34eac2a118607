// Package tts speaks assistant replies aloud.
package tts

import (
	"context"
	"errors"
	"time"

	"voice-loop/internal/logging"
)

// ErrUnavailable means no speech backend could render the text.
var ErrUnavailable = errors.New("speech synthesis unavailable")

// Synthesizer renders text as audible speech, returning once playback ends.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, text string) error

func (f SynthesizerFunc) Speak(ctx context.Context, text string) error { return f(ctx, text) }

// Silent is a Synthesizer that has no backend and always fails.
type Silent struct{}

var _ Synthesizer = Silent{}

func (Silent) Speak(context.Context, string) error { return ErrUnavailable }

// FallbackDelay is how long speaking text would roughly take: one second per
// ten characters.
func FallbackDelay(text string) time.Duration {
	return time.Duration(len(text)) * time.Second / 10
}

// Fallback wraps a Synthesizer. When the inner call fails it waits
// FallbackDelay(text) instead, so callers keep their speaking-window timing.
type Fallback struct {
	inner Synthesizer
	sleep func(ctx context.Context, d time.Duration)
}

var _ Synthesizer = (*Fallback)(nil)

func NewFallback(inner Synthesizer) *Fallback {
	if inner == nil {
		inner = Silent{}
	}
	return &Fallback{inner: inner, sleep: sleepCtx}
}

// Speak never returns an error; failures are logged and replaced by a delay.
func (f *Fallback) Speak(ctx context.Context, text string) error {
	err := f.inner.Speak(ctx, text)
	if err == nil {
		return nil
	}

	d := FallbackDelay(text)
	logging.Warnw("speech synthesis failed, waiting instead", "error", err, "delay", d.String())
	f.sleep(ctx, d)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
