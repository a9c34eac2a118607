// Package asr turns captured phrases into text through a Whisper-compatible
// transcription endpoint.
package asr

import (
	"context"
	"errors"

	"voice-loop/internal/audio"
)

var (
	// ErrSilence means the frame held no intelligible speech.
	ErrSilence = errors.New("no speech detected")
	// ErrService means the transcription backend could not be reached or failed.
	ErrService = errors.New("transcription service error")
)

// Utterance is transcribed text with an optional confidence in [0, 1].
type Utterance struct {
	Text          string
	Confidence    float64
	HasConfidence bool
}

// Transcriber converts a frame into an Utterance. Failures are reported as
// ErrSilence or an error wrapping ErrService.
type Transcriber interface {
	Transcribe(ctx context.Context, frame audio.Frame) (Utterance, error)
}
