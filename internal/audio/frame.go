package audio

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Frame is one endpointed phrase of mono float32 audio.
type Frame struct {
	ID         string
	Samples    []float32
	SampleRate int
	CapturedAt time.Time
}

// NewFrame stamps samples with a fresh correlation id.
func NewFrame(samples []float32, sampleRate int) Frame {
	return Frame{
		ID:         uuid.NewString(),
		Samples:    samples,
		SampleRate: sampleRate,
		CapturedAt: time.Now(),
	}
}

// Duration is the playback length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// RMS returns the root-mean-square level of samples in [0, 1].
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
