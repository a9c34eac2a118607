// Package vad endpoints microphone audio into phrases using RMS energy.
package vad

// Detector is an energy detector with hysteresis: speech starts once the
// level stays at or above SpeechThreshold for SpeechBlocks consecutive blocks
// and ends after SilenceBlocks consecutive blocks below SilenceThreshold.
type Detector struct {
	SpeechThreshold  float64
	SilenceThreshold float64
	SpeechBlocks     int
	SilenceBlocks    int

	inSpeech     bool
	speechCount  int
	silenceCount int
}

// Event reports what a single block did to the detector.
type Event int

const (
	None Event = iota
	SpeechStart
	SpeechEnd
)

// Feed consumes one block level and reports a transition, if any.
func (d *Detector) Feed(level float64) Event {
	if d.inSpeech {
		if level < d.SilenceThreshold {
			d.silenceCount++
			if d.silenceCount >= max(d.SilenceBlocks, 1) {
				d.inSpeech = false
				d.silenceCount = 0
				d.speechCount = 0
				return SpeechEnd
			}
		} else {
			d.silenceCount = 0
		}
		return None
	}

	if level >= d.SpeechThreshold {
		d.speechCount++
		if d.speechCount >= max(d.SpeechBlocks, 1) {
			d.inSpeech = true
			d.speechCount = 0
			d.silenceCount = 0
			return SpeechStart
		}
	} else {
		d.speechCount = 0
	}
	return None
}

// InSpeech reports whether the detector is currently inside a phrase.
func (d *Detector) InSpeech() bool { return d.inSpeech }

// SetThreshold moves both thresholds, keeping silence at ratio of speech.
func (d *Detector) SetThreshold(speech, silenceRatio float64) {
	d.SpeechThreshold = speech
	d.SilenceThreshold = speech * silenceRatio
}

// Reset clears counters and leaves the speech state.
func (d *Detector) Reset() {
	d.inSpeech = false
	d.speechCount = 0
	d.silenceCount = 0
}
