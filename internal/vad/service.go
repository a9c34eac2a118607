package vad

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"voice-loop/internal/audio"
	"voice-loop/internal/logging"
)

// Config controls phrase endpointing. Energy values are RMS levels of
// float32 samples in [0, 1].
type Config struct {
	EnergyThreshold float64
	MinThreshold    float64
	// SilenceRatio places the end-of-speech threshold below the start threshold.
	SilenceRatio   float64
	DynamicEnergy  bool
	DynamicDamping float64
	DynamicRatio   float64
	// PauseThreshold is how much trailing silence ends a phrase.
	PauseThreshold time.Duration
	PhraseLimit    time.Duration
	// MinPhrase drops bursts with less voiced audio than this.
	MinPhrase time.Duration
	// PreRoll keeps this much audio from before the speech onset.
	PreRoll         time.Duration
	CalibrationTime time.Duration
}

// DefaultConfig returns settings suited to 16 kHz speech.
func DefaultConfig() Config {
	return Config{
		EnergyThreshold: 2024.0 / 32768.0,
		MinThreshold:    0.005,
		SilenceRatio:    0.8,
		DynamicEnergy:   false,
		DynamicDamping:  0.15,
		DynamicRatio:    1.5,
		PauseThreshold:  time.Second,
		PhraseLimit:     5 * time.Second,
		MinPhrase:       300 * time.Millisecond,
		PreRoll:         500 * time.Millisecond,
		CalibrationTime: 2 * time.Second,
	}
}

// Service turns a stream of blocks into whole phrases.
type Service struct {
	src audio.BlockReader
	cfg Config

	mu        sync.Mutex
	threshold float64
	det       Detector
	blockDur  time.Duration
}

// NewService wraps src. Listen must only be called from one goroutine.
func NewService(src audio.BlockReader, cfg Config) *Service {
	s := &Service{src: src, cfg: cfg}
	s.setThreshold(cfg.EnergyThreshold)
	return s
}

// Threshold returns the current speech-onset energy threshold.
func (s *Service) Threshold() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threshold
}

func (s *Service) setThreshold(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = math.Max(v, s.cfg.MinThreshold)
	s.det.SetThreshold(s.threshold, s.cfg.SilenceRatio)
}

// SampleRate is the rate of the frames Listen returns.
func (s *Service) SampleRate() int { return s.src.SampleRate() }

// Close closes the underlying reader.
func (s *Service) Close() error { return s.src.Close() }

// Calibrate listens to ambient noise for CalibrationTime and moves the
// threshold toward the observed level.
func (s *Service) Calibrate(ctx context.Context) (float64, error) {
	var elapsed time.Duration
	for elapsed < s.cfg.CalibrationTime {
		if err := ctx.Err(); err != nil {
			return s.Threshold(), err
		}
		block, err := s.read()
		if err != nil {
			return s.Threshold(), err
		}
		if s.blockDur == 0 {
			return s.Threshold(), fmt.Errorf("calibrate: reader returned an empty block")
		}
		s.adapt(audio.RMS(block))
		elapsed += s.blockDur
	}

	th := s.Threshold()
	logging.Infow("energy threshold calibrated", "threshold", th, "duration", s.cfg.CalibrationTime.String())
	return th, nil
}

// Listen blocks until one phrase has been captured or ctx is done.
func (s *Service) Listen(ctx context.Context) (audio.Frame, error) {
	for {
		// wait for onset, keeping a short pre-roll
		var pre [][]float32
		for {
			if err := ctx.Err(); err != nil {
				return audio.Frame{}, err
			}
			block, err := s.read()
			if err != nil {
				return audio.Frame{}, err
			}
			pre = append(pre, block)
			if keep := s.blocksIn(s.cfg.PreRoll) + 1; len(pre) > keep {
				pre = pre[len(pre)-keep:]
			}

			level := audio.RMS(block)
			if s.feed(level) == SpeechStart {
				break
			}
			if s.cfg.DynamicEnergy {
				s.adapt(level)
			}
		}

		phrase := make([]float32, 0, s.src.SampleRate()*int(s.cfg.PhraseLimit/time.Second+1))
		for _, b := range pre {
			phrase = append(phrase, b...)
		}
		voiced := 1
		limit := s.blocksIn(s.cfg.PhraseLimit)
		recorded := 1

		for recorded < limit {
			if err := ctx.Err(); err != nil {
				return audio.Frame{}, err
			}
			block, err := s.read()
			if err != nil {
				return audio.Frame{}, err
			}
			phrase = append(phrase, block...)
			recorded++

			level := audio.RMS(block)
			if level >= s.Threshold()*s.cfg.SilenceRatio {
				voiced++
			}
			if s.feed(level) == SpeechEnd {
				break
			}
		}
		if s.inSpeech() {
			logging.Debugw("phrase limit reached, phrase cut", "limit", s.cfg.PhraseLimit.String())
		}
		s.resetDetector()

		if time.Duration(voiced)*s.blockDur < s.cfg.MinPhrase {
			logging.Debugw("phrase too short, discarded", "voiced_blocks", voiced)
			continue
		}
		return audio.NewFrame(phrase, s.src.SampleRate()), nil
	}
}

func (s *Service) read() ([]float32, error) {
	block, err := s.src.ReadBlock()
	if err != nil {
		return nil, fmt.Errorf("read audio block: %w", err)
	}
	if s.blockDur == 0 && len(block) > 0 {
		s.configure(len(block))
	}
	return block, nil
}

// configure derives block counts from the reader's block size.
func (s *Service) configure(blockLen int) {
	s.blockDur = time.Duration(blockLen) * time.Second / time.Duration(s.src.SampleRate())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.det.SpeechBlocks = 1
	s.det.SilenceBlocks = s.blocksIn(s.cfg.PauseThreshold)
}

// blocksIn converts a duration to a whole number of blocks, rounding up.
func (s *Service) blocksIn(d time.Duration) int {
	if s.blockDur <= 0 || d <= 0 {
		return 0
	}
	return int((d + s.blockDur - 1) / s.blockDur)
}

func (s *Service) feed(level float64) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.det.Feed(level)
}

func (s *Service) inSpeech() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.det.InSpeech()
}

func (s *Service) resetDetector() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.det.Reset()
}

// adapt applies exponential smoothing of the threshold toward level*ratio.
func (s *Service) adapt(level float64) {
	damping := math.Pow(s.cfg.DynamicDamping, s.blockDur.Seconds())
	target := level * s.cfg.DynamicRatio
	s.setThreshold(s.Threshold()*damping + target*(1-damping))
}
