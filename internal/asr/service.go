package asr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	"voice-loop/internal/audio"
	"voice-loop/internal/logging"
)

// Config configures the Whisper transcription client.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Prompt   string
	Timeout  time.Duration
	// MinEnergy skips the upload entirely for frames quieter than this RMS.
	MinEnergy float64
	// MaxNoSpeechProb treats results whose mean no_speech_prob exceeds this as silence.
	MaxNoSpeechProb float64
	// MinConfidence treats results below this confidence as silence. Zero disables it.
	MinConfidence float64
	HTTPClient    *http.Client
}

// DefaultConfig returns Whisper defaults for English speech.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "https://api.openai.com/v1",
		Model:           "whisper-1",
		Language:        "en",
		Timeout:         15 * time.Second,
		MinEnergy:       0.002,
		MaxNoSpeechProb: 0.6,
	}
}

// Service is a Transcriber backed by the OpenAI audio transcription API.
type Service struct {
	client openai.Client
	cfg    Config
}

var _ Transcriber = (*Service)(nil)

// NewService validates cfg and builds the client. A missing API key is an
// error since nothing can be recognized without one.
func NewService(cfg Config) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("asr: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Service{client: openai.NewClient(opts...), cfg: cfg}, nil
}

// Transcribe uploads the frame as WAV and returns the recognized text.
func (s *Service) Transcribe(ctx context.Context, frame audio.Frame) (Utterance, error) {
	if len(frame.Samples) == 0 || audio.RMS(frame.Samples) < s.cfg.MinEnergy {
		return Utterance{}, ErrSilence
	}

	wav, err := audio.EncodeWAV(frame.Samples, frame.SampleRate)
	if err != nil {
		return Utterance{}, fmt.Errorf("%w: encode frame: %w", ErrService, err)
	}

	params := openai.AudioTranscriptionNewParams{
		File:           openai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model:          openai.AudioModel(s.cfg.Model),
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	}
	if s.cfg.Language != "" && s.cfg.Language != "auto" {
		params.Language = openai.String(s.cfg.Language)
	}
	if s.cfg.Prompt != "" {
		params.Prompt = openai.String(s.cfg.Prompt)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	tr, err := s.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return Utterance{}, fmt.Errorf("%w: %w", ErrService, err)
	}

	u, noSpeech := parseVerbose(tr.Text, tr.RawJSON())
	logging.Debugw("transcription finished",
		"utterance_id", frame.ID,
		"duration_ms", time.Since(start).Milliseconds(),
		"confidence", u.Confidence,
		"no_speech_prob", noSpeech,
	)

	switch {
	case u.Text == "":
		return Utterance{}, ErrSilence
	case noSpeech > s.cfg.MaxNoSpeechProb && s.cfg.MaxNoSpeechProb > 0:
		return Utterance{}, ErrSilence
	case s.cfg.MinConfidence > 0 && u.HasConfidence && u.Confidence < s.cfg.MinConfidence:
		return Utterance{}, ErrSilence
	}
	return u, nil
}

// parseVerbose extracts text, a confidence from the mean segment
// avg_logprob, and the mean no_speech_prob from a verbose_json body.
func parseVerbose(text, raw string) (Utterance, float64) {
	u := Utterance{Text: strings.TrimSpace(text)}
	if raw == "" || !gjson.Valid(raw) {
		return u, 0
	}
	if u.Text == "" {
		u.Text = strings.TrimSpace(gjson.Get(raw, "text").String())
	}

	logprobs := gjson.Get(raw, "segments.#.avg_logprob").Array()
	if len(logprobs) > 0 {
		var sum float64
		for _, lp := range logprobs {
			sum += lp.Float()
		}
		u.Confidence = math.Exp(sum / float64(len(logprobs)))
		u.HasConfidence = true
	}

	var noSpeech float64
	probs := gjson.Get(raw, "segments.#.no_speech_prob").Array()
	for _, p := range probs {
		noSpeech += p.Float()
	}
	if len(probs) > 0 {
		noSpeech /= float64(len(probs))
	}
	return u, noSpeech
}
