package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Player plays an encoded (MP3 or WAV) clip and blocks until it finishes.
type Player interface {
	PlayEncoded(ctx context.Context, data []byte) error
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Voice      string
	Speed      float64
	Timeout    time.Duration
	HTTPClient *http.Client
}

func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL: "https://api.openai.com/v1",
		Model:   "tts-1",
		Voice:   "alloy",
		Speed:   1.0,
		Timeout: 30 * time.Second,
	}
}

// OpenAISpeaker synthesizes MP3 through the OpenAI speech API and plays it.
type OpenAISpeaker struct {
	client openai.Client
	cfg    OpenAIConfig
	player Player
}

var _ Synthesizer = (*OpenAISpeaker)(nil)

func NewOpenAISpeaker(cfg OpenAIConfig, player Player) (*OpenAISpeaker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", ErrUnavailable)
	}
	if player == nil {
		return nil, errors.New("tts: player is required")
	}
	def := DefaultOpenAIConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
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

	return &OpenAISpeaker{client: openai.NewClient(opts...), cfg: cfg, player: player}, nil
}

// Synthesize returns the MP3 bytes for text.
func (s *OpenAISpeaker) Synthesize(ctx context.Context, text string) ([]byte, error) {
	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.cfg.Model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(voiceName(s.cfg.Voice)),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat("mp3"),
	}
	if s.cfg.Speed > 0 && s.cfg.Speed != 1.0 {
		params.Speed = openai.Float(s.cfg.Speed)
	}

	resp, err := s.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("speech synthesis returned no audio")
	}
	return data, nil
}

// Speak synthesizes text and plays it to completion.
func (s *OpenAISpeaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	synthCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	data, err := s.Synthesize(synthCtx, text)
	cancel()
	if err != nil {
		return err
	}

	// playback gets its own bound: the clip length plus slack
	playCtx, cancel := context.WithTimeout(ctx, FallbackDelay(text)*3+10*time.Second)
	defer cancel()
	return s.player.PlayEncoded(playCtx, data)
}

// voiceName maps generic names onto OpenAI voices, defaulting to alloy.
func voiceName(voice string) string {
	switch strings.ToLower(voice) {
	case "alloy", "echo", "fable", "onyx", "nova", "shimmer":
		return strings.ToLower(voice)
	case "female":
		return "nova"
	case "male":
		return "onyx"
	default:
		return "alloy"
	}
}
