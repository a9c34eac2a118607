// Package llm produces assistant replies from the conversation history using
// an OpenAI-compatible chat completions endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"voice-loop/internal/history"
	"voice-loop/internal/logging"
)

// Fixed replies used whenever a real completion cannot be obtained.
const (
	ReplyNoCredential = "I heard you! This is a test response. Please set your DeepSeek API key to use the real AI."
	ReplyBadStatus    = "I'm having trouble connecting to the knowledge service."
	ReplyUnusual      = "I received an unusual response from the knowledge service."
	ReplyNetwork      = "I'm experiencing network issues. Please try again later."
	ReplyUnexpected   = "Sorry, I encountered an unexpected error."
)

var (
	ErrNoCredential = errors.New("no API key configured")
	// ErrPermanent wraps non-2xx responses.
	ErrPermanent = errors.New("permanent error")
	// ErrTransient wraps network failures and timeouts.
	ErrTransient = errors.New("transient error")
	ErrNoChoices = errors.New("response contained no choices")
)

type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	TopP         float64
	Timeout      time.Duration
	HTTPClient   *http.Client
}

func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://api.deepseek.com/v1",
		Model:        "deepseek-chat",
		SystemPrompt: "You are a helpful and concise voice assistant.",
		Temperature:  0.7,
		MaxTokens:    1024,
		TopP:         0.95,
		Timeout:      15 * time.Second,
	}
}

// Service generates replies. It never mutates the history it is given.
type Service struct {
	client openai.Client
	cfg    Config
}

func NewService(cfg Config) *Service {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = def.SystemPrompt
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

	return &Service{client: openai.NewClient(opts...), cfg: cfg}
}

// Generate returns a reply for turns, substituting a fixed fallback for any
// failure. It never returns an empty string.
func (s *Service) Generate(ctx context.Context, turns []history.Turn) string {
	reply, err := s.Complete(ctx, turns)
	if err == nil {
		return reply
	}

	fallback := FallbackFor(err)
	if errors.Is(err, ErrNoCredential) {
		logging.Warnw("no API key set, using test response")
	} else {
		logging.Errorw("response generation failed", "error", err, "fallback", fallback)
	}
	return fallback
}

// Complete performs exactly one chat completion request and classifies failures.
func (s *Service) Complete(ctx context.Context, turns []history.Turn) (string, error) {
	if s.cfg.APIKey == "" {
		return "", ErrNoCredential
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	completion, err := s.client.Chat.Completions.New(ctx, s.params(turns))
	if err != nil {
		return "", classify(err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrNoChoices
	}

	reply := strings.TrimSpace(completion.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: empty content", ErrNoChoices)
	}

	logging.Debugw("completion received",
		"model", completion.Model,
		"latency_ms", time.Since(start).Milliseconds(),
		"total_tokens", completion.Usage.TotalTokens,
	)
	return reply, nil
}

func (s *Service) params(turns []history.Turn) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	messages = append(messages, openai.SystemMessage(s.cfg.SystemPrompt))
	for _, t := range turns {
		if t.Role == history.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(t.Text))
		} else {
			messages = append(messages, openai.UserMessage(t.Text))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    s.cfg.Model,
	}
	if s.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(s.cfg.MaxTokens))
	}
	if s.cfg.Temperature > 0 {
		params.Temperature = openai.Float(s.cfg.Temperature)
	}
	if s.cfg.TopP > 0 {
		params.TopP = openai.Float(s.cfg.TopP)
	}
	return params
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d: %w", ErrPermanent, apiErr.StatusCode, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

// FallbackFor maps a Complete error to the reply spoken in its place.
func FallbackFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoCredential):
		return ReplyNoCredential
	case errors.Is(err, ErrPermanent):
		return ReplyBadStatus
	case errors.Is(err, ErrNoChoices):
		return ReplyUnusual
	case errors.Is(err, ErrTransient):
		return ReplyNetwork
	default:
		return ReplyUnexpected
	}
}
