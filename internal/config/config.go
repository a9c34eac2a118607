// Package config assembles runtime settings from defaults, an optional .env
// file, the environment and command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"voice-loop/internal/asr"
	"voice-loop/internal/classifier"
	"voice-loop/internal/history"
	"voice-loop/internal/llm"
	"voice-loop/internal/tts"
	"voice-loop/internal/vad"
)

// TTS backends.
const (
	TTSAuto    = "auto"
	TTSCommand = "command"
	TTSOpenAI  = "openai"
	TTSNone    = "none"
)

type Config struct {
	EnvFile  string
	LogLevel string

	// Devices are microphone indices tried in order before the default device.
	Devices     []int
	SampleRate  int
	Calibrate   bool
	ListDevices bool

	QueueSize   int
	PollTimeout time.Duration
	HistorySize int

	PatternsFile  string
	ExtraWake     []string
	ExtraQuestion []string

	SocksProxy string
	TTSBackend string

	LLM    llm.Config
	ASR    asr.Config
	Speech tts.CommandConfig
	OpenAI tts.OpenAIConfig
	VAD    vad.Config
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		EnvFile:     ".env",
		Devices:     []int{2, 1},
		SampleRate:  16000,
		Calibrate:   true,
		QueueSize:   8,
		PollTimeout: time.Second,
		HistorySize: history.DefaultCapacity,
		TTSBackend:  TTSAuto,
		LLM:         llm.DefaultConfig(),
		ASR:         asr.DefaultConfig(),
		Speech:      tts.CommandConfig{Timeout: 60 * time.Second},
		OpenAI:      tts.DefaultOpenAIConfig(),
		VAD:         vad.DefaultConfig(),
	}
}

// Load parses args (without the program name), loads the env file they name
// and applies environment overrides. Flags given explicitly win over the environment.
func Load(args []string) (*Config, error) {
	cfg := Default()

	flags := pflag.NewFlagSet("voice-assistant", pflag.ContinueOnError)
	flags.StringVarP(&cfg.EnvFile, "env", "e", cfg.EnvFile, "path to .env file")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flags.IntSliceVar(&cfg.Devices, "devices", cfg.Devices, "microphone indices to try before the default device")
	flags.BoolVar(&cfg.Calibrate, "calibrate", cfg.Calibrate, "measure ambient noise before listening")
	flags.BoolVar(&cfg.ListDevices, "list-devices", false, "print input devices and exit")
	flags.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "maximum phrases waiting to be processed")
	flags.StringVar(&cfg.PatternsFile, "patterns", "", "YAML file with wake and question patterns")
	flags.StringVar(&cfg.TTSBackend, "tts", cfg.TTSBackend, "speech backend: auto, command, openai or none")
	flags.StringVar(&cfg.SocksProxy, "socks-proxy", "", "SOCKS5 proxy address for API calls")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(cfg.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", cfg.EnvFile, err)
	}

	flagged := map[string]bool{}
	flags.Visit(func(f *pflag.Flag) { flagged[f.Name] = true })

	if err := cfg.applyEnv(os.Getenv, flagged); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment values, skipping settings set by flag.
func (c *Config) applyEnv(getenv func(string) string, flagged map[string]bool) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *float64) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = f
		return nil
	}

	if !flagged["log-level"] {
		str("LOG_LEVEL", &c.LogLevel)
	}

	str("DEEPSEEK_API_KEY", &c.LLM.APIKey)
	str("DEEPSEEK_BASE_URL", &c.LLM.BaseURL)
	str("LLM_MODEL", &c.LLM.Model)
	str("SYSTEM_PROMPT", &c.LLM.SystemPrompt)

	str("OPENAI_API_KEY", &c.ASR.APIKey)
	str("ASR_API_KEY", &c.ASR.APIKey)
	str("ASR_BASE_URL", &c.ASR.BaseURL)
	str("ASR_MODEL", &c.ASR.Model)
	str("ASR_LANGUAGE", &c.ASR.Language)

	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("TTS_VOICE", &c.OpenAI.Voice)
	str("TTS_VOICE", &c.Speech.Voice)
	str("TTS_PROGRAM", &c.Speech.Program)
	if !flagged["tts"] {
		str("TTS_BACKEND", &c.TTSBackend)
	}
	if !flagged["patterns"] {
		str("PATTERNS_FILE", &c.PatternsFile)
	}
	if !flagged["socks-proxy"] {
		str("SOCKS_PROXY", &c.SocksProxy)
	}

	c.ExtraWake = append(c.ExtraWake, classifier.SplitList(getenv("WAKE_PATTERNS"))...)
	c.ExtraQuestion = append(c.ExtraQuestion, classifier.SplitList(getenv("QUESTION_PATTERNS"))...)

	if v := getenv("MIC_DEVICES"); v != "" && !flagged["devices"] {
		devices, err := parseInts(v)
		if err != nil {
			return fmt.Errorf("MIC_DEVICES: %w", err)
		}
		c.Devices = devices
	}
	if err := num("ENERGY_THRESHOLD", &c.VAD.EnergyThreshold); err != nil {
		return err
	}
	if v := getenv("DYNAMIC_ENERGY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DYNAMIC_ENERGY: %w", err)
		}
		c.VAD.DynamicEnergy = b
	}
	return nil
}

// Validate rejects settings the loop cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue size must be positive, got %d", c.QueueSize))
	}
	if c.PollTimeout <= 0 {
		errs = append(errs, errors.New("poll timeout must be positive"))
	}
	if c.HistorySize < 1 {
		errs = append(errs, fmt.Errorf("history size must be positive, got %d", c.HistorySize))
	}
	if c.VAD.EnergyThreshold <= 0 || c.VAD.EnergyThreshold >= 1 {
		errs = append(errs, fmt.Errorf("energy threshold must be in (0, 1), got %g", c.VAD.EnergyThreshold))
	}
	switch c.TTSBackend {
	case TTSAuto, TTSCommand, TTSOpenAI, TTSNone:
	default:
		errs = append(errs, fmt.Errorf("unknown tts backend %q", c.TTSBackend))
	}
	for _, d := range c.Devices {
		if d < 0 {
			errs = append(errs, fmt.Errorf("device index must not be negative, got %d", d))
		}
	}
	return errors.Join(errs...)
}

// Patterns resolves the classifier pattern sets: the file when given,
// otherwise the defaults, extended with any patterns from the environment.
func (c *Config) Patterns() (classifier.Patterns, error) {
	p := classifier.DefaultPatterns()
	if c.PatternsFile != "" {
		loaded, err := classifier.LoadPatterns(c.PatternsFile)
		if err != nil {
			return classifier.Patterns{}, err
		}
		p = loaded
	}
	return p.Extend(c.ExtraWake, c.ExtraQuestion), nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range classifier.SplitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
