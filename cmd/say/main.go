package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"voice-loop/internal/audio"
	"voice-loop/internal/config"
	"voice-loop/internal/logging"
	"voice-loop/internal/tts"
)

func main() {
	backend := pflag.String("tts", "", "speech backend: command, openai or none (default from TTS_BACKEND)")
	pflag.Parse()
	text := strings.TrimSpace(strings.Join(pflag.Args(), " "))
	if text == "" {
		text = "Voice assistant ready."
	}

	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(2)
	}
	logging.Init(cfg.LogLevel)
	defer logging.Sync()
	if *backend != "" {
		cfg.TTSBackend = *backend
	}

	var inner tts.Synthesizer = tts.Silent{}
	switch cfg.TTSBackend {
	case config.TTSOpenAI:
		player, err := audio.NewPlayer(24000)
		if err != nil {
			logging.Fatalw("opening audio output failed", "error", err)
		}
		defer player.Close()
		sp, err := tts.NewOpenAISpeaker(cfg.OpenAI, player)
		if err != nil {
			logging.Fatalw("speech backend unavailable", "error", err)
		}
		inner = sp
	case config.TTSNone:
	default:
		sp, err := tts.NewCommandSpeaker(cfg.Speech)
		if err != nil {
			fmt.Println("no speech program found, falling back to a timed pause")
		} else {
			fmt.Println("speaking with", sp.Program())
			inner = sp
		}
	}

	start := time.Now()
	_ = tts.NewFallback(inner).Speak(context.Background(), text)
	fmt.Printf("done in %s (fallback pause would be %s)\n", time.Since(start).Round(10*time.Millisecond), tts.FallbackDelay(text))
}
