package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"voice-loop/internal/asr"
	"voice-loop/internal/audio"
	"voice-loop/internal/classifier"
	"voice-loop/internal/config"
	"voice-loop/internal/logging"
	"voice-loop/internal/proxy"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: transcribe [flags] file.wav [file.wav...]")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(2)
	}
	logging.Init(cfg.LogLevel)
	defer logging.Sync()

	if cfg.SocksProxy != "" {
		if cfg.ASR.HTTPClient, err = proxy.NewHTTPClient(cfg.SocksProxy, 0); err != nil {
			logging.Fatalw("proxy setup failed", "error", err)
		}
	}
	service, err := asr.NewService(cfg.ASR)
	if err != nil {
		logging.Fatalw("transcriber initialization failed", "error", err)
	}
	patterns, err := cfg.Patterns()
	if err != nil {
		logging.Fatalw("loading patterns failed", "error", err)
	}
	cls, err := classifier.New(patterns)
	if err != nil {
		logging.Fatalw("invalid patterns", "error", err)
	}

	fmt.Printf("Transcribing with %s (%s)\n\n", cfg.ASR.Model, cfg.ASR.Language)

	for _, path := range pflag.Args() {
		samples, rate, err := audio.DecodeFile(path)
		if err != nil {
			fmt.Printf("%s: %v\n", path, err)
			continue
		}
		if rate != cfg.SampleRate {
			if samples, err = audio.Resample(samples, rate, cfg.SampleRate); err != nil {
				fmt.Printf("%s: %v\n", path, err)
				continue
			}
			rate = cfg.SampleRate
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		u, err := service.Transcribe(ctx, audio.NewFrame(samples, rate))
		cancel()

		switch {
		case errors.Is(err, asr.ErrSilence):
			fmt.Printf("%s: (silence)\n", path)
		case err != nil:
			fmt.Printf("%s: %v\n", path, err)
		default:
			d := cls.Classify(u.Text)
			fmt.Printf("%s: %q\n", path, u.Text)
			if u.HasConfidence {
				fmt.Printf("   confidence %.2f\n", u.Confidence)
			}
			fmt.Printf("   addressed=%t question=%t respond=%t\n", d.Addressed, d.Question, d.Respond())
		}
	}
}
