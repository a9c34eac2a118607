package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"voice-loop/internal/asr"
	"voice-loop/internal/assistant"
	"voice-loop/internal/audio"
	"voice-loop/internal/classifier"
	"voice-loop/internal/config"
	"voice-loop/internal/llm"
	"voice-loop/internal/logging"
	"voice-loop/internal/proxy"
	"voice-loop/internal/tts"
	"voice-loop/internal/vad"
)

// stopGrace bounds how long shutdown waits for an in-flight reply.
const stopGrace = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(2)
	}

	logging.Init(cfg.LogLevel)
	defer logging.Sync()

	if cfg.ListDevices {
		printDevices()
		return
	}
	logDevices()

	httpClient, err := newHTTPClient(cfg)
	if err != nil {
		logging.Fatalw("proxy setup failed", "error", err)
	}

	patterns, err := cfg.Patterns()
	if err != nil {
		logging.Fatalw("loading patterns failed", "error", err)
	}
	cls, err := classifier.New(patterns)
	if err != nil {
		logging.Fatalw("invalid patterns", "error", err)
	}

	cfg.ASR.HTTPClient = httpClient
	transcriber, err := asr.NewService(cfg.ASR)
	if err != nil {
		logging.Fatalw("transcriber initialization failed", "error", err)
	}

	cfg.LLM.HTTPClient = httpClient
	if cfg.LLM.APIKey == "" {
		logging.Warnw("DEEPSEEK_API_KEY not set, replies will be canned")
	}
	generator := llm.NewService(cfg.LLM)

	mic, err := audio.OpenMicrophone(cfg.Devices, cfg.SampleRate)
	if err != nil {
		logging.Fatalw("no usable microphone", "error", err, "devices", cfg.Devices)
	}
	listener := vad.NewService(mic, cfg.VAD)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Calibrate {
		logging.Infow("calibrating, please stay quiet")
		if _, err := listener.Calibrate(ctx); err != nil {
			_ = listener.Close()
			logging.Fatalw("calibration failed", "error", err)
		}
	}

	speaker, closeSpeaker := newSpeaker(cfg, httpClient)
	defer closeSpeaker()

	loop := assistant.New(listener, transcriber, cls, generator, speaker, assistant.Options{
		QueueSize:   cfg.QueueSize,
		PollTimeout: cfg.PollTimeout,
		HistorySize: cfg.HistorySize,
	})

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			logging.Errorw("conversation loop failed", "error", err)
		}
		return
	case <-ctx.Done():
	}

	logging.Infow("shutting down")
	stopped := make(chan struct{})
	go func() {
		loop.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(stopGrace):
		logging.Warnw("in-flight reply still running, exiting anyway", "grace", stopGrace.String())
	}
}

func newHTTPClient(cfg *config.Config) (*http.Client, error) {
	if cfg.SocksProxy == "" {
		return nil, nil
	}
	logging.Infow("routing API calls through SOCKS5 proxy", "addr", cfg.SocksProxy)
	return proxy.NewHTTPClient(cfg.SocksProxy, 0)
}

// newSpeaker picks the speech backend. Whatever it returns is wrapped in a
// timed fallback by the loop, so a missing backend only costs audio.
func newSpeaker(cfg *config.Config, httpClient *http.Client) (tts.Synthesizer, func()) {
	noop := func() {}

	tryOpenAI := func() (tts.Synthesizer, func(), error) {
		player, err := audio.NewPlayer(24000)
		if err != nil {
			return nil, noop, err
		}
		oc := cfg.OpenAI
		oc.HTTPClient = httpClient
		sp, err := tts.NewOpenAISpeaker(oc, player)
		if err != nil {
			_ = player.Close()
			return nil, noop, err
		}
		return sp, func() { _ = player.Close() }, nil
	}
	tryCommand := func() (tts.Synthesizer, func(), error) {
		sp, err := tts.NewCommandSpeaker(cfg.Speech)
		if err != nil {
			return nil, noop, err
		}
		return sp, noop, nil
	}

	var order []func() (tts.Synthesizer, func(), error)
	switch cfg.TTSBackend {
	case config.TTSOpenAI:
		order = append(order, tryOpenAI)
	case config.TTSCommand:
		order = append(order, tryCommand)
	case config.TTSNone:
	default:
		if cfg.OpenAI.APIKey != "" {
			order = append(order, tryOpenAI)
		}
		order = append(order, tryCommand)
	}

	for _, try := range order {
		sp, closeFn, err := try()
		if err == nil {
			logging.Infow("speech backend ready", "backend", fmt.Sprintf("%T", sp))
			return sp, closeFn
		}
		logging.Warnw("speech backend unavailable", "error", err)
	}
	logging.Warnw("no speech backend, replies will only be logged")
	return tts.Silent{}, noop
}

func logDevices() {
	devices, err := audio.ListDevices()
	if err != nil {
		logging.Warnw("listing input devices failed", "error", err)
		return
	}
	for _, d := range devices {
		logging.Infow("input device", "index", d.Index, "name", d.Name, "channels", d.MaxInputChannels, "default", d.IsDefault)
	}
}

func printDevices() {
	devices, err := audio.ListDevices()
	if err != nil {
		fmt.Fprintln(os.Stderr, "listing input devices failed:", err)
		os.Exit(1)
	}
	for _, d := range devices {
		fmt.Println(d)
	}
}
