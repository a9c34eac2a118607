package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"

	"voice-loop/internal/audio"
	"voice-loop/internal/config"
	"voice-loop/internal/logging"
	"voice-loop/internal/vad"
)

func main() {
	listen := pflag.Duration("listen", 10*time.Second, "how long to listen for phrases after calibrating")
	save := pflag.String("save", "", "directory to write captured phrases as WAV")
	pflag.Parse()

	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(2)
	}
	logging.Init(cfg.LogLevel)
	defer logging.Sync()

	fmt.Println("Microphone Check")
	fmt.Println("================")

	fmt.Println("1. Input devices")
	devices, err := audio.ListDevices()
	if err != nil {
		logging.Fatalw("listing devices failed", "error", err)
	}
	for _, d := range devices {
		fmt.Printf("   %s  (%d ch, %.0f Hz)\n", d, d.MaxInputChannels, d.DefaultSampleRate)
	}

	fmt.Printf("\n2. Opening microphone (preferred %v)\n", cfg.Devices)
	mic, err := audio.OpenMicrophone(cfg.Devices, cfg.SampleRate)
	if err != nil {
		logging.Fatalw("no usable microphone", "error", err)
	}
	fmt.Printf("   ✓ device %d: %s\n", mic.Device(), mic.Name())

	listener := vad.NewService(mic, cfg.VAD)
	defer listener.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	fmt.Println("\n3. Calibrating, stay quiet...")
	th, err := listener.Calibrate(ctx)
	if err != nil {
		logging.Fatalw("calibration failed", "error", err)
	}
	fmt.Printf("   ✓ energy threshold %.4f\n", th)

	fmt.Printf("\n4. Say something (listening for %s)\n", *listen)
	ctx, stop := context.WithTimeout(ctx, *listen)
	defer stop()

	for n := 1; ; n++ {
		f, err := listener.Listen(ctx)
		if err != nil {
			if ctx.Err() == nil {
				fmt.Println("   capture error:", err)
			}
			break
		}
		fmt.Printf("   phrase %d: %s, rms %.4f\n", n, f.Duration().Round(10*time.Millisecond), audio.RMS(f.Samples))
		if *save != "" {
			path := fmt.Sprintf("%s/phrase_%s.wav", *save, f.ID)
			if err := audio.SaveToWAV(path, f.Samples, f.SampleRate); err != nil {
				fmt.Println("   save failed:", err)
			} else {
				fmt.Println("   saved", path)
			}
		}
	}
	fmt.Println("\nDone.")
}
