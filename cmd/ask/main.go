package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"voice-loop/internal/config"
	"voice-loop/internal/history"
	"voice-loop/internal/llm"
	"voice-loop/internal/logging"
	"voice-loop/internal/proxy"
)

func main() {
	raw := pflag.Bool("raw", false, "print the underlying error instead of the spoken fallback")
	pflag.Parse()
	question := strings.TrimSpace(strings.Join(pflag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, `usage: ask [--raw] "what is artificial intelligence?"`)
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
		if cfg.LLM.HTTPClient, err = proxy.NewHTTPClient(cfg.SocksProxy, 0); err != nil {
			logging.Fatalw("proxy setup failed", "error", err)
		}
	}
	service := llm.NewService(cfg.LLM)
	turns := []history.Turn{{Role: history.RoleUser, Text: question}}

	fmt.Printf("Asking %s at %s\n\n", cfg.LLM.Model, cfg.LLM.BaseURL)
	if !*raw {
		fmt.Println(service.Generate(context.Background(), turns))
		return
	}

	reply, err := service.Complete(context.Background(), turns)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Println(reply)
}
