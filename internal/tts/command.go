package tts

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"voice-loop/internal/logging"
)

// CommandConfig configures the OS speech command.
type CommandConfig struct {
	// Program overrides detection ("say", "espeak-ng", "espeak", "spd-say").
	Program string
	Voice   string
	// Rate in words per minute. Zero keeps the program default.
	Rate    int
	Timeout time.Duration
}

// CommandSpeaker speaks through a local text-to-speech program.
type CommandSpeaker struct {
	program string
	cfg     CommandConfig
	run     func(ctx context.Context, name string, args ...string) error
}

var _ Synthesizer = (*CommandSpeaker)(nil)

// candidates lists programs to try, most preferred first.
func candidates() []string {
	if runtime.GOOS == "darwin" {
		return []string{"say"}
	}
	return []string{"espeak-ng", "espeak", "spd-say"}
}

// NewCommandSpeaker finds a usable speech program. It fails with
// ErrUnavailable when none is installed.
func NewCommandSpeaker(cfg CommandConfig) (*CommandSpeaker, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	progs := candidates()
	if cfg.Program != "" {
		progs = []string{cfg.Program}
	}
	for _, p := range progs {
		if path, err := exec.LookPath(p); err == nil {
			logging.Infow("speech program found", "program", p, "path", path)
			return &CommandSpeaker{program: p, cfg: cfg, run: runCommand}, nil
		}
	}
	return nil, fmt.Errorf("%w: none of %s installed", ErrUnavailable, strings.Join(progs, ", "))
}

func (c *CommandSpeaker) Program() string { return c.program }

// Speak runs the program and waits for it to exit.
func (c *CommandSpeaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.run(ctx, c.program, c.args(text)...); err != nil {
		return fmt.Errorf("%s: %w", c.program, err)
	}
	return nil
}

func (c *CommandSpeaker) args(text string) []string {
	var args []string
	switch c.program {
	case "say":
		if c.cfg.Voice != "" {
			args = append(args, "-v", c.cfg.Voice)
		}
		if c.cfg.Rate > 0 {
			args = append(args, "-r", strconv.Itoa(c.cfg.Rate))
		}
	case "spd-say":
		// -w blocks until the message has been spoken
		args = append(args, "-w")
		if c.cfg.Voice != "" {
			args = append(args, "-l", c.cfg.Voice)
		}
	default:
		if c.cfg.Voice != "" {
			args = append(args, "-v", c.cfg.Voice)
		}
		if c.cfg.Rate > 0 {
			args = append(args, "-s", strconv.Itoa(c.cfg.Rate))
		}
	}
	// "--" stops text starting with a dash being read as a flag
	return append(args, "--", text)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil && len(out) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return err
}
