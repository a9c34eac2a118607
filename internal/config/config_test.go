package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears keys for the test and restores them afterwards.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

var envKeys = []string{
	"LOG_LEVEL", "DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL", "LLM_MODEL", "SYSTEM_PROMPT",
	"OPENAI_API_KEY", "ASR_API_KEY", "ASR_BASE_URL", "ASR_MODEL", "ASR_LANGUAGE",
	"TTS_VOICE", "TTS_PROGRAM", "TTS_BACKEND", "PATTERNS_FILE", "SOCKS_PROXY",
	"WAKE_PATTERNS", "QUESTION_PATTERNS", "MIC_DEVICES", "ENERGY_THRESHOLD", "DYNAMIC_ENERGY",
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []int{2, 1}, cfg.Devices)
	assert.Equal(t, 10, cfg.HistorySize)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
}

func TestLoadReadsEnvFileAndFlagsWin(t *testing.T) {
	unsetEnv(t, envKeys...)

	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"DEEPSEEK_API_KEY=sk-file\nMIC_DEVICES=3, 0\nTTS_BACKEND=none\nWAKE_PATTERNS=^jarvis\n"), 0o600))

	cfg, err := Load([]string{"-e", envFile, "--tts", "command", "--queue-size", "4"})
	require.NoError(t, err)

	assert.Equal(t, "sk-file", cfg.LLM.APIKey)
	assert.Equal(t, []int{3, 0}, cfg.Devices)
	assert.Equal(t, TTSCommand, cfg.TTSBackend)
	assert.Equal(t, 4, cfg.QueueSize)
	assert.Equal(t, []string{"^jarvis"}, cfg.ExtraWake)
}

func TestLoadMissingEnvFileIsFine(t *testing.T) {
	unsetEnv(t, envKeys...)
	cfg, err := Load([]string{"--env", filepath.Join(t.TempDir(), "absent.env")})
	require.NoError(t, err)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestLoadRejectsUnknownFlag(t *testing.T) {
	_, err := Load([]string{"--no-such-flag"})
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":   "sk-openai",
		"ASR_LANGUAGE":     "de",
		"ENERGY_THRESHOLD": "0.02",
		"DYNAMIC_ENERGY":   "true",
		"MIC_DEVICES":      "5",
		"SOCKS_PROXY":      "127.0.0.1:1080",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) string { return env[k] }, map[string]bool{"devices": true}))

	assert.Equal(t, "sk-openai", cfg.ASR.APIKey)
	assert.Equal(t, "sk-openai", cfg.OpenAI.APIKey)
	assert.Equal(t, "de", cfg.ASR.Language)
	assert.InDelta(t, 0.02, cfg.VAD.EnergyThreshold, 1e-12)
	assert.True(t, cfg.VAD.DynamicEnergy)
	assert.Equal(t, []int{2, 1}, cfg.Devices, "flag takes precedence")
	assert.Equal(t, "127.0.0.1:1080", cfg.SocksProxy)
}

func TestApplyEnvBadValues(t *testing.T) {
	for key, val := range map[string]string{
		"MIC_DEVICES":      "two",
		"ENERGY_THRESHOLD": "loud",
		"DYNAMIC_ENERGY":   "maybe",
	} {
		cfg := Default()
		err := cfg.applyEnv(func(k string) string {
			if k == key {
				return val
			}
			return ""
		}, nil)
		assert.ErrorContains(t, err, key)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.QueueSize = 0
	cfg.TTSBackend = "robot-voice"
	cfg.Devices = []int{-3}
	cfg.VAD.EnergyThreshold = 2

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue size")
	assert.Contains(t, err.Error(), "robot-voice")
	assert.Contains(t, err.Error(), "-3")
	assert.Contains(t, err.Error(), "energy threshold")
}

func TestPatterns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wake:\n  - '^computer'\nquestion:\n  - '\\?$'\n"), 0o600))

	cfg := Default()
	cfg.PatternsFile = path
	cfg.ExtraWake = []string{"^jarvis"}

	p, err := cfg.Patterns()
	require.NoError(t, err)
	assert.Equal(t, []string{"^computer", "^jarvis"}, p.Wake)
	assert.Equal(t, []string{`\?$`}, p.Question)

	cfg.PatternsFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.Patterns()
	assert.Error(t, err)
}
