package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
feed:
  symbols: ["BTCUSDT"]
  timeframes: ["15m"]
`

func TestLoadDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.Detection.ATRPeriod != 14 {
		t.Errorf("expected default atr_period 14, got %d", c.Detection.ATRPeriod)
	}
	if c.Detection.Lookahead != 10 {
		t.Errorf("expected default lookahead 10, got %d", c.Detection.Lookahead)
	}
	if c.Session.BufferCapacity != 500 {
		t.Errorf("expected default buffer_capacity 500, got %d", c.Session.BufferCapacity)
	}
	if c.Session.Reconnect.BaseDelay != time.Second {
		t.Errorf("expected default base_delay 1s, got %v", c.Session.Reconnect.BaseDelay)
	}
	if c.Dedup.Mode != "file" {
		t.Errorf("expected default dedup mode 'file', got %q", c.Dedup.Mode)
	}
}

func TestLoadWeightsMustSumToOne(t *testing.T) {
	body := minimalConfig + `
detection:
  score_weights:
    body: 0.5
    impulse: 0.5
    touch: 0.5
    volume: 0.1
    sweep: 0.1
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error for weights not summing to 1.0, got nil")
	}
}

func TestLoadWeightsExactSumPasses(t *testing.T) {
	body := minimalConfig + `
detection:
  score_weights:
    body: 0.2
    impulse: 0.2
    touch: 0.2
    volume: 0.2
    sweep: 0.2
`
	if _, err := Load(writeConfig(t, body)); err != nil {
		t.Fatalf("expected valid weights to pass, got: %v", err)
	}
}

func TestLoadNegativeNetMoveRejected(t *testing.T) {
	body := minimalConfig + `
detection:
  impulse_min_net_move: -1.5
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error for negative impulse_min_net_move, got nil")
	}
}

func TestLoadBufferCapacityTooSmall(t *testing.T) {
	body := minimalConfig + `
session:
  buffer_capacity: 10
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error for buffer_capacity below atr_period+lookahead+1, got nil")
	}
}

func TestLoadInvalidDedupMode(t *testing.T) {
	body := minimalConfig + `
dedup:
  mode: postgres
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error for unknown dedup mode, got nil")
	}
}

func TestLoadTelegramRequiresCredentials(t *testing.T) {
	body := minimalConfig + `
telegram:
  enabled: true
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error for enabled telegram without credentials, got nil")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "ETHUSDT,SOLUSDT")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token-from-env")

	c, err := LoadWithEnv(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadWithEnv() error: %v", err)
	}
	if len(c.Feed.Symbols) != 2 || c.Feed.Symbols[0] != "ETHUSDT" {
		t.Errorf("expected symbols from env, got %v", c.Feed.Symbols)
	}
	if c.Telegram.BotToken != "token-from-env" {
		t.Errorf("expected bot token from env, got %q", c.Telegram.BotToken)
	}
}
