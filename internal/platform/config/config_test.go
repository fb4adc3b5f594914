package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Expected a missing .env to be ignored, got %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Expected :8080, got %s", cfg.Addr)
	}
	if cfg.Game.MinPlayers != 5 || cfg.Game.MaxPlayers != 16 {
		t.Errorf("Expected seats 5-16, got %d-%d", cfg.Game.MinPlayers, cfg.Game.MaxPlayers)
	}
	if cfg.Game.NightDuration != 60*time.Second {
		t.Errorf("Expected a 60s night, got %v", cfg.Game.NightDuration)
	}
	if cfg.Limits.MinCommandGap != 250*time.Millisecond {
		t.Errorf("Expected a 250ms command gap, got %v", cfg.Limits.MinCommandGap)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("CDO_ADDR", ":9090")
	t.Setenv("CDO_GAME_ROUND_LIMIT", "3")
	t.Setenv("CDO_GAME_VOTE_DURATION", "5s")
	t.Setenv("CDO_DB_MAX_OPEN_CONNS", "4")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Expected :9090, got %s", cfg.Addr)
	}
	if cfg.Game.RoundLimit != 3 {
		t.Errorf("Expected round limit 3, got %d", cfg.Game.RoundLimit)
	}
	if cfg.Game.VoteDuration != 5*time.Second {
		t.Errorf("Expected a 5s vote, got %v", cfg.Game.VoteDuration)
	}
	if cfg.DB.MaxOpenConns != 4 {
		t.Errorf("Expected 4 open conns, got %d", cfg.DB.MaxOpenConns)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("CDO_LOG_LEVEL=debug\nCDO_BUFFER_OUTBOX=8\n"), 0o600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("CDO_LOG_LEVEL")
		os.Unsetenv("CDO_BUFFER_OUTBOX")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected debug from the file, got %s", cfg.LogLevel)
	}
	if cfg.Buffers.Outbox != 8 {
		t.Errorf("Expected outbox 8 from the file, got %d", cfg.Buffers.Outbox)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"CDO_GAME_MIN_PLAYERS":    "20",
		"CDO_GAME_NIGHT_DURATION": "0s",
		"CDO_GAME_ROUND_LIMIT":    "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
				t.Errorf("Expected %s=%s to be rejected", key, value)
			}
		})
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("CDO_GAME_VOTE_DURATION", "soon")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Errorf("Expected a malformed duration to fail")
	}
}
