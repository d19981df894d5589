package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.SilenceThreshold != 2*time.Second {
		t.Fatalf("SilenceThreshold = %v, want 2s", cfg.SilenceThreshold)
	}
	if cfg.StopGraceTimeout != 5*time.Second {
		t.Fatalf("StopGraceTimeout = %v, want 5s", cfg.StopGraceTimeout)
	}
	if cfg.TerminalRows != 24 || cfg.TerminalCols != 80 {
		t.Fatalf("geometry = %dx%d, want 24x80", cfg.TerminalRows, cfg.TerminalCols)
	}
	if cfg.AuthEnabled {
		t.Fatalf("AuthEnabled = true, want false by default")
	}
	if cfg.DefaultCLI != "claude" {
		t.Fatalf("DefaultCLI = %q, want %q", cfg.DefaultCLI, "claude")
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("VOXTERM_SILENCE_THRESHOLD", "750ms")
	t.Setenv("VOXTERM_LONGEST_MATCH", "true")
	t.Setenv("VOXTERM_TERMINAL_ROWS", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.SilenceThreshold != 750*time.Millisecond {
		t.Fatalf("SilenceThreshold = %v, want 750ms", cfg.SilenceThreshold)
	}
	if !cfg.LongestMatch {
		t.Fatalf("LongestMatch = false, want true")
	}
	if cfg.TerminalRows != 50 {
		t.Fatalf("TerminalRows = %d, want 50", cfg.TerminalRows)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VOXTERM_SILENCE_THRESHOLD", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want parse error")
	}
}

func TestLoadRejectsShortInactivityTimeout(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_SESSION_INACTIVITY_TIMEOUT", "1s")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want validation error")
	}
}

func TestLoadRequiresSecretWhenAuthEnabled(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VOXTERM_AUTH_ENABLED", "true")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want missing secret error")
	}

	t.Setenv("VOXTERM_JWT_SECRET", "s3cret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.AuthEnabled || cfg.JWTSecret != "s3cret" {
		t.Fatalf("unexpected auth config: %+v", cfg)
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"VOXTERM_DEFAULT_CLI",
		"VOXTERM_TERMINAL_BACKEND",
		"VOXTERM_TERMINAL_ROWS",
		"VOXTERM_TERMINAL_COLS",
		"VOXTERM_STOP_GRACE_TIMEOUT",
		"VOXTERM_SILENCE_THRESHOLD",
		"VOXTERM_LONGEST_MATCH",
		"VOXTERM_AUTH_ENABLED",
		"VOXTERM_JWT_SECRET",
		"VOXTERM_API_KEY",
		"VOXTERM_TOKEN_TTL",
		"VOXTERM_RATE_LIMIT",
		"DATABASE_URL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
