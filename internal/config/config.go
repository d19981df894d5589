package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice terminal service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	DefaultCLI       string
	TerminalBackend  string
	TerminalRows     int
	TerminalCols     int
	StopGraceTimeout time.Duration

	SilenceThreshold time.Duration
	LongestMatch     bool

	AuthEnabled bool
	JWTSecret   string
	APIKey      string
	TokenTTL    time.Duration
	RateLimit   int

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "voxterm"),
		AllowAnyOrigin:           false,
		DefaultCLI:               envOrDefault("VOXTERM_DEFAULT_CLI", "claude"),
		TerminalBackend:          envOrDefault("VOXTERM_TERMINAL_BACKEND", "auto"),
		TerminalRows:             24,
		TerminalCols:             80,
		StopGraceTimeout:         5 * time.Second,
		SilenceThreshold:         2 * time.Second,
		LongestMatch:             false,
		AuthEnabled:              false,
		JWTSecret:                stringsTrimSpace("VOXTERM_JWT_SECRET"),
		APIKey:                   stringsTrimSpace("VOXTERM_API_KEY"),
		TokenTTL:                 24 * time.Hour,
		RateLimit:                100,
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.StopGraceTimeout, err = durationFromEnv("VOXTERM_STOP_GRACE_TIMEOUT", cfg.StopGraceTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SilenceThreshold, err = durationFromEnv("VOXTERM_SILENCE_THRESHOLD", cfg.SilenceThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.TokenTTL, err = durationFromEnv("VOXTERM_TOKEN_TTL", cfg.TokenTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.LongestMatch, err = boolFromEnv("VOXTERM_LONGEST_MATCH", cfg.LongestMatch)
	if err != nil {
		return Config{}, err
	}
	cfg.AuthEnabled, err = boolFromEnv("VOXTERM_AUTH_ENABLED", cfg.AuthEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.TerminalRows, err = intFromEnv("VOXTERM_TERMINAL_ROWS", cfg.TerminalRows)
	if err != nil {
		return Config{}, err
	}
	cfg.TerminalCols, err = intFromEnv("VOXTERM_TERMINAL_COLS", cfg.TerminalCols)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimit, err = intFromEnv("VOXTERM_RATE_LIMIT", cfg.RateLimit)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.SilenceThreshold <= 0 {
		return Config{}, fmt.Errorf("VOXTERM_SILENCE_THRESHOLD must be positive")
	}
	if cfg.StopGraceTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXTERM_STOP_GRACE_TIMEOUT must be positive")
	}
	if cfg.TerminalRows <= 0 || cfg.TerminalCols <= 0 {
		return Config{}, fmt.Errorf("terminal geometry must be positive")
	}
	if cfg.RateLimit <= 0 {
		return Config{}, fmt.Errorf("VOXTERM_RATE_LIMIT must be positive")
	}
	if cfg.AuthEnabled && cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("VOXTERM_JWT_SECRET is required when VOXTERM_AUTH_ENABLED is set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
