package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the check-in capture service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	InferenceBaseURL   string
	InferenceAuthToken string
	InferenceTimeout   time.Duration

	FrameWarmup        time.Duration
	FrameInterval      time.Duration
	TextDebounceWindow time.Duration
	TextMinRunes       int

	FrameWidth  int
	FrameHeight int

	DatabaseURL        string
	JournalSQLitePath  string
	RecCacheSQLitePath string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "attune"),
		AllowAnyOrigin:   false,
		InferenceBaseURL: envOrDefault("INFERENCE_BASE_URL", "http://localhost:8000"),
		// Token is optional for local single-user deployments.
		InferenceAuthToken: stringsTrimSpace("INFERENCE_AUTH_TOKEN"),
		DatabaseURL:        stringsTrimSpace("DATABASE_URL"),
		JournalSQLitePath:  envOrDefault("JOURNAL_SQLITE_PATH", ".data/journal.db"),
		RecCacheSQLitePath: envOrDefault("REC_CACHE_SQLITE_PATH", ".data/reccache.db"),

		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
		InferenceTimeout:         10 * time.Second,
		// Skip the camera's auto-exposure settling window before sampling.
		FrameWarmup:        time.Second,
		FrameInterval:      1500 * time.Millisecond,
		TextDebounceWindow: 1500 * time.Millisecond,
		TextMinRunes:       10,
		FrameWidth:         640,
		FrameHeight:        480,
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
	cfg.InferenceTimeout, err = durationFromEnv("INFERENCE_TIMEOUT", cfg.InferenceTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.FrameWarmup, err = durationFromEnv("CAPTURE_FRAME_WARMUP", cfg.FrameWarmup)
	if err != nil {
		return Config{}, err
	}
	cfg.FrameInterval, err = durationFromEnv("CAPTURE_FRAME_INTERVAL", cfg.FrameInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.TextDebounceWindow, err = durationFromEnv("CAPTURE_TEXT_DEBOUNCE", cfg.TextDebounceWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.TextMinRunes, err = intFromEnv("CAPTURE_TEXT_MIN_RUNES", cfg.TextMinRunes)
	if err != nil {
		return Config{}, err
	}
	cfg.FrameWidth, err = intFromEnv("CAPTURE_FRAME_WIDTH", cfg.FrameWidth)
	if err != nil {
		return Config{}, err
	}
	cfg.FrameHeight, err = intFromEnv("CAPTURE_FRAME_HEIGHT", cfg.FrameHeight)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.InferenceBaseURL) == "" {
		return Config{}, fmt.Errorf("INFERENCE_BASE_URL must not be empty")
	}
	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.InferenceTimeout <= 0 {
		return Config{}, fmt.Errorf("INFERENCE_TIMEOUT must be positive")
	}
	if cfg.FrameWarmup < 0 {
		return Config{}, fmt.Errorf("CAPTURE_FRAME_WARMUP must be >= 0")
	}
	if cfg.FrameInterval <= 0 {
		return Config{}, fmt.Errorf("CAPTURE_FRAME_INTERVAL must be positive")
	}
	if cfg.TextDebounceWindow <= 0 {
		return Config{}, fmt.Errorf("CAPTURE_TEXT_DEBOUNCE must be positive")
	}
	if cfg.TextMinRunes < 0 {
		return Config{}, fmt.Errorf("CAPTURE_TEXT_MIN_RUNES must be >= 0")
	}
	if cfg.FrameWidth <= 0 || cfg.FrameHeight <= 0 {
		return Config{}, fmt.Errorf("CAPTURE_FRAME_WIDTH and CAPTURE_FRAME_HEIGHT must be positive")
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
