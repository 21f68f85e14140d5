package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.InferenceBaseURL != "http://localhost:8000" {
		t.Fatalf("InferenceBaseURL = %q, want default", cfg.InferenceBaseURL)
	}
	if cfg.FrameInterval != 1500*time.Millisecond {
		t.Fatalf("FrameInterval = %v, want 1.5s", cfg.FrameInterval)
	}
	if cfg.TextDebounceWindow != 1500*time.Millisecond {
		t.Fatalf("TextDebounceWindow = %v, want 1.5s", cfg.TextDebounceWindow)
	}
	if cfg.TextMinRunes != 10 {
		t.Fatalf("TextMinRunes = %d, want 10", cfg.TextMinRunes)
	}
	if cfg.InferenceAuthToken != "" {
		t.Fatalf("InferenceAuthToken = %q, want empty default", cfg.InferenceAuthToken)
	}
}

func TestLoadUsesExplicitInferenceSettings(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("INFERENCE_BASE_URL", "http://localhost:7777/infer")
	t.Setenv("INFERENCE_AUTH_TOKEN", " secret-token ")
	t.Setenv("CAPTURE_FRAME_INTERVAL", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.InferenceBaseURL != "http://localhost:7777/infer" {
		t.Fatalf("InferenceBaseURL = %q, want explicit value", cfg.InferenceBaseURL)
	}
	if cfg.InferenceAuthToken != "secret-token" {
		t.Fatalf("InferenceAuthToken = %q, want trimmed value", cfg.InferenceAuthToken)
	}
	if cfg.FrameInterval != 2*time.Second {
		t.Fatalf("FrameInterval = %v, want 2s", cfg.FrameInterval)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("CAPTURE_FRAME_INTERVAL", "0s")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() accepted zero frame interval")
	}

	setCoreEnvEmpty(t)
	t.Setenv("APP_SESSION_INACTIVITY_TIMEOUT", "1s")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() accepted sub-minimum inactivity timeout")
	}

	setCoreEnvEmpty(t)
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "banana")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() accepted invalid bool")
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
		"INFERENCE_BASE_URL",
		"INFERENCE_AUTH_TOKEN",
		"INFERENCE_TIMEOUT",
		"CAPTURE_FRAME_WARMUP",
		"CAPTURE_FRAME_INTERVAL",
		"CAPTURE_TEXT_DEBOUNCE",
		"CAPTURE_TEXT_MIN_RUNES",
		"CAPTURE_FRAME_WIDTH",
		"CAPTURE_FRAME_HEIGHT",
		"DATABASE_URL",
		"JOURNAL_SQLITE_PATH",
		"REC_CACHE_SQLITE_PATH",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
