package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Set required environment variables
	os.Setenv("SERVER_BASE_URL", "http://192.168.1.49:8000")
	defer os.Unsetenv("SERVER_BASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ServerBaseURL != "http://192.168.1.49:8000" {
		t.Errorf("Expected ServerBaseURL 'http://192.168.1.49:8000', got '%s'", cfg.ServerBaseURL)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	// Clear environment variables
	os.Unsetenv("SERVER_BASE_URL")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when SERVER_BASE_URL is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("SERVER_BASE_URL", "http://localhost:8000")
	defer os.Unsetenv("SERVER_BASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Check defaults
	if cfg.StatusPort != "8090" {
		t.Errorf("Expected default StatusPort '8090', got '%s'", cfg.StatusPort)
	}

	if cfg.MicSampleRate != 16000 {
		t.Errorf("Expected default MicSampleRate 16000, got %d", cfg.MicSampleRate)
	}

	if cfg.MaxHold() != 6*time.Second {
		t.Errorf("Expected default MaxHold 6s, got %v", cfg.MaxHold())
	}

	if cfg.MinHold() != 250*time.Millisecond {
		t.Errorf("Expected default MinHold 250ms, got %v", cfg.MinHold())
	}

	if cfg.InferenceTimeout() != 60*time.Second {
		t.Errorf("Expected default InferenceTimeout 60s, got %v", cfg.InferenceTimeout())
	}

	if cfg.HealthTimeout() != 5*time.Second {
		t.Errorf("Expected default HealthTimeout 5s, got %v", cfg.HealthTimeout())
	}

	if cfg.TTSVoice != "marin" {
		t.Errorf("Expected default TTSVoice 'marin', got '%s'", cfg.TTSVoice)
	}

	if cfg.SourceLang != "ru" || cfg.DestLang != "en" {
		t.Errorf("Expected default pair ru->en, got %s->%s", cfg.SourceLang, cfg.DestLang)
	}

	if cfg.AudioBackend != "memory" {
		t.Errorf("Expected default AudioBackend 'memory', got '%s'", cfg.AudioBackend)
	}

	if cfg.LCDCols != 16 {
		t.Errorf("Expected default LCDCols 16, got %d", cfg.LCDCols)
	}

	if cfg.HealthMaxAttempts != 1 {
		t.Errorf("Expected a single startup health probe by default, got %d", cfg.HealthMaxAttempts)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("SERVER_BASE_URL", "http://localhost:8000")
	os.Setenv("TTS_VOICE", "alloy")
	defer os.Unsetenv("SERVER_BASE_URL")
	defer os.Unsetenv("TTS_VOICE")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.TTSVoice != "alloy" {
		t.Errorf("Expected TTSVoice 'alloy', got '%s'", cfg.TTSVoice)
	}
}

func TestLoad_InvalidLanguages(t *testing.T) {
	tests := []struct {
		name string
		src  string
		dst  string
	}{
		{"unknown source", "de", "en"},
		{"unknown destination", "ru", "fr"},
		{"same language", "kk", "kk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SERVER_BASE_URL", "http://localhost:8000")
			t.Setenv("SOURCE_LANG", tt.src)
			t.Setenv("DEST_LANG", tt.dst)

			if _, err := LoadFromEnv(); err == nil {
				t.Errorf("Expected error for pair %s->%s", tt.src, tt.dst)
			}
		})
	}
}

func TestLoad_InvalidBackend(t *testing.T) {
	t.Setenv("SERVER_BASE_URL", "http://localhost:8000")
	t.Setenv("AUDIO_BACKEND", "alsa")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for unknown audio backend")
	}
}

func TestLoad_MinHoldAboveMax(t *testing.T) {
	t.Setenv("SERVER_BASE_URL", "http://localhost:8000")
	t.Setenv("MAX_RECORD_SEC", "1")
	t.Setenv("MIN_HOLD_MS", "1500")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error when MIN_HOLD_MS exceeds MAX_RECORD_SEC")
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	os.Setenv("SERVER_BASE_URL", "http://localhost:8000")
	// Clear LOG_LEVEL to ensure we get the default
	os.Unsetenv("LOG_LEVEL")
	defer os.Unsetenv("SERVER_BASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}

	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}
