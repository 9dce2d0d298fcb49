package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voice terminal
type Config struct {
	// Remote AI back-end. Paths are appended to this base (e.g. http://192.168.1.49:8000)
	ServerBaseURL      string `envconfig:"SERVER_BASE_URL" required:"true"`
	HealthTimeoutMs    int    `envconfig:"HEALTH_TIMEOUT_MS" default:"5000"`     // Startup /health probe
	InferenceTimeoutMs int    `envconfig:"INFERENCE_TIMEOUT_MS" default:"60000"` // STT, chat and TTS calls
	HealthMaxAttempts  int    `envconfig:"HEALTH_MAX_ATTEMPTS" default:"1"`      // Probes before giving up at startup
	HealthBackoffMs    int    `envconfig:"HEALTH_BACKOFF_MS" default:"1000"`     // Initial wait between probes
	MaxAudioBytes      int    `envconfig:"MAX_AUDIO_BYTES" default:"4194304"`    // Largest TTS body accepted

	// Local status server (panel websocket, health, metrics)
	StatusPort string `envconfig:"STATUS_PORT" default:"8090"`

	// Audio configuration
	AudioBackend     string `envconfig:"AUDIO_BACKEND" default:"memory"` // portaudio, memory
	AudioCaptureFile string `envconfig:"AUDIO_CAPTURE_FILE" default:""`  // WAV fed to the memory backend
	MicSampleRate    int    `envconfig:"MIC_SAMPLE_RATE" default:"16000"`
	MaxRecordSec     int    `envconfig:"MAX_RECORD_SEC" default:"6"`
	MinHoldMs        int    `envconfig:"MIN_HOLD_MS" default:"250"`
	SettleMs         int    `envconfig:"SETTLE_MS" default:"30"` // After a mode switch
	TailMs           int    `envconfig:"TAIL_MS" default:"80"`   // After the last playback chunk

	// Conversation defaults
	TTSVoice   string `envconfig:"TTS_VOICE" default:"marin"`
	SourceLang string `envconfig:"SOURCE_LANG" default:"ru"`
	DestLang   string `envconfig:"DEST_LANG" default:"en"`

	// Interaction timing
	ErrorDwellMs   int `envconfig:"ERROR_DWELL_MS" default:"700"`
	ButtonDwellMs  int `envconfig:"BUTTON_DWELL_MS" default:"150"`
	DebounceMs     int `envconfig:"DEBOUNCE_MS" default:"200"`
	PollIntervalMs int `envconfig:"POLL_INTERVAL_MS" default:"5"`
	LCDCols        int `envconfig:"LCD_COLS" default:"16"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

var supportedLanguages = map[string]bool{"ru": true, "en": true, "kk": true}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values envconfig cannot express as tags
func (c *Config) Validate() error {
	if c.ServerBaseURL == "" {
		return fmt.Errorf("SERVER_BASE_URL is required")
	}
	if !supportedLanguages[c.SourceLang] {
		return fmt.Errorf("unsupported SOURCE_LANG %q", c.SourceLang)
	}
	if !supportedLanguages[c.DestLang] {
		return fmt.Errorf("unsupported DEST_LANG %q", c.DestLang)
	}
	if c.SourceLang == c.DestLang {
		return fmt.Errorf("SOURCE_LANG and DEST_LANG must differ, both are %q", c.SourceLang)
	}
	if c.MicSampleRate <= 0 {
		return fmt.Errorf("MIC_SAMPLE_RATE must be positive, got %d", c.MicSampleRate)
	}
	if c.MaxRecordSec <= 0 {
		return fmt.Errorf("MAX_RECORD_SEC must be positive, got %d", c.MaxRecordSec)
	}
	if c.MinHoldMs < 0 || time.Duration(c.MinHoldMs)*time.Millisecond > c.MaxHold() {
		return fmt.Errorf("MIN_HOLD_MS must be between 0 and MAX_RECORD_SEC, got %d", c.MinHoldMs)
	}
	if c.InferenceTimeoutMs <= 0 || c.HealthTimeoutMs <= 0 {
		return fmt.Errorf("request timeouts must be positive")
	}
	if c.MaxAudioBytes <= 0 {
		return fmt.Errorf("MAX_AUDIO_BYTES must be positive, got %d", c.MaxAudioBytes)
	}
	if c.LCDCols <= 0 {
		return fmt.Errorf("LCD_COLS must be positive, got %d", c.LCDCols)
	}
	switch c.AudioBackend {
	case "portaudio", "memory":
	default:
		return fmt.Errorf("unknown AUDIO_BACKEND %q (want portaudio or memory)", c.AudioBackend)
	}
	return nil
}

// MaxHold is the longest recording a single hold can produce
func (c *Config) MaxHold() time.Duration {
	return time.Duration(c.MaxRecordSec) * time.Second
}

// MinHold is the shortest press that is treated as speech
func (c *Config) MinHold() time.Duration {
	return time.Duration(c.MinHoldMs) * time.Millisecond
}

// HealthTimeout bounds the startup liveness probe
func (c *Config) HealthTimeout() time.Duration {
	return time.Duration(c.HealthTimeoutMs) * time.Millisecond
}

// InferenceTimeout bounds each STT, chat and TTS request
func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutMs) * time.Millisecond
}

// Millis converts one of the *Ms fields to a duration
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
