package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/steppetalk/voice-terminal/internal/aiclient"
	"github.com/steppetalk/voice-terminal/internal/audio"
	"github.com/steppetalk/voice-terminal/internal/config"
	"github.com/steppetalk/voice-terminal/internal/display"
	"github.com/steppetalk/voice-terminal/internal/observability"
	"github.com/steppetalk/voice-terminal/internal/panel"
	"github.com/steppetalk/voice-terminal/internal/pipeline"
	"github.com/steppetalk/voice-terminal/internal/resilience"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("server_base_url", cfg.ServerBaseURL).
		Str("status_port", cfg.StatusPort).
		Str("audio_backend", cfg.AudioBackend).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Voice terminal starting")

	pair, err := pipeline.NewLanguagePair(cfg.SourceLang, cfg.DestLang)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid language pair")
	}

	// Audio
	audioLogger := observability.ComponentLogger("audio")
	dev, closeDevice, err := openDevice(cfg, audioLogger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open audio device")
	}
	defer func() {
		if err := closeDevice(); err != nil {
			logger.Warn().Err(err).Msg("Failed to release audio backend")
		}
	}()

	engine := audio.NewEngine(dev, audio.EngineConfig{
		CaptureSampleRate: cfg.MicSampleRate,
		SettleDelay:       config.Millis(cfg.SettleMs),
		TailDelay:         config.Millis(cfg.TailMs),
	}, logger)
	defer engine.Close()

	// Remote back-end
	client := aiclient.NewClient(aiclient.NewHTTPTransport(cfg.ServerBaseURL), aiclient.Config{
		HealthTimeout:    cfg.HealthTimeout(),
		InferenceTimeout: cfg.InferenceTimeout(),
		MaxAudioBytes:    cfg.MaxAudioBytes,
	}, logger)

	// Display and buttons
	hub := panel.NewHub(cfg.LCDCols, logger)
	screen := display.Multi{display.NewLogDisplay(logger, cfg.LCDCols), hub}

	orch := pipeline.New(engine, client, screen, pipeline.NewBudgetBuffers(int64(cfg.MaxAudioBytes)), pipeline.Config{
		SampleRate:   cfg.MicSampleRate,
		MaxHold:      cfg.MaxHold(),
		MinHold:      cfg.MinHold(),
		Voice:        cfg.TTSVoice,
		ErrorDwell:   config.Millis(cfg.ErrorDwellMs),
		ButtonDwell:  config.Millis(cfg.ButtonDwellMs),
		Debounce:     config.Millis(cfg.DebounceMs),
		PollInterval: config.Millis(cfg.PollIntervalMs),
	}, logger)

	// Create status server
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/health", observability.HealthCheckHandler(func() string {
		return orch.State().String()
	}))
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"backend": client.Health,
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.StatusPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverLogger := observability.ComponentLogger("status_server")
	go func() {
		serverLogger.Info().
			Str("port", cfg.StatusPort).
			Str("panel", fmt.Sprintf("ws://localhost:%s/ws", cfg.StatusPort)).
			Msg("Status server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal().Err(err).Msg("Status server failed to start")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Startup gate: the back-end must answer /health before holds are accepted
	screen.SetStatus(display.Idle, "/health...", "")
	err = resilience.WaitUntil(ctx, client.Health, &resilience.WaitConfig{
		MaxAttempts: cfg.HealthMaxAttempts,
		Backoff:     config.Millis(cfg.HealthBackoffMs),
		Multiplier:  2.0,
		MaxBackoff:  10 * time.Second,
	}, logger)

	switch {
	case err == nil:
		if err := engine.InitCapture(); err != nil {
			logger.Error().Err(err).Msg("Failed to open microphone")
			screen.SetStatus(display.Error, "mic", "init fail")
			<-ctx.Done()
			break
		}
		session := orch.Run(ctx, hub, pipeline.NewSession(pair))
		logger.Info().Str("pair", session.Pair.String()).Msg("Input loop stopped")
	case ctx.Err() != nil:
	default:
		code := 0
		var reqErr *aiclient.RequestError
		if errors.As(err, &reqErr) {
			code = reqErr.StatusCode
		}
		screen.SetStatus(display.Error, "health", fmt.Sprintf("code %d", code))
		logger.Error().Err(err).Int("code", code).Msg("Back-end health check failed, not arming")
		<-ctx.Done()
	}

	logger.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		serverLogger.Error().Err(err).Msg("Status server forced to shutdown")
	}

	logger.Info().Msg("Voice terminal exited gracefully")
}

// openDevice selects the audio backend. The returned func releases it.
func openDevice(cfg *config.Config, logger zerolog.Logger) (audio.Device, func() error, error) {
	switch cfg.AudioBackend {
	case "portaudio":
		return audio.OpenPortAudio()
	default:
		if cfg.AudioCaptureFile == "" {
			logger.Info().Msg("Memory audio backend capturing silence")
			return audio.NewMemoryDevice(nil), func() error { return nil }, nil
		}
		dev, err := audio.NewMemoryDeviceFromWAV(cfg.AudioCaptureFile)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("file", cfg.AudioCaptureFile).Msg("Memory audio backend replaying capture file")
		return dev, func() error { return nil }, nil
	}
}
