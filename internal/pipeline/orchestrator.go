package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/steppetalk/voice-terminal/internal/audio"
	"github.com/steppetalk/voice-terminal/internal/display"
	"github.com/steppetalk/voice-terminal/internal/observability"
)

// IdleBanner is the first display line while waiting for a hold
const IdleBanner = "Hold to talk"

// AudioEngine is the half-duplex audio path the pipeline drives
type AudioEngine interface {
	InitCapture() error
	Capture(buf []int16) error
	PlayWAV(data []byte) error
}

// AIClient is the remote speech and chat back-end
type AIClient interface {
	Transcribe(ctx context.Context, pcm []int16, langHint string) (string, error)
	Converse(ctx context.Context, text, userLang, assistantLang string) (string, error)
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Session is the state carried between runs
type Session struct {
	Pair  LanguagePair
	State display.Status
}

// NewSession starts an idle session for pair
func NewSession(pair LanguagePair) Session {
	return Session{Pair: pair, State: display.Idle}
}

// Config holds pipeline timing
type Config struct {
	SampleRate   int
	MaxHold      time.Duration
	MinHold      time.Duration
	Voice        string
	ErrorDwell   time.Duration
	ButtonDwell  time.Duration
	Debounce     time.Duration
	PollInterval time.Duration
}

// DefaultConfig returns the timing used on the terminal
func DefaultConfig() Config {
	return Config{
		SampleRate:   16000,
		MaxHold:      6 * time.Second,
		MinHold:      250 * time.Millisecond,
		Voice:        "marin",
		ErrorDwell:   700 * time.Millisecond,
		ButtonDwell:  150 * time.Millisecond,
		Debounce:     200 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}
}

// Orchestrator runs the capture, transcribe, respond and speak sequence.
// Only one run is ever in progress.
type Orchestrator struct {
	engine  AudioEngine
	client  AIClient
	display display.Display
	buffers Buffers
	config  Config
	logger  zerolog.Logger

	busy  atomic.Bool
	state atomic.Int32

	// sleep and now are swapped out by tests
	sleep func(time.Duration)
	now   func() time.Time
}

// New creates an orchestrator
func New(engine AudioEngine, client AIClient, disp display.Display, buffers Buffers, cfg Config, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		engine:  engine,
		client:  client,
		display: disp,
		buffers: buffers,
		config:  cfg,
		logger:  logger.With().Str("component", "pipeline").Logger(),
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// SampleCount is the number of samples recorded for a hold
func (o *Orchestrator) SampleCount(held time.Duration) int {
	return int(int64(o.config.SampleRate) * held.Milliseconds() / 1000)
}

// Busy reports whether a run is in progress
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// State returns the status most recently shown
func (o *Orchestrator) State() display.Status {
	return display.Status(o.state.Load())
}

// ShowIdle renders the idle banner for the session
func (o *Orchestrator) ShowIdle(s Session) Session {
	return o.show(s, display.Idle, IdleBanner, s.Pair.String())
}

// RunHold processes one released hold of the given length. Holds shorter
// than MinHold are ignored and the session is returned unchanged. Every
// other run ends in Idle; the returned error describes a failed run.
func (o *Orchestrator) RunHold(ctx context.Context, s Session, held time.Duration) (Session, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return s, ErrBusy
	}
	defer o.busy.Store(false)

	if held > o.config.MaxHold {
		held = o.config.MaxHold
	}
	if held < o.config.MinHold {
		observability.RecordDiscardedHold()
		o.logger.Debug().Dur("held", held).Msg("Hold too short, ignoring")
		return s, nil
	}

	runID := observability.NewRunID()
	logger := observability.WithRunID(o.logger, runID)
	metrics := observability.NewRunMetrics(runID)

	logger.Info().
		Dur("held", held).
		Str("pair", s.Pair.String()).
		Msg("Starting run")

	s, perr := o.run(ctx, s, held, logger, metrics)
	if perr != nil {
		line1, line2 := perr.Label()
		s = o.show(s, display.Error, line1, line2)
		metrics.RecordError(perr.Kind.String(), string(perr.Stage))
		metrics.RecordRunEnd("error")
		logger.Warn().
			Err(perr.Err).
			Str("kind", perr.Kind.String()).
			Str("stage", string(perr.Stage)).
			Msg("Run failed")
		o.sleep(o.config.ErrorDwell)
		return o.ShowIdle(s), perr
	}

	metrics.RecordRunEnd("completed")
	logger.Info().Msg("Run completed")
	return o.ShowIdle(s), nil
}

func (o *Orchestrator) run(ctx context.Context, s Session, held time.Duration, logger zerolog.Logger, metrics *observability.RunMetrics) (Session, *Error) {
	pair := s.Pair

	samples := o.SampleCount(held)
	pcm, release, err := o.buffers.PCM(samples)
	if err != nil {
		return s, newError(StageAllocate, err)
	}
	defer release()

	// Capture
	s = o.show(s, display.Listening, pair.String(), "Speak...")
	metrics.RecordStageStart(string(StageCapture))
	if err := o.engine.InitCapture(); err != nil {
		metrics.RecordStageEnd(string(StageCapture), false)
		return s, &Error{Kind: CaptureFailure, Stage: StageCapture, Err: err}
	}
	if err := o.engine.Capture(pcm); err != nil {
		metrics.RecordStageEnd(string(StageCapture), false)
		return s, &Error{Kind: CaptureFailure, Stage: StageCapture, Err: err}
	}
	metrics.RecordStageEnd(string(StageCapture), true)
	metrics.RecordAudioBytes("in", int64(samples)*2)
	level := audio.AnalyzeLevel(pcm, audio.DefaultLevelConfig())
	logger.Debug().
		Int("samples", samples).
		Float64("rms", level.RMS).
		Int("peak", level.Peak).
		Float64("voiced_ratio", level.VoicedRatio()).
		Msg("Captured speech")
	if level.Silent() {
		logger.Info().Msg("Recording is silent, sending anyway")
	}

	// Transcribe
	s = o.show(s, display.Processing, "STT...", pair.String())
	metrics.RecordStageStart(string(StageTranscribe))
	heard, err := o.client.Transcribe(ctx, pcm, string(pair.Source))
	release()
	metrics.RecordStageEnd(string(StageTranscribe), err == nil)
	if err != nil {
		return s, newError(StageTranscribe, err)
	}
	logger.Info().Str("transcript", heard).Msg("Transcribed")

	// Chat
	s = o.show(s, display.Processing, "CHAT...", heard)
	metrics.RecordStageStart(string(StageChat))
	reply, err := o.client.Converse(ctx, heard, string(pair.Source), string(pair.Dest))
	metrics.RecordStageEnd(string(StageChat), err == nil)
	if err != nil {
		return s, newError(StageChat, err)
	}
	logger.Info().Str("reply", reply).Msg("Chat reply")

	// Synthesize
	s = o.show(s, display.Processing, "TTS...", reply)
	metrics.RecordStageStart(string(StageSynthesize))
	wav, err := o.client.Synthesize(ctx, reply, o.config.Voice)
	metrics.RecordStageEnd(string(StageSynthesize), err == nil)
	if err != nil {
		return s, newError(StageSynthesize, err)
	}
	metrics.RecordAudioBytes("out", int64(len(wav)))

	// Play, then hand the device back to the microphone
	s = o.show(s, display.Playing, "Playing...", pair.String())
	metrics.RecordStageStart(string(StagePlayback))
	playErr := o.engine.PlayWAV(wav)
	metrics.RecordStageEnd(string(StagePlayback), playErr == nil)

	if err := o.engine.InitCapture(); err != nil {
		logger.Warn().Err(err).Msg("Failed to restore capture mode")
	}

	if playErr != nil {
		return s, newError(StagePlayback, playErr)
	}
	return s, nil
}

// show updates the display and the session state together
func (o *Orchestrator) show(s Session, status display.Status, line1, line2 string) Session {
	o.display.SetStatus(status, line1, line2)
	observability.SetPipelineState(int(status))
	o.state.Store(int32(status))
	s.State = status
	return s
}
