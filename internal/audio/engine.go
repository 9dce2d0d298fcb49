package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Engine errors
var (
	// ErrCaptureFailed is returned when the device fails mid-capture.
	ErrCaptureFailed = errors.New("capture failed")

	// ErrPlaybackFailed is returned when the device rejects playback data.
	ErrPlaybackFailed = errors.New("playback failed")

	// ErrWrongMode is returned when capturing or playing without the matching mode.
	ErrWrongMode = errors.New("audio engine is in the wrong mode")

	// ErrUnsupportedFormat is returned for payloads the speaker path cannot play.
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported channel layout", ErrInvalidWAV)
)

const (
	// CaptureChunkSamples bounds a single device read
	CaptureChunkSamples = 1024

	// PlaybackChunkSamples bounds a single stereo device write
	PlaybackChunkSamples = 1024

	// MonoBatchFrames is the size of the mono-to-stereo scratch batch
	MonoBatchFrames = 512

	// maxStalledReads is how many consecutive empty reads count as a dead device
	maxStalledReads = 64
)

// Device is a half-duplex PCM peripheral. Only one of capture or playback
// may be open at a time; Close tears down whichever is open.
type Device interface {
	// OpenCapture configures single-channel 16-bit capture
	OpenCapture(sampleRate int) error

	// OpenPlayback configures interleaved stereo 16-bit output
	OpenPlayback(sampleRate int) error

	// Read fills p with captured samples and returns how many were written
	Read(p []int16) (int, error)

	// Write queues interleaved stereo samples and returns how many were accepted
	Write(p []int16) (int, error)

	// Close releases the active mode, if any
	Close() error
}

// Mode is the mode the device is currently configured for
type Mode int

const (
	ModeNone Mode = iota
	ModeCapture
	ModePlayback
)

func (m Mode) String() string {
	switch m {
	case ModeCapture:
		return "capture"
	case ModePlayback:
		return "playback"
	default:
		return "none"
	}
}

// EngineConfig holds timing and format settings for the engine
type EngineConfig struct {
	CaptureSampleRate int           // Mono capture rate (16 kHz)
	SettleDelay       time.Duration // Wait after every mode switch
	TailDelay         time.Duration // Wait after the last playback chunk
}

// DefaultEngineConfig returns the timings the speaker amplifier needs to avoid clicks
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CaptureSampleRate: 16000,
		SettleDelay:       30 * time.Millisecond,
		TailDelay:         80 * time.Millisecond,
	}
}

// Engine drives a Device in either capture or playback mode, never both
type Engine struct {
	dev    Device
	config EngineConfig
	logger zerolog.Logger

	mu           sync.Mutex
	mode         Mode
	playbackRate int

	// sleep is swapped out by tests
	sleep func(time.Duration)
}

// NewEngine creates an engine over dev. No mode is active until InitCapture or InitPlayback.
func NewEngine(dev Device, cfg EngineConfig, logger zerolog.Logger) *Engine {
	if cfg.CaptureSampleRate <= 0 {
		cfg.CaptureSampleRate = DefaultEngineConfig().CaptureSampleRate
	}
	return &Engine{
		dev:    dev,
		config: cfg,
		logger: logger.With().Str("component", "audio").Logger(),
		sleep:  time.Sleep,
	}
}

// Mode returns the currently active mode
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// CaptureSampleRate is the fixed capture rate
func (e *Engine) CaptureSampleRate() int {
	return e.config.CaptureSampleRate
}

// InitCapture switches the device to mono capture
func (e *Engine) InitCapture() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.teardownLocked(); err != nil {
		return err
	}
	if err := e.dev.OpenCapture(e.config.CaptureSampleRate); err != nil {
		return fmt.Errorf("%w: failed to open capture: %v", ErrCaptureFailed, err)
	}
	e.mode = ModeCapture
	e.logger.Debug().Int("sample_rate", e.config.CaptureSampleRate).Msg("Capture mode active")
	e.sleep(e.config.SettleDelay)
	return nil
}

// InitPlayback switches the device to stereo output at sampleRate
func (e *Engine) InitPlayback(sampleRate int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initPlaybackLocked(sampleRate)
}

func (e *Engine) initPlaybackLocked(sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, sampleRate)
	}
	if err := e.teardownLocked(); err != nil {
		return err
	}
	if err := e.dev.OpenPlayback(sampleRate); err != nil {
		return fmt.Errorf("%w: failed to open playback: %v", ErrPlaybackFailed, err)
	}
	e.mode = ModePlayback
	e.playbackRate = sampleRate
	e.logger.Debug().Int("sample_rate", sampleRate).Msg("Playback mode active")
	e.sleep(e.config.SettleDelay)
	return nil
}

// teardownLocked closes the active mode before another is installed
func (e *Engine) teardownLocked() error {
	if e.mode == ModeNone {
		return nil
	}
	prev := e.mode
	e.mode = ModeNone
	if err := e.dev.Close(); err != nil {
		return fmt.Errorf("failed to tear down %s mode: %w", prev, err)
	}
	return nil
}

// Capture blocks until len(buf) samples have been read from the device
func (e *Engine) Capture(buf []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode != ModeCapture {
		return fmt.Errorf("%w: capture requested in %s mode", ErrWrongMode, e.mode)
	}

	got := 0
	stalled := 0
	for got < len(buf) {
		end := got + CaptureChunkSamples
		if end > len(buf) {
			end = len(buf)
		}

		n, err := e.dev.Read(buf[got:end])
		if err != nil {
			return fmt.Errorf("%w after %d/%d samples: %v", ErrCaptureFailed, got, len(buf), err)
		}
		if n == 0 {
			stalled++
			if stalled >= maxStalledReads {
				return fmt.Errorf("%w after %d/%d samples: %v", ErrCaptureFailed, got, len(buf), io.ErrNoProgress)
			}
			continue
		}
		stalled = 0
		got += n
	}
	return nil
}

// Play writes a 16-bit little-endian payload described by desc.
// Mono payloads are duplicated into both stereo channels.
func (e *Engine) Play(pcm []byte, desc WavDescriptor) error {
	if desc.BitsPerSample != 16 {
		return fmt.Errorf("%w (got %d)", ErrBitDepth, desc.BitsPerSample)
	}
	if desc.Channels != 1 && desc.Channels != 2 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, desc.Channels)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.initPlaybackLocked(int(desc.SampleRate)); err != nil {
		return err
	}

	var err error
	if desc.Channels == 2 {
		err = e.writeStereoLocked(pcm)
	} else {
		err = e.writeMonoLocked(pcm)
	}
	if err != nil {
		return err
	}

	e.sleep(e.config.TailDelay)
	return nil
}

// PlayWAV parses a RIFF/WAVE buffer and plays its data chunk
func (e *Engine) PlayWAV(data []byte) error {
	desc, err := ParseWAV(data)
	if err != nil {
		return err
	}
	e.logger.Debug().
		Uint32("sample_rate", desc.SampleRate).
		Uint16("channels", desc.Channels).
		Int("frames", desc.Frames()).
		Msg("Playing WAV")
	return e.Play(desc.Payload(data), desc)
}

func (e *Engine) writeStereoLocked(pcm []byte) error {
	samples := BytesToSamples(pcm)
	samples = samples[:len(samples)-len(samples)%2]

	for off := 0; off < len(samples); off += PlaybackChunkSamples {
		end := off + PlaybackChunkSamples
		if end > len(samples) {
			end = len(samples)
		}
		if err := e.writeAllLocked(samples[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) writeMonoLocked(pcm []byte) error {
	mono := BytesToSamples(pcm)
	stereo := make([]int16, MonoBatchFrames*2)

	for i := 0; i < len(mono); i += MonoBatchFrames {
		end := i + MonoBatchFrames
		if end > len(mono) {
			end = len(mono)
		}
		n, err := DuplicateMono(stereo, mono[i:end])
		if err != nil {
			return err
		}
		if err := e.writeAllLocked(stereo[:n]); err != nil {
			return err
		}
	}
	return nil
}

// writeAllLocked blocks until the device has accepted every sample of chunk
func (e *Engine) writeAllLocked(chunk []int16) error {
	written := 0
	stalled := 0
	for written < len(chunk) {
		n, err := e.dev.Write(chunk[written:])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
		}
		if n == 0 {
			stalled++
			if stalled >= maxStalledReads {
				return fmt.Errorf("%w: %v", ErrPlaybackFailed, io.ErrNoProgress)
			}
			continue
		}
		stalled = 0
		written += n
	}
	return nil
}

// Close tears down whichever mode is active
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.teardownLocked()
}
