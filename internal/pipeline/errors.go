package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/steppetalk/voice-terminal/internal/aiclient"
	"github.com/steppetalk/voice-terminal/internal/audio"
)

var (
	// ErrBusy is returned when a hold arrives while another run is in progress.
	ErrBusy = errors.New("pipeline is busy")

	// ErrNoBuffer is returned when an audio buffer cannot be obtained.
	ErrNoBuffer = errors.New("audio buffer unavailable")
)

// Kind classifies a pipeline failure
type Kind int

const (
	AllocationFailure Kind = iota + 1
	CaptureFailure
	TransportFailure
	EmptyResult
	FormatInvalid
	PlaybackFailure
)

func (k Kind) String() string {
	switch k {
	case AllocationFailure:
		return "allocation_failure"
	case CaptureFailure:
		return "capture_failure"
	case TransportFailure:
		return "transport_failure"
	case EmptyResult:
		return "empty_result"
	case FormatInvalid:
		return "format_invalid"
	case PlaybackFailure:
		return "playback_failure"
	default:
		return "unknown"
	}
}

// Stage names the pipeline step that failed
type Stage string

const (
	StageAllocate   Stage = "alloc"
	StageCapture    Stage = "capture"
	StageTranscribe Stage = "stt"
	StageChat       Stage = "chat"
	StageSynthesize Stage = "tts"
	StagePlayback   Stage = "playback"
)

// Error is the failure of one push-to-talk run
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Label returns the two short lines shown while the error dwells
func (e *Error) Label() (string, string) {
	switch e.Kind {
	case AllocationFailure:
		return "malloc", "fail"
	case CaptureFailure:
		return "mic", "read fail"
	case EmptyResult:
		return "empty " + string(e.Stage), ""
	case TransportFailure:
		if e.Stage == StageSynthesize {
			return "tts", "fail"
		}
		return string(e.Stage), "net fail"
	case FormatInvalid:
		return "wav", "bad format"
	case PlaybackFailure:
		return "spk", "write fail"
	default:
		return "error", ""
	}
}

// newError classifies err from the given stage
func newError(stage Stage, err error) *Error {
	return &Error{Kind: classify(stage, err), Stage: stage, Err: err}
}

func classify(stage Stage, err error) Kind {
	switch {
	case errors.Is(err, ErrNoBuffer), errors.Is(err, aiclient.ErrBodyTooLarge):
		return AllocationFailure
	case errors.Is(err, aiclient.ErrEmptyResult):
		return EmptyResult
	case errors.Is(err, aiclient.ErrTransport),
		errors.Is(err, aiclient.ErrTruncatedBody),
		errors.Is(err, aiclient.ErrUnknownLength),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return TransportFailure
	case errors.Is(err, audio.ErrInvalidWAV):
		return FormatInvalid
	case errors.Is(err, audio.ErrCaptureFailed):
		return CaptureFailure
	case errors.Is(err, audio.ErrPlaybackFailed):
		return PlaybackFailure
	}

	switch stage {
	case StageAllocate:
		return AllocationFailure
	case StageCapture:
		return CaptureFailure
	case StagePlayback:
		return PlaybackFailure
	default:
		return TransportFailure
	}
}
