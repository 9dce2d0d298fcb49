package display

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Status is the externally visible state of the terminal
type Status int

const (
	Idle Status = iota
	Listening
	Processing
	Playing
	Error
)

// DefaultColumns is the width of the character LCD
const DefaultColumns = 16

// String returns the short label shown on the status line
func (s Status) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Listening:
		return "LISTEN"
	case Processing:
		return "WORK"
	case Playing:
		return "PLAY"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Display renders a status and two text lines
type Display interface {
	SetStatus(status Status, line1, line2 string)
}

// FitLine truncates or right-pads s to exactly cols runes
func FitLine(s string, cols int) string {
	if cols <= 0 {
		return ""
	}
	n := utf8.RuneCountInString(s)
	if n == cols {
		return s
	}
	if n < cols {
		return s + strings.Repeat(" ", cols-n)
	}
	runes := []rune(s)
	return string(runes[:cols])
}

// Frame is one rendered screen
type Frame struct {
	Status Status `json:"-"`
	Label  string `json:"status"`
	Line1  string `json:"line1"`
	Line2  string `json:"line2"`
}

// Render builds the frame a cols-wide panel would show
func Render(status Status, line1, line2 string, cols int) Frame {
	return Frame{
		Status: status,
		Label:  status.String(),
		Line1:  FitLine(line1, cols),
		Line2:  FitLine(line2, cols),
	}
}

// LogDisplay writes every status change as a structured log event
type LogDisplay struct {
	logger zerolog.Logger
	cols   int
}

// NewLogDisplay creates a display that logs frames of the given width
func NewLogDisplay(logger zerolog.Logger, cols int) *LogDisplay {
	if cols <= 0 {
		cols = DefaultColumns
	}
	return &LogDisplay{
		logger: logger.With().Str("component", "display").Logger(),
		cols:   cols,
	}
}

// SetStatus implements Display
func (d *LogDisplay) SetStatus(status Status, line1, line2 string) {
	f := Render(status, line1, line2, d.cols)
	d.logger.Info().
		Str("status", f.Label).
		Str("line1", strings.TrimRight(f.Line1, " ")).
		Str("line2", strings.TrimRight(f.Line2, " ")).
		Msg("Display")
}

// Multi fans a status change out to several displays
type Multi []Display

// SetStatus implements Display
func (m Multi) SetStatus(status Status, line1, line2 string) {
	for _, d := range m {
		d.SetStatus(status, line1, line2)
	}
}

// Recorder keeps every frame it is shown. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	frames []Frame
}

// SetStatus implements Display
func (r *Recorder) SetStatus(status Status, line1, line2 string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, Frame{Status: status, Label: status.String(), Line1: line1, Line2: line2})
}

// Frames returns a copy of the recorded frames
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Statuses returns the recorded status sequence
func (r *Recorder) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.frames))
	for i, f := range r.frames {
		out[i] = f.Status
	}
	return out
}

// Last returns the most recent frame and whether there was one
func (r *Recorder) Last() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return Frame{}, false
	}
	return r.frames[len(r.frames)-1], true
}

// Reset forgets all recorded frames
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.frames = nil
	r.mu.Unlock()
}
