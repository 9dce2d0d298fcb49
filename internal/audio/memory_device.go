package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrDeviceBusy is returned when a mode is opened while another is still active
var ErrDeviceBusy = errors.New("device already open in another mode")

// MemoryDevice is an in-process Device. Capture replays Source (looping) or
// silence when Source is empty; playback counts, and optionally keeps, the
// stereo samples written to it. It backs headless runs and tests.
type MemoryDevice struct {
	mu sync.Mutex

	// Source is looped for capture
	Source []int16

	// KeepPlayback retains every written sample in Played
	KeepPlayback bool

	// ReadErr and WriteErr are returned by Read and Write when set
	ReadErr  error
	WriteErr error

	// ShortWrites caps how many samples a single Write accepts (0 = no cap)
	ShortWrites int

	mode          Mode
	sampleRate    int
	srcPos        int
	played        []int16
	playedSamples int
	writeCalls    int
	opens         []Mode
}

// NewMemoryDevice creates a memory device that captures source on a loop
func NewMemoryDevice(source []int16) *MemoryDevice {
	return &MemoryDevice{Source: source}
}

// NewMemoryDeviceFromWAV loads a 16-bit mono WAV file as the capture source
func NewMemoryDeviceFromWAV(path string) (*MemoryDevice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture file: %w", err)
	}
	desc, err := ParseWAV(data)
	if err != nil {
		return nil, fmt.Errorf("capture file %s: %w", path, err)
	}
	if desc.Channels != 1 {
		return nil, fmt.Errorf("capture file %s: want mono, got %d channels", path, desc.Channels)
	}
	return NewMemoryDevice(BytesToSamples(desc.Payload(data))), nil
}

// OpenCapture implements Device
func (d *MemoryDevice) OpenCapture(sampleRate int) error {
	return d.open(ModeCapture, sampleRate)
}

// OpenPlayback implements Device
func (d *MemoryDevice) OpenPlayback(sampleRate int) error {
	return d.open(ModePlayback, sampleRate)
}

func (d *MemoryDevice) open(mode Mode, sampleRate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mode != ModeNone {
		return fmt.Errorf("%w: %s is active", ErrDeviceBusy, d.mode)
	}
	d.mode = mode
	d.sampleRate = sampleRate
	d.opens = append(d.opens, mode)
	return nil
}

// Read implements Device
func (d *MemoryDevice) Read(p []int16) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mode != ModeCapture {
		return 0, fmt.Errorf("read while in %s mode", d.mode)
	}
	if d.ReadErr != nil {
		return 0, d.ReadErr
	}
	if len(d.Source) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	for i := range p {
		p[i] = d.Source[d.srcPos]
		d.srcPos = (d.srcPos + 1) % len(d.Source)
	}
	return len(p), nil
}

// Write implements Device
func (d *MemoryDevice) Write(p []int16) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mode != ModePlayback {
		return 0, fmt.Errorf("write while in %s mode", d.mode)
	}
	if d.WriteErr != nil {
		return 0, d.WriteErr
	}
	n := len(p)
	if d.ShortWrites > 0 && n > d.ShortWrites {
		n = d.ShortWrites
	}
	d.writeCalls++
	d.playedSamples += n
	if d.KeepPlayback {
		d.played = append(d.played, p[:n]...)
	}
	return n, nil
}

// Close implements Device
func (d *MemoryDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = ModeNone
	return nil
}

// Played returns a copy of the retained playback samples
func (d *MemoryDevice) Played() []int16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int16(nil), d.played...)
}

// PlayedSamples returns how many stereo samples were accepted in total
func (d *MemoryDevice) PlayedSamples() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playedSamples
}

// WriteCalls returns how many Write calls accepted data
func (d *MemoryDevice) WriteCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeCalls
}

// Opens returns the history of opened modes
func (d *MemoryDevice) Opens() []Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Mode(nil), d.opens...)
}

// SampleRate returns the rate of the most recently opened mode
func (d *MemoryDevice) SampleRate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampleRate
}
