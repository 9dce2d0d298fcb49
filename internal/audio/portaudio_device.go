//go:build portaudio

package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// portAudioFrames is the stream buffer size in frames; one mono batch fills it exactly
const portAudioFrames = MonoBatchFrames

// PortAudioDevice drives the default input and output devices through PortAudio
type PortAudioDevice struct {
	mu       sync.Mutex
	stream   *portaudio.Stream
	mode     Mode
	in       []int16
	pending  []int16
	out      []int16
	released bool
}

// OpenPortAudio initializes PortAudio. Close the returned device with Terminate.
func OpenPortAudio() (Device, func() error, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	d := &PortAudioDevice{}
	return d, d.terminate, nil
}

// OpenCapture implements Device
func (d *PortAudioDevice) OpenCapture(sampleRate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mode != ModeNone {
		return fmt.Errorf("%w: %s is active", ErrDeviceBusy, d.mode)
	}
	d.in = make([]int16, portAudioFrames)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), portAudioFrames, d.in)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	d.stream = stream
	d.pending = nil
	d.mode = ModeCapture
	return nil
}

// OpenPlayback implements Device
func (d *PortAudioDevice) OpenPlayback(sampleRate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mode != ModeNone {
		return fmt.Errorf("%w: %s is active", ErrDeviceBusy, d.mode)
	}
	d.out = make([]int16, portAudioFrames*2)
	stream, err := portaudio.OpenDefaultStream(0, 2, float64(sampleRate), portAudioFrames, d.out)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	d.stream = stream
	d.mode = ModePlayback
	return nil
}

// Read implements Device
func (d *PortAudioDevice) Read(p []int16) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mode != ModeCapture {
		return 0, fmt.Errorf("read while in %s mode", d.mode)
	}
	if len(d.pending) == 0 {
		if err := d.stream.Read(); err != nil {
			return 0, err
		}
		d.pending = d.in
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

// Write implements Device. A short final chunk is padded with silence.
func (d *PortAudioDevice) Write(p []int16) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mode != ModePlayback {
		return 0, fmt.Errorf("write while in %s mode", d.mode)
	}
	n := copy(d.out, p)
	for i := n; i < len(d.out); i++ {
		d.out[i] = 0
	}
	if err := d.stream.Write(); err != nil {
		return 0, err
	}
	return n, nil
}

// Close implements Device
func (d *PortAudioDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream == nil {
		d.mode = ModeNone
		return nil
	}
	stopErr := d.stream.Stop()
	closeErr := d.stream.Close()
	d.stream = nil
	d.mode = ModeNone
	if stopErr != nil {
		return fmt.Errorf("failed to stop stream: %w", stopErr)
	}
	return closeErr
}

func (d *PortAudioDevice) terminate() error {
	if err := d.Close(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil
	}
	d.released = true
	return portaudio.Terminate()
}
