//go:build !portaudio

package audio

import "errors"

// ErrPortAudioUnavailable is returned when the binary was built without the portaudio tag
var ErrPortAudioUnavailable = errors.New("built without PortAudio support (rebuild with -tags portaudio)")

// OpenPortAudio reports that PortAudio support was not compiled in
func OpenPortAudio() (Device, func() error, error) {
	return nil, nil, ErrPortAudioUnavailable
}
