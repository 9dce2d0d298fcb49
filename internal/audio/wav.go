package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// WAV decoding errors. All of them wrap ErrInvalidWAV.
var (
	// ErrInvalidWAV is the umbrella error for any payload that cannot be played.
	ErrInvalidWAV = errors.New("invalid WAV payload")

	// ErrNotRIFF is returned when the RIFF/WAVE tags are missing.
	ErrNotRIFF = fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)

	// ErrTruncated is returned when a chunk claims more bytes than the buffer holds.
	ErrTruncated = fmt.Errorf("%w: truncated chunk", ErrInvalidWAV)

	// ErrNoData is returned when no non-empty "data" chunk exists.
	ErrNoData = fmt.Errorf("%w: no data chunk", ErrInvalidWAV)

	// ErrNotPCM is returned when the format tag is not linear PCM.
	ErrNotPCM = fmt.Errorf("%w: not linear PCM", ErrInvalidWAV)

	// ErrBitDepth is returned for anything other than 16-bit samples.
	ErrBitDepth = fmt.Errorf("%w: only 16-bit samples are supported", ErrInvalidWAV)
)

const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	fmtChunkMinSize = 16
	formatPCM       = 1
)

// WavDescriptor describes the playable window of a RIFF/WAVE buffer.
// It does not own the buffer; PayloadOffset and PayloadLength index into it.
type WavDescriptor struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
	PayloadOffset int
	PayloadLength int
}

// Payload returns the PCM window of data described by d
func (d WavDescriptor) Payload(data []byte) []byte {
	return data[d.PayloadOffset : d.PayloadOffset+d.PayloadLength]
}

// Frames returns the number of sample frames in the payload
func (d WavDescriptor) Frames() int {
	frameSize := int(d.Channels) * int(d.BitsPerSample) / 8
	if frameSize == 0 {
		return 0
	}
	return d.PayloadLength / frameSize
}

// ParseWAV walks the chunks of a RIFF/WAVE buffer and returns the format
// and data window. Walking stops at the first "data" chunk; anything after
// it is ignored.
func ParseWAV(data []byte) (WavDescriptor, error) {
	if len(data) < riffHeaderSize {
		return WavDescriptor{}, ErrNotRIFF
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return WavDescriptor{}, ErrNotRIFF
	}

	var (
		desc        WavDescriptor
		formatTag   uint16
		foundFormat bool
		foundData   bool
	)

	pos := riffHeaderSize
	for pos+chunkHeaderSize <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		pos += chunkHeaderSize

		if size < 0 || size > len(data)-pos {
			return WavDescriptor{}, fmt.Errorf("%w: %q wants %d bytes at offset %d, %d left",
				ErrTruncated, id, size, pos, len(data)-pos)
		}

		switch id {
		case "fmt ":
			if size < fmtChunkMinSize {
				return WavDescriptor{}, fmt.Errorf("%w: fmt chunk is %d bytes", ErrTruncated, size)
			}
			formatTag = binary.LittleEndian.Uint16(data[pos : pos+2])
			desc.Channels = binary.LittleEndian.Uint16(data[pos+2 : pos+4])
			desc.SampleRate = binary.LittleEndian.Uint32(data[pos+4 : pos+8])
			desc.BitsPerSample = binary.LittleEndian.Uint16(data[pos+14 : pos+16])
			foundFormat = true
		case "data":
			desc.PayloadOffset = pos
			desc.PayloadLength = size
			foundData = true
		}
		if foundData {
			break
		}

		pos += size
		if size&1 == 1 {
			pos++
		}
	}

	if !foundData || desc.PayloadLength == 0 {
		return WavDescriptor{}, ErrNoData
	}
	if !foundFormat || formatTag != formatPCM {
		return WavDescriptor{}, fmt.Errorf("%w (format tag %d)", ErrNotPCM, formatTag)
	}
	if desc.BitsPerSample != 16 {
		return WavDescriptor{}, fmt.Errorf("%w (got %d)", ErrBitDepth, desc.BitsPerSample)
	}

	return desc, nil
}
