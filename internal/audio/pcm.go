package audio

import (
	"fmt"
	"math"
)

// SamplesToBytes converts 16-bit samples to little-endian bytes
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		out[i*2] = byte(sample)
		out[i*2+1] = byte(sample >> 8)
	}
	return out
}

// BytesToSamples converts little-endian 16-bit PCM bytes to samples
// A trailing odd byte is ignored
func BytesToSamples(pcmData []byte) []int16 {
	samples := make([]int16, len(pcmData)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(pcmData[i*2]) | int16(pcmData[i*2+1])<<8
	}
	return samples
}

// DuplicateMono writes each mono sample into both channels of an interleaved stereo frame
// dst must hold at least 2*len(mono) samples; the number of samples written is returned
func DuplicateMono(dst []int16, mono []int16) (int, error) {
	if len(dst) < 2*len(mono) {
		return 0, fmt.Errorf("stereo buffer too small: need %d samples, have %d", 2*len(mono), len(dst))
	}
	for i, v := range mono {
		dst[2*i] = v
		dst[2*i+1] = v
	}
	return 2 * len(mono), nil
}

// CalculateRMS calculates the root mean square (RMS) of audio samples
// Useful for detecting audio levels and silence
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// Peak returns the largest absolute sample value
func Peak(samples []int16) int {
	maxVal := 0
	for _, sample := range samples {
		abs := int(sample)
		if abs < 0 {
			abs = -abs
		}
		if abs > maxVal {
			maxVal = abs
		}
	}
	return maxVal
}
