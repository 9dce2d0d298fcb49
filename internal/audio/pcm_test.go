package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestBytesToSamples(t *testing.T) {
	// Create test byte data
	bytes := []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80}
	samples := BytesToSamples(bytes)

	expected := []int16{0, 32767, -32768}
	if len(samples) != len(expected) {
		t.Fatalf("Expected %d samples, got %d", len(expected), len(samples))
	}

	for i, exp := range expected {
		if samples[i] != exp {
			t.Errorf("Expected sample %d at index %d, got %d", exp, i, samples[i])
		}
	}
}

func TestBytesToSamples_OddLength(t *testing.T) {
	samples := BytesToSamples([]byte{0x01, 0x00, 0x02})
	if len(samples) != 1 || samples[0] != 1 {
		t.Errorf("Expected [1], got %v", samples)
	}
}

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 32767, -32768}
	bytes := SamplesToBytes(samples)

	expected := []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80}
	if len(bytes) != len(expected) {
		t.Fatalf("Expected %d bytes, got %d", len(expected), len(bytes))
	}

	for i, exp := range expected {
		if bytes[i] != exp {
			t.Errorf("Expected byte %d at index %d, got %d", exp, i, bytes[i])
		}
	}
}

func TestSamplesToBytes_MatchesEncodingBinary(t *testing.T) {
	samples := []int16{-1, 1, 1234, -4321}
	bytes := SamplesToBytes(samples)

	for i, sample := range samples {
		got := int16(binary.LittleEndian.Uint16(bytes[i*2:]))
		if got != sample {
			t.Errorf("Expected sample %d at index %d, got %d", sample, i, got)
		}
	}
}

func TestDuplicateMono(t *testing.T) {
	mono := []int16{1, -2, 3}
	stereo := make([]int16, 6)

	n, err := DuplicateMono(stereo, mono)
	if err != nil {
		t.Fatalf("DuplicateMono failed: %v", err)
	}
	if n != 6 {
		t.Errorf("Expected 6 samples written, got %d", n)
	}

	expected := []int16{1, 1, -2, -2, 3, 3}
	for i, exp := range expected {
		if stereo[i] != exp {
			t.Errorf("Expected %d at index %d, got %d", exp, i, stereo[i])
		}
	}
}

func TestDuplicateMono_BufferTooSmall(t *testing.T) {
	if _, err := DuplicateMono(make([]int16, 3), []int16{1, 2}); err == nil {
		t.Error("Expected error for undersized stereo buffer")
	}
}

func TestCalculateRMS(t *testing.T) {
	// Test with known values
	samples := []int16{1000, -1000, 2000, -2000}
	rms := CalculateRMS(samples)

	// Expected RMS: sqrt((1000^2 + 1000^2 + 2000^2 + 2000^2) / 4)
	expected := math.Sqrt((1000000 + 1000000 + 4000000 + 4000000) / 4.0)
	tolerance := 0.1

	if math.Abs(rms-expected) > tolerance {
		t.Errorf("Expected RMS %.2f, got %.2f", expected, rms)
	}
}

func TestCalculateRMS_Empty(t *testing.T) {
	samples := []int16{}
	rms := CalculateRMS(samples)
	if rms != 0.0 {
		t.Errorf("Expected RMS 0.0 for empty slice, got %.2f", rms)
	}
}

func TestPeak(t *testing.T) {
	if p := Peak([]int16{10, -32768, 300}); p != 32768 {
		t.Errorf("Expected peak 32768, got %d", p)
	}
	if p := Peak(nil); p != 0 {
		t.Errorf("Expected peak 0 for empty slice, got %d", p)
	}
}
