package audio

// LevelConfig controls frame-energy analysis of a captured buffer
type LevelConfig struct {
	EnergyThreshold float64 // RMS above which a frame counts as voiced
	FrameSize       int     // Samples per frame (320 = 20ms at 16kHz)
}

// DefaultLevelConfig returns thresholds tuned for a close-talk microphone
func DefaultLevelConfig() LevelConfig {
	return LevelConfig{
		EnergyThreshold: 500.0,
		FrameSize:       320,
	}
}

// LevelStats summarizes the loudness of a recording
type LevelStats struct {
	RMS          float64
	Peak         int
	Frames       int
	VoicedFrames int
}

// VoicedRatio is the fraction of frames above the energy threshold
func (s LevelStats) VoicedRatio() float64 {
	if s.Frames == 0 {
		return 0
	}
	return float64(s.VoicedFrames) / float64(s.Frames)
}

// Silent reports whether no frame crossed the threshold
func (s LevelStats) Silent() bool {
	return s.VoicedFrames == 0
}

// AnalyzeLevel splits samples into frames and counts the voiced ones.
// A trailing partial frame is analyzed as its own frame.
func AnalyzeLevel(samples []int16, cfg LevelConfig) LevelStats {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = DefaultLevelConfig().FrameSize
	}

	stats := LevelStats{
		RMS:  CalculateRMS(samples),
		Peak: Peak(samples),
	}
	for off := 0; off < len(samples); off += cfg.FrameSize {
		end := off + cfg.FrameSize
		if end > len(samples) {
			end = len(samples)
		}
		stats.Frames++
		if CalculateRMS(samples[off:end]) > cfg.EnergyThreshold {
			stats.VoicedFrames++
		}
	}
	return stats
}
