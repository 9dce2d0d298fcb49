package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Hold metrics
	holdsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_terminal_holds_total",
		Help: "Push-to-talk holds by outcome",
	}, []string{"outcome"}) // outcome: "completed", "error" or "discarded"

	holdDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_terminal_hold_duration_seconds",
		Help:    "Time from button release to the return to idle",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	pipelineState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_terminal_pipeline_state",
		Help: "Current pipeline state (0=idle, 1=listening, 2=processing, 3=playing, 4=error)",
	})

	// Stage metrics
	stageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voice_terminal_stage_latency_seconds",
		Help:    "Latency of each pipeline stage in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"stage"})

	stageResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_terminal_stage_results_total",
		Help: "Pipeline stage completions by status",
	}, []string{"stage", "status"})

	// Remote back-end metrics
	remoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_terminal_remote_requests_total",
		Help: "Requests to the AI back-end by endpoint and status",
	}, []string{"endpoint", "status"})

	remoteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voice_terminal_remote_latency_seconds",
		Help:    "AI back-end request latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
	}, []string{"endpoint"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_terminal_errors_total",
		Help: "Total number of pipeline errors",
	}, []string{"kind", "stage"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_terminal_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"

	audioBuffersInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_terminal_audio_buffers_in_use_bytes",
		Help: "Bytes currently held by audio buffers",
	})
)

// RunMetrics tracks metrics for a single push-to-talk hold
type RunMetrics struct {
	runID      string
	startTime  time.Time
	stageStart map[string]time.Time
	mu         sync.Mutex
}

// NewRunMetrics creates a new metrics tracker for a hold
func NewRunMetrics(runID string) *RunMetrics {
	return &RunMetrics{
		runID:      runID,
		startTime:  time.Now(),
		stageStart: make(map[string]time.Time),
	}
}

// RunID returns the identifier the tracker was created with
func (m *RunMetrics) RunID() string {
	return m.runID
}

// RecordStageStart records the start of a pipeline stage
func (m *RunMetrics) RecordStageStart(stage string) {
	m.mu.Lock()
	m.stageStart[stage] = time.Now()
	m.mu.Unlock()
}

// RecordStageEnd records the end of a pipeline stage
func (m *RunMetrics) RecordStageEnd(stage string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if start, ok := m.stageStart[stage]; ok {
		stageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
		delete(m.stageStart, stage)
	}

	status := "success"
	if !success {
		status = "error"
	}
	stageResults.WithLabelValues(stage, status).Inc()
}

// RecordError records a pipeline error
func (m *RunMetrics) RecordError(kind, stage string) {
	errorsTotal.WithLabelValues(kind, stage).Inc()
}

// RecordAudioBytes records audio bytes processed
func (m *RunMetrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// RecordRunEnd records the outcome of the hold
func (m *RunMetrics) RecordRunEnd(outcome string) {
	holdsTotal.WithLabelValues(outcome).Inc()
	holdDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordDiscardedHold counts a hold that was too short to process
func RecordDiscardedHold() {
	holdsTotal.WithLabelValues("discarded").Inc()
}

// SetPipelineState updates the pipeline state gauge
func SetPipelineState(state int) {
	pipelineState.Set(float64(state))
}

// SetAudioBuffersInUse updates the audio buffer gauge
func SetAudioBuffersInUse(bytes int64) {
	audioBuffersInUse.Set(float64(bytes))
}

// RecordRemoteRequest records one exchange with the AI back-end
func RecordRemoteRequest(endpoint, status string, latency time.Duration) {
	remoteRequests.WithLabelValues(endpoint, status).Inc()
	remoteLatency.WithLabelValues(endpoint).Observe(latency.Seconds())
}
