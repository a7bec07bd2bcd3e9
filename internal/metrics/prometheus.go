package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice agent
type Metrics struct {
	// Call metrics
	ActiveCalls   prometheus.Gauge
	CallsStarted  prometheus.Counter
	CallsEnded    prometheus.Counter
	CallDuration  prometheus.Histogram
	DTMFReceived  prometheus.Counter

	// Capture and endpointing metrics
	Utterances        prometheus.Counter
	UtteranceDuration prometheus.Histogram
	ForcedEndpoints   prometheus.Counter
	DiscardedBursts   prometheus.Counter
	CaptureErrors     prometheus.Counter
	CaptureBusy       prometheus.Counter

	// Turn pipeline metrics
	TurnDuration    prometheus.Histogram
	STTLatency      prometheus.Gauge
	DialogueLatency prometheus.Gauge
	TTSLatency      prometheus.Gauge
	PipelineNoReply prometheus.Counter
	SynthFallbacks  prometheus.Counter
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter

	// Playback metrics
	PlaybacksStarted prometheus.Counter
	PlaybackTimeouts prometheus.Counter
	BargeIns         prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Call metrics
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "agent_active_calls",
			Help: "Current number of active call sessions",
		}),
		CallsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agent_calls_started_total",
			Help: "Total number of call sessions started",
		}),
		CallsEnded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agent_calls_ended_total",
			Help: "Total number of call sessions ended",
		}),
		CallDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "agent_call_duration_seconds",
			Help:    "Duration of call sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),
		DTMFReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agent_dtmf_received_total",
			Help: "Total number of DTMF digits received",
		}),

		// Capture and endpointing metrics
		Utterances: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agent_utterances_total",
			Help: "Total number of finalized caller utterances",
		}),
		UtteranceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "agent_utterance_duration_seconds",
			Help:    "Duration of finalized caller utterances",
			Buckets: prometheus.LinearBuckets(0.5, 0.5, 10), // 0.5s to 5s
		}),
		ForcedEndpoints: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agent_forced_endpoints_total",
			Help: "Total number of utterances finalized at the buffer cap",
		}),
		DiscardedBursts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agent_discarded_bursts_total",
			Help: "Total number of speech bursts discarded as noise",
		}),
		CaptureErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agent_capture_errors_total",
			Help: "Total number of failed capture attempts",
		}),
		CaptureBusy: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agent_capture_busy_total",
			Help: "Total number of captures rejected by a held lease",
		}),

		// Turn pipeline metrics
		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "agent_turn_duration_seconds",
			Help:    "End-to-end duration of dialogue turns",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~30s
		}),
		STTLatency: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "agent_stt_latency_seconds",
			Help: "Latency of the most recent transcription request",
		}),
		DialogueLatency: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "agent_dialogue_latency_seconds",
			Help: "Latency of the most recent dialogue webhook request",
		}),
		TTSLatency: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "agent_tts_latency_seconds",
			Help: "Latency of the most recent synthesis request",
		}),
		PipelineNoReply: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agent_pipeline_no_reply_total",
			Help: "Total number of turns that produced no spoken reply",
		}),
		SynthFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agent_synth_fallbacks_total",
			Help: "Total number of replies played as the fallback tone",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agent_tts_cache_hits_total",
			Help: "Total number of synthesis cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agent_tts_cache_misses_total",
			Help: "Total number of synthesis cache misses",
		}),

		// Playback metrics
		PlaybacksStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agent_playbacks_started_total",
			Help: "Total number of playbacks started",
		}),
		PlaybackTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agent_playback_timeouts_total",
			Help: "Total number of playbacks abandoned at the safety timeout",
		}),
		BargeIns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agent_barge_ins_total",
			Help: "Total number of playbacks interrupted by caller speech",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agent_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordCallStarted records a new call session
func (m *Metrics) RecordCallStarted() {
	m.CallsStarted.Inc()
}

// RecordCallEnded records a finished call session and its duration
func (m *Metrics) RecordCallEnded(durationSeconds float64) {
	m.CallsEnded.Inc()
	m.CallDuration.Observe(durationSeconds)
}

// SetActiveCalls sets the current number of active call sessions
func (m *Metrics) SetActiveCalls(count int) {
	m.ActiveCalls.Set(float64(count))
}

// RecordDTMF increments the DTMF digit counter
func (m *Metrics) RecordDTMF() {
	m.DTMFReceived.Inc()
}

// RecordUtterance records a finalized utterance and its duration
func (m *Metrics) RecordUtterance(durationSeconds float64) {
	m.Utterances.Inc()
	m.UtteranceDuration.Observe(durationSeconds)
}

// RecordForcedEndpoint increments the forced endpoint counter
func (m *Metrics) RecordForcedEndpoint() {
	m.ForcedEndpoints.Inc()
}

// RecordDiscardedBurst increments the discarded burst counter
func (m *Metrics) RecordDiscardedBurst() {
	m.DiscardedBursts.Inc()
}

// RecordCaptureError increments the capture error counter
func (m *Metrics) RecordCaptureError() {
	m.CaptureErrors.Inc()
}

// RecordCaptureBusy increments the busy lease counter
func (m *Metrics) RecordCaptureBusy() {
	m.CaptureBusy.Inc()
}

// RecordTurn records an end-to-end turn duration
func (m *Metrics) RecordTurn(durationSeconds float64) {
	m.TurnDuration.Observe(durationSeconds)
}

// SetSTTLatency sets the latest transcription latency
func (m *Metrics) SetSTTLatency(seconds float64) {
	m.STTLatency.Set(seconds)
}

// SetDialogueLatency sets the latest dialogue webhook latency
func (m *Metrics) SetDialogueLatency(seconds float64) {
	m.DialogueLatency.Set(seconds)
}

// SetTTSLatency sets the latest synthesis latency
func (m *Metrics) SetTTSLatency(seconds float64) {
	m.TTSLatency.Set(seconds)
}

// RecordPipelineNoReply increments the no-reply turn counter
func (m *Metrics) RecordPipelineNoReply() {
	m.PipelineNoReply.Inc()
}

// RecordSynthFallback increments the fallback tone counter
func (m *Metrics) RecordSynthFallback() {
	m.SynthFallbacks.Inc()
}

// RecordCacheHit increments the synthesis cache hit counter
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss increments the synthesis cache miss counter
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// RecordPlaybackStarted increments the playbacks started counter
func (m *Metrics) RecordPlaybackStarted() {
	m.PlaybacksStarted.Inc()
}

// RecordPlaybackTimeout increments the playback safety timeout counter
func (m *Metrics) RecordPlaybackTimeout() {
	m.PlaybackTimeouts.Inc()
}

// RecordBargeIn increments the barge-in counter
func (m *Metrics) RecordBargeIn() {
	m.BargeIns.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
