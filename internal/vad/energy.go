package vad

import (
	"sync"

	"github.com/GrupoSinergia/voip-agent/internal/audio"
)

// Normalization ceiling for narrowband telephony RMS energy. Levels at or
// above this map to probability 1.0.
const energyCeiling = 10000.0

// EnergyDetector is a pure-Go detector based on normalized RMS energy with
// light exponential smoothing to suppress single-chunk flicker.
type EnergyDetector struct {
	threshold float32
	smoothing float32

	// Detection state
	lastResult float32
	primed     bool

	// Statistics
	totalChunks  uint64
	speechChunks uint64

	mu sync.Mutex
}

// DetectorStats represents detector statistics for monitoring.
type DetectorStats struct {
	TotalChunks      uint64  `json:"total_chunks"`
	SpeechChunks     uint64  `json:"speech_chunks"`
	SpeechPercentage float64 `json:"speech_percentage"`
}

// NewEnergyDetector creates an energy detector with the given speech
// probability threshold.
func NewEnergyDetector(threshold float32) *EnergyDetector {
	return &EnergyDetector{
		threshold: threshold,
		smoothing: 0.7, // weight of the current chunk
	}
}

// IsSpeech classifies one chunk of samples.
func (d *EnergyDetector) IsSpeech(samples []int16) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	probability := float32(audio.RMS(samples) / energyCeiling)
	if probability > 1 {
		probability = 1
	}

	if d.primed {
		probability = d.smoothing*probability + (1-d.smoothing)*d.lastResult
	}
	d.lastResult = probability
	d.primed = true

	hasSpeech := probability >= d.threshold

	d.totalChunks++
	if hasSpeech {
		d.speechChunks++
	}

	return hasSpeech
}

// Reset clears smoothing state between utterances.
func (d *EnergyDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastResult = 0
	d.primed = false
}

// GetStats returns current detector statistics.
func (d *EnergyDetector) GetStats() DetectorStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	percentage := float64(0)
	if d.totalChunks > 0 {
		percentage = float64(d.speechChunks) / float64(d.totalChunks) * 100
	}

	return DetectorStats{
		TotalChunks:      d.totalChunks,
		SpeechChunks:     d.speechChunks,
		SpeechPercentage: percentage,
	}
}
