package vad

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/GrupoSinergia/voip-agent/internal/audio"
)

// WebRTC VAD accepts 10, 20 or 30 ms frames; capture chunks are split into
// 20 ms frames before classification.
const webrtcFrameDuration = 20 // ms

// WebRTCDetector wraps the WebRTC voice activity detector. Frames the model
// rejects (wrong size, processing error) fall back to the energy detector so
// a capture chunk is never silently dropped.
type WebRTCDetector struct {
	vad        *webrtcvad.VAD
	sampleRate int
	frameSize  int
	fallback   *EnergyDetector
}

// NewWebRTCDetector creates a detector with the given aggressiveness (0-3,
// where 3 filters non-speech hardest).
func NewWebRTCDetector(aggressiveness, sampleRate int, threshold float32) (*WebRTCDetector, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create webrtc vad: %w", err)
	}

	if err := v.SetMode(aggressiveness); err != nil {
		return nil, fmt.Errorf("failed to set vad aggressiveness %d: %w", aggressiveness, err)
	}

	return &WebRTCDetector{
		vad:        v,
		sampleRate: sampleRate,
		frameSize:  sampleRate * webrtcFrameDuration / 1000,
		fallback:   NewEnergyDetector(threshold),
	}, nil
}

// IsSpeech classifies one chunk of samples. The chunk is walked in 20 ms
// frames; any speech frame marks the whole chunk as speech.
func (d *WebRTCDetector) IsSpeech(samples []int16) bool {
	if len(samples) < d.frameSize {
		return d.fallback.IsSpeech(samples)
	}

	for offset := 0; offset+d.frameSize <= len(samples); offset += d.frameSize {
		frame := audio.SamplesToBytes(samples[offset : offset+d.frameSize])

		active, err := d.vad.Process(d.sampleRate, frame)
		if err != nil {
			return d.fallback.IsSpeech(samples)
		}
		if active {
			return true
		}
	}

	return false
}

// Reset clears fallback smoothing state between utterances.
func (d *WebRTCDetector) Reset() {
	d.fallback.Reset()
}
