package vad

import (
	"fmt"

	"github.com/GrupoSinergia/voip-agent/internal/config"
)

// Detector classifies a block of PCM-16 samples as speech or non-speech.
// Detectors may hold internal smoothing state, so each concurrent consumer
// should own its own instance.
type Detector interface {
	IsSpeech(samples []int16) bool
	Reset()
}

// Factory builds detector instances for sessions. Each session owns two
// detectors: one for the capture loop and one for the barge-in monitor.
type Factory func() (Detector, error)

// NewFactory returns a detector factory for the configured engine.
func NewFactory(cfg config.VADConfig, sampleRate int) (Factory, error) {
	switch cfg.Engine {
	case "energy":
		return func() (Detector, error) {
			return NewEnergyDetector(cfg.Threshold), nil
		}, nil
	case "webrtc":
		return func() (Detector, error) {
			return NewWebRTCDetector(cfg.Aggressiveness, sampleRate, cfg.Threshold)
		}, nil
	default:
		return nil, fmt.Errorf("unknown vad engine: %s", cfg.Engine)
	}
}
