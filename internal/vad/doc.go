// Package vad provides voice activity detection for capture chunks.
// Two engines are available: a pure-Go energy detector with smoothing, and a
// WebRTC VAD wrapper with an energy fallback for frames the model rejects.
package vad
