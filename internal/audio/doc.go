// Package audio handles PCM sample handling for the agent: capture chunks,
// utterance endpointing, WAV encoding/decoding for the inference APIs, the
// synthesis fallback tone, and on-disk slin artifacts for playback.
package audio
