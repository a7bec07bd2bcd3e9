// Package pipeline runs one dialogue turn: transcribe an utterance, ask the
// dialogue webhook for a reply, synthesize it, and stage the audio for
// playback. Short replies are served from a bounded synthesis cache, and a
// fallback tone keeps the call audible when synthesis fails.
package pipeline
