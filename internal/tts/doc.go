// Package tts synthesizes reply text into PCM audio through an HTTP
// text-to-speech API returning WAV bodies.
package tts
