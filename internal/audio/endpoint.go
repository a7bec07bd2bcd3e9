package audio

import (
	"time"
)

// EndpointDecision is the outcome of feeding one capture observation to the
// endpointer.
type EndpointDecision int

const (
	// DecisionNone means keep capturing.
	DecisionNone EndpointDecision = iota
	// DecisionEndpoint means a complete utterance was finalized.
	DecisionEndpoint
	// DecisionForced means the buffer hit its hard cap and was finalized
	// without waiting for a silence gap.
	DecisionForced
	// DecisionDiscard means a speech burst shorter than the minimum viable
	// duration was dropped as noise.
	DecisionDiscard
)

// String returns a human-readable decision name.
func (d EndpointDecision) String() string {
	switch d {
	case DecisionNone:
		return "none"
	case DecisionEndpoint:
		return "endpoint"
	case DecisionForced:
		return "forced"
	case DecisionDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

// EndpointConfig contains the utterance boundary policy.
type EndpointConfig struct {
	// MinSpeech is the minimum accumulated speech for a viable utterance.
	MinSpeech time.Duration
	// EndSilence is the trailing silence that ends an utterance.
	EndSilence time.Duration
	// SilenceTolerance is the pause length still appended to the buffer as
	// part of the utterance (short gaps between words).
	SilenceTolerance time.Duration
	// MaxUtterance is the buffer hard cap; reaching it forces an endpoint.
	MaxUtterance time.Duration
}

// Endpointer accumulates classified capture chunks and decides where one
// spoken utterance ends. Decisions are driven by chunk durations, never by
// wall-clock sampling, so behaviour is deterministic for a given chunk
// sequence.
type Endpointer struct {
	cfg EndpointConfig

	chunks      []*Chunk
	buffered    time.Duration
	speech      time.Duration
	silence     time.Duration
	speechSeen  bool
}

// NewEndpointer creates an endpointer with the given boundary policy.
func NewEndpointer(cfg EndpointConfig) *Endpointer {
	return &Endpointer{cfg: cfg}
}

// Observe feeds one classified chunk. When an utterance is finalized the
// concatenated samples are returned together with the decision; otherwise the
// samples are nil.
func (e *Endpointer) Observe(chunk *Chunk, isSpeech bool) ([]int16, EndpointDecision) {
	if chunk.Empty() {
		return e.ObserveGap(chunk.Duration())
	}

	if isSpeech {
		if !e.speechSeen {
			e.speechSeen = true
			e.chunks = e.chunks[:0]
			e.buffered = 0
			e.speech = 0
		}
		e.silence = 0
		e.speech += chunk.Duration()
		e.append(chunk)

		if e.buffered >= e.cfg.MaxUtterance {
			return e.finalize(), DecisionForced
		}
		return nil, DecisionNone
	}

	return e.observeSilence(chunk, chunk.Duration())
}

// ObserveGap feeds a period of silence with no audio payload, such as a
// capture timeout.
func (e *Endpointer) ObserveGap(d time.Duration) ([]int16, EndpointDecision) {
	return e.observeSilence(nil, d)
}

func (e *Endpointer) observeSilence(chunk *Chunk, d time.Duration) ([]int16, EndpointDecision) {
	if !e.speechSeen {
		// Idle silence between utterances
		return nil, DecisionNone
	}

	e.silence += d

	// A short pause is still part of the utterance
	if chunk != nil && e.silence <= e.cfg.SilenceTolerance {
		e.append(chunk)
		if e.buffered >= e.cfg.MaxUtterance {
			return e.finalize(), DecisionForced
		}
	}

	if e.silence < e.cfg.EndSilence {
		return nil, DecisionNone
	}

	if e.speech < e.cfg.MinSpeech {
		// Burst too short to be an utterance: noise
		e.reset()
		return nil, DecisionDiscard
	}

	return e.finalize(), DecisionEndpoint
}

// SpeechActive reports whether an utterance is currently being accumulated.
func (e *Endpointer) SpeechActive() bool {
	return e.speechSeen
}

// BufferedDuration returns the duration of audio currently buffered.
func (e *Endpointer) BufferedDuration() time.Duration {
	return e.buffered
}

// Reset drops any partial utterance, e.g. when the conversation state
// machine leaves listening.
func (e *Endpointer) Reset() {
	e.reset()
}

func (e *Endpointer) append(chunk *Chunk) {
	e.chunks = append(e.chunks, chunk)
	e.buffered += chunk.Duration()
}

func (e *Endpointer) finalize() []int16 {
	total := 0
	for _, c := range e.chunks {
		total += len(c.Samples)
	}

	samples := make([]int16, 0, total)
	for _, c := range e.chunks {
		samples = append(samples, c.Samples...)
	}

	e.reset()
	return samples
}

func (e *Endpointer) reset() {
	e.chunks = e.chunks[:0]
	e.buffered = 0
	e.speech = 0
	e.silence = 0
	e.speechSeen = false
}
