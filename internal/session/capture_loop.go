package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/GrupoSinergia/voip-agent/internal/audio"
	"github.com/GrupoSinergia/voip-agent/internal/capture"
)

// idleBackoff is how long the capture loop sleeps while another actor owns
// the conversation (processing or speaking).
const idleBackoff = 50 * time.Millisecond

func (s *Session) run() {
	defer s.wg.Done()

	s.logger.Info("Session started",
		slog.String("caller", s.callerNumber),
	)

	s.playWelcome()
	s.captureLoop()

	s.logger.Info("Session finished",
		slog.Duration("duration", time.Since(s.started)),
	)
}

// playWelcome speaks the configured greeting before the first capture. The
// greeting runs through the normal turn states so barge-in works on it too.
func (s *Session) playWelcome() {
	text := s.cfg.Agent.WelcomeText
	if text == "" {
		return
	}

	if !s.machine.transition(StateListening, StateProcessing) {
		return
	}

	reply, err := s.pipeline.SynthesizeReply(s.ctx, s.channelID, text)
	if err != nil {
		s.logger.Error("Failed to synthesize welcome",
			slog.String("error", err.Error()),
		)
		s.machine.transition(StateProcessing, StateListening)
		return
	}

	s.play(reply)
}

// captureLoop is the session's main loop: record short chunks, classify
// them, and hand finalized utterances to the turn pipeline.
func (s *Session) captureLoop() {
	chunkDuration := s.cfg.Audio.GetChunkDuration()

	for s.ctx.Err() == nil {
		if s.machine.current() != StateListening {
			s.sleep(idleBackoff)
			continue
		}

		chunk, err := s.recorder.Capture(s.ctx, s.channelID, chunkDuration)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if errors.Is(err, capture.ErrBusy) {
				s.metrics.RecordCaptureBusy()
				s.logger.Debug("Capture lease busy")
			} else {
				s.metrics.RecordCaptureError()
				s.logger.Warn("Capture failed",
					slog.String("error", err.Error()),
				)
			}
			s.sleep(chunkDuration)
			continue
		}

		var samples []int16
		var decision audio.EndpointDecision
		if chunk.Empty() {
			samples, decision = s.endpointer.ObserveGap(chunkDuration)
		} else {
			samples, decision = s.endpointer.Observe(chunk, s.captureDetector.IsSpeech(chunk.Samples))
		}

		switch decision {
		case audio.DecisionNone:
			continue
		case audio.DecisionDiscard:
			s.metrics.RecordDiscardedBurst()
			s.captureDetector.Reset()
			s.logger.Debug("Discarded short speech burst")
		case audio.DecisionEndpoint, audio.DecisionForced:
			if decision == audio.DecisionForced {
				s.metrics.RecordForcedEndpoint()
			}
			s.metrics.RecordUtterance(audio.DurationOf(len(samples), s.cfg.Audio.SampleRate).Seconds())
			s.captureDetector.Reset()
			s.runTurn(samples)
		}
	}
}

// runTurn pushes one finalized utterance through the dialogue pipeline and
// plays the reply.
func (s *Session) runTurn(samples []int16) {
	if !s.machine.transition(StateListening, StateProcessing) {
		return
	}

	s.logger.Info("Utterance finalized",
		slog.Duration("length", audio.DurationOf(len(samples), s.cfg.Audio.SampleRate)),
	)

	reply, err := s.pipeline.Run(s.ctx, s.channelID, samples)
	if err != nil {
		s.logger.Error("Turn failed",
			slog.String("error", err.Error()),
		)
	}
	if reply == nil {
		s.machine.transition(StateProcessing, StateListening)
		return
	}

	s.play(reply)
}

func (s *Session) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-s.ctx.Done():
	}
}
