package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/GrupoSinergia/voip-agent/internal/pipeline"
)

// play speaks one staged reply to the caller with barge-in support. It owns
// the Speaking phase: the session enters in Processing and always leaves in
// Listening, whether playback completed, was interrupted, or timed out.
func (s *Session) play(reply *pipeline.Reply) {
	s.cleaner.RemoveAfter(reply.Path, s.cfg.Agent.GetCleanupDelay())

	if !s.machine.transition(StateProcessing, StateSpeaking) {
		return
	}
	defer s.resumeListening()

	if s.cfg.Agent.MuteWhileSpeaking {
		if err := s.platform.Mute(s.ctx, s.channelID, "in"); err != nil {
			s.logger.Debug("Failed to mute channel",
				slog.String("error", err.Error()),
			)
		}
		defer func() {
			if err := s.platform.Unmute(context.WithoutCancel(s.ctx), s.channelID, "in"); err != nil {
				s.logger.Debug("Failed to unmute channel",
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	playbackID, err := s.platform.Play(s.ctx, s.channelID, reply.Media)
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Error("Failed to start playback",
				slog.String("media", reply.Media),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	s.metrics.RecordPlaybackStarted()

	s.logger.Info("Speaking",
		slog.String("text", reply.Text),
		slog.String("playback_id", playbackID),
	)

	done, cancelWait := s.platform.WaitPlayback(playbackID)
	defer cancelWait()

	// Barge-in monitor runs only while this playback is live. A muted
	// channel records nothing, so the monitor is pointless there.
	interrupt := newSignal()
	monitorCtx, stopMonitor := context.WithCancel(s.ctx)
	defer stopMonitor()

	if !s.cfg.Agent.MuteWhileSpeaking {
		s.wg.Add(1)
		go s.monitorLoop(monitorCtx, interrupt)
	}

	timer := time.NewTimer(s.cfg.Agent.GetPlaybackTimeout())
	defer timer.Stop()

	select {
	case <-done:
		// Playback finished naturally

	case <-interrupt.ch:
		s.metrics.RecordBargeIn()
		s.logger.Info("Caller barged in, stopping playback",
			slog.String("playback_id", playbackID),
		)
		s.machine.transition(StateSpeaking, StateInterrupted)
		if err := s.platform.StopPlayback(s.ctx, playbackID); err != nil {
			s.logger.Debug("Failed to stop playback",
				slog.String("error", err.Error()),
			)
		}

	case <-timer.C:
		s.metrics.RecordPlaybackTimeout()
		s.logger.Warn("Playback exceeded safety timeout",
			slog.String("playback_id", playbackID),
		)
		if err := s.platform.StopPlayback(s.ctx, playbackID); err != nil {
			s.logger.Debug("Failed to stop overdue playback",
				slog.String("error", err.Error()),
			)
		}

	case <-s.ctx.Done():
		if err := s.platform.StopPlayback(context.WithoutCancel(s.ctx), playbackID); err != nil {
			s.logger.Debug("Failed to stop playback on shutdown",
				slog.String("error", err.Error()),
			)
		}
	}
}

// resumeListening returns the session to Listening from whichever phase
// playback ended in, dropping any partial capture state.
func (s *Session) resumeListening() {
	s.endpointer.Reset()
	s.captureDetector.Reset()
	s.monitorDetector.Reset()

	if !s.machine.transition(StateSpeaking, StateListening) {
		s.machine.transition(StateInterrupted, StateListening)
	}
}
