package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/GrupoSinergia/voip-agent/internal/capture"
)

// monitorSpacing is the pause between barge-in probe captures, keeping the
// monitor from hammering the recording API.
const monitorSpacing = 50 * time.Millisecond

// monitorLoop probes the channel for caller speech while a reply is
// playing. The first speech-positive probe fires the interrupt and the loop
// exits; the playback coordinator handles the rest.
func (s *Session) monitorLoop(ctx context.Context, interrupt *signal) {
	defer s.wg.Done()

	chunkDuration := s.cfg.Audio.GetChunkDuration()

	for ctx.Err() == nil {
		if s.machine.current() != StateSpeaking {
			return
		}

		chunk, err := s.recorder.Capture(ctx, s.channelID, chunkDuration)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, capture.ErrBusy) {
				s.logger.Debug("Monitor capture failed",
					slog.String("error", err.Error()),
				)
			}
			sleepCtx(ctx, monitorSpacing)
			continue
		}

		if !chunk.Empty() && s.monitorDetector.IsSpeech(chunk.Samples) {
			interrupt.fire()
			return
		}

		sleepCtx(ctx, monitorSpacing)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
