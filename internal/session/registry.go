package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/GrupoSinergia/voip-agent/internal/ari"
	"github.com/GrupoSinergia/voip-agent/internal/capture"
	"github.com/GrupoSinergia/voip-agent/internal/config"
	"github.com/GrupoSinergia/voip-agent/internal/metrics"
	"github.com/GrupoSinergia/voip-agent/internal/vad"
)

// dtmfPlayTimeout bounds the fire-and-forget digit echo playback.
const dtmfPlayTimeout = 5 * time.Second

// Registry tracks live call sessions and drives their lifecycle from the
// telephony event stream.
type Registry struct {
	platform    Platform
	recorder    Recorder
	pipeline    TurnPipeline
	cleaner     Cleaner
	guard       *capture.Guard
	newDetector vad.Factory
	cfg         *config.Config
	metrics     *metrics.Metrics
	logger      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(platform Platform, recorder Recorder, turns TurnPipeline, cleaner Cleaner, guard *capture.Guard, factory vad.Factory, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *Registry {
	return &Registry{
		platform:    platform,
		recorder:    recorder,
		pipeline:    turns,
		cleaner:     cleaner,
		guard:       guard,
		newDetector: factory,
		cfg:         cfg,
		metrics:     m,
		logger:      logger,
		sessions:    make(map[string]*Session),
	}
}

// Run consumes telephony events until the stream closes or ctx is
// cancelled.
func (r *Registry) Run(ctx context.Context, events <-chan ari.Event) {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			r.dispatch(ctx, event)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Registry) dispatch(ctx context.Context, event ari.Event) {
	switch ev := event.(type) {
	case ari.StasisStart:
		r.OnCallStart(ctx, ev.Channel)
	case ari.StasisEnd:
		r.OnCallEnd(ctx, ev.Channel.ID)
	case ari.ChannelDtmfReceived:
		r.HandleDTMF(ctx, ev.Channel.ID, ev.Digit)
	}
}

// OnCallStart answers an incoming channel, places it in a mixing bridge,
// and starts its conversation session.
func (r *Registry) OnCallStart(ctx context.Context, channel ari.ChannelInfo) {
	r.logger.Info("Incoming call",
		slog.String("channel_id", channel.ID),
		slog.String("caller", channel.Caller.Number),
	)

	if err := r.platform.Answer(ctx, channel.ID); err != nil {
		r.logger.Error("Failed to answer channel",
			slog.String("channel_id", channel.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	bridgeID := "bridge-" + channel.ID
	if err := r.platform.CreateBridge(ctx, bridgeID); err != nil {
		r.logger.Warn("Failed to create bridge, continuing without one",
			slog.String("channel_id", channel.ID),
			slog.String("error", err.Error()),
		)
		bridgeID = ""
	} else if err := r.platform.AddChannelToBridge(ctx, bridgeID, channel.ID); err != nil {
		r.logger.Warn("Failed to bridge channel",
			slog.String("channel_id", channel.ID),
			slog.String("error", err.Error()),
		)
	}

	captureDet, err := r.newDetector()
	if err == nil {
		var monitorDet vad.Detector
		monitorDet, err = r.newDetector()
		if err == nil {
			session := NewSession(channel.ID, channel.Caller.Number, bridgeID, r.platform, r.recorder, r.pipeline, r.cleaner, captureDet, monitorDet, r.cfg, r.metrics, r.logger)

			r.mu.Lock()
			r.sessions[channel.ID] = session
			count := len(r.sessions)
			r.mu.Unlock()

			r.metrics.RecordCallStarted()
			r.metrics.SetActiveCalls(count)

			session.Start()
			return
		}
	}

	r.logger.Error("Failed to create voice detectors",
		slog.String("channel_id", channel.ID),
		slog.String("error", err.Error()),
	)
	if err := r.platform.Hangup(ctx, channel.ID); err != nil {
		r.logger.Debug("Failed to hang up channel",
			slog.String("channel_id", channel.ID),
			slog.String("error", err.Error()),
		)
	}
}

// OnCallEnd tears down the channel's session and its platform resources.
func (r *Registry) OnCallEnd(ctx context.Context, channelID string) {
	r.mu.Lock()
	session, ok := r.sessions[channelID]
	if ok {
		delete(r.sessions, channelID)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return
	}

	session.Stop()

	if session.bridgeID != "" {
		if err := r.platform.DestroyBridge(ctx, session.bridgeID); err != nil {
			r.logger.Debug("Failed to destroy bridge",
				slog.String("bridge_id", session.bridgeID),
				slog.String("error", err.Error()),
			)
		}
	}

	r.guard.Forget(channelID)

	duration := session.Duration()
	r.metrics.RecordCallEnded(duration.Seconds())
	r.metrics.SetActiveCalls(count)

	r.logger.Info("Call ended",
		slog.String("channel_id", channelID),
		slog.Duration("duration", duration),
	)
}

// HandleDTMF echoes the pressed digit back to the caller; '#' hangs up.
// Digit echo never touches the conversation state machine.
func (r *Registry) HandleDTMF(ctx context.Context, channelID, digit string) {
	r.metrics.RecordDTMF()

	r.logger.Info("DTMF received",
		slog.String("channel_id", channelID),
		slog.String("digit", digit),
	)

	if digit == "#" {
		if err := r.platform.Hangup(ctx, channelID); err != nil {
			r.logger.Warn("Failed to hang up on '#'",
				slog.String("channel_id", channelID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	go func() {
		playCtx, cancel := context.WithTimeout(context.Background(), dtmfPlayTimeout)
		defer cancel()

		if _, err := r.platform.Play(playCtx, channelID, "sound:digits/"+digit); err != nil {
			r.logger.Debug("Failed to echo digit",
				slog.String("channel_id", channelID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Sessions returns monitoring snapshots of all live sessions.
func (r *Registry) Sessions() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, session := range r.sessions {
		infos = append(infos, session.Info())
	}
	return infos
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown hangs up every live call and waits for the sessions to finish.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	sessions := make(map[string]*Session, len(r.sessions))
	for id, session := range r.sessions {
		sessions[id] = session
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for channelID, session := range sessions {
		if err := r.platform.Hangup(ctx, channelID); err != nil {
			r.logger.Debug("Failed to hang up on shutdown",
				slog.String("channel_id", channelID),
				slog.String("error", err.Error()),
			)
		}

		session.Stop()

		if session.bridgeID != "" {
			if err := r.platform.DestroyBridge(ctx, session.bridgeID); err != nil {
				r.logger.Debug("Failed to destroy bridge on shutdown",
					slog.String("bridge_id", session.bridgeID),
					slog.String("error", err.Error()),
				)
			}
		}

		r.guard.Forget(channelID)
		r.metrics.RecordCallEnded(session.Duration().Seconds())
	}

	r.metrics.SetActiveCalls(0)
	r.logger.Info("All sessions stopped",
		slog.Int("count", len(sessions)),
	)
}
