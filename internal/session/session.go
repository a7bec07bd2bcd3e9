package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/GrupoSinergia/voip-agent/internal/audio"
	"github.com/GrupoSinergia/voip-agent/internal/config"
	"github.com/GrupoSinergia/voip-agent/internal/metrics"
	"github.com/GrupoSinergia/voip-agent/internal/pipeline"
	"github.com/GrupoSinergia/voip-agent/internal/vad"
)

// Platform is the telephony control surface sessions drive.
type Platform interface {
	Answer(ctx context.Context, channelID string) error
	Hangup(ctx context.Context, channelID string) error
	Play(ctx context.Context, channelID, media string) (string, error)
	StopPlayback(ctx context.Context, playbackID string) error
	Mute(ctx context.Context, channelID, direction string) error
	Unmute(ctx context.Context, channelID, direction string) error
	CreateBridge(ctx context.Context, bridgeID string) error
	AddChannelToBridge(ctx context.Context, bridgeID, channelID string) error
	DestroyBridge(ctx context.Context, bridgeID string) error
	// WaitPlayback registers interest in a playback finishing. The cancel
	// must be called when the waiter is abandoned.
	WaitPlayback(playbackID string) (<-chan struct{}, func())
}

// Recorder captures one audio chunk from a channel.
type Recorder interface {
	Capture(ctx context.Context, channelID string, duration time.Duration) (*audio.Chunk, error)
}

// TurnPipeline runs dialogue turns and stages reply audio.
type TurnPipeline interface {
	Run(ctx context.Context, channelID string, samples []int16) (*pipeline.Reply, error)
	SynthesizeReply(ctx context.Context, channelID, text string) (*pipeline.Reply, error)
}

// Cleaner schedules deferred removal of staged playback artifacts.
type Cleaner interface {
	RemoveAfter(path string, delay time.Duration)
}

// Session is one live call's conversation loop.
type Session struct {
	channelID    string
	callerNumber string
	bridgeID     string

	platform Platform
	recorder Recorder
	pipeline TurnPipeline
	cleaner  Cleaner

	// Separate detector instances for the capture loop and the barge-in
	// monitor; detectors carry smoothing state and are not shared.
	captureDetector vad.Detector
	monitorDetector vad.Detector
	endpointer      *audio.Endpointer

	machine *stateMachine
	cfg     *config.Config
	metrics *metrics.Metrics
	logger  *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started time.Time
}

// SessionInfo is a point-in-time view of a session for the monitoring API.
type SessionInfo struct {
	ChannelID string  `json:"channel_id"`
	Caller    string  `json:"caller"`
	State     string  `json:"state"`
	StartedAt string  `json:"started_at"`
	Duration  float64 `json:"duration_seconds"`
}

// NewSession creates a session for an answered channel. Start must be called
// to begin the conversation loop.
func NewSession(channelID, callerNumber, bridgeID string, platform Platform, recorder Recorder, turns TurnPipeline, cleaner Cleaner, captureDet, monitorDet vad.Detector, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		channelID:       channelID,
		callerNumber:    callerNumber,
		bridgeID:        bridgeID,
		platform:        platform,
		recorder:        recorder,
		pipeline:        turns,
		cleaner:         cleaner,
		captureDetector: captureDet,
		monitorDetector: monitorDet,
		endpointer: audio.NewEndpointer(audio.EndpointConfig{
			MinSpeech:        cfg.VAD.GetMinSpeechDuration(),
			EndSilence:       cfg.VAD.GetEndSilenceDuration(),
			SilenceTolerance: cfg.VAD.GetSilenceTolerance(),
			MaxUtterance:     cfg.VAD.GetMaxUtteranceDuration(),
		}),
		machine: newStateMachine(),
		cfg:     cfg,
		metrics: m,
		logger: logger.With(
			slog.String("channel_id", channelID),
		),
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
	}
}

// Start launches the conversation loop.
func (s *Session) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop cancels the conversation loop and waits for its goroutines to exit.
func (s *Session) Stop() {
	s.cancel()
	s.wg.Wait()
}

// State returns the current conversation phase.
func (s *Session) State() State {
	return s.machine.current()
}

// Duration returns how long the session has been alive.
func (s *Session) Duration() time.Duration {
	return time.Since(s.started)
}

// Info returns a snapshot for the monitoring API.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ChannelID: s.channelID,
		Caller:    s.callerNumber,
		State:     s.machine.current().String(),
		StartedAt: s.started.Format(time.RFC3339),
		Duration:  time.Since(s.started).Seconds(),
	}
}
