package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/GrupoSinergia/voip-agent/internal/ari"
	"github.com/GrupoSinergia/voip-agent/internal/audio"
	"github.com/GrupoSinergia/voip-agent/internal/capture"
	"github.com/GrupoSinergia/voip-agent/internal/config"
	"github.com/GrupoSinergia/voip-agent/internal/metrics"
	"github.com/GrupoSinergia/voip-agent/internal/pipeline"
	"github.com/GrupoSinergia/voip-agent/internal/vad"
)

// Prometheus collectors register globally, so all tests share one instance.
var testMetrics = metrics.NewMetrics()

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Agent: config.AgentConfig{
			PlaybackTimeout: 1.0,
			CleanupDelay:    0.01,
			PlaybackGain:    0.7,
		},
		Audio: config.AudioConfig{
			SampleRate:    8000,
			Channels:      1,
			BitDepth:      16,
			ChunkDuration: 0.01,
		},
		VAD: config.VADConfig{
			Engine:               "energy",
			Threshold:            0.05,
			MinSpeechDuration:    0.01,
			EndSilenceDuration:   0.03,
			SilenceTolerance:     0.02,
			MaxUtteranceDuration: 1.0,
		},
	}
}

type fakePlatform struct {
	mu             sync.Mutex
	answered       []string
	hungup         []string
	played         []string
	stopped        []string
	bridges        []string
	destroyed      []string
	playbackDone   chan struct{}
	nextPlaybackID string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		playbackDone:   make(chan struct{}),
		nextPlaybackID: "pb-1",
	}
}

func (p *fakePlatform) Answer(ctx context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answered = append(p.answered, channelID)
	return nil
}

func (p *fakePlatform) Hangup(ctx context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hungup = append(p.hungup, channelID)
	return nil
}

func (p *fakePlatform) Play(ctx context.Context, channelID, media string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, media)
	return p.nextPlaybackID, nil
}

func (p *fakePlatform) StopPlayback(ctx context.Context, playbackID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = append(p.stopped, playbackID)
	return nil
}

func (p *fakePlatform) Mute(ctx context.Context, channelID, direction string) error   { return nil }
func (p *fakePlatform) Unmute(ctx context.Context, channelID, direction string) error { return nil }

func (p *fakePlatform) CreateBridge(ctx context.Context, bridgeID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bridges = append(p.bridges, bridgeID)
	return nil
}

func (p *fakePlatform) AddChannelToBridge(ctx context.Context, bridgeID, channelID string) error {
	return nil
}

func (p *fakePlatform) DestroyBridge(ctx context.Context, bridgeID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyed = append(p.destroyed, bridgeID)
	return nil
}

func (p *fakePlatform) WaitPlayback(playbackID string) (<-chan struct{}, func()) {
	return p.playbackDone, func() {}
}

func (p *fakePlatform) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stopped)
}

// fakeRecorder serves a fixed chunk on every capture.
type fakeRecorder struct {
	mu    sync.Mutex
	chunk *audio.Chunk
	delay time.Duration
}

func (r *fakeRecorder) Capture(ctx context.Context, channelID string, duration time.Duration) (*audio.Chunk, error) {
	if r.delay > 0 {
		timer := time.NewTimer(r.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.chunk == nil {
		return &audio.Chunk{SampleRate: 8000}, nil
	}
	return r.chunk, nil
}

// fakeDetector reports a fixed classification.
type fakeDetector struct {
	speech bool
}

func (d *fakeDetector) IsSpeech(samples []int16) bool { return d.speech }
func (d *fakeDetector) Reset()                        {}

type fakePipeline struct {
	mu    sync.Mutex
	reply *pipeline.Reply
	runs  int
}

func (p *fakePipeline) Run(ctx context.Context, channelID string, samples []int16) (*pipeline.Reply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs++
	return p.reply, nil
}

func (p *fakePipeline) SynthesizeReply(ctx context.Context, channelID, text string) (*pipeline.Reply, error) {
	return &pipeline.Reply{Media: "sound:tts/welcome", Path: "/tmp/welcome.slin", Text: text}, nil
}

type fakeCleaner struct {
	mu      sync.Mutex
	removed []string
}

func (c *fakeCleaner) RemoveAfter(path string, delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, path)
}

func speechChunk() *audio.Chunk {
	samples := make([]int16, 80)
	for i := range samples {
		samples[i] = 5000
	}
	return &audio.Chunk{Samples: samples, SampleRate: 8000}
}

func newTestSession(platform *fakePlatform, recorder *fakeRecorder, turns TurnPipeline, cleaner *fakeCleaner, monitorSpeech bool) *Session {
	return NewSession("chan-1", "1000", "bridge-chan-1", platform, recorder, turns, cleaner,
		&fakeDetector{speech: false}, &fakeDetector{speech: monitorSpeech},
		testConfig(), testMetrics, discardLogger())
}

func TestPlaybackBargeIn(t *testing.T) {
	platform := newFakePlatform()
	recorder := &fakeRecorder{chunk: speechChunk()}
	cleaner := &fakeCleaner{}
	s := newTestSession(platform, recorder, &fakePipeline{}, cleaner, true)
	defer s.Stop()

	if !s.machine.transition(StateListening, StateProcessing) {
		t.Fatal("Failed to enter processing")
	}

	// Playback never finishes on its own; the monitor must cut it off
	s.play(&pipeline.Reply{Media: "sound:tts/reply", Path: "/tmp/reply.slin", Text: "hello"})

	if got := platform.stopCount(); got != 1 {
		t.Errorf("Expected playback stopped exactly once, got %d", got)
	}
	if s.State() != StateListening {
		t.Errorf("Expected Listening after barge-in, got %v", s.State())
	}

	cleaner.mu.Lock()
	defer cleaner.mu.Unlock()
	if len(cleaner.removed) != 1 || cleaner.removed[0] != "/tmp/reply.slin" {
		t.Errorf("Expected artifact cleanup scheduled, got %v", cleaner.removed)
	}
}

func TestPlaybackCompletes(t *testing.T) {
	platform := newFakePlatform()
	close(platform.playbackDone) // Playback finishes immediately

	recorder := &fakeRecorder{} // silence only
	s := newTestSession(platform, recorder, &fakePipeline{}, &fakeCleaner{}, false)
	defer s.Stop()

	if !s.machine.transition(StateListening, StateProcessing) {
		t.Fatal("Failed to enter processing")
	}

	s.play(&pipeline.Reply{Media: "sound:tts/reply", Path: "/tmp/reply.slin", Text: "hello"})

	if got := platform.stopCount(); got != 0 {
		t.Errorf("Completed playback should not be stopped, got %d stops", got)
	}
	if s.State() != StateListening {
		t.Errorf("Expected Listening after playback, got %v", s.State())
	}
}

func TestRunTurnWithoutReplyResumesListening(t *testing.T) {
	platform := newFakePlatform()
	turns := &fakePipeline{reply: nil}
	s := newTestSession(platform, &fakeRecorder{}, turns, &fakeCleaner{}, false)
	defer s.Stop()

	s.runTurn(make([]int16, 800))

	if s.State() != StateListening {
		t.Errorf("Expected Listening after empty turn, got %v", s.State())
	}

	platform.mu.Lock()
	defer platform.mu.Unlock()
	if len(platform.played) != 0 {
		t.Errorf("No playback expected for an empty turn, got %v", platform.played)
	}
}

func TestRegistryLifecycle(t *testing.T) {
	platform := newFakePlatform()
	close(platform.playbackDone)

	guard := capture.NewGuard()
	recorder := &fakeRecorder{delay: time.Millisecond}
	factory := vad.Factory(func() (vad.Detector, error) {
		return &fakeDetector{}, nil
	})

	registry := NewRegistry(platform, recorder, &fakePipeline{}, &fakeCleaner{}, guard, factory, testConfig(), testMetrics, discardLogger())

	channel := ari.ChannelInfo{ID: "chan-42"}
	channel.Caller.Number = "2000"

	registry.OnCallStart(context.Background(), channel)

	if registry.Count() != 1 {
		t.Fatalf("Expected 1 session, got %d", registry.Count())
	}

	platform.mu.Lock()
	if len(platform.answered) != 1 || platform.answered[0] != "chan-42" {
		t.Errorf("Expected channel answered, got %v", platform.answered)
	}
	if len(platform.bridges) != 1 || platform.bridges[0] != "bridge-chan-42" {
		t.Errorf("Expected mixing bridge created, got %v", platform.bridges)
	}
	platform.mu.Unlock()

	infos := registry.Sessions()
	if len(infos) != 1 || infos[0].ChannelID != "chan-42" {
		t.Errorf("Expected session info for chan-42, got %v", infos)
	}

	registry.OnCallEnd(context.Background(), "chan-42")

	if registry.Count() != 0 {
		t.Errorf("Expected empty registry, got %d sessions", registry.Count())
	}
	if guard.Held("chan-42") {
		t.Error("Capture lease should be released after call end")
	}

	platform.mu.Lock()
	defer platform.mu.Unlock()
	if len(platform.destroyed) != 1 || platform.destroyed[0] != "bridge-chan-42" {
		t.Errorf("Expected bridge destroyed, got %v", platform.destroyed)
	}
}

func TestRegistryDTMFHangup(t *testing.T) {
	platform := newFakePlatform()
	registry := NewRegistry(platform, &fakeRecorder{}, &fakePipeline{}, &fakeCleaner{}, capture.NewGuard(), nil, testConfig(), testMetrics, discardLogger())

	registry.HandleDTMF(context.Background(), "chan-1", "#")

	platform.mu.Lock()
	defer platform.mu.Unlock()
	if len(platform.hungup) != 1 || platform.hungup[0] != "chan-1" {
		t.Errorf("Expected '#' to hang up the channel, got %v", platform.hungup)
	}
}

func TestRegistryRunStopsBeforeShutdown(t *testing.T) {
	platform := newFakePlatform()
	close(platform.playbackDone)

	factory := vad.Factory(func() (vad.Detector, error) {
		return &fakeDetector{}, nil
	})
	registry := NewRegistry(platform, &fakeRecorder{delay: time.Millisecond}, &fakePipeline{}, &fakeCleaner{}, capture.NewGuard(), factory, testConfig(), testMetrics, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan ari.Event, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		registry.Run(ctx, events)
	}()

	// Dispatch must have fully stopped before shutdown begins, so a call
	// arriving afterwards can never produce an unsupervised session
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	start := ari.StasisStart{}
	start.Channel.ID = "chan-late"
	events <- start

	registry.Shutdown(context.Background())

	if registry.Count() != 0 {
		t.Errorf("Expected no sessions after shutdown, got %d", registry.Count())
	}
	platform.mu.Lock()
	defer platform.mu.Unlock()
	if len(platform.answered) != 0 {
		t.Errorf("Expected no channel answered after dispatch stopped, got %v", platform.answered)
	}
}

func TestRegistryRunReturnsOnStreamClose(t *testing.T) {
	registry := NewRegistry(newFakePlatform(), &fakeRecorder{}, &fakePipeline{}, &fakeCleaner{}, capture.NewGuard(), nil, testConfig(), testMetrics, discardLogger())

	events := make(chan ari.Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		registry.Run(context.Background(), events)
	}()

	close(events)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the event stream closed")
	}
}

func TestRegistryIgnoresUnknownCallEnd(t *testing.T) {
	platform := newFakePlatform()
	registry := NewRegistry(platform, &fakeRecorder{}, &fakePipeline{}, &fakeCleaner{}, capture.NewGuard(), nil, testConfig(), testMetrics, discardLogger())

	registry.OnCallEnd(context.Background(), "never-seen")

	platform.mu.Lock()
	defer platform.mu.Unlock()
	if len(platform.destroyed) != 0 {
		t.Errorf("Unexpected bridge teardown: %v", platform.destroyed)
	}
}
