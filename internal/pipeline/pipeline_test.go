package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/GrupoSinergia/voip-agent/internal/config"
	"github.com/GrupoSinergia/voip-agent/internal/metrics"
)

// Prometheus collectors register globally, so all tests share one instance.
var testMetrics = metrics.NewMetrics()

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	return f.text, f.err
}

type fakeReplier struct {
	reply string
	err   error
}

func (f *fakeReplier) Reply(ctx context.Context, text string) (string, error) {
	return f.reply, f.err
}

type fakeSynthesizer struct {
	mu    sync.Mutex
	rate  int
	err   error
	calls int
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) (int, []int16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, nil, f.err
	}
	return f.rate, []int16{1, 2, 3, 4}, nil
}

func (f *fakeSynthesizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu      sync.Mutex
	names   []string
	lastLen int
}

func (f *fakeStore) WriteSLIN(name string, samples []int16) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	f.lastLen = len(samples)
	return "/tmp/" + name + ".slin", nil
}

func ttsConfig() config.TTSConfig {
	return config.TTSConfig{
		Endpoint:        "http://localhost:9100",
		Timeout:         30,
		CacheMaxEntries: 50,
		CacheMaxTextLen: 100,
	}
}

func newTestPipeline(stt *fakeTranscriber, dlg *fakeReplier, synth *fakeSynthesizer, st *fakeStore) *Pipeline {
	return New(stt, dlg, synth, st, ttsConfig(), 8000, testMetrics, discardLogger())
}

func TestRunFullTurn(t *testing.T) {
	synth := &fakeSynthesizer{rate: 8000}
	store := &fakeStore{}
	p := newTestPipeline(&fakeTranscriber{text: "hola"}, &fakeReplier{reply: "buenos días"}, synth, store)

	reply, err := p.Run(context.Background(), "chan-1", make([]int16, 800))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reply == nil {
		t.Fatal("Expected a reply")
	}

	if !strings.HasPrefix(reply.Media, "sound:tts/tts-") {
		t.Errorf("Unexpected media URI %q", reply.Media)
	}
	if reply.Text != "buenos días" {
		t.Errorf("Expected reply text %q, got %q", "buenos días", reply.Text)
	}
	if synth.callCount() != 1 {
		t.Errorf("Expected 1 synthesis call, got %d", synth.callCount())
	}
}

func TestRunEmptyTranscript(t *testing.T) {
	synth := &fakeSynthesizer{rate: 8000}
	p := newTestPipeline(&fakeTranscriber{text: ""}, &fakeReplier{reply: "ignored"}, synth, &fakeStore{})

	reply, err := p.Run(context.Background(), "chan-1", make([]int16, 800))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reply != nil {
		t.Errorf("Expected no reply for empty transcript, got %v", reply)
	}
	if synth.callCount() != 0 {
		t.Errorf("Synthesis should not run for an empty transcript")
	}
}

func TestRunTranscriptionError(t *testing.T) {
	p := newTestPipeline(&fakeTranscriber{err: errors.New("stt down")}, &fakeReplier{}, &fakeSynthesizer{rate: 8000}, &fakeStore{})

	before := testutil.ToFloat64(testMetrics.PipelineNoReply)

	if _, err := p.Run(context.Background(), "chan-1", make([]int16, 800)); err == nil {
		t.Error("Expected error when transcription fails")
	}

	// A failed turn also produced nothing to say
	if got := testutil.ToFloat64(testMetrics.PipelineNoReply); got != before+1 {
		t.Errorf("Expected no-reply counter %v, got %v", before+1, got)
	}
}

func TestRunDialogueUnreachable(t *testing.T) {
	synth := &fakeSynthesizer{rate: 8000}
	p := newTestPipeline(&fakeTranscriber{text: "hola"}, &fakeReplier{err: errors.New("connection refused")}, synth, &fakeStore{})

	reply, err := p.Run(context.Background(), "chan-1", make([]int16, 800))
	if err != nil {
		t.Fatalf("Run should swallow webhook transport errors, got %v", err)
	}
	if reply != nil {
		t.Errorf("Expected no reply when webhook is unreachable, got %v", reply)
	}
	if synth.callCount() != 0 {
		t.Error("Synthesis should not run when the webhook is unreachable")
	}
}

func TestRunEmptyWebhookReply(t *testing.T) {
	p := newTestPipeline(&fakeTranscriber{text: "hola"}, &fakeReplier{reply: ""}, &fakeSynthesizer{rate: 8000}, &fakeStore{})

	reply, err := p.Run(context.Background(), "chan-1", make([]int16, 800))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reply != nil {
		t.Errorf("Expected no reply for empty webhook answer, got %v", reply)
	}
}

func TestSynthesizeReplyFallbackTone(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(&fakeTranscriber{}, &fakeReplier{}, &fakeSynthesizer{err: errors.New("tts down")}, store)

	reply, err := p.SynthesizeReply(context.Background(), "chan-1", "hola")
	if err != nil {
		t.Fatalf("SynthesizeReply failed: %v", err)
	}
	if reply == nil {
		t.Fatal("Expected fallback reply")
	}

	// The staged audio is the 1 second fallback tone
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.lastLen != 8000 {
		t.Errorf("Expected 8000 fallback samples, got %d", store.lastLen)
	}
}

func TestSynthesizeReplyRejectsWrongRate(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(&fakeTranscriber{}, &fakeReplier{}, &fakeSynthesizer{rate: 16000}, store)

	reply, err := p.SynthesizeReply(context.Background(), "chan-1", "hola")
	if err != nil {
		t.Fatalf("SynthesizeReply failed: %v", err)
	}
	if reply == nil {
		t.Fatal("Expected fallback reply")
	}

	// Mismatched sample rate degrades to the fallback tone
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.lastLen != 8000 {
		t.Errorf("Expected fallback tone for mismatched rate, got %d samples", store.lastLen)
	}
}

func TestSynthesisCache(t *testing.T) {
	synth := &fakeSynthesizer{rate: 8000}
	p := newTestPipeline(&fakeTranscriber{}, &fakeReplier{}, synth, &fakeStore{})

	for i := 0; i < 3; i++ {
		if _, err := p.SynthesizeReply(context.Background(), "chan-1", "frase corta"); err != nil {
			t.Fatalf("SynthesizeReply failed: %v", err)
		}
	}

	if synth.callCount() != 1 {
		t.Errorf("Expected 1 synthesis for repeated phrase, got %d", synth.callCount())
	}

	// Texts above the cache limit are always synthesized
	long := strings.Repeat("palabra ", 20)
	p.SynthesizeReply(context.Background(), "chan-1", long)
	p.SynthesizeReply(context.Background(), "chan-1", long)

	if synth.callCount() != 3 {
		t.Errorf("Expected long text synthesized every time, got %d calls", synth.callCount())
	}
}

func TestPrewarm(t *testing.T) {
	synth := &fakeSynthesizer{rate: 8000}
	cfg := ttsConfig()
	cfg.Prewarm = []string{"hola", "adiós"}
	p := New(&fakeTranscriber{}, &fakeReplier{}, synth, &fakeStore{}, cfg, 8000, testMetrics, discardLogger())

	p.Prewarm(context.Background())

	if synth.callCount() != 2 {
		t.Fatalf("Expected 2 prewarm syntheses, got %d", synth.callCount())
	}

	// Prewarmed phrases are served from cache
	p.SynthesizeReply(context.Background(), "chan-1", "hola")
	if synth.callCount() != 2 {
		t.Errorf("Prewarmed phrase should hit the cache, got %d calls", synth.callCount())
	}
}
