package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/GrupoSinergia/voip-agent/internal/audio"
	"github.com/GrupoSinergia/voip-agent/internal/config"
	"github.com/GrupoSinergia/voip-agent/internal/metrics"
)

// transcriber converts a finalized utterance to text.
type transcriber interface {
	Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error)
}

// replier produces the agent's reply text for a transcript.
type replier interface {
	Reply(ctx context.Context, text string) (string, error)
}

// synthesizer converts reply text to PCM samples.
type synthesizer interface {
	Synthesize(ctx context.Context, text string) (int, []int16, error)
}

// store stages playback audio where the telephony platform can serve it.
type store interface {
	WriteSLIN(name string, samples []int16) (string, error)
}

// Reply is a staged spoken reply ready for playback.
type Reply struct {
	// Media is the platform playback URI.
	Media string
	// Path is the staged artifact on disk, for deferred cleanup.
	Path string
	// Text is the reply text, for logging.
	Text string
}

// Pipeline runs dialogue turns for all sessions.
type Pipeline struct {
	stt        transcriber
	dialogue   replier
	tts        synthesizer
	store      store
	cache      *cache
	prewarm    []string
	sampleRate int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New creates a pipeline. SampleRate is the telephony rate synthesized audio
// must match.
func New(stt transcriber, dialogue replier, tts synthesizer, st store, cfg config.TTSConfig, sampleRate int, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		stt:        stt,
		dialogue:   dialogue,
		tts:        tts,
		store:      st,
		cache:      newCache(cfg.CacheMaxEntries, cfg.CacheMaxTextLen),
		prewarm:    cfg.Prewarm,
		sampleRate: sampleRate,
		metrics:    m,
		logger:     logger,
	}
}

// Run executes one turn on a finalized utterance. A nil reply with nil error
// means the turn produced nothing to say and the session should resume
// listening.
func (p *Pipeline) Run(ctx context.Context, channelID string, samples []int16) (*Reply, error) {
	started := time.Now()

	sttStart := time.Now()
	text, err := p.stt.Transcribe(ctx, samples, p.sampleRate)
	p.metrics.SetSTTLatency(time.Since(sttStart).Seconds())
	if err != nil {
		p.metrics.RecordPipelineNoReply()
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	if text == "" {
		p.logger.Debug("Utterance produced no transcript",
			slog.String("channel_id", channelID),
		)
		p.metrics.RecordPipelineNoReply()
		return nil, nil
	}

	p.logger.Info("Caller said",
		slog.String("channel_id", channelID),
		slog.String("text", text),
	)

	dlgStart := time.Now()
	replyText, err := p.dialogue.Reply(ctx, text)
	p.metrics.SetDialogueLatency(time.Since(dlgStart).Seconds())
	if err != nil {
		p.logger.Error("Dialogue webhook unreachable",
			slog.String("channel_id", channelID),
			slog.String("error", err.Error()),
		)
		p.metrics.RecordPipelineNoReply()
		return nil, nil
	}

	if replyText == "" {
		p.metrics.RecordPipelineNoReply()
		return nil, nil
	}

	reply, err := p.SynthesizeReply(ctx, channelID, replyText)
	if err != nil {
		return nil, err
	}

	p.metrics.RecordTurn(time.Since(started).Seconds())
	return reply, nil
}

// SynthesizeReply stages the audio for one reply text. Synthesis failures
// degrade to a fallback tone so the caller always hears a response.
func (p *Pipeline) SynthesizeReply(ctx context.Context, channelID, text string) (*Reply, error) {
	samples := p.synthesize(ctx, channelID, text)

	name := "tts-" + uuid.NewString()[:8]
	path, err := p.store.WriteSLIN(name, samples)
	if err != nil {
		return nil, fmt.Errorf("failed to stage reply audio: %w", err)
	}

	return &Reply{
		Media: "sound:tts/" + name,
		Path:  path,
		Text:  text,
	}, nil
}

// Prewarm synthesizes the configured phrases into the cache so the first
// calls of the day do not pay synthesis latency for greetings.
func (p *Pipeline) Prewarm(ctx context.Context) {
	for _, phrase := range p.prewarm {
		if !p.cache.cacheable(phrase) {
			continue
		}
		if _, ok := p.cache.get(phrase); ok {
			continue
		}

		rate, samples, err := p.tts.Synthesize(ctx, phrase)
		if err != nil {
			p.logger.Warn("Failed to prewarm phrase",
				slog.String("text", phrase),
				slog.String("error", err.Error()),
			)
			continue
		}
		if rate != p.sampleRate {
			p.logger.Warn("Skipping prewarm phrase with mismatched sample rate",
				slog.Int("got", rate),
				slog.Int("want", p.sampleRate),
			)
			continue
		}

		p.cache.put(phrase, samples)
	}

	p.logger.Info("Synthesis cache prewarmed",
		slog.Int("entries", p.cache.size()),
	)
}

func (p *Pipeline) synthesize(ctx context.Context, channelID, text string) []int16 {
	if p.cache.cacheable(text) {
		if samples, ok := p.cache.get(text); ok {
			p.metrics.RecordCacheHit()
			return samples
		}
		p.metrics.RecordCacheMiss()
	}

	ttsStart := time.Now()
	rate, samples, err := p.tts.Synthesize(ctx, text)
	p.metrics.SetTTSLatency(time.Since(ttsStart).Seconds())

	if err == nil && rate != p.sampleRate {
		err = fmt.Errorf("synthesized audio at %d Hz, expected %d Hz", rate, p.sampleRate)
	}
	if err != nil {
		p.logger.Error("Synthesis failed, playing fallback tone",
			slog.String("channel_id", channelID),
			slog.String("error", err.Error()),
		)
		p.metrics.RecordSynthFallback()
		return audio.FallbackTone(p.sampleRate)
	}

	if p.cache.cacheable(text) {
		p.cache.put(text, samples)
	}

	return samples
}
