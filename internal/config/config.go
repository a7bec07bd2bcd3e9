package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete agent configuration
type Config struct {
	ARI      ARIConfig      `yaml:"ari"`
	HTTP     HTTPConfig     `yaml:"http"`
	Agent    AgentConfig    `yaml:"agent"`
	Audio    AudioConfig    `yaml:"audio"`
	VAD      VADConfig      `yaml:"vad"`
	STT      STTConfig      `yaml:"stt"`
	TTS      TTSConfig      `yaml:"tts"`
	Dialogue DialogueConfig `yaml:"dialogue"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ARIConfig contains the Asterisk REST Interface connection parameters
type ARIConfig struct {
	URL             string  `yaml:"url"`
	Username        string  `yaml:"username"`
	Password        string  `yaml:"password"`
	Application     string  `yaml:"application"`
	ConnectAttempts int     `yaml:"connect_attempts"`
	ConnectBackoff  float64 `yaml:"connect_backoff"` // seconds, doubled per attempt
}

// HTTPConfig contains the monitoring HTTP server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// AgentConfig contains call-handling behaviour parameters
type AgentConfig struct {
	WelcomeText       string  `yaml:"welcome_text"`
	MuteWhileSpeaking bool    `yaml:"mute_while_speaking"`
	RecordingDir      string  `yaml:"recording_dir"`
	SoundsDir         string  `yaml:"sounds_dir"`
	PlaybackTimeout   float64 `yaml:"playback_timeout"` // seconds
	CleanupDelay      float64 `yaml:"cleanup_delay"`    // seconds
	PlaybackGain      float64 `yaml:"playback_gain"`
}

// AudioConfig contains audio capture parameters
type AudioConfig struct {
	SampleRate        int     `yaml:"sample_rate"`
	Channels          int     `yaml:"channels"`
	BitDepth          int     `yaml:"bit_depth"`
	ChunkDuration     float64 `yaml:"chunk_duration"`      // seconds
	CaptureWaitMargin float64 `yaml:"capture_wait_margin"` // seconds
}

// VADConfig contains voice activity detection and endpointing configuration
type VADConfig struct {
	Engine               string  `yaml:"engine"` // "energy" or "webrtc"
	Threshold            float32 `yaml:"threshold"`
	Aggressiveness       int     `yaml:"aggressiveness"`
	MinSpeechDuration    float64 `yaml:"min_speech_duration"`    // seconds
	EndSilenceDuration   float64 `yaml:"end_silence_duration"`   // seconds
	SilenceTolerance     float64 `yaml:"silence_tolerance"`      // seconds
	MaxUtteranceDuration float64 `yaml:"max_utterance_duration"` // seconds
}

// STTConfig contains transcription API configuration
type STTConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	Language      string `yaml:"language"`
}

// TTSConfig contains speech synthesis API configuration
type TTSConfig struct {
	Endpoint        string   `yaml:"endpoint"`
	Timeout         int      `yaml:"timeout"` // seconds
	CacheMaxEntries int      `yaml:"cache_max_entries"`
	CacheMaxTextLen int      `yaml:"cache_max_text_len"`
	Prewarm         []string `yaml:"prewarm"`
}

// DialogueConfig contains the dialogue webhook configuration
type DialogueConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Timeout    int    `yaml:"timeout"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file, then applies environment
// variable overrides for connection secrets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides lets deployment secrets come from the environment
// instead of the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ARI_URL"); v != "" {
		c.ARI.URL = v
	}
	if v := os.Getenv("ARI_USER"); v != "" {
		c.ARI.Username = v
	}
	if v := os.Getenv("ARI_PASS"); v != "" {
		c.ARI.Password = v
	}
	if v := os.Getenv("ARI_APP"); v != "" {
		c.ARI.Application = v
	}
	if v := os.Getenv("STT_API_KEY"); v != "" {
		c.STT.APIKey = v
	}
	if v := os.Getenv("DIALOGUE_WEBHOOK"); v != "" {
		c.Dialogue.WebhookURL = v
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.ARI.Validate(); err != nil {
		return fmt.Errorf("ari config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.STT.Validate(); err != nil {
		return fmt.Errorf("stt config: %w", err)
	}

	if err := c.TTS.Validate(); err != nil {
		return fmt.Errorf("tts config: %w", err)
	}

	if err := c.Dialogue.Validate(); err != nil {
		return fmt.Errorf("dialogue config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates ARI configuration
func (a *ARIConfig) Validate() error {
	if a.URL == "" {
		return fmt.Errorf("url cannot be empty")
	}

	if a.Username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	if a.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if a.Application == "" {
		return fmt.Errorf("application cannot be empty")
	}

	if a.ConnectAttempts < 1 {
		return fmt.Errorf("connect_attempts must be at least 1, got %d", a.ConnectAttempts)
	}

	if a.ConnectBackoff <= 0 {
		return fmt.Errorf("connect_backoff must be positive, got %f", a.ConnectBackoff)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates agent configuration
func (a *AgentConfig) Validate() error {
	if a.RecordingDir == "" {
		return fmt.Errorf("recording_dir cannot be empty")
	}

	if a.SoundsDir == "" {
		return fmt.Errorf("sounds_dir cannot be empty")
	}

	if a.PlaybackTimeout <= 0 {
		return fmt.Errorf("playback_timeout must be positive, got %f", a.PlaybackTimeout)
	}

	if a.CleanupDelay < 0 {
		return fmt.Errorf("cleanup_delay cannot be negative, got %f", a.CleanupDelay)
	}

	if a.PlaybackGain <= 0 || a.PlaybackGain > 1 {
		return fmt.Errorf("playback_gain must be between 0 and 1, got %f", a.PlaybackGain)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 8000 {
		return fmt.Errorf("sample_rate must be 8000 Hz for telephony slin audio, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	if a.ChunkDuration <= 0 {
		return fmt.Errorf("chunk_duration must be positive, got %f", a.ChunkDuration)
	}

	if a.CaptureWaitMargin <= 0 {
		return fmt.Errorf("capture_wait_margin must be positive, got %f", a.CaptureWaitMargin)
	}

	return nil
}

// Validate validates VAD and endpointing configuration
func (v *VADConfig) Validate() error {
	if v.Engine != "energy" && v.Engine != "webrtc" {
		return fmt.Errorf("engine must be 'energy' or 'webrtc', got '%s'", v.Engine)
	}

	if v.Threshold < 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", v.Threshold)
	}

	if v.Aggressiveness < 0 || v.Aggressiveness > 3 {
		return fmt.Errorf("aggressiveness must be between 0 and 3, got %d", v.Aggressiveness)
	}

	if v.MinSpeechDuration <= 0 {
		return fmt.Errorf("min_speech_duration must be positive, got %f", v.MinSpeechDuration)
	}

	if v.EndSilenceDuration <= 0 {
		return fmt.Errorf("end_silence_duration must be positive, got %f", v.EndSilenceDuration)
	}

	if v.SilenceTolerance < 0 || v.SilenceTolerance > v.EndSilenceDuration {
		return fmt.Errorf("silence_tolerance must be between 0 and end_silence_duration, got %f", v.SilenceTolerance)
	}

	if v.MaxUtteranceDuration <= v.MinSpeechDuration {
		return fmt.Errorf("max_utterance_duration (%f) must be greater than min_speech_duration (%f)",
			v.MaxUtteranceDuration, v.MinSpeechDuration)
	}

	return nil
}

// Validate validates STT configuration
func (s *STTConfig) Validate() error {
	if s.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}

	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", s.MaxRetries)
	}

	if s.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", s.MaxConcurrent)
	}

	return nil
}

// Validate validates TTS configuration
func (t *TTSConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.CacheMaxEntries < 0 {
		return fmt.Errorf("cache_max_entries cannot be negative, got %d", t.CacheMaxEntries)
	}

	if t.CacheMaxTextLen < 0 {
		return fmt.Errorf("cache_max_text_len cannot be negative, got %d", t.CacheMaxTextLen)
	}

	return nil
}

// Validate validates dialogue webhook configuration
func (d *DialogueConfig) Validate() error {
	if d.WebhookURL == "" {
		return fmt.Errorf("webhook_url cannot be empty")
	}

	if d.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", d.Timeout)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetConnectBackoff returns the initial ARI connect backoff as a time.Duration
func (a *ARIConfig) GetConnectBackoff() time.Duration {
	return time.Duration(a.ConnectBackoff * float64(time.Second))
}

// GetPlaybackTimeout returns the playback safety timeout as a time.Duration
func (a *AgentConfig) GetPlaybackTimeout() time.Duration {
	return time.Duration(a.PlaybackTimeout * float64(time.Second))
}

// GetCleanupDelay returns the artifact cleanup delay as a time.Duration
func (a *AgentConfig) GetCleanupDelay() time.Duration {
	return time.Duration(a.CleanupDelay * float64(time.Second))
}

// GetChunkDuration returns the capture chunk duration as a time.Duration
func (a *AudioConfig) GetChunkDuration() time.Duration {
	return time.Duration(a.ChunkDuration * float64(time.Second))
}

// GetCaptureWaitMargin returns the capture wait margin as a time.Duration
func (a *AudioConfig) GetCaptureWaitMargin() time.Duration {
	return time.Duration(a.CaptureWaitMargin * float64(time.Second))
}

// GetMinSpeechDuration returns the minimum viable speech duration as a time.Duration
func (v *VADConfig) GetMinSpeechDuration() time.Duration {
	return time.Duration(v.MinSpeechDuration * float64(time.Second))
}

// GetEndSilenceDuration returns the end-of-utterance silence threshold as a time.Duration
func (v *VADConfig) GetEndSilenceDuration() time.Duration {
	return time.Duration(v.EndSilenceDuration * float64(time.Second))
}

// GetSilenceTolerance returns the intra-utterance pause tolerance as a time.Duration
func (v *VADConfig) GetSilenceTolerance() time.Duration {
	return time.Duration(v.SilenceTolerance * float64(time.Second))
}

// GetMaxUtteranceDuration returns the utterance buffer hard cap as a time.Duration
func (v *VADConfig) GetMaxUtteranceDuration() time.Duration {
	return time.Duration(v.MaxUtteranceDuration * float64(time.Second))
}

// GetTimeoutDuration returns the STT request timeout as a time.Duration
func (s *STTConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// GetTimeoutDuration returns the TTS request timeout as a time.Duration
func (t *TTSConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetTimeoutDuration returns the dialogue webhook timeout as a time.Duration
func (d *DialogueConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(d.Timeout) * time.Second
}
