package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/GrupoSinergia/voip-agent/internal/audio"
	"github.com/GrupoSinergia/voip-agent/internal/config"
)

// Client provides HTTP client functionality for speech synthesis requests
type Client struct {
	config     config.TTSConfig
	httpClient *http.Client
}

// NewClient creates a new synthesis HTTP client
func NewClient(cfg config.TTSConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.GetTimeoutDuration(),
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Synthesize converts text to PCM samples. The API returns a WAV body whose
// sample rate is reported back to the caller.
func (c *Client) Synthesize(ctx context.Context, text string) (int, []int16, error) {
	if text == "" {
		return 0, nil, fmt.Errorf("cannot synthesize empty text")
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	samples, sampleRate, err := audio.DecodeWAV(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to decode synthesized audio: %w", err)
	}

	return sampleRate, samples, nil
}
