package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/GrupoSinergia/voip-agent/internal/config"
)

// Client calls the dialogue webhook that decides what the agent says next.
type Client struct {
	config     config.DialogueConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new dialogue webhook client
func NewClient(cfg config.DialogueConfig, logger *slog.Logger) (*Client, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("webhook url cannot be empty")
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
		logger: logger,
	}, nil
}

// Reply sends one transcript and returns the reply text. A webhook error
// response or empty reply yields ("", nil): the turn simply produces no
// speech. Transport failures are returned as errors.
func (c *Client) Reply(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to encode webhook request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read webhook response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Dialogue webhook returned error status",
			slog.Int("status", resp.StatusCode),
		)
		return "", nil
	}

	var reply struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		c.logger.Warn("Dialogue webhook returned malformed body",
			slog.String("error", err.Error()),
		)
		return "", nil
	}

	return strings.TrimSpace(reply.Response), nil
}
