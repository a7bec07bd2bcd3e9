package ari

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/GrupoSinergia/voip-agent/internal/config"
)

// Client talks to one Asterisk instance over its REST interface and event
// websocket.
type Client struct {
	cfg     config.ARIConfig
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	waiters *waiterRegistry
	events  chan Event

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a client for the configured Asterisk instance. Connect
// must be called before events are delivered.
func NewClient(cfg config.ARIConfig, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:  logger,
		waiters: newWaiterRegistry(),
		events:  make(chan Event, 64),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Events returns the stream of decoded ARI events. The channel closes when
// the client shuts down.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Close tears down the websocket and stops event delivery.
func (c *Client) Close() {
	c.cancel()
	<-c.done
}

// Answer answers a ringing channel.
func (c *Client) Answer(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/answer", nil, nil)
}

// Hangup terminates a channel.
func (c *Client) Hangup(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+url.PathEscape(channelID), nil, nil)
}

// Play starts playback of a media URI on a channel and returns the playback
// ID for completion tracking and early termination.
func (c *Client) Play(ctx context.Context, channelID, media string) (string, error) {
	params := url.Values{}
	params.Set("media", media)

	var playback struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/play", params, &playback); err != nil {
		return "", err
	}
	if playback.ID == "" {
		return "", fmt.Errorf("playback started without an id on channel %s", channelID)
	}

	return playback.ID, nil
}

// StopPlayback terminates an in-progress playback.
func (c *Client) StopPlayback(ctx context.Context, playbackID string) error {
	return c.do(ctx, http.MethodDelete, "/playbacks/"+url.PathEscape(playbackID), nil, nil)
}

// StartRecording begins a live recording on a channel. The recording stops
// on its own after maxDuration.
func (c *Client) StartRecording(ctx context.Context, channelID, name, format string, maxDuration time.Duration) error {
	params := url.Values{}
	params.Set("name", name)
	params.Set("format", format)
	params.Set("maxDurationSeconds", strconv.Itoa(int((maxDuration + time.Second - 1) / time.Second)))
	// Silence never ends a chunk early; gap accounting needs fixed durations
	params.Set("maxSilenceSeconds", "0")
	params.Set("ifExists", "overwrite")

	return c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/record", params, nil)
}

// StopRecording finishes a live recording early, flushing its artifact.
func (c *Client) StopRecording(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/recordings/live/"+url.PathEscape(name)+"/stop", nil, nil)
}

// Mute silences channel audio in the given direction ("in", "out", "both").
func (c *Client) Mute(ctx context.Context, channelID, direction string) error {
	params := url.Values{}
	params.Set("direction", direction)
	return c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/mute", params, nil)
}

// Unmute restores channel audio in the given direction.
func (c *Client) Unmute(ctx context.Context, channelID, direction string) error {
	params := url.Values{}
	params.Set("direction", direction)
	return c.do(ctx, http.MethodDelete, "/channels/"+url.PathEscape(channelID)+"/mute", params, nil)
}

// CreateBridge creates a mixing bridge with the given ID.
func (c *Client) CreateBridge(ctx context.Context, bridgeID string) error {
	params := url.Values{}
	params.Set("type", "mixing")
	params.Set("bridgeId", bridgeID)
	return c.do(ctx, http.MethodPost, "/bridges", params, nil)
}

// AddChannelToBridge places a channel into a bridge.
func (c *Client) AddChannelToBridge(ctx context.Context, bridgeID, channelID string) error {
	params := url.Values{}
	params.Set("channel", channelID)
	return c.do(ctx, http.MethodPost, "/bridges/"+url.PathEscape(bridgeID)+"/addChannel", params, nil)
}

// DestroyBridge tears down a bridge.
func (c *Client) DestroyBridge(ctx context.Context, bridgeID string) error {
	return c.do(ctx, http.MethodDelete, "/bridges/"+url.PathEscape(bridgeID), nil, nil)
}

// WaitPlayback returns a channel closed when the playback finishes. The
// cancel must be called if the waiter is abandoned.
func (c *Client) WaitPlayback(playbackID string) (<-chan struct{}, func()) {
	return c.waiters.register("playback:" + playbackID)
}

// WaitRecording returns a channel closed when the named recording finishes
// or fails. The cancel must be called if the waiter is abandoned.
func (c *Client) WaitRecording(name string) (<-chan struct{}, func()) {
	return c.waiters.register("recording:" + name)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ari request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ari request %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to parse ari response for %s %s: %w", method, path, err)
		}
	}

	return nil
}
