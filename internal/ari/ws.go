package ari

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Connect dials the ARI event websocket, retrying with exponential backoff
// up to the configured attempt count, then starts the event read loop.
func (c *Client) Connect(ctx context.Context) error {
	wsURL, err := c.eventsURL()
	if err != nil {
		return err
	}

	var conn *websocket.Conn
	backoff := c.cfg.GetConnectBackoff()

	for attempt := 1; attempt <= c.cfg.ConnectAttempts; attempt++ {
		conn, _, err = websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err == nil {
			break
		}

		c.logger.Warn("ARI websocket connection failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.cfg.ConnectAttempts),
			slog.String("error", err.Error()),
		)

		if attempt == c.cfg.ConnectAttempts {
			return fmt.Errorf("failed to connect to ari after %d attempts: %w", c.cfg.ConnectAttempts, err)
		}

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.logger.Info("Connected to ARI",
		slog.String("application", c.cfg.Application),
	)

	go c.readLoop(conn)
	return nil
}

func (c *Client) eventsURL() (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid ari url %s: %w", c.cfg.URL, err)
	}

	switch base.Scheme {
	case "http":
		base.Scheme = "ws"
	case "https":
		base.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported ari url scheme %s", base.Scheme)
	}

	base.Path = strings.TrimRight(base.Path, "/") + "/events"

	params := url.Values{}
	params.Set("app", c.cfg.Application)
	params.Set("api_key", c.cfg.Username+":"+c.cfg.Password)
	base.RawQuery = params.Encode()

	return base.String(), nil
}

// readLoop decodes websocket messages into typed events, feeds completion
// waiters, and pushes the rest to the event channel. It owns the connection
// and the event channel lifecycle.
func (c *Client) readLoop(conn *websocket.Conn) {
	defer close(c.done)
	defer close(c.events)
	defer conn.Close()

	// Unblock ReadMessage on shutdown
	go func() {
		<-c.ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Error("ARI websocket read failed",
				slog.String("error", err.Error()),
			)
			return
		}

		event, err := decodeEvent(data)
		if err != nil {
			c.logger.Warn("Dropping malformed ARI event",
				slog.String("error", err.Error()),
			)
			continue
		}
		if event == nil {
			continue
		}

		switch ev := event.(type) {
		case PlaybackFinished:
			c.waiters.notify("playback:" + ev.Playback.ID)
			continue
		case RecordingFinished:
			c.waiters.notify("recording:" + ev.Recording.Name)
			continue
		case RecordingFailed:
			c.logger.Warn("Recording failed",
				slog.String("recording", ev.Recording.Name),
				slog.String("cause", ev.Recording.Cause),
			)
			c.waiters.notify("recording:" + ev.Recording.Name)
			continue
		}

		select {
		case c.events <- event:
		case <-c.ctx.Done():
			return
		default:
			c.logger.Warn("Event channel full, dropping event")
		}
	}
}
