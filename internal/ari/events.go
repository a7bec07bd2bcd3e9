package ari

import (
	"encoding/json"
	"fmt"
)

// ChannelInfo identifies a channel inside an event.
type ChannelInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	State  string `json:"state"`
	Caller struct {
		Name   string `json:"name"`
		Number string `json:"number"`
	} `json:"caller"`
}

// Event is a decoded ARI event. Exactly one concrete type below is produced
// per websocket message; unrecognized event types decode to nil.
type Event interface {
	eventType() string
}

// StasisStart signals a channel entering the application.
type StasisStart struct {
	Channel ChannelInfo `json:"channel"`
	Args    []string    `json:"args"`
}

// StasisEnd signals a channel leaving the application (hangup included).
type StasisEnd struct {
	Channel ChannelInfo `json:"channel"`
}

// ChannelDtmfReceived carries one DTMF digit pressed on a channel.
type ChannelDtmfReceived struct {
	Channel    ChannelInfo `json:"channel"`
	Digit      string      `json:"digit"`
	DurationMs int         `json:"duration_ms"`
}

// PlaybackFinished signals a playback operation completing.
type PlaybackFinished struct {
	Playback struct {
		ID       string `json:"id"`
		MediaURI string `json:"media_uri"`
		State    string `json:"state"`
	} `json:"playback"`
}

// RecordingFinished signals a live recording completing and its artifact
// being available on disk.
type RecordingFinished struct {
	Recording struct {
		Name     string `json:"name"`
		Format   string `json:"format"`
		Duration int    `json:"duration"`
	} `json:"recording"`
}

// RecordingFailed signals a live recording aborting without an artifact.
type RecordingFailed struct {
	Recording struct {
		Name  string `json:"name"`
		Cause string `json:"cause"`
	} `json:"recording"`
}

func (StasisStart) eventType() string         { return "StasisStart" }
func (StasisEnd) eventType() string           { return "StasisEnd" }
func (ChannelDtmfReceived) eventType() string { return "ChannelDtmfReceived" }
func (PlaybackFinished) eventType() string    { return "PlaybackFinished" }
func (RecordingFinished) eventType() string   { return "RecordingFinished" }
func (RecordingFailed) eventType() string     { return "RecordingFailed" }

// decodeEvent parses one raw websocket message into a typed event. Events the
// agent does not consume return (nil, nil).
func decodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse event envelope: %w", err)
	}

	switch envelope.Type {
	case "StasisStart":
		var ev StasisStart
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse StasisStart: %w", err)
		}
		return ev, nil
	case "StasisEnd":
		var ev StasisEnd
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse StasisEnd: %w", err)
		}
		return ev, nil
	case "ChannelDtmfReceived":
		var ev ChannelDtmfReceived
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse ChannelDtmfReceived: %w", err)
		}
		return ev, nil
	case "PlaybackFinished":
		var ev PlaybackFinished
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse PlaybackFinished: %w", err)
		}
		return ev, nil
	case "RecordingFinished":
		var ev RecordingFinished
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse RecordingFinished: %w", err)
		}
		return ev, nil
	case "RecordingFailed":
		var ev RecordingFailed
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse RecordingFailed: %w", err)
		}
		return ev, nil
	default:
		return nil, nil
	}
}
