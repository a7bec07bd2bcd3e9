// Package ari is a thin client for the Asterisk REST Interface. It exposes
// the small control surface the agent needs (answer, play, record, mute,
// bridge) plus a typed event stream over the ARI websocket, with per-artifact
// completion waiters so callers can block on playback or recording events
// without polling.
package ari
