// Package capture acquires short audio recordings from live channels.
// A per-channel guard serializes recording access so the turn-taking capture
// loop and the barge-in monitor never record the same channel concurrently.
package capture
