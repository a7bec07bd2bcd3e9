// Package session drives one call's conversation loop: capture caller audio
// in short chunks, find utterance boundaries, run the dialogue turn, and
// play the reply with barge-in support. A registry maps channel IDs to live
// sessions and handles call lifecycle events.
package session
