// Package stt sends finalized utterances to an HTTP speech-to-text API and
// returns the transcript. Requests are rate limited by a concurrency
// semaphore and retried with exponential backoff.
package stt
