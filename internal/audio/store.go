package audio

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore writes playback artifacts (raw slin files) into the directory the
// telephony platform serves sounds from, and removes them after a cooldown
// long enough to tolerate platform-side async playback completion.
type FileStore struct {
	dir    string
	gain   float64
	logger *slog.Logger

	// Pending deferred removals, so Close can stop the timers
	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewFileStore creates a file store rooted at dir. Gain is applied to all
// written samples to keep synthesized audio below telephony clipping levels.
func NewFileStore(dir string, gain float64, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sounds directory %s: %w", dir, err)
	}

	return &FileStore{
		dir:    dir,
		gain:   gain,
		logger: logger,
		timers: make(map[string]*time.Timer),
	}, nil
}

// WriteSLIN writes samples as a raw signed-linear file named <name>.slin and
// returns the full path.
func (s *FileStore) WriteSLIN(name string, samples []int16) (string, error) {
	if len(samples) == 0 {
		return "", fmt.Errorf("cannot write empty audio")
	}

	path := filepath.Join(s.dir, name+".slin")
	data := SamplesToBytes(ApplyGain(samples, s.gain))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audio file %s: %w", path, err)
	}

	return path, nil
}

// RemoveAfter schedules deletion of a previously written artifact once the
// cooldown elapses. Safe to call for paths that were already removed.
func (s *FileStore) RemoveAfter(path string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.removeNow(path)
		return
	}

	if _, scheduled := s.timers[path]; scheduled {
		return
	}

	s.timers[path] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, path)
		s.mu.Unlock()
		s.removeNow(path)
	})
}

// Close cancels pending removal timers and deletes their targets immediately.
func (s *FileStore) Close() {
	s.mu.Lock()
	s.closed = true
	pending := make([]string, 0, len(s.timers))
	for path, timer := range s.timers {
		timer.Stop()
		pending = append(pending, path)
	}
	s.timers = make(map[string]*time.Timer)
	s.mu.Unlock()

	for _, path := range pending {
		s.removeNow(path)
	}
}

func (s *FileStore) removeNow(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove audio artifact",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Debug("Removed audio artifact", slog.String("path", path))
}

// ReadSLIN reads a raw signed-linear file into PCM-16 samples. A missing file
// yields an empty sample slice, which capture treats as silence.
func ReadSLIN(path string) ([]int16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read audio file %s: %w", path, err)
	}

	return BytesToSamples(data), nil
}
