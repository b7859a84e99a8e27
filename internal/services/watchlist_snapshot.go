package services

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"dexbit/internal/logger"
)

// SnapshotStore persists each user's partial watchlist state (items plus
// last price-fetch time) to a single JSON file, restored at process start
// before stores accept subscription activity. Writes are best-effort: a
// failed save is logged, never propagated, because snapshot state is a
// cache over the database, not a source of truth.
type SnapshotStore struct {
	mu     sync.Mutex
	path   string
	states map[string]StoreSnapshot
}

// NewSnapshotStore loads the snapshot file at path. A missing file yields
// an empty store; a corrupt file is discarded with a warning.
func NewSnapshotStore(path string) *SnapshotStore {
	s := &SnapshotStore{
		path:   path,
		states: make(map[string]StoreSnapshot),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Get().Warnw("failed to read watchlist snapshot file", "path", path, "error", err)
		}
		return s
	}

	if err := json.Unmarshal(data, &s.states); err != nil {
		logger.Get().Warnw("discarding corrupt watchlist snapshot file", "path", path, "error", err)
		s.states = make(map[string]StoreSnapshot)
	}
	return s
}

// Get returns the persisted state for a user, if any.
func (s *SnapshotStore) Get(userID string) (StoreSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.states[userID]
	return snap, ok
}

// Put stores a user's state and flushes the file.
func (s *SnapshotStore) Put(userID string, snap StoreSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = snap
	s.saveLocked()
}

// Delete removes a user's state and flushes the file.
func (s *SnapshotStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	s.saveLocked()
}

// saveLocked writes the snapshot file via a temp-file rename so a crash
// mid-write never leaves a truncated file. Callers must hold s.mu.
func (s *SnapshotStore) saveLocked() {
	data, err := json.Marshal(s.states)
	if err != nil {
		logger.Get().Errorw("failed to marshal watchlist snapshots", "error", err)
		return
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Get().Errorw("failed to create snapshot directory", "dir", dir, "error", err)
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		logger.Get().Errorw("failed to write watchlist snapshot file", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		logger.Get().Errorw("failed to replace watchlist snapshot file", "path", s.path, "error", err)
	}
}
