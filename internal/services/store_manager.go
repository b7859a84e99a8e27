package services

import (
	"sync"
	"time"

	"dexbit/internal/logger"
)

// Idle stores are swept out so users whose sessions silently expired do not
// pin memory forever. A store with a live watcher is never swept.
const (
	storeIdleTTL       = 30 * time.Minute
	storeSweepInterval = 5 * time.Minute
)

type storeEntry struct {
	store    *WatchlistStore
	lastSeen time.Time
}

// StoreManager owns one WatchlistStore per user. Stores are created lazily,
// hydrated from the snapshot store, and torn down on sign-out or after
// sitting idle, so no live watcher outlives its session. It also hands out
// the single live-stream slot each user gets.
type StoreManager struct {
	service   WatchlistServicer
	quotes    QuoteProvider
	snapshots *SnapshotStore
	opts      WatchlistStoreOptions
	now       func() time.Time

	mu      sync.Mutex
	stores  map[string]*storeEntry
	streams map[string]struct{}

	stopSweep chan struct{}
	sweepDone chan struct{}
	closeOnce sync.Once
}

// NewStoreManager creates a StoreManager and starts its idle sweeper.
// opts.Persist is ignored; the manager wires each store's persistence to
// the snapshot store itself.
func NewStoreManager(service WatchlistServicer, quotes QuoteProvider, snapshots *SnapshotStore, opts WatchlistStoreOptions) *StoreManager {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &StoreManager{
		service:   service,
		quotes:    quotes,
		snapshots: snapshots,
		opts:      opts,
		now:       opts.Now,
		stores:    make(map[string]*storeEntry),
		streams:   make(map[string]struct{}),
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Store returns the watchlist store for a user, creating and hydrating it
// on first use.
func (m *StoreManager) Store(userID string) *WatchlistStore {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.stores[userID]; ok {
		entry.lastSeen = m.now()
		return entry.store
	}

	opts := m.opts
	opts.Persist = func(snap StoreSnapshot) {
		m.snapshots.Put(userID, snap)
	}

	store := NewWatchlistStore(m.service, m.quotes, opts)
	snap, _ := m.snapshots.Get(userID)
	store.Hydrate(snap)

	m.stores[userID] = &storeEntry{store: store, lastSeen: m.now()}
	return store
}

// BeginStream claims the user's single live-stream slot. It returns false
// when a stream is already open; a caller that gets true must call
// EndStream when its stream closes.
func (m *StoreManager) BeginStream(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, open := m.streams[userID]; open {
		return false
	}
	m.streams[userID] = struct{}{}
	return true
}

// EndStream releases the user's live-stream slot.
func (m *StoreManager) EndStream(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.streams, userID)
}

// Clear tears down a user's store (sign-out): the live subscription is
// stopped, in-memory state reset, and the snapshot entry dropped.
func (m *StoreManager) Clear(userID string) {
	m.mu.Lock()
	entry, ok := m.stores[userID]
	delete(m.stores, userID)
	m.mu.Unlock()

	if ok {
		entry.store.ClearWatchlist()
	}
	m.snapshots.Delete(userID)
}

// EvictIdle drops stores untouched for longer than maxIdle, skipping any
// with a live watcher. Snapshot entries are kept so a returning user
// rehydrates; only sign-out discards them. Returns the eviction count.
func (m *StoreManager) EvictIdle(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	var evicted []*WatchlistStore
	for userID, entry := range m.stores {
		if entry.lastSeen.After(cutoff) || entry.store.Subscribed() {
			continue
		}
		evicted = append(evicted, entry.store)
		delete(m.stores, userID)
	}
	m.mu.Unlock()

	for _, store := range evicted {
		store.UnsubscribeFromWatchlist()
	}
	return len(evicted)
}

// sweep evicts idle stores on an interval until Close.
func (m *StoreManager) sweep() {
	defer close(m.sweepDone)

	ticker := time.NewTicker(storeSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopSweep:
			return
		case <-ticker.C:
			if n := m.EvictIdle(storeIdleTTL); n > 0 {
				logger.Get().Infow("evicted idle watchlist stores", "count", n)
			}
		}
	}
}

// Close stops the sweeper and unsubscribes every live store. Called on
// shutdown; safe to call more than once.
func (m *StoreManager) Close() {
	m.closeOnce.Do(func() {
		close(m.stopSweep)
		<-m.sweepDone

		m.mu.Lock()
		stores := make([]*WatchlistStore, 0, len(m.stores))
		for _, entry := range m.stores {
			stores = append(stores, entry.store)
		}
		m.mu.Unlock()

		for _, store := range stores {
			store.UnsubscribeFromWatchlist()
		}
	})
}
