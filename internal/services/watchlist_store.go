package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "dexbit/internal/errors"
	"dexbit/internal/logger"
	"dexbit/internal/marketdata"
	"dexbit/internal/models"
)

// Defaults for WatchlistStoreOptions.
const (
	defaultPriceRefreshEvery = time.Minute
	defaultPollEvery         = 5 * time.Second
	defaultQuoteFanoutLimit  = 8
)

// WatchlistStoreOptions tunes a store's timing and concurrency behavior.
// Zero values fall back to defaults.
type WatchlistStoreOptions struct {
	// PriceRefreshEvery is the minimum gap between full price-enrichment
	// passes. Calls inside the window are no-ops.
	PriceRefreshEvery time.Duration

	// PollEvery is the live-subscription polling interval.
	PollEvery time.Duration

	// QuoteFanoutLimit caps concurrent quote requests during enrichment.
	QuoteFanoutLimit int

	// Persist, when set, is called with the serializable subset of state
	// (items plus last price-fetch time) after every state change.
	Persist func(StoreSnapshot)

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// StoreSnapshot is the subset of store state persisted locally and restored
// on startup (hydration).
type StoreSnapshot struct {
	Items          []ItemWithPrice `json:"items"`
	LastPriceFetch time.Time       `json:"last_price_fetch"`
}

// WatchlistStore owns the canonical in-memory view of one user's watchlist.
// It mediates between the persistence service and the quote provider:
// mutations go to the database, price data is overlaid client-side only.
//
// Subscription lifecycle: unsubscribed -> subscribed on Subscribe;
// subscribed -> unsubscribed on Unsubscribe or Clear. Subscribing while
// already subscribed tears down the old watcher first, so at most one
// watcher is ever live. Setup and teardown are serialized, so concurrent
// Subscribe/Unsubscribe calls cannot interleave and strand a watcher.
type WatchlistStore struct {
	service WatchlistServicer
	quotes  QuoteProvider

	priceRefreshEvery time.Duration
	pollEvery         time.Duration
	fanoutLimit       int
	persist           func(StoreSnapshot)
	now               func() time.Time

	mu             sync.Mutex
	items          []ItemWithPrice
	lastError      string
	hydrated       bool
	lastPriceFetch time.Time
	onUpdate       func([]ItemWithPrice)

	// subMu serializes watcher setup and teardown. The watcher goroutine
	// itself only takes mu, so holding subMu while waiting for it to exit
	// cannot deadlock.
	subMu     sync.Mutex
	subCancel context.CancelFunc
	subDone   chan struct{}
}

// NewWatchlistStore creates an unhydrated store. Call Hydrate before
// subscribing; mutations and one-shot fetches do not require hydration.
func NewWatchlistStore(service WatchlistServicer, quotes QuoteProvider, opts WatchlistStoreOptions) *WatchlistStore {
	if opts.PriceRefreshEvery <= 0 {
		opts.PriceRefreshEvery = defaultPriceRefreshEvery
	}
	if opts.PollEvery <= 0 {
		opts.PollEvery = defaultPollEvery
	}
	if opts.QuoteFanoutLimit <= 0 {
		opts.QuoteFanoutLimit = defaultQuoteFanoutLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &WatchlistStore{
		service:           service,
		quotes:            quotes,
		priceRefreshEvery: opts.PriceRefreshEvery,
		pollEvery:         opts.PollEvery,
		fanoutLimit:       opts.QuoteFanoutLimit,
		persist:           opts.Persist,
		now:               opts.Now,
	}
}

// Hydrate restores locally persisted state and marks the store ready for
// subscription activity.
func (s *WatchlistStore) Hydrate(snap StoreSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = snap.Items
	s.lastPriceFetch = snap.LastPriceFetch
	s.hydrated = true
}

// IsHydrated reports whether locally persisted state has been restored.
func (s *WatchlistStore) IsHydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// SetOnUpdate registers a callback invoked with a copy of the item list
// after every state change. Used by the SSE stream handler. The callback
// runs with the store lock held and must not call back into the store.
func (s *WatchlistStore) SetOnUpdate(fn func([]ItemWithPrice)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

// Items returns a copy of the current watchlist with price overlays.
func (s *WatchlistStore) Items() []ItemWithPrice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyItemsLocked()
}

// LastError returns the most recent persistence-layer error message, or ""
// when the last operation succeeded. Enrichment failures never land here.
func (s *WatchlistStore) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// AddToWatchlist persists a new symbol and appends it to local state. If the
// symbol is already present in memory the call is a no-op. After a
// successful write a single quote is fetched best-effort to give the new
// item an immediate price; quote failures are logged and swallowed.
func (s *WatchlistStore) AddToWatchlist(ctx context.Context, symbol, companyName, userID string) error {
	if userID == "" {
		return apperrors.WithMessage(apperrors.ErrUnauthorized, "User ID is required to add to watchlist")
	}

	symbolUpper := normalizeSymbol(symbol)

	if s.IsInWatchlist(symbolUpper) {
		logger.Get().Infow("symbol already in watchlist", "symbol", symbolUpper, "user_id", userID)
		return nil
	}

	item, err := s.service.AddItem(userID, symbolUpper, companyName)
	if err != nil {
		s.setError(err.Error())
		logger.Get().Errorw("failed to add to watchlist", "symbol", symbolUpper, "user_id", userID, "error", err)
		return err
	}

	s.mu.Lock()
	s.items = append(s.items, ItemWithPrice{WatchlistItem: *item})
	s.lastError = ""
	s.afterChangeLocked()
	s.mu.Unlock()

	// Immediate price for the new item; failure leaves it priceless.
	quote, qErr := s.quotes.GetQuote(ctx, symbolUpper)
	if qErr != nil || quote == nil {
		logger.Get().Warnw("failed to fetch price for new watchlist item", "symbol", symbolUpper, "error", qErr)
	} else {
		s.UpdateItemPrice(symbolUpper, quote.Current, &quote.Change, &quote.ChangePercent)
	}

	logger.Get().Infow("added to watchlist", "symbol", symbolUpper, "user_id", userID)
	return nil
}

// RemoveFromWatchlist deletes every matching persisted record and filters
// the symbol out of local state.
func (s *WatchlistStore) RemoveFromWatchlist(ctx context.Context, symbol, userID string) error {
	if userID == "" {
		return apperrors.WithMessage(apperrors.ErrUnauthorized, "User ID is required to remove from watchlist")
	}

	symbolUpper := normalizeSymbol(symbol)

	if _, err := s.service.RemoveItems(userID, symbolUpper); err != nil {
		s.setError(err.Error())
		logger.Get().Errorw("failed to remove from watchlist", "symbol", symbolUpper, "user_id", userID, "error", err)
		return err
	}

	s.mu.Lock()
	kept := s.items[:0]
	for _, item := range s.items {
		if item.Symbol != symbolUpper {
			kept = append(kept, item)
		}
	}
	s.items = kept
	s.lastError = ""
	s.afterChangeLocked()
	s.mu.Unlock()

	logger.Get().Infow("removed from watchlist", "symbol", symbolUpper, "user_id", userID)
	return nil
}

// FetchWatchlist replaces local state wholesale from a one-shot query and
// triggers a price-enrichment pass.
func (s *WatchlistStore) FetchWatchlist(ctx context.Context, userID string) error {
	if userID == "" {
		s.mu.Lock()
		s.items = nil
		s.afterChangeLocked()
		s.mu.Unlock()
		return nil
	}

	items, err := s.service.ListItems(userID)
	if err != nil {
		s.setError(err.Error())
		logger.Get().Errorw("failed to fetch watchlist", "user_id", userID, "error", err)
		return err
	}

	s.applySnapshot(items)
	s.FetchPricesForWatchlist(ctx)

	logger.Get().Infow("fetched watchlist", "user_id", userID, "count", len(items))
	return nil
}

// SubscribeToWatchlist starts a live watcher that re-queries the
// persistence layer on an interval, replacing local state and re-running
// enrichment on each snapshot. A prior subscription is torn down first.
// Requires hydration to have completed.
func (s *WatchlistStore) SubscribeToWatchlist(userID string) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.stopWatcherLocked()

	s.mu.Lock()
	if !s.hydrated {
		s.mu.Unlock()
		return apperrors.ErrNotHydrated
	}
	if userID == "" {
		s.items = nil
		s.afterChangeLocked()
		s.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.subCancel = cancel
	s.subDone = done
	s.mu.Unlock()

	go s.watch(ctx, userID, done)

	logger.Get().Infow("subscribed to watchlist updates", "user_id", userID)
	return nil
}

// watch is the subscription loop: one immediate snapshot, then one per tick
// until the context is cancelled.
func (s *WatchlistStore) watch(ctx context.Context, userID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		items, err := s.service.ListItems(userID)
		if err != nil {
			logger.Get().Errorw("watchlist subscription error", "user_id", userID, "error", err)
			s.setError("Real-time updates failed")
		} else {
			s.applySnapshot(items)
			s.FetchPricesForWatchlist(ctx)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// UnsubscribeFromWatchlist stops the live watcher if one is active and
// waits for it to exit.
func (s *WatchlistStore) UnsubscribeFromWatchlist() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.stopWatcherLocked()
}

// Subscribed reports whether a live watcher is running.
func (s *WatchlistStore) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subCancel != nil
}

// stopWatcherLocked cancels the active watcher, if any, and waits for it
// to exit. Callers must hold s.subMu.
func (s *WatchlistStore) stopWatcherLocked() {
	s.mu.Lock()
	cancel := s.subCancel
	done := s.subDone
	s.subCancel = nil
	s.subDone = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logger.Get().Info("unsubscribed from watchlist updates")
}

// FetchPricesForWatchlist requests a fresh quote for every item and merges
// the results back by symbol. Runs are rate-limited: within
// PriceRefreshEvery of the last run the call is a no-op. Individual quote
// failures are skipped silently; no error ever escapes to the caller.
func (s *WatchlistStore) FetchPricesForWatchlist(ctx context.Context) {
	s.mu.Lock()
	if !s.lastPriceFetch.IsZero() && s.now().Sub(s.lastPriceFetch) < s.priceRefreshEvery {
		s.mu.Unlock()
		return
	}
	if len(s.items) == 0 {
		s.mu.Unlock()
		return
	}
	symbols := make([]string, len(s.items))
	for i, item := range s.items {
		symbols[i] = item.Symbol
	}
	s.mu.Unlock()

	quotes := make([]*marketdata.Quote, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanoutLimit)
	for i, symbol := range symbols {
		g.Go(func() error {
			quote, err := s.quotes.GetQuote(gctx, symbol)
			if err != nil || quote == nil {
				logger.Get().Warnw("failed to fetch price", "symbol", symbol, "error", err)
				return nil
			}
			quotes[i] = quote
			return nil
		})
	}
	// Workers swallow their own failures; Wait only synchronizes.
	_ = g.Wait()

	now := s.now()
	s.mu.Lock()
	for i, symbol := range symbols {
		quote := quotes[i]
		if quote == nil {
			continue
		}
		for j := range s.items {
			if s.items[j].Symbol == symbol {
				s.items[j].CurrentPrice = &quote.Current
				s.items[j].Change = &quote.Change
				s.items[j].ChangePercent = &quote.ChangePercent
				s.items[j].LastUpdated = &now
			}
		}
	}
	s.lastPriceFetch = now
	count := len(s.items)
	s.afterChangeLocked()
	s.mu.Unlock()

	logger.Get().Infow("updated watchlist prices", "count", count)
}

// UpdateItemPrice overlays price data onto a single symbol, used for
// immediate feedback right after an add.
func (s *WatchlistStore) UpdateItemPrice(symbol string, price float64, change, changePercent *float64) {
	symbolUpper := normalizeSymbol(symbol)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].Symbol == symbolUpper {
			s.items[i].CurrentPrice = &price
			s.items[i].Change = change
			s.items[i].ChangePercent = changePercent
			s.items[i].LastUpdated = &now
		}
	}
	s.afterChangeLocked()
}

// IsInWatchlist reports case-insensitively whether symbol is in local state.
func (s *WatchlistStore) IsInWatchlist(symbol string) bool {
	symbolUpper := normalizeSymbol(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.Symbol == symbolUpper {
			return true
		}
	}
	return false
}

// GetWatchlistItem returns the item for symbol, if present.
func (s *WatchlistStore) GetWatchlistItem(symbol string) (ItemWithPrice, bool) {
	symbolUpper := normalizeSymbol(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.Symbol == symbolUpper {
			return item, true
		}
	}
	return ItemWithPrice{}, false
}

// ClearWatchlist tears down any live subscription and resets all state.
// Persisted records are untouched; this is the sign-out path.
func (s *WatchlistStore) ClearWatchlist() {
	s.UnsubscribeFromWatchlist()

	s.mu.Lock()
	s.items = nil
	s.lastError = ""
	s.lastPriceFetch = time.Time{}
	s.afterChangeLocked()
	s.mu.Unlock()

	logger.Get().Info("cleared watchlist state")
}

// applySnapshot replaces canonical state from a persistence-layer snapshot,
// carrying existing price overlays forward by symbol so a snapshot replace
// does not blank prices until the next rate-limited enrichment pass.
func (s *WatchlistStore) applySnapshot(items []models.WatchlistItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	overlays := make(map[string]ItemWithPrice, len(s.items))
	for _, item := range s.items {
		overlays[item.Symbol] = item
	}

	next := make([]ItemWithPrice, 0, len(items))
	for _, item := range items {
		entry := ItemWithPrice{WatchlistItem: item}
		if prev, ok := overlays[item.Symbol]; ok {
			entry.CurrentPrice = prev.CurrentPrice
			entry.Change = prev.Change
			entry.ChangePercent = prev.ChangePercent
			entry.LastUpdated = prev.LastUpdated
		}
		next = append(next, entry)
	}

	s.items = next
	s.lastError = ""
	s.afterChangeLocked()
}

// setError records a persistence-layer error for passive UI display.
func (s *WatchlistStore) setError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = message
}

// afterChangeLocked persists the serializable subset of state and notifies
// the update listener. Callers must hold s.mu.
func (s *WatchlistStore) afterChangeLocked() {
	if s.persist != nil {
		s.persist(StoreSnapshot{Items: s.copyItemsLocked(), LastPriceFetch: s.lastPriceFetch})
	}
	if s.onUpdate != nil {
		s.onUpdate(s.copyItemsLocked())
	}
}

// copyItemsLocked returns a defensive copy of the item slice. Callers must
// hold s.mu.
func (s *WatchlistStore) copyItemsLocked() []ItemWithPrice {
	out := make([]ItemWithPrice, len(s.items))
	copy(out, s.items)
	return out
}
