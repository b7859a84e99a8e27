package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"dexbit/internal/marketdata"
	"dexbit/internal/models"
	"dexbit/internal/testutil"
)

// fakeQuoteProvider returns canned quotes and counts calls per symbol.
type fakeQuoteProvider struct {
	mu     sync.Mutex
	quotes map[string]*marketdata.Quote
	calls  map[string]int
}

func newFakeQuoteProvider() *fakeQuoteProvider {
	return &fakeQuoteProvider{
		quotes: make(map[string]*marketdata.Quote),
		calls:  make(map[string]int),
	}
}

func (f *fakeQuoteProvider) setQuote(symbol string, price, change, changePercent float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[symbol] = &marketdata.Quote{Current: price, Change: change, ChangePercent: changePercent, Timestamp: 1}
}

func (f *fakeQuoteProvider) GetQuote(ctx context.Context, symbol string) (*marketdata.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	return f.quotes[symbol], nil
}

func (f *fakeQuoteProvider) callCount(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

// countingWatchlistService wraps a WatchlistServicer and counts ListItems
// calls, so tests can tell whether a watcher goroutine is still polling.
type countingWatchlistService struct {
	WatchlistServicer
	mu    sync.Mutex
	lists int
}

func (c *countingWatchlistService) ListItems(userID string) ([]models.WatchlistItem, error) {
	c.mu.Lock()
	c.lists++
	c.mu.Unlock()
	return c.WatchlistServicer.ListItems(userID)
}

func (c *countingWatchlistService) listCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lists
}

// fakeClock is an injectable clock for exercising the refresh rate limit.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type storeFixture struct {
	store   *WatchlistStore
	service WatchlistServicer
	quotes  *fakeQuoteProvider
	clock   *fakeClock
	userID  string
}

func setupStore(t *testing.T, opts WatchlistStoreOptions) *storeFixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	user := testutil.CreateTestUser(t, db)
	service := NewWatchlistService(db)
	quotes := newFakeQuoteProvider()
	clock := newFakeClock()
	opts.Now = clock.Now

	store := NewWatchlistStore(service, quotes, opts)
	store.Hydrate(StoreSnapshot{})
	t.Cleanup(store.UnsubscribeFromWatchlist)

	return &storeFixture{store: store, service: service, quotes: quotes, clock: clock, userID: user.ID}
}

// waitFor polls cond until it is true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestAddToWatchlist(t *testing.T) {
	t.Run("added_symbol_is_tracked", func(t *testing.T) {
		f := setupStore(t, WatchlistStoreOptions{})
		f.quotes.setQuote("AAPL", 190.5, 1.2, 0.63)

		err := f.store.AddToWatchlist(context.Background(), "AAPL", "Apple Inc", f.userID)
		testutil.AssertNoError(t, err)

		if !f.store.IsInWatchlist("AAPL") {
			t.Error("expected AAPL to be in the watchlist after add")
		}

		item, ok := f.store.GetWatchlistItem("AAPL")
		if !ok {
			t.Fatal("expected AAPL item to be retrievable")
		}
		if item.CurrentPrice == nil || *item.CurrentPrice != 190.5 {
			t.Errorf("expected immediate price 190.5, got %v", item.CurrentPrice)
		}
		if item.LastUpdated == nil {
			t.Error("expected last_updated to be stamped")
		}
	})

	t.Run("case_insensitive_identity", func(t *testing.T) {
		f := setupStore(t, WatchlistStoreOptions{})

		err := f.store.AddToWatchlist(context.Background(), "aapl", "Apple Inc", f.userID)
		testutil.AssertNoError(t, err)

		if !f.store.IsInWatchlist("AAPL") || !f.store.IsInWatchlist("aapl") {
			t.Error("expected membership checks to be case-insensitive")
		}
	})

	t.Run("duplicate_add_is_noop", func(t *testing.T) {
		f := setupStore(t, WatchlistStoreOptions{})

		testutil.AssertNoError(t, f.store.AddToWatchlist(context.Background(), "TSLA", "Tesla Inc", f.userID))
		testutil.AssertNoError(t, f.store.AddToWatchlist(context.Background(), "tsla", "Tesla Inc", f.userID))

		if got := len(f.store.Items()); got != 1 {
			t.Errorf("expected a single item after duplicate add, got %d", got)
		}
		count, err := f.service.CountByUser(f.userID)
		testutil.AssertNoError(t, err)
		if count != 1 {
			t.Errorf("expected a single persisted row, got %d", count)
		}
	})

	t.Run("failed_quote_leaves_item_priceless", func(t *testing.T) {
		f := setupStore(t, WatchlistStoreOptions{})
		// No quote registered for GME: provider returns (nil, nil).

		err := f.store.AddToWatchlist(context.Background(), "GME", "GameStop", f.userID)
		testutil.AssertNoError(t, err)

		item, ok := f.store.GetWatchlistItem("GME")
		if !ok {
			t.Fatal("expected GME item to exist despite missing quote")
		}
		if item.CurrentPrice != nil {
			t.Errorf("expected nil price, got %v", *item.CurrentPrice)
		}
	})

	t.Run("missing_user_fails_before_persistence", func(t *testing.T) {
		f := setupStore(t, WatchlistStoreOptions{})

		err := f.store.AddToWatchlist(context.Background(), "AAPL", "Apple Inc", "")
		testutil.AssertAppError(t, err, "UNAUTHORIZED")

		if f.store.IsInWatchlist("AAPL") {
			t.Error("failed add must not mutate local state")
		}
		count, err := f.service.CountByUser(f.userID)
		testutil.AssertNoError(t, err)
		if count != 0 {
			t.Errorf("failed add must not persist anything, got %d rows", count)
		}
		if f.quotes.callCount("AAPL") != 0 {
			t.Error("failed add must not reach the quote provider")
		}
	})
}

func TestRemoveFromWatchlist(t *testing.T) {
	f := setupStore(t, WatchlistStoreOptions{})

	testutil.AssertNoError(t, f.store.AddToWatchlist(context.Background(), "AAPL", "Apple Inc", f.userID))
	testutil.AssertNoError(t, f.store.RemoveFromWatchlist(context.Background(), "aapl", f.userID))

	if f.store.IsInWatchlist("AAPL") {
		t.Error("expected AAPL gone from local state")
	}
	in, err := f.service.IsInWatchlist(f.userID, "AAPL")
	testutil.AssertNoError(t, err)
	if in {
		t.Error("expected AAPL gone from persistence")
	}
}

func TestFetchPricesRateLimit(t *testing.T) {
	f := setupStore(t, WatchlistStoreOptions{PriceRefreshEvery: time.Minute})
	f.quotes.setQuote("AAPL", 190.5, 1.2, 0.63)
	f.quotes.setQuote("MSFT", 420.0, -2.1, -0.5)

	testutil.AssertNoError(t, f.store.AddToWatchlist(context.Background(), "AAPL", "Apple Inc", f.userID))
	testutil.AssertNoError(t, f.store.AddToWatchlist(context.Background(), "MSFT", "Microsoft", f.userID))

	// Adds fetch one immediate quote each.
	if got := f.quotes.callCount("AAPL"); got != 1 {
		t.Fatalf("expected 1 call after add, got %d", got)
	}

	f.store.FetchPricesForWatchlist(context.Background())
	if got := f.quotes.callCount("AAPL"); got != 2 {
		t.Fatalf("expected 2 calls after first refresh, got %d", got)
	}

	// Within the window: no-ops.
	f.clock.Advance(30 * time.Second)
	f.store.FetchPricesForWatchlist(context.Background())
	f.store.FetchPricesForWatchlist(context.Background())
	if got := f.quotes.callCount("AAPL"); got != 2 {
		t.Errorf("expected refresh inside the window to be a no-op, got %d calls", got)
	}

	// Past the window: refresh runs again.
	f.clock.Advance(31 * time.Second)
	f.store.FetchPricesForWatchlist(context.Background())
	if got := f.quotes.callCount("AAPL"); got != 3 {
		t.Errorf("expected refresh past the window to run, got %d calls", got)
	}
}

func TestFetchPricesPartialFailure(t *testing.T) {
	f := setupStore(t, WatchlistStoreOptions{})
	f.quotes.setQuote("TSLA", 250.0, 5.0, 2.04)
	// NOPE has no quote.

	testutil.AssertNoError(t, f.store.AddToWatchlist(context.Background(), "TSLA", "Tesla Inc", f.userID))
	testutil.AssertNoError(t, f.store.AddToWatchlist(context.Background(), "NOPE", "", f.userID))

	f.clock.Advance(2 * time.Minute)
	f.store.FetchPricesForWatchlist(context.Background())

	tsla, _ := f.store.GetWatchlistItem("TSLA")
	if tsla.CurrentPrice == nil || *tsla.CurrentPrice != 250.0 {
		t.Errorf("expected TSLA priced at 250.0, got %v", tsla.CurrentPrice)
	}
	if tsla.ChangePercent == nil || *tsla.ChangePercent != 2.04 {
		t.Errorf("expected TSLA change percent 2.04, got %v", tsla.ChangePercent)
	}

	nope, _ := f.store.GetWatchlistItem("NOPE")
	if nope.CurrentPrice != nil {
		t.Error("expected unpriceable item to stay priceless")
	}
	if f.store.LastError() != "" {
		t.Errorf("quote failures must not surface in the error state, got %q", f.store.LastError())
	}
}

func TestUpdateItemPrice(t *testing.T) {
	f := setupStore(t, WatchlistStoreOptions{})

	testutil.AssertNoError(t, f.store.AddToWatchlist(context.Background(), "AAPL", "Apple Inc", f.userID))

	change := 1.5
	pct := 0.8
	f.store.UpdateItemPrice("aapl", 191.0, &change, &pct)

	item, _ := f.store.GetWatchlistItem("AAPL")
	if item.CurrentPrice == nil || *item.CurrentPrice != 191.0 {
		t.Errorf("expected price 191.0, got %v", item.CurrentPrice)
	}
	if item.Change == nil || *item.Change != 1.5 {
		t.Errorf("expected change 1.5, got %v", item.Change)
	}
	if item.LastUpdated == nil {
		t.Error("expected last_updated to be stamped")
	}
}

func TestFetchWatchlistKeepsOverlays(t *testing.T) {
	f := setupStore(t, WatchlistStoreOptions{PriceRefreshEvery: time.Minute})
	f.quotes.setQuote("AAPL", 190.5, 1.2, 0.63)

	testutil.AssertNoError(t, f.store.AddToWatchlist(context.Background(), "AAPL", "Apple Inc", f.userID))

	// Re-fetch inside the rate-limit window: the snapshot replace must not
	// blank the overlay even though enrichment is a no-op.
	testutil.AssertNoError(t, f.store.FetchWatchlist(context.Background(), f.userID))

	item, ok := f.store.GetWatchlistItem("AAPL")
	if !ok {
		t.Fatal("expected AAPL after re-fetch")
	}
	if item.CurrentPrice == nil || *item.CurrentPrice != 190.5 {
		t.Errorf("expected overlay carried forward, got %v", item.CurrentPrice)
	}
}

func TestSubscribeToWatchlist(t *testing.T) {
	t.Run("requires_hydration", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		store := NewWatchlistStore(NewWatchlistService(db), newFakeQuoteProvider(), WatchlistStoreOptions{})
		err := store.SubscribeToWatchlist("some-user")
		testutil.AssertAppError(t, err, "NOT_HYDRATED")
	})

	t.Run("empty_user_clears_items", func(t *testing.T) {
		f := setupStore(t, WatchlistStoreOptions{})
		testutil.AssertNoError(t, f.store.AddToWatchlist(context.Background(), "AAPL", "Apple Inc", f.userID))

		testutil.AssertNoError(t, f.store.SubscribeToWatchlist(""))
		if len(f.store.Items()) != 0 {
			t.Error("subscribing with no user must clear local state")
		}
	})

	t.Run("picks_up_out_of_band_changes", func(t *testing.T) {
		f := setupStore(t, WatchlistStoreOptions{PollEvery: 10 * time.Millisecond})

		testutil.AssertNoError(t, f.store.SubscribeToWatchlist(f.userID))

		// Insert behind the store's back, as another session would.
		_, err := f.service.AddItem(f.userID, "NVDA", "NVIDIA")
		testutil.AssertNoError(t, err)

		waitFor(t, 2*time.Second, func() bool {
			return f.store.IsInWatchlist("NVDA")
		}, "subscription never observed the out-of-band insert")
	})

	t.Run("stops_after_unsubscribe", func(t *testing.T) {
		f := setupStore(t, WatchlistStoreOptions{PollEvery: 10 * time.Millisecond})

		testutil.AssertNoError(t, f.store.SubscribeToWatchlist(f.userID))
		f.store.UnsubscribeFromWatchlist()

		_, err := f.service.AddItem(f.userID, "AMD", "AMD")
		testutil.AssertNoError(t, err)

		time.Sleep(50 * time.Millisecond)
		if f.store.IsInWatchlist("AMD") {
			t.Error("unsubscribed store must not observe new inserts")
		}
	})

	t.Run("resubscribe_replaces_watcher", func(t *testing.T) {
		f := setupStore(t, WatchlistStoreOptions{PollEvery: 10 * time.Millisecond})

		testutil.AssertNoError(t, f.store.SubscribeToWatchlist(f.userID))
		testutil.AssertNoError(t, f.store.SubscribeToWatchlist(f.userID))
		f.store.UnsubscribeFromWatchlist()
	})

	t.Run("concurrent_subscribes_leave_one_watcher", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)

		svc := &countingWatchlistService{WatchlistServicer: NewWatchlistService(db)}
		store := NewWatchlistStore(svc, newFakeQuoteProvider(), WatchlistStoreOptions{PollEvery: 5 * time.Millisecond})
		store.Hydrate(StoreSnapshot{})

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- store.SubscribeToWatchlist(user.ID)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			testutil.AssertNoError(t, err)
		}
		store.UnsubscribeFromWatchlist()

		if store.Subscribed() {
			t.Fatal("expected no live watcher after unsubscribe")
		}

		// A stranded watcher would keep polling the service forever.
		before := svc.listCalls()
		time.Sleep(50 * time.Millisecond)
		if after := svc.listCalls(); after != before {
			t.Errorf("watcher survived unsubscribe: ListItems calls grew %d -> %d", before, after)
		}
	})
}

func TestClearWatchlist(t *testing.T) {
	f := setupStore(t, WatchlistStoreOptions{PollEvery: 10 * time.Millisecond})
	f.quotes.setQuote("AAPL", 190.5, 1.2, 0.63)

	testutil.AssertNoError(t, f.store.AddToWatchlist(context.Background(), "AAPL", "Apple Inc", f.userID))
	testutil.AssertNoError(t, f.store.SubscribeToWatchlist(f.userID))

	f.store.ClearWatchlist()

	if len(f.store.Items()) != 0 {
		t.Error("expected empty local state after clear")
	}
	if f.store.LastError() != "" {
		t.Error("expected error state reset after clear")
	}

	// The watcher is gone: a later insert is not picked up.
	_, err := f.service.AddItem(f.userID, "MSFT", "Microsoft")
	testutil.AssertNoError(t, err)
	time.Sleep(50 * time.Millisecond)
	if f.store.IsInWatchlist("MSFT") {
		t.Error("clear must tear down the live subscription")
	}

	// Persisted records survive a local clear.
	in, err := f.service.IsInWatchlist(f.userID, "AAPL")
	testutil.AssertNoError(t, err)
	if !in {
		t.Error("clear must not delete persisted records")
	}
}

func TestStorePersistCallback(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	quotes := newFakeQuoteProvider()
	quotes.setQuote("AAPL", 190.5, 1.2, 0.63)

	var mu sync.Mutex
	var last StoreSnapshot
	store := NewWatchlistStore(NewWatchlistService(db), quotes, WatchlistStoreOptions{
		Persist: func(snap StoreSnapshot) {
			mu.Lock()
			last = snap
			mu.Unlock()
		},
	})
	store.Hydrate(StoreSnapshot{})

	testutil.AssertNoError(t, store.AddToWatchlist(context.Background(), "AAPL", "Apple Inc", user.ID))

	mu.Lock()
	defer mu.Unlock()
	if len(last.Items) != 1 || last.Items[0].Symbol != "AAPL" {
		t.Errorf("expected persisted snapshot with AAPL, got %+v", last.Items)
	}
}

func TestStoreHydration(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	price := 190.5
	snap := StoreSnapshot{
		Items: []ItemWithPrice{
			{WatchlistItem: models.WatchlistItem{UserID: "u1", Symbol: "AAPL"}, CurrentPrice: &price},
		},
		LastPriceFetch: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}

	store := NewWatchlistStore(NewWatchlistService(db), newFakeQuoteProvider(), WatchlistStoreOptions{})
	if store.IsHydrated() {
		t.Fatal("fresh store must not report hydrated")
	}

	store.Hydrate(snap)
	if !store.IsHydrated() {
		t.Fatal("expected hydrated after Hydrate")
	}
	if !store.IsInWatchlist("AAPL") {
		t.Error("expected restored items visible")
	}
	item, _ := store.GetWatchlistItem("AAPL")
	if item.CurrentPrice == nil || *item.CurrentPrice != 190.5 {
		t.Errorf("expected restored overlay, got %v", item.CurrentPrice)
	}
}
