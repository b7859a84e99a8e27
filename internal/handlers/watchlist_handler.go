package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "dexbit/internal/errors"
	"dexbit/internal/services"
)

// WatchlistHandler handles watchlist requests. All state flows through the
// per-user store; the persistence service is only reached directly for the
// wholesale clear.
type WatchlistHandler struct {
	stores           *services.StoreManager
	watchlistService services.WatchlistServicer
	auditService     services.AuditServicer
}

// NewWatchlistHandler creates a new WatchlistHandler.
func NewWatchlistHandler(stores *services.StoreManager, watchlistService services.WatchlistServicer, auditService services.AuditServicer) *WatchlistHandler {
	return &WatchlistHandler{
		stores:           stores,
		watchlistService: watchlistService,
		auditService:     auditService,
	}
}

// AddWatchlistItemRequest represents the add-to-watchlist request payload
type AddWatchlistItemRequest struct {
	Symbol      string `json:"symbol" binding:"required,ticker"`
	CompanyName string `json:"company_name" binding:"max=255"`
}

// WatchlistResponse represents a watchlist with its error state
type WatchlistResponse struct {
	Items []services.ItemWithPrice `json:"items"`
	Error string                   `json:"error,omitempty"`
}

func (h *WatchlistHandler) respondWithList(c *gin.Context, status int, store *services.WatchlistStore) {
	items := store.Items()
	if items == nil {
		items = []services.ItemWithPrice{}
	}
	c.JSON(status, WatchlistResponse{Items: items, Error: store.LastError()})
}

// GetWatchlist returns the user's watchlist with price overlays
// @Summary     Get watchlist
// @Description Fetch the watchlist from storage and enrich it with current prices
// @Tags        watchlist
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} WatchlistResponse "Watchlist items"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /watchlist [get]
func (h *WatchlistHandler) GetWatchlist(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	store := h.stores.Store(userID)
	if err := store.FetchWatchlist(c.Request.Context(), userID); err != nil {
		respondWithError(c, err)
		return
	}

	h.respondWithList(c, http.StatusOK, store)
}

// AddToWatchlist adds a symbol to the user's watchlist
// @Summary     Add watchlist item
// @Description Add a symbol to the watchlist; adding a symbol already present is a no-op
// @Tags        watchlist
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body AddWatchlistItemRequest true "Symbol to track"
// @Success     201 {object} services.ItemWithPrice "Item added"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Symbol already tracked"
// @Router      /watchlist [post]
func (h *WatchlistHandler) AddToWatchlist(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AddWatchlistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	store := h.stores.Store(userID)
	if err := store.AddToWatchlist(c.Request.Context(), req.Symbol, req.CompanyName, userID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "watchlist.add", "watchlist_item", req.Symbol, c.ClientIP(), nil)

	item, ok := store.GetWatchlistItem(req.Symbol)
	if !ok {
		respondWithError(c, apperrors.ErrInternalServer)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// RemoveFromWatchlist removes a symbol from the user's watchlist
// @Summary     Remove watchlist item
// @Description Remove a symbol from the watchlist
// @Tags        watchlist
// @Produce     json
// @Security    BearerAuth
// @Param       symbol path string true "Ticker symbol"
// @Success     200 {object} map[string]string "Item removed"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /watchlist/{symbol} [delete]
func (h *WatchlistHandler) RemoveFromWatchlist(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	symbol := c.Param("symbol")
	store := h.stores.Store(userID)
	if err := store.RemoveFromWatchlist(c.Request.Context(), symbol, userID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "watchlist.remove", "watchlist_item", symbol, c.ClientIP(), nil)
	c.JSON(http.StatusOK, gin.H{"message": "Removed from watchlist"})
}

// ClearWatchlist deletes the user's entire persisted watchlist
// @Summary     Clear watchlist
// @Description Delete every watchlist item and reset local state
// @Tags        watchlist
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]int64 "Removed count"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /watchlist [delete]
func (h *WatchlistHandler) ClearWatchlist(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	removed, err := h.watchlistService.ClearUser(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.stores.Store(userID).ClearWatchlist()

	h.auditService.Log(userID, "watchlist.clear", "watchlist_item", "", c.ClientIP(), map[string]interface{}{"removed": removed})
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// RefreshPrices triggers a price-enrichment pass
// @Summary     Refresh watchlist prices
// @Description Re-fetch quotes for every item; a no-op inside the rate-limit window
// @Tags        watchlist
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} WatchlistResponse "Watchlist with refreshed prices"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /watchlist/refresh [post]
func (h *WatchlistHandler) RefreshPrices(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	store := h.stores.Store(userID)
	store.FetchPricesForWatchlist(c.Request.Context())
	h.respondWithList(c, http.StatusOK, store)
}

// GetWatchlistItem returns a single watchlist item and its membership status
// @Summary     Get watchlist item
// @Description Look up a single symbol in the watchlist
// @Tags        watchlist
// @Produce     json
// @Security    BearerAuth
// @Param       symbol path string true "Ticker symbol"
// @Success     200 {object} services.ItemWithPrice "Watchlist item"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Symbol not tracked"
// @Router      /watchlist/{symbol} [get]
func (h *WatchlistHandler) GetWatchlistItem(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	symbol := c.Param("symbol")
	store := h.stores.Store(userID)

	// Local state may be empty on a fresh store; fall back to a one-shot
	// fetch before declaring the symbol untracked.
	item, ok := store.GetWatchlistItem(symbol)
	if !ok {
		if err := store.FetchWatchlist(c.Request.Context(), userID); err != nil {
			respondWithError(c, err)
			return
		}
		item, ok = store.GetWatchlistItem(symbol)
	}
	if !ok {
		respondWithError(c, apperrors.ErrWatchlistItemNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"in_watchlist": true, "item": item})
}

// StreamWatchlist streams live watchlist updates over SSE
// @Summary     Stream watchlist updates
// @Description Server-sent events: one snapshot per change while the live subscription runs
// @Tags        watchlist
// @Produce     text/event-stream
// @Security    BearerAuth
// @Success     200 {string} string "SSE stream"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Stream already open"
// @Failure     503 {object} ErrorResponse "Store not hydrated"
// @Router      /watchlist/stream [get]
func (h *WatchlistHandler) StreamWatchlist(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	// One live stream per user: a second one would displace this one's
	// update callback and watcher mid-flight.
	if !h.stores.BeginStream(userID) {
		respondWithError(c, apperrors.ErrStreamInUse)
		return
	}
	defer h.stores.EndStream(userID)

	store := h.stores.Store(userID)

	// The update callback runs with the store lock held, so it must never
	// block: snapshots are dropped when the client is behind, and the next
	// one supersedes them anyway.
	updates := make(chan []services.ItemWithPrice, 1)
	store.SetOnUpdate(func(items []services.ItemWithPrice) {
		select {
		case updates <- items:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- items:
			default:
			}
		}
	})
	defer store.SetOnUpdate(nil)

	if err := store.SubscribeToWatchlist(userID); err != nil {
		respondWithError(c, err)
		return
	}
	defer store.UnsubscribeFromWatchlist()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("watchlist", WatchlistResponse{Items: store.Items(), Error: store.LastError()})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case items := <-updates:
			c.SSEvent("watchlist", WatchlistResponse{Items: items, Error: store.LastError()})
			return true
		}
	})
}
