package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "dexbit/internal/errors"
	"dexbit/internal/logger"
	"dexbit/internal/marketdata"
	"dexbit/internal/services"
)

// MarketHandler handles market data requests: search, quotes, profiles,
// news feeds, and crypto movers.
type MarketHandler struct {
	market *marketdata.Client
	stores *services.StoreManager
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(market *marketdata.Client, stores *services.StoreManager) *MarketHandler {
	return &MarketHandler{market: market, stores: stores}
}

// SearchRequest represents the symbol search query parameters
type SearchRequest struct {
	Query string `form:"q" binding:"max=100"`
}

// NewsRequest represents the market news query parameters
type NewsRequest struct {
	Category string `form:"category" binding:"omitempty,news_category"`
}

// CompanyNewsRequest represents the company news query parameters
type CompanyNewsRequest struct {
	From string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

// MoversRequest represents the crypto movers query parameters
type MoversRequest struct {
	Direction string `form:"direction" binding:"omitempty,mover_direction"`
}

// SearchStocks searches for symbols, flagging matches already tracked
// @Summary     Search symbols
// @Description Search for stocks by name or ticker; an empty query returns popular symbols
// @Tags        market
// @Produce     json
// @Security    BearerAuth
// @Param       q query string false "Search query"
// @Success     200 {array} marketdata.StockMatch "Matches"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     502 {object} ErrorResponse "Provider unavailable"
// @Router      /market/search [get]
func (h *MarketHandler) SearchStocks(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	matches, err := h.market.SearchStocks(c.Request.Context(), req.Query)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrMarketDataUnavailable, err))
		return
	}

	store := h.stores.Store(userID)
	for i := range matches {
		matches[i].InWatchlist = store.IsInWatchlist(matches[i].Symbol)
	}

	c.JSON(http.StatusOK, gin.H{"results": matches})
}

// GetQuote returns the current quote for a symbol
// @Summary     Get quote
// @Description Get the real-time quote for a symbol
// @Tags        market
// @Produce     json
// @Security    BearerAuth
// @Param       symbol path string true "Ticker symbol"
// @Success     200 {object} marketdata.Quote "Quote"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Quote unavailable"
// @Failure     502 {object} ErrorResponse "Provider unavailable"
// @Router      /market/quote/{symbol} [get]
func (h *MarketHandler) GetQuote(c *gin.Context) {
	symbol := c.Param("symbol")

	quote, err := h.market.GetQuote(c.Request.Context(), symbol)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrMarketDataUnavailable, err))
		return
	}
	if quote == nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrNotFound, "No quote available for "+symbol))
		return
	}

	c.JSON(http.StatusOK, quote)
}

// GetProfile returns the company profile for a symbol
// @Summary     Get company profile
// @Description Get the company profile for a symbol
// @Tags        market
// @Produce     json
// @Security    BearerAuth
// @Param       symbol path string true "Ticker symbol"
// @Success     200 {object} marketdata.Profile "Profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Profile unavailable"
// @Failure     502 {object} ErrorResponse "Provider unavailable"
// @Router      /market/profile/{symbol} [get]
func (h *MarketHandler) GetProfile(c *gin.Context) {
	symbol := c.Param("symbol")

	profile, err := h.market.GetProfile(c.Request.Context(), symbol)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrMarketDataUnavailable, err))
		return
	}
	if profile == nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrNotFound, "No profile available for "+symbol))
		return
	}

	c.JSON(http.StatusOK, profile)
}

// GetMarketNews returns the latest market news
// @Summary     Get market news
// @Description Get the latest market news, optionally filtered by category
// @Tags        market
// @Produce     json
// @Security    BearerAuth
// @Param       category query string false "News category" Enums(general, forex, crypto, merger)
// @Success     200 {array} marketdata.NewsArticle "Articles"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     502 {object} ErrorResponse "Provider unavailable"
// @Router      /market/news [get]
func (h *MarketHandler) GetMarketNews(c *gin.Context) {
	var req NewsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	articles, err := h.market.GetMarketNews(c.Request.Context(), req.Category)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrMarketDataUnavailable, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

// GetTrendingNews returns a merged cross-category news feed
// @Summary     Get trending news
// @Description Get a deduplicated cross-category news feed, newest first
// @Tags        market
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array} marketdata.NewsArticle "Articles"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     502 {object} ErrorResponse "Provider unavailable"
// @Router      /market/news/trending [get]
func (h *MarketHandler) GetTrendingNews(c *gin.Context) {
	articles, err := h.market.GetTrendingNews(c.Request.Context())
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrMarketDataUnavailable, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

// GetCompanyNews returns recent news for a single symbol
// @Summary     Get company news
// @Description Get news for a symbol; the range defaults to the trailing week
// @Tags        market
// @Produce     json
// @Security    BearerAuth
// @Param       symbol path string true "Ticker symbol"
// @Param       from query string false "Start date (YYYY-MM-DD)"
// @Param       to query string false "End date (YYYY-MM-DD)"
// @Success     200 {array} marketdata.NewsArticle "Articles"
// @Failure     400 {object} ErrorResponse "Invalid date range"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     502 {object} ErrorResponse "Provider unavailable"
// @Router      /market/news/{symbol} [get]
func (h *MarketHandler) GetCompanyNews(c *gin.Context) {
	symbol := c.Param("symbol")

	var req CompanyNewsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var from, to time.Time
	if req.From != "" {
		from, _ = time.Parse("2006-01-02", req.From)
	}
	if req.To != "" {
		to, _ = time.Parse("2006-01-02", req.To)
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "'from' must not be after 'to'"))
		return
	}

	articles, err := h.market.GetCompanyNews(c.Request.Context(), symbol, from, to)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrMarketDataUnavailable, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

// GetCryptoMovers returns the top crypto gainers or losers
// @Summary     Get crypto movers
// @Description Get the biggest crypto gainers or losers by percent change
// @Tags        market
// @Produce     json
// @Security    BearerAuth
// @Param       direction query string false "Sort direction" Enums(gainers, losers)
// @Success     200 {array} marketdata.CryptoMover "Movers"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     502 {object} ErrorResponse "Provider unavailable"
// @Router      /market/crypto/movers [get]
func (h *MarketHandler) GetCryptoMovers(c *gin.Context) {
	var req MoversRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	movers, err := h.market.GetCryptoMovers(c.Request.Context(), req.Direction)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrMarketDataUnavailable, err))
		return
	}

	logger.Get().Debugw("crypto movers served", "direction", req.Direction, "count", len(movers))
	c.JSON(http.StatusOK, gin.H{"movers": movers})
}
