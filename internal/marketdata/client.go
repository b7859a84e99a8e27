// Package marketdata implements a client for a Finnhub-compatible market
// data HTTP API: real-time quotes, company profiles, symbol search, market
// news, and crypto quotes.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dexbit/internal/logger"
)

// Cache windows per endpoint class. Quotes use a short window so watchlist
// refreshes see reasonably fresh prices; profiles and search results churn
// slowly and can be held much longer.
const (
	quoteCacheTTL   = time.Minute
	profileCacheTTL = time.Hour
	searchCacheTTL  = 30 * time.Minute
	newsCacheTTL    = 5 * time.Minute
)

// popularStockSymbols is the default set shown when searching with an
// empty query.
var popularStockSymbols = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA",
	"TSLA", "META", "NFLX", "AMD", "JPM",
}

// popularCryptoSymbols are Binance pairs used for the crypto movers list.
var popularCryptoSymbols = []string{
	"BINANCE:BTCUSDT", "BINANCE:ETHUSDT", "BINANCE:BNBUSDT",
	"BINANCE:SOLUSDT", "BINANCE:XRPUSDT", "BINANCE:ADAUSDT",
	"BINANCE:DOGEUSDT", "BINANCE:AVAXUSDT", "BINANCE:DOTUSDT",
	"BINANCE:LINKUSDT", "BINANCE:MATICUSDT", "BINANCE:LTCUSDT",
}

// Quote is the provider's quote shape. Only c, d, and dp are consumed by
// the watchlist overlay; the rest are passed through to API clients.
type Quote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// Profile holds company profile data for a symbol.
type Profile struct {
	Country   string  `json:"country"`
	Currency  string  `json:"currency"`
	Exchange  string  `json:"exchange"`
	Name      string  `json:"name"`
	Ticker    string  `json:"ticker"`
	MarketCap float64 `json:"marketCapitalization"`
	Industry  string  `json:"finnhubIndustry"`
	Logo      string  `json:"logo"`
	WebURL    string  `json:"weburl"`
}

// searchResponse is the raw /search payload.
type searchResponse struct {
	Count  int            `json:"count"`
	Result []searchResult `json:"result"`
}

type searchResult struct {
	Symbol        string `json:"symbol"`
	Description   string `json:"description"`
	DisplaySymbol string `json:"displaySymbol"`
	Type          string `json:"type"`
}

// StockMatch is a search hit normalized for the dashboard's search command.
type StockMatch struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Exchange    string `json:"exchange"`
	Type        string `json:"type"`
	InWatchlist bool   `json:"is_in_watchlist"`
}

// maxSearchResults caps the number of matches returned to the UI.
const maxSearchResults = 15

// Client handles market data API requests.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	cache   *ttlCache

	// fanoutLimit bounds concurrent per-symbol requests in bulk helpers.
	fanoutLimit int
}

// NewClient creates a new market data API client. An empty apiKey yields a
// client whose lookups report data as unavailable rather than erroring.
func NewClient(apiKey, baseURL string, fanoutLimit int) *Client {
	if baseURL == "" {
		baseURL = "https://finnhub.io/api/v1"
	}
	if fanoutLimit <= 0 {
		fanoutLimit = 8
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:       newTTLCache(),
		fanoutLimit: fanoutLimit,
	}
}

// fetchJSON performs a GET against the provider, consulting the response
// cache first, and decodes the body into out.
func (c *Client) fetchJSON(ctx context.Context, reqURL string, ttl time.Duration, out interface{}) error {
	if body := c.cache.get(reqURL); body != nil {
		return json.Unmarshal(body, out)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("market data request failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return err
	}

	c.cache.set(reqURL, body, ttl)
	return nil
}

// endpoint builds a provider URL with the API key attached.
func (c *Client) endpoint(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("token", c.apiKey)
	return fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
}

// GetQuote retrieves a real-time quote for a symbol. It returns (nil, nil)
// when data is unavailable — missing API key or an unknown symbol — so
// callers can treat absence and failure uniformly.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if c.apiKey == "" {
		logger.Get().Warn("market data API key is not configured")
		return nil, nil
	}

	params := url.Values{}
	params.Set("symbol", symbol)

	var quote Quote
	if err := c.fetchJSON(ctx, c.endpoint("/quote", params), quoteCacheTTL, &quote); err != nil {
		return nil, err
	}

	// The provider answers unknown symbols with an all-zero quote.
	if quote.Current == 0 && quote.Timestamp == 0 {
		return nil, nil
	}

	return &quote, nil
}

// GetProfile retrieves the company profile for a symbol. Returns (nil, nil)
// when the profile is unavailable.
func (c *Client) GetProfile(ctx context.Context, symbol string) (*Profile, error) {
	if c.apiKey == "" {
		logger.Get().Warn("market data API key is not configured")
		return nil, nil
	}

	params := url.Values{}
	params.Set("symbol", symbol)

	var profile Profile
	if err := c.fetchJSON(ctx, c.endpoint("/stock/profile2", params), profileCacheTTL, &profile); err != nil {
		return nil, err
	}

	if profile.Name == "" && profile.Ticker == "" {
		return nil, nil
	}

	return &profile, nil
}

// SearchStocks searches the provider for symbols matching query. An empty
// query returns the popular-symbol set so the search UI has something to
// show before the user types.
func (c *Client) SearchStocks(ctx context.Context, query string) ([]StockMatch, error) {
	if c.apiKey == "" {
		logger.Get().Warn("market data API key is not configured")
		return []StockMatch{}, nil
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return c.popularStocks(ctx)
	}

	params := url.Values{}
	params.Set("q", trimmed)

	var resp searchResponse
	if err := c.fetchJSON(ctx, c.endpoint("/search", params), searchCacheTTL, &resp); err != nil {
		return nil, err
	}

	matches := make([]StockMatch, 0, len(resp.Result))
	for _, r := range resp.Result {
		symbol := strings.ToUpper(r.Symbol)
		if symbol == "" {
			continue
		}
		name := r.Description
		if name == "" {
			name = symbol
		}
		exchange := r.DisplaySymbol
		if exchange == "" {
			exchange = "US"
		}
		stockType := r.Type
		if stockType == "" {
			stockType = "Stock"
		}
		matches = append(matches, StockMatch{
			Symbol:   symbol,
			Name:     name,
			Exchange: exchange,
			Type:     stockType,
		})
		if len(matches) == maxSearchResults {
			break
		}
	}

	return matches, nil
}

// popularStocks resolves the default popular-symbol set through company
// profiles, skipping symbols whose profile lookup fails.
func (c *Client) popularStocks(ctx context.Context) ([]StockMatch, error) {
	profiles := fanOut(ctx, popularStockSymbols, c.fanoutLimit, c.GetProfile)

	matches := make([]StockMatch, 0, len(popularStockSymbols))
	for i, symbol := range popularStockSymbols {
		profile := profiles[i]
		if profile == nil {
			continue
		}
		name := profile.Name
		if name == "" {
			name = profile.Ticker
		}
		if name == "" {
			continue
		}
		exchange := profile.Exchange
		if exchange == "" {
			exchange = "US"
		}
		matches = append(matches, StockMatch{
			Symbol:   strings.ToUpper(symbol),
			Name:     name,
			Exchange: exchange,
			Type:     "Common Stock",
		})
	}

	return matches, nil
}
