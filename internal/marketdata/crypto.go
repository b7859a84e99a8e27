package marketdata

import (
	"context"
	"sort"
	"strings"

	"dexbit/internal/logger"
)

// CryptoMover is a crypto asset ranked by 24h percentage move.
type CryptoMover struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	High24h       float64 `json:"high_24h"`
	Low24h        float64 `json:"low_24h"`
}

const maxCryptoMovers = 10

// GetCryptoMovers quotes the popular crypto pairs concurrently and returns
// the top movers. Direction is "gainers" (default) or "losers". Pairs whose
// quote is unavailable are skipped.
func (c *Client) GetCryptoMovers(ctx context.Context, direction string) ([]CryptoMover, error) {
	if c.apiKey == "" {
		logger.Get().Warn("market data API key is not configured")
		return []CryptoMover{}, nil
	}

	quotes := fanOut(ctx, popularCryptoSymbols, c.fanoutLimit, c.GetQuote)

	movers := make([]CryptoMover, 0, len(popularCryptoSymbols))
	for i, pair := range popularCryptoSymbols {
		quote := quotes[i]
		if quote == nil || quote.Current == 0 {
			continue
		}
		name := cryptoDisplayName(pair)
		movers = append(movers, CryptoMover{
			Symbol:        name,
			Name:          name,
			Price:         quote.Current,
			Change:        quote.Change,
			ChangePercent: quote.ChangePercent,
			High24h:       quote.High,
			Low24h:        quote.Low,
		})
	}

	if direction == "losers" {
		sort.Slice(movers, func(i, j int) bool {
			return movers[i].ChangePercent < movers[j].ChangePercent
		})
	} else {
		sort.Slice(movers, func(i, j int) bool {
			return movers[i].ChangePercent > movers[j].ChangePercent
		})
	}

	if len(movers) > maxCryptoMovers {
		movers = movers[:maxCryptoMovers]
	}
	return movers, nil
}

// cryptoDisplayName strips the exchange prefix and quote currency from a
// pair like BINANCE:BTCUSDT, leaving BTC.
func cryptoDisplayName(pair string) string {
	name := pair
	if idx := strings.IndexByte(name, ':'); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSuffix(name, "USDT")
}
