package marketdata

import (
	"context"
	"net/url"
	"sort"
	"time"

	"dexbit/internal/logger"
)

// NewsArticle is a single article from the provider's news feeds.
type NewsArticle struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Image    string `json:"image"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

const (
	maxGeneralNews  = 20
	maxCompanyNews  = 10
	maxTrendingNews = 50
)

// trendingCategories are merged to approximate a trending feed.
var trendingCategories = []string{"general", "forex", "crypto", "merger"}

// GetMarketNews fetches the latest market news. Category defaults to
// "general" when empty.
func (c *Client) GetMarketNews(ctx context.Context, category string) ([]NewsArticle, error) {
	if c.apiKey == "" {
		logger.Get().Warn("market data API key is not configured")
		return []NewsArticle{}, nil
	}

	if category == "" {
		category = "general"
	}

	params := url.Values{}
	params.Set("category", category)

	var articles []NewsArticle
	if err := c.fetchJSON(ctx, c.endpoint("/news", params), newsCacheTTL, &articles); err != nil {
		return nil, err
	}

	if len(articles) > maxGeneralNews {
		articles = articles[:maxGeneralNews]
	}
	return articles, nil
}

// GetCompanyNews fetches news for a single symbol. The range defaults to
// the trailing week when from/to are zero.
func (c *Client) GetCompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]NewsArticle, error) {
	if c.apiKey == "" {
		logger.Get().Warn("market data API key is not configured")
		return []NewsArticle{}, nil
	}

	now := time.Now()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -7)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))

	var articles []NewsArticle
	if err := c.fetchJSON(ctx, c.endpoint("/company-news", params), newsCacheTTL, &articles); err != nil {
		return nil, err
	}

	if len(articles) > maxCompanyNews {
		articles = articles[:maxCompanyNews]
	}
	return articles, nil
}

// GetTrendingNews merges several news categories, dropping duplicate
// headlines and sorting newest first.
func (c *Client) GetTrendingNews(ctx context.Context) ([]NewsArticle, error) {
	if c.apiKey == "" {
		logger.Get().Warn("market data API key is not configured")
		return []NewsArticle{}, nil
	}

	perCategory := fanOut(ctx, trendingCategories, c.fanoutLimit,
		func(ctx context.Context, category string) ([]NewsArticle, error) {
			return c.GetMarketNews(ctx, category)
		})

	seen := make(map[string]bool)
	merged := make([]NewsArticle, 0, maxTrendingNews)
	for _, articles := range perCategory {
		for _, article := range articles {
			if article.Headline == "" || seen[article.Headline] {
				continue
			}
			seen[article.Headline] = true
			merged = append(merged, article)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Datetime > merged[j].Datetime
	})

	if len(merged) > maxTrendingNews {
		merged = merged[:maxTrendingNews]
	}
	return merged, nil
}
