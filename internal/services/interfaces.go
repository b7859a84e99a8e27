package services

import (
	"context"
	"time"

	"dexbit/internal/marketdata"
	"dexbit/internal/models"
	"dexbit/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
	ListActiveUsers() ([]models.User, error)
}

// WatchlistServicer is the persistence boundary for watchlist records. The
// store treats it as a remote document service: add, ordered query,
// delete-by-query, membership check.
type WatchlistServicer interface {
	AddItem(userID, symbol, companyName string) (*models.WatchlistItem, error)
	ListItems(userID string) ([]models.WatchlistItem, error)
	RemoveItems(userID, symbol string) (int64, error)
	ClearUser(userID string) (int64, error)
	IsInWatchlist(userID, symbol string) (bool, error)
	CountByUser(userID string) (int64, error)
}

// QuoteProvider is the market-data boundary the watchlist store consumes.
// Implementations return (nil, nil) when a quote is unavailable; the store
// treats that the same as an error — skip and move on.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*marketdata.Quote, error)
}

// NewsProvider supplies market news for the digest email job.
type NewsProvider interface {
	GetMarketNews(ctx context.Context, category string) ([]marketdata.NewsArticle, error)
}

// Mailer defines the contract for transactional email delivery.
type Mailer interface {
	Enabled() bool
	SendWelcome(email, name, intro string) error
	SendNewsSummary(email, date, newsContent string) error
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
	ListUserEvents(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error)
}

// NewsDigestServicer assembles and fans out the market news summary email.
type NewsDigestServicer interface {
	SendDigest(ctx context.Context) (int, error)
}

// ItemWithPrice is a persisted watchlist item plus its ephemeral price
// overlay. Overlay fields are never written back to the watchlist table;
// they live only in the store and its local snapshot.
type ItemWithPrice struct {
	models.WatchlistItem
	CurrentPrice  *float64   `json:"current_price,omitempty"`
	Change        *float64   `json:"change,omitempty"`
	ChangePercent *float64   `json:"change_percent,omitempty"`
	LastUpdated   *time.Time `json:"last_updated,omitempty"`
}
