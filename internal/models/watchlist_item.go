package models

import "time"

// WatchlistItem is one tracked symbol on a user's watchlist. The
// (user_id, symbol) unique index makes concurrent duplicate adds collapse
// to a single row. Price data is never stored here; it is overlaid in
// memory by the watchlist store.
type WatchlistItem struct {
	Base
	UserID      string    `gorm:"type:uuid;not null;uniqueIndex:uq_watchlist_user_symbol" json:"user_id"`
	Symbol      string    `gorm:"size:20;not null;uniqueIndex:uq_watchlist_user_symbol" json:"symbol"`
	CompanyName string    `gorm:"size:255" json:"company_name"`
	AddedAt     time.Time `gorm:"not null;index" json:"added_at"`
}
