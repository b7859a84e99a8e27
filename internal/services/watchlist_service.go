package services

import (
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "dexbit/internal/errors"
	"dexbit/internal/models"
)

// watchlistService handles watchlist persistence. Symbols are normalized to
// uppercase on every write and lookup so identity is case-insensitive.
type watchlistService struct {
	db *gorm.DB
}

// NewWatchlistService creates a new WatchlistServicer.
func NewWatchlistService(db *gorm.DB) WatchlistServicer {
	return &watchlistService{db: db}
}

// AddItem persists a new watchlist record with a server-stamped added_at.
// The (user_id, symbol) unique index rejects concurrent duplicate inserts
// that slip past the caller's in-memory existence check.
func (s *watchlistService) AddItem(userID, symbol, companyName string) (*models.WatchlistItem, error) {
	if userID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "User ID is required")
	}
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Symbol is required")
	}

	item := &models.WatchlistItem{
		UserID:      userID,
		Symbol:      symbol,
		CompanyName: companyName,
		AddedAt:     time.Now().UTC(),
	}

	if err := s.db.Create(item).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrDuplicateWatchlistItem
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return item, nil
}

// ListItems returns a user's watchlist ordered by creation time descending.
func (s *watchlistService) ListItems(userID string) ([]models.WatchlistItem, error) {
	var items []models.WatchlistItem
	if err := s.db.Where("user_id = ?", userID).Order("added_at DESC").Find(&items).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return items, nil
}

// RemoveItems deletes every record matching (user, symbol) and reports how
// many rows went away. The uniqueness invariant says at most one, but the
// delete is written as a query match so stray duplicates are swept too.
// Deletes are hard: a soft-deleted row would still occupy the unique index
// and block re-adding the symbol.
func (s *watchlistService) RemoveItems(userID, symbol string) (int64, error) {
	if userID == "" {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "User ID is required")
	}
	symbol = normalizeSymbol(symbol)

	result := s.db.Unscoped().Where("user_id = ? AND symbol = ?", userID, symbol).Delete(&models.WatchlistItem{})
	if result.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	return result.RowsAffected, nil
}

// ClearUser deletes a user's entire watchlist, returning the removed count.
func (s *watchlistService) ClearUser(userID string) (int64, error) {
	if userID == "" {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "User ID is required")
	}

	result := s.db.Unscoped().Where("user_id = ?", userID).Delete(&models.WatchlistItem{})
	if result.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	return result.RowsAffected, nil
}

// IsInWatchlist reports whether the user tracks the given symbol.
func (s *watchlistService) IsInWatchlist(userID, symbol string) (bool, error) {
	var count int64
	err := s.db.Model(&models.WatchlistItem{}).
		Where("user_id = ? AND symbol = ?", userID, normalizeSymbol(symbol)).
		Count(&count).Error
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count > 0, nil
}

// CountByUser returns the number of items in a user's watchlist.
func (s *watchlistService) CountByUser(userID string) (int64, error) {
	var count int64
	if err := s.db.Model(&models.WatchlistItem{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count, nil
}

// normalizeSymbol uppercases and trims a ticker symbol.
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// isUniqueConstraintError checks if a GORM error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // SQLite
		strings.Contains(msg, "duplicate key value violates unique constraint") // PostgreSQL
}
