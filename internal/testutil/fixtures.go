package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"dexbit/internal/models"
)

// FixturePassword is the plaintext password every fixture user is created with.
const FixturePassword = "password123"

var fixtureSeq atomic.Int64

// CreateTestUser creates an active user with a unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithEmail(t, db, fmt.Sprintf("user%d@test.com", fixtureSeq.Add(1)))
}

// CreateTestUserWithEmail creates an active user with the given email and
// FixturePassword. MinCost keeps bcrypt cheap in tests.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(FixturePassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestWatchlistItem inserts a watchlist row for the user and symbol.
func CreateTestWatchlistItem(t *testing.T, db *gorm.DB, userID, symbol string) *models.WatchlistItem {
	t.Helper()

	item := &models.WatchlistItem{
		UserID:      userID,
		Symbol:      symbol,
		CompanyName: fmt.Sprintf("Test Company %d", fixtureSeq.Add(1)),
		AddedAt:     time.Now().UTC(),
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("failed to create test watchlist item: %v", err)
	}
	return item
}
