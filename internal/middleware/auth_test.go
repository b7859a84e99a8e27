package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"dexbit/internal/models"
)

func testUser() *models.User {
	u := &models.User{Email: "claims@example.com"}
	u.ID = "0190a6e2-1111-7000-8000-000000000001"
	return u
}

func TestAccessTokenRoundTrip(t *testing.T) {
	user := testUser()

	token, err := GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("failed to generate access token: %v", err)
	}

	claims, err := ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("failed to validate access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("expected user ID %s, got %s", user.ID, claims.UserID)
	}
	if claims.Email != user.Email {
		t.Errorf("expected email %s, got %s", user.Email, claims.Email)
	}
	if claims.TokenType != "access" {
		t.Errorf("expected access token type, got %s", claims.TokenType)
	}
}

func TestTokenTypeEnforced(t *testing.T) {
	user := testUser()

	refresh, err := GenerateRefreshToken(user)
	if err != nil {
		t.Fatalf("failed to generate refresh token: %v", err)
	}

	if _, err := ValidateAccessToken(refresh); err == nil {
		t.Error("refresh token must not validate as access token")
	}

	access, err := GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("failed to generate access token: %v", err)
	}
	if _, err := ValidateRefreshToken(access); err == nil {
		t.Error("access token must not validate as refresh token")
	}
}

func TestHashToken(t *testing.T) {
	a := HashToken("token-a")
	b := HashToken("token-b")
	if a == b {
		t.Error("different tokens must hash differently")
	}
	if a != HashToken("token-a") {
		t.Error("hashing must be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func setupAuthRouter() *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString("userID"),
			"email":   c.GetString("email"),
		})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	user := testUser()
	token, err := GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	t.Run("bearer_header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		setupAuthRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		body := parseBody(t, rec)
		if body["user_id"] != user.ID {
			t.Errorf("expected user_id %s, got %v", user.ID, body["user_id"])
		}
	})

	t.Run("session_cookie_fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
		rec := httptest.NewRecorder()
		setupAuthRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 via cookie, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("header_takes_precedence_over_cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
		req.Header.Set("Authorization", "Bearer not-a-token")
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
		rec := httptest.NewRecorder()
		setupAuthRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("bad header must not fall back to cookie, got %d", rec.Code)
		}
	})

	t.Run("missing_credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
		rec := httptest.NewRecorder()
		setupAuthRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 without credentials, got %d", rec.Code)
		}
	})

	t.Run("malformed_header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
		req.Header.Set("Authorization", "Token "+token)
		rec := httptest.NewRecorder()
		setupAuthRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 for malformed header, got %d", rec.Code)
		}
	})

	t.Run("refresh_token_rejected", func(t *testing.T) {
		refresh, err := GenerateRefreshToken(user)
		if err != nil {
			t.Fatalf("failed to generate refresh token: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
		req.Header.Set("Authorization", "Bearer "+refresh)
		rec := httptest.NewRecorder()
		setupAuthRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 for refresh token on protected route, got %d", rec.Code)
		}
	})
}
