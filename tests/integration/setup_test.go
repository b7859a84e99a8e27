package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"dexbit/internal/handlers"
	"dexbit/internal/logger"
	"dexbit/internal/marketdata"
	"dexbit/internal/middleware"
	"dexbit/internal/models"
	"dexbit/internal/services"
	"dexbit/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
	Stores *services.StoreManager
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.User{},
		&models.WatchlistItem{},
		&models.AuditLog{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupMarketServer serves canned market data responses.
func setupMarketServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/quote":
			_, _ = w.Write([]byte(`{"c":190.5,"d":1.2,"dp":0.63,"h":192.0,"l":188.3,"o":189.0,"pc":189.3,"t":1717236000}`))
		case "/search":
			_, _ = w.Write([]byte(`{"count":1,"result":[{"symbol":"AAPL","description":"Apple Inc","displaySymbol":"AAPL","type":"Common Stock"}]}`))
		case "/news":
			_, _ = w.Write([]byte(`[{"id":1,"headline":"Markets rally","datetime":1717236000,"source":"Wire","summary":"Up day."}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// setupApp creates a full application stack backed by isolated in-memory
// SQLite and a canned market data server.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)
	marketServer := setupMarketServer(t)

	// Services
	userService := services.NewUserService(db)
	watchlistService := services.NewWatchlistService(db)
	auditService := services.NewAuditService(db)
	marketClient := marketdata.NewClient("test-key", marketServer.URL, 4)

	snapshots := services.NewSnapshotStore(filepath.Join(t.TempDir(), "watchlist-store.json"))
	stores := services.NewStoreManager(watchlistService, marketClient, snapshots, services.WatchlistStoreOptions{})
	t.Cleanup(stores.Close)

	mailer := &noopMailer{}
	digestService := services.NewNewsDigestService(userService, marketClient, mailer)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, auditService, mailer, stores)
	watchlistHandler := handlers.NewWatchlistHandler(stores, watchlistService, auditService)
	marketHandler := handlers.NewMarketHandler(marketClient, stores)
	jobHandler := handlers.NewJobHandler(digestService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/verify", authHandler.Verify)

	jobs := v1.Group("/internal")
	jobs.Use(middleware.JobAuthMiddleware("job-key"))
	jobs.POST("/news-digest", jobHandler.SendNewsDigest)

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.POST("/auth/logout", authHandler.Logout)
	protected.GET("/profile", authHandler.GetProfile)
	protected.GET("/profile/activity", authHandler.GetActivity)

	watchlist := protected.Group("/watchlist")
	watchlist.GET("", watchlistHandler.GetWatchlist)
	watchlist.POST("", watchlistHandler.AddToWatchlist)
	watchlist.DELETE("", watchlistHandler.ClearWatchlist)
	watchlist.POST("/refresh", watchlistHandler.RefreshPrices)
	watchlist.GET("/:symbol", watchlistHandler.GetWatchlistItem)
	watchlist.DELETE("/:symbol", watchlistHandler.RemoveFromWatchlist)

	market := protected.Group("/market")
	market.GET("/search", marketHandler.SearchStocks)
	market.GET("/quote/:symbol", marketHandler.GetQuote)
	market.GET("/news", marketHandler.GetMarketNews)

	return &testApp{DB: db, Router: router, Stores: stores}
}

// noopMailer satisfies the mailer contract without SMTP.
type noopMailer struct{}

func (m *noopMailer) Enabled() bool                       { return false }
func (m *noopMailer) SendWelcome(_, _, _ string) error    { return nil }
func (m *noopMailer) SendNewsSummary(_, _, _ string) error { return nil }

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// jobRequest builds a request authenticated with the internal job API key.
func (app *testApp) jobRequest(t *testing.T, method, path, apiKey string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-API-Key", apiKey)
	return req, httptest.NewRecorder()
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// registerUser registers a new user and returns the access token, refresh token, and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (accessToken, refreshToken, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User"}`, email, password)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["token"].(string), result["refresh_token"].(string), user["id"].(string)
}

// loginUser logs in and returns the access and refresh tokens.
func (app *testApp) loginUser(t *testing.T, email, password string) (accessToken, refreshToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["token"].(string), result["refresh_token"].(string)
}
