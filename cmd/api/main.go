package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"dexbit/internal/config"
	"dexbit/internal/database"
	"dexbit/internal/handlers"
	"dexbit/internal/logger"
	"dexbit/internal/mailer"
	"dexbit/internal/marketdata"
	"dexbit/internal/middleware"
	"dexbit/internal/services"
	"dexbit/internal/validator"

	_ "dexbit/internal/docs" // Import swagger docs
)

// @title           Dexbit API
// @version         1.0
// @description     Dexbit is a stock and crypto dashboard backend: watchlists with live price tracking, market news, and symbol search.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Register custom request validators
	validator.Register()

	// Initialize services
	db := dbManager.DB()
	userService := services.NewUserService(db)
	watchlistService := services.NewWatchlistService(db)
	auditService := services.NewAuditService(db)

	marketClient := marketdata.NewClient(appConfig.FinnhubAPIKey, appConfig.FinnhubBaseURL, appConfig.QuoteFanoutLimit)
	mailService := mailer.New(appConfig.SMTPHost, appConfig.SMTPPort, appConfig.SMTPUser, appConfig.SMTPPass, appConfig.MailFrom)
	digestService := services.NewNewsDigestService(userService, marketClient, mailService)

	snapshots := services.NewSnapshotStore(appConfig.SnapshotPath)
	stores := services.NewStoreManager(watchlistService, marketClient, snapshots, services.WatchlistStoreOptions{
		PriceRefreshEvery: appConfig.PriceRefreshInterval,
		PollEvery:         appConfig.WatchlistPollEvery,
		QuoteFanoutLimit:  appConfig.QuoteFanoutLimit,
	})
	defer stores.Close()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, auditService, mailService, stores)
	watchlistHandler := handlers.NewWatchlistHandler(stores, watchlistService, auditService)
	marketHandler := handlers.NewMarketHandler(marketClient, stores)
	jobHandler := handlers.NewJobHandler(digestService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/verify", authHandler.Verify)

	// Internal job routes (API key, not user session)
	jobs := v1.Group("/internal")
	jobs.Use(middleware.JobAuthMiddleware(appConfig.JobAPIKey))
	jobs.POST("/news-digest", jobHandler.SendNewsDigest)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// Session and profile
	protected.POST("/auth/logout", authHandler.Logout)
	protected.GET("/profile", authHandler.GetProfile)
	protected.GET("/profile/activity", authHandler.GetActivity)

	// Watchlist routes
	watchlist := protected.Group("/watchlist")
	watchlist.GET("", watchlistHandler.GetWatchlist)
	watchlist.POST("", watchlistHandler.AddToWatchlist)
	watchlist.DELETE("", watchlistHandler.ClearWatchlist)
	watchlist.POST("/refresh", watchlistHandler.RefreshPrices)
	watchlist.GET("/stream", watchlistHandler.StreamWatchlist)
	watchlist.GET("/:symbol", watchlistHandler.GetWatchlistItem)
	watchlist.DELETE("/:symbol", watchlistHandler.RemoveFromWatchlist)

	// Market data routes
	market := protected.Group("/market")
	market.GET("/search", marketHandler.SearchStocks)
	market.GET("/quote/:symbol", marketHandler.GetQuote)
	market.GET("/profile/:symbol", marketHandler.GetProfile)
	market.GET("/news", marketHandler.GetMarketNews)
	market.GET("/news/trending", marketHandler.GetTrendingNews)
	market.GET("/news/:symbol", marketHandler.GetCompanyNews)
	market.GET("/crypto/movers", marketHandler.GetCryptoMovers)

	log.Infof("Starting Dexbit backend server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
