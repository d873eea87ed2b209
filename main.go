package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/tradefolio/backend/src/config"
	"github.com/username/tradefolio/backend/src/database"
	"github.com/username/tradefolio/backend/src/handlers"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/security"
	"github.com/username/tradefolio/backend/src/services"
	"github.com/username/tradefolio/backend/src/store"
	"golang.org/x/time/rate"
)

func rateLimitMiddleware(limiter *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Tradefolio backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing analytics cache...")
	analyticsCache := cache.New(15*time.Minute, 30*time.Minute)

	logger.L.Info("Initializing services and handlers...")
	tradeStore := store.NewSQLiteTradeStore(database.DB)
	analyticsStore := store.NewSQLiteAnalyticsStore(database.DB)
	accountStore := store.NewSQLiteAccountStore(database.DB)
	userStore := store.NewSQLiteUserStore(database.DB)

	authService := security.NewAuthService(config.Cfg.JWTSecret)
	analyticsService := services.NewAnalyticsService(tradeStore, analyticsStore, analyticsCache)
	importService := services.NewImportService(tradeStore, accountStore, analyticsService)
	tradeService := services.NewTradeService(tradeStore, analyticsService)

	userHandler := handlers.NewUserHandler(authService, userStore)
	importHandler := handlers.NewImportHandler(importService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)
	tradeHandler := handlers.NewTradeHandler(tradeService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/auth/register", userHandler.RegisterUserHandler)
	apiRouter.HandleFunc("POST /api/auth/login", userHandler.LoginUserHandler)

	applyAuth := func(handler http.HandlerFunc) http.Handler {
		return userHandler.AuthMiddleware(handler)
	}

	apiRouter.Handle("POST /api/import", applyAuth(importHandler.HandleImportBatch))
	apiRouter.Handle("POST /api/import/csv", applyAuth(importHandler.HandleImportCSV))
	apiRouter.Handle("GET /api/analytics", applyAuth(analyticsHandler.HandleGetAnalytics))
	apiRouter.Handle("GET /api/trades", applyAuth(tradeHandler.HandleListTrades))
	apiRouter.Handle("PUT /api/trades/{id}", applyAuth(tradeHandler.HandleUpdateTrade))
	apiRouter.Handle("DELETE /api/trades/{id}", applyAuth(tradeHandler.HandleDeleteTrade))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "TRADEFOLIO Backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	limiter := rate.NewLimiter(rate.Every(config.Cfg.RateLimitInterval), config.Cfg.RateLimitBurst)
	finalHandler := enableCORS(rateLimitMiddleware(limiter, rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
