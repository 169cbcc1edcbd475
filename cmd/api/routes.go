package main

import (
	"net/http"

	"walletd/internal/shared/config"
	"walletd/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with
// middleware applied.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", deps.HealthHandler.HandleHealth)

	// Public auth routes
	mux.HandleFunc("/api/auth/register", deps.AuthHandler.HandleRegister)
	mux.HandleFunc("/api/auth/login", deps.AuthHandler.HandleLogin)

	// Protected routes. Reads, ledger mutations and wallet creation get
	// separate per-user rate budgets.
	authMiddleware := middleware.Auth(deps.JWT)

	readLimit := limiterFor(cfg, cfg.RateLimit.ReadPerMinute)
	transactLimit := limiterFor(cfg, cfg.RateLimit.TransactPerMinute)
	createLimit := limiterFor(cfg, cfg.RateLimit.CreatePerMinute)

	mux.Handle("POST /api/wallets", protect(authMiddleware, createLimit, deps.WalletHandler.HandleWallets))
	mux.Handle("GET /api/wallets", protect(authMiddleware, readLimit, deps.WalletHandler.HandleWallets))
	mux.Handle("/api/wallets/{id}", protect(authMiddleware, readLimit, deps.WalletHandler.HandleWalletByID))
	mux.Handle("/api/wallets/{id}/transact", protect(authMiddleware, transactLimit, deps.WalletHandler.HandleTransact))
	mux.Handle("/api/wallets/{id}/transactions", protect(authMiddleware, readLimit, deps.WalletHandler.HandleListTransactions))

	// Apply global middleware
	return middleware.Logging(middleware.CORS(middleware.Tracing(mux)))
}

func limiterFor(cfg *config.Config, perMinute int) *middleware.RateLimiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return middleware.NewRateLimiter(perMinute)
}

func protect(auth func(http.Handler) http.Handler, rl *middleware.RateLimiter, h http.HandlerFunc) http.Handler {
	var handler http.Handler = h
	if rl != nil {
		handler = rl.Middleware(handler)
	}
	return auth(handler)
}
