package main

import (
	"log"

	"walletd/internal/cache"
	"walletd/internal/domain/wallet"
	"walletd/internal/idempotency"
	"walletd/internal/infrastructure/postgres"
	"walletd/internal/infrastructure/redis"
	httphandlers "walletd/internal/interfaces/http"
	"walletd/internal/shared/auth"
	"walletd/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB    *postgres.DB
	Redis *redis.Client

	// Handlers
	AuthHandler   *httphandlers.AuthHandler
	WalletHandler *httphandlers.WalletHandler
	HealthHandler *httphandlers.HealthHandler

	// Auth
	JWT *auth.JWT
}

// NewDependencies initializes all application dependencies.
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	// Redis backs both the read cache and idempotency records. When it is
	// disabled or unreachable the engine still runs: reads go to Postgres
	// and duplicate suppression degrades to at-least-once.
	var redisClient *redis.Client
	var store cache.Store
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Printf("Redis unavailable, continuing without cache: %v", err)
		} else {
			store = redisClient
			log.Println("Connected to Redis")
		}
	} else {
		log.Println("Redis disabled")
	}

	walletRepo := postgres.NewWalletRepository(db)
	userRepo := postgres.NewUserRepository(db)

	walletService := wallet.NewService(walletRepo, store)
	guard := idempotency.NewGuard(store)

	jwt := auth.NewJWT(cfg.JWT.Secret, cfg.JWT.ExpiresIn)

	return &Dependencies{
		DB:            db,
		Redis:         redisClient,
		AuthHandler:   httphandlers.NewAuthHandler(userRepo, jwt),
		WalletHandler: httphandlers.NewWalletHandler(walletService, guard),
		HealthHandler: httphandlers.NewHealthHandler(db),
		JWT:           jwt,
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
