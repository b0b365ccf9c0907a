package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/rewearhq/rewear/internal/config"     // Internal config loader
	"github.com/rewearhq/rewear/internal/database"   // MySQL pool
	"github.com/rewearhq/rewear/internal/handler"    // HTTP handlers
	"github.com/rewearhq/rewear/internal/middleware" // Redis cache + rate limit
	"github.com/rewearhq/rewear/internal/queue"      // trade event consumer
	"github.com/rewearhq/rewear/internal/repository" // data access layer
	"github.com/rewearhq/rewear/internal/router"     // route registration
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Repositories share the single pool.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	items := repository.NewItemRepo(db)
	swaps := repository.NewSwapRepo(db)
	redemptions := repository.NewRedemptionRepo(db)

	authH := handler.NewAuthHandler(cfg, users, tokens)
	itemH := handler.NewItemHandler(cfg, items, users)
	swapH := handler.NewSwapHandler(cfg, swaps, items, users)
	redH := handler.NewRedemptionHandler(cfg, redemptions, items, users, swaps)
	mediaH := handler.NewMediaHandler(cfg)

	e := echo.New() // Create Echo instance

	// Redis backs both the browse-response cache and the token bucket.
	// Middleware degrades to pass-through when Redis is unreachable, so a
	// missing instance slows nothing but loses the protections.
	rdb := config.NewRedisClient()
	rlCfg := config.LoadRateLimitConfig()
	if rlCfg.Enabled {
		e.Use(middleware.NewTokenBucket(rlCfg, rdb))
	}
	var browseCache echo.MiddlewareFunc
	ccCfg := config.LoadCacheConfig()
	if ccCfg.Enabled {
		browseCache = middleware.NewRedisCache(ccCfg, rdb)
	}

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterCatalog(e, itemH, mediaH, cfg.JWTSecret, browseCache)
	router.RegisterTrade(e, swapH, redH, cfg.JWTSecret)
	router.RegisterAdmin(e, itemH, cfg.JWTSecret)

	// Background consumer appends completed trades to logs/trade.log. It
	// reconnects forever on broker errors and never takes the API down.
	go func() {
		if err := queue.StartTradeConsumer(); err != nil {
			log.Printf("trade consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
