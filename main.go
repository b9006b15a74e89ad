package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"shortlinks/internal/cache"
	"shortlinks/internal/config"
	"shortlinks/internal/controllers"
	"shortlinks/internal/database"
	"shortlinks/internal/jwt"
	"shortlinks/internal/logger"
	"shortlinks/internal/middleware"
	"shortlinks/internal/reaper"
	"shortlinks/internal/repository"
	"shortlinks/internal/service"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Initialize(cfg.LogLevel, !cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres when configured, otherwise an in-memory store for local runs
	var linkRepo repository.LinkRepository
	if cfg.DatabaseURL != "" {
		db, err := database.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		if err := database.RunMigrations(db); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		linkRepo = repository.NewLinkRepository(db)
	} else {
		log.Warn().Msg("DATABASE_URL not set, links are kept in memory and lost on restart")
		linkRepo = repository.NewMemoryLinkRepository()
	}

	// The cache is optional: continue without it if the backend is unavailable
	backend := newCacheBackend(cfg)
	if backend != nil {
		defer backend.Close()
	}
	cacheCfg := cache.DefaultConfig()
	cacheCfg.LinkTTL = cfg.LinkCacheTTL
	cacheCfg.StatsTTL = cfg.StatsCacheTTL
	cacheCfg.SearchTTL = cfg.SearchCacheTTL
	linkCache := cache.NewLinkCache(backend, cacheCfg)

	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET not set, authenticated routes will reject every token")
	}
	jwtService := jwt.NewJWTService(cfg.JWTSecret, time.Duration(cfg.JWTTTL)*time.Hour)

	linkService := service.NewLinkService(linkRepo, linkCache)

	generalLimiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	shortenLimiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitShortenRPS), cfg.RateLimitShortenBurst)
	redirectLimiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRedirectRPS), cfg.RateLimitRedirectBurst)
	defer generalLimiter.Stop()
	defer shortenLimiter.Stop()
	defer redirectLimiter.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	controllers.RegisterRoutes(router, controllers.Routes{
		Links:           controllers.NewLinkController(linkService, cfg.BaseURL),
		QRCode:          controllers.NewQRCodeController(linkService, cfg.BaseURL),
		Health:          controllers.NewHealthController(linkCache),
		Tokens:          validatorFor(cfg, jwtService),
		GeneralLimiter:  generalLimiter,
		ShortenLimiter:  shortenLimiter,
		RedirectLimiter: redirectLimiter,
	})

	// Background sweep of expired and inactive links
	linkReaper := reaper.New(linkRepo, reaper.Config{
		Interval:         cfg.ReaperInterval,
		InactivityWindow: cfg.InactivityWindow,
	})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		linkReaper.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	// Let a sweep in progress finish before the store is closed
	wg.Wait()
	log.Info().Msg("Server stopped")
}

// newCacheBackend returns the configured backend, or nil to run uncached
func newCacheBackend(cfg *config.Config) cache.Cache {
	switch cfg.CacheBackend {
	case "none":
		log.Info().Msg("Cache disabled")
		return nil
	case "memory":
		backend, err := cache.NewMemoryCache(cfg.MemoryCacheMB)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to create in-memory cache. Continuing without cache.")
			return nil
		}
		log.Info().Int("max_mb", cfg.MemoryCacheMB).Msg("Using in-memory cache")
		return backend
	default:
		backend, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis. Continuing without cache.")
			return nil
		}
		log.Info().Msg("Connected to Redis cache")
		return backend
	}
}

// rejectAll is used when no JWT secret is configured, so an empty key can
// never verify a forged token
type rejectAll struct{}

func (rejectAll) ValidateToken(string) (string, error) {
	return "", jwt.ErrInvalidToken
}

func validatorFor(cfg *config.Config, jwtService *jwt.JWTService) middleware.TokenValidator {
	if cfg.JWTSecret == "" {
		return rejectAll{}
	}
	return jwtService
}
