package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port        string
	AppEnv      string // development or production
	LogLevel    string
	BaseURL     string // Public base URL for short links, derived from the request when empty
	DatabaseURL string // In-memory store when empty
	RedisURL    string

	CacheBackend   string // redis, memory or none
	MemoryCacheMB  int    // Size of the in-process cache
	LinkCacheTTL   time.Duration
	StatsCacheTTL  time.Duration
	SearchCacheTTL time.Duration

	JWTSecret string // Secret key for verifying bearer tokens
	JWTTTL    int    // Token lifetime in hours

	RateLimitRPS           float64 // General API endpoints (requests per second)
	RateLimitBurst         int
	RateLimitShortenRPS    float64 // Link creation (stricter)
	RateLimitShortenBurst  int
	RateLimitRedirectRPS   float64 // Redirects (more lenient)
	RateLimitRedirectBurst int

	ReaperInterval   time.Duration
	InactivityWindow time.Duration
}

func Load() *Config {
	// Try to load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found, using environment variables or defaults")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		BaseURL:     strings.TrimRight(getEnv("BASE_URL", ""), "/"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "localhost:6379"),

		CacheBackend:   strings.ToLower(getEnv("CACHE_BACKEND", "redis")),
		MemoryCacheMB:  getEnvInt("MEMORY_CACHE_MB", 64),
		LinkCacheTTL:   getEnvDuration("LINK_CACHE_TTL", time.Hour),
		StatsCacheTTL:  getEnvDuration("STATS_CACHE_TTL", 5*time.Minute),
		SearchCacheTTL: getEnvDuration("SEARCH_CACHE_TTL", 10*time.Minute),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTTTL:    getEnvInt("JWT_TTL_HOURS", 24),

		RateLimitRPS:           getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:         getEnvInt("RATE_LIMIT_BURST", 20),
		RateLimitShortenRPS:    getEnvFloat("RATE_LIMIT_SHORTEN_RPS", 2),
		RateLimitShortenBurst:  getEnvInt("RATE_LIMIT_SHORTEN_BURST", 5),
		RateLimitRedirectRPS:   getEnvFloat("RATE_LIMIT_REDIRECT_RPS", 30),
		RateLimitRedirectBurst: getEnvInt("RATE_LIMIT_REDIRECT_BURST", 60),

		ReaperInterval:   getEnvDuration("REAPER_INTERVAL", 24*time.Hour),
		InactivityWindow: getEnvDuration("INACTIVITY_WINDOW", 24*time.Hour),
	}
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring invalid integer")
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring invalid number")
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90m", "24h")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring invalid duration")
	}
	return defaultValue
}
