package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "CACHE_BACKEND", "LINK_CACHE_TTL", "REAPER_INTERVAL", "INACTIVITY_WINDOW", "JWT_TTL_HOURS", "BASE_URL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "redis", cfg.CacheBackend)
	assert.Equal(t, time.Hour, cfg.LinkCacheTTL)
	assert.Equal(t, 5*time.Minute, cfg.StatsCacheTTL)
	assert.Equal(t, 10*time.Minute, cfg.SearchCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.ReaperInterval)
	assert.Equal(t, 24*time.Hour, cfg.InactivityWindow)
	assert.Equal(t, 24, cfg.JWTTTL)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("BASE_URL", "https://sho.rt/")
	t.Setenv("CACHE_BACKEND", "Memory")
	t.Setenv("LINK_CACHE_TTL", "90m")
	t.Setenv("INACTIVITY_WINDOW", "168h")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("APP_ENV", "production")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "https://sho.rt", cfg.BaseURL)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, 90*time.Minute, cfg.LinkCacheTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.InactivityWindow)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.True(t, cfg.IsProduction())
}

func TestGetEnvHelpers_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("TEST_INT", "ten")
	t.Setenv("TEST_FLOAT", "fast")
	t.Setenv("TEST_DURATION", "daily")
	t.Setenv("TEST_NEGATIVE", "-5m")

	assert.Equal(t, 3, getEnvInt("TEST_INT", 3))
	assert.Equal(t, 1.5, getEnvFloat("TEST_FLOAT", 1.5))
	assert.Equal(t, time.Minute, getEnvDuration("TEST_DURATION", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("TEST_NEGATIVE", time.Minute))
}
