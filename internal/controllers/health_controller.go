package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shortlinks/internal/cache"
	"shortlinks/internal/models"
)

type HealthController struct {
	linkCache *cache.LinkCache
}

func NewHealthController(linkCache *cache.LinkCache) *HealthController {
	return &HealthController{linkCache: linkCache}
}

// Health handles GET /health. The cache is optional, so a cache outage is
// reported but does not make the service unhealthy.
func (hc *HealthController) Health(c *gin.Context) {
	cacheStatus := "disabled"
	if hc.linkCache.Enabled() {
		cacheStatus = "ok"
		if err := hc.linkCache.Ping(c.Request.Context()); err != nil {
			cacheStatus = "unavailable"
		}
	}

	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok", Cache: cacheStatus})
}
