package controllers

import (
	"github.com/gin-gonic/gin"

	"shortlinks/internal/middleware"
)

// Routes bundles everything RegisterRoutes wires together. Nil rate
// limiters disable limiting for their routes.
type Routes struct {
	Links  *LinkController
	QRCode *QRCodeController
	Health *HealthController
	Tokens middleware.TokenValidator

	GeneralLimiter  *middleware.RateLimiter
	ShortenLimiter  *middleware.RateLimiter
	RedirectLimiter *middleware.RateLimiter
}

func limit(rl *middleware.RateLimiter) gin.HandlerFunc {
	if rl == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return rl.LimitMiddleware()
}

// RegisterRoutes mounts the health check and the /links API on router
func RegisterRoutes(router *gin.Engine, r Routes) {
	// Health check endpoint (no rate limiting)
	router.GET("/health", r.Health.Health)

	links := router.Group("/links")
	{
		links.POST("/shorten", limit(r.ShortenLimiter), middleware.OptionalAuth(r.Tokens), r.Links.CreateLink)
		links.GET("/search/*url", limit(r.GeneralLimiter), r.Links.Search)
		links.GET("/mine", limit(r.GeneralLimiter), middleware.RequireAuth(r.Tokens), r.Links.ListMine)

		links.GET("/:code", limit(r.RedirectLimiter), r.Links.Redirect)
		links.GET("/:code/stats", limit(r.GeneralLimiter), r.Links.GetStats)
		links.GET("/:code/qr", limit(r.GeneralLimiter), r.QRCode.GenerateQRCode)

		owned := links.Group("")
		owned.Use(limit(r.GeneralLimiter), middleware.RequireAuth(r.Tokens))
		{
			owned.DELETE("/:code", r.Links.DeleteLink)
			owned.PUT("/:code", r.Links.UpdateLink)
			owned.PATCH("/:code/expiration", r.Links.UpdateExpiration)
		}
	}
}
