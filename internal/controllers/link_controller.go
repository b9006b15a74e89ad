package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"shortlinks/internal/middleware"
	"shortlinks/internal/models"
	"shortlinks/internal/service"
)

type LinkController struct {
	linkService service.LinkService
	baseURL     string
}

// NewLinkController creates the link handlers. An empty baseURL makes short
// URLs relative to the host the request was sent to.
func NewLinkController(linkService service.LinkService, baseURL string) *LinkController {
	return &LinkController{
		linkService: linkService,
		baseURL:     strings.TrimRight(baseURL, "/"),
	}
}

// requestBaseURL returns the configured base URL or derives one from the request
func requestBaseURL(c *gin.Context, configured string) string {
	if configured != "" {
		return configured
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host
}

// respondError maps service errors to status codes
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Link not found or expired"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "You don't have permission to modify this link"})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
	}
}

// callerID is only used behind RequireAuth, which guarantees a caller
func callerID(c *gin.Context) string {
	if id := middleware.CallerID(c); id != nil {
		return *id
	}
	return ""
}

// CreateLink handles POST /links/shorten
func (lc *LinkController) CreateLink(c *gin.Context) {
	var req models.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	in := service.CreateInput{URL: req.URL, ExpiresAt: req.ExpiresAt}
	if req.CustomAlias != nil {
		in.CustomAlias = *req.CustomAlias
	}

	link, err := lc.linkService.Create(c.Request.Context(), in, middleware.CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.NewCreateLinkResponse(link, requestBaseURL(c, lc.baseURL)))
}

// Redirect handles GET /links/:code
func (lc *LinkController) Redirect(c *gin.Context) {
	originalURL, err := lc.linkService.Resolve(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	// Temporary, so clients keep coming back and clicks stay counted
	c.Redirect(http.StatusTemporaryRedirect, originalURL)
}

// DeleteLink handles DELETE /links/:code
func (lc *LinkController) DeleteLink(c *gin.Context) {
	if err := lc.linkService.Delete(c.Request.Context(), c.Param("code"), callerID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "Link deleted"})
}

// UpdateLink handles PUT /links/:code?new_url=
func (lc *LinkController) UpdateLink(c *gin.Context) {
	newURL := c.Query("new_url")
	if strings.TrimSpace(newURL) == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "new_url query parameter is required"})
		return
	}

	if err := lc.linkService.Update(c.Request.Context(), c.Param("code"), newURL, callerID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "Link updated"})
}

// UpdateExpiration handles PATCH /links/:code/expiration?expires_at=
// An absent or empty expires_at clears the expiration.
func (lc *LinkController) UpdateExpiration(c *gin.Context) {
	var expiresAt *time.Time
	if raw := c.Query("expires_at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "Invalid date format. Use RFC 3339 (e.g., 2024-12-31T23:59:59Z)",
			})
			return
		}
		expiresAt = &parsed
	}

	stored, err := lc.linkService.UpdateExpiration(c.Request.Context(), c.Param("code"), expiresAt, callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ExpirationResponse{
		Message:   "Link expiration updated",
		ExpiresAt: stored,
	})
}

// GetStats handles GET /links/:code/stats
func (lc *LinkController) GetStats(c *gin.Context) {
	stats, err := lc.linkService.Stats(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Search handles GET /links/search/*url. The URL is taken from the rest of
// the path, with the query string re-attached.
func (lc *LinkController) Search(c *gin.Context) {
	target := strings.TrimPrefix(c.Param("url"), "/")
	if q := c.Request.URL.RawQuery; q != "" {
		target += "?" + q
	}

	results, err := lc.linkService.Search(c.Request.Context(), target)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

// ListMine handles GET /links/mine
func (lc *LinkController) ListMine(c *gin.Context) {
	links, err := lc.linkService.ListOwned(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, links)
}
