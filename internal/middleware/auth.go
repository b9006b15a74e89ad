package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// CallerIDKey is the gin context key holding the authenticated caller ID
const CallerIDKey = "caller_id"

// TokenValidator verifies a bearer token and returns the caller ID
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// OptionalAuth sets the caller ID when a valid bearer token is present and
// otherwise lets the request through anonymously
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			callerID, err := validator.ValidateToken(token)
			if err != nil {
				log.Debug().Err(err).Msg("Ignoring invalid token on optional auth route")
			} else {
				c.Set(CallerIDKey, callerID)
			}
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a valid bearer token
func RequireAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization token. Use: Bearer <token>",
			})
			return
		}

		callerID, err := validator.ValidateToken(token)
		if err != nil {
			log.Warn().Err(err).Str("path", c.FullPath()).Msg("Invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(CallerIDKey, callerID)
		c.Next()
	}
}

// CallerID returns the caller set by OptionalAuth or RequireAuth, or nil
func CallerID(c *gin.Context) *string {
	v, exists := c.Get(CallerIDKey)
	if !exists {
		return nil
	}
	id, ok := v.(string)
	if !ok || id == "" {
		return nil
	}
	return &id
}
