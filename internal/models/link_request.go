package models

import "time"

// CreateLinkRequest represents the request body for creating a short link
type CreateLinkRequest struct {
	URL         string     `json:"url" binding:"required"`
	CustomAlias *string    `json:"custom_alias,omitempty"` // Optional caller chosen short code
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`   // Optional expiration date, RFC 3339
}
