package models

import (
	"strings"
	"time"

	"shortlinks/internal/entities"
)

// CreateLinkResponse represents the response after creating a short link
type CreateLinkResponse struct {
	ShortCode   string     `json:"short_code"` // Full short URL (base URL + code)
	Code        string     `json:"code"`
	OriginalURL string     `json:"original_url"`
	ExpiresAt   *time.Time `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ShortURL is the public redirect URL of shortCode
func ShortURL(baseURL, shortCode string) string {
	return strings.TrimRight(baseURL, "/") + "/links/" + shortCode
}

// NewCreateLinkResponse builds the response for a newly created link
func NewCreateLinkResponse(link *entities.Link, baseURL string) *CreateLinkResponse {
	return &CreateLinkResponse{
		ShortCode:   ShortURL(baseURL, link.ShortCode),
		Code:        link.ShortCode,
		OriginalURL: link.OriginalURL,
		ExpiresAt:   link.ExpiresAt,
		CreatedAt:   link.CreatedAt,
	}
}

// ExpirationResponse is returned after changing a link's expiration
type ExpirationResponse struct {
	Message   string     `json:"message"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// MessageResponse carries a human readable confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse reports the state of the process and its cache
type HealthResponse struct {
	Status string `json:"status"`
	Cache  string `json:"cache"`
}
