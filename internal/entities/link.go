package entities

import "time"

// Link represents a shortened link in the database
type Link struct {
	ID             string     `json:"id"` // UUID, assigned by the repository
	ShortCode      string     `json:"short_code"`
	OriginalURL    string     `json:"original_url"` // Normalized
	Owner          Owner      `json:"owner"`
	ClickCount     int64      `json:"click_count"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"` // nil means the link never expires
	LastAccessedAt *time.Time `json:"last_accessed,omitempty"`
}

// IsExpired reports whether the link has an expiration at or before now
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// Snapshot returns the read-only statistics view of the link
func (l *Link) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		ShortCode:      l.ShortCode,
		OriginalURL:    l.OriginalURL,
		CreatedAt:      l.CreatedAt,
		ExpiresAt:      l.ExpiresAt,
		ClickCount:     l.ClickCount,
		LastAccessedAt: l.LastAccessedAt,
	}
}

// StatsSnapshot is what stats and search endpoints return for a link
type StatsSnapshot struct {
	ShortCode      string     `json:"short_code"`
	OriginalURL    string     `json:"original_url"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at"`
	ClickCount     int64      `json:"click_count"`
	LastAccessedAt *time.Time `json:"last_accessed"`
}
