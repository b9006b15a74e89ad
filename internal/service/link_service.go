package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"shortlinks/internal/cache"
	"shortlinks/internal/entities"
	"shortlinks/internal/repository"
	"shortlinks/internal/shortener"
)

var (
	// ErrConflict is returned when the short code is held by a live link
	ErrConflict = errors.New("short code already in use")
	// ErrNotFound is returned for missing and expired links alike
	ErrNotFound = errors.New("link not found or expired")
	// ErrForbidden is returned when the caller does not own the link
	ErrForbidden = errors.New("not allowed to modify this link")
	// ErrValidation wraps malformed input
	ErrValidation = errors.New("invalid input")
)

// Expiration times up to this far in the past are accepted to absorb
// network latency and clock skew between client and server
const expiryGrace = 2 * time.Second

// CreateInput holds the caller supplied fields of a new link
type CreateInput struct {
	URL         string
	CustomAlias string
	ExpiresAt   *time.Time
}

// LinkService defines the interface for link business logic
type LinkService interface {
	Create(ctx context.Context, in CreateInput, callerID *string) (*entities.Link, error)
	Resolve(ctx context.Context, shortCode string) (string, error)
	Delete(ctx context.Context, shortCode, callerID string) error
	Update(ctx context.Context, shortCode, newURL, callerID string) error
	UpdateExpiration(ctx context.Context, shortCode string, expiresAt *time.Time, callerID string) (*time.Time, error)
	Stats(ctx context.Context, shortCode string) (entities.StatsSnapshot, error)
	Search(ctx context.Context, rawURL string) ([]entities.StatsSnapshot, error)
	ListOwned(ctx context.Context, callerID string) ([]entities.StatsSnapshot, error)
}

// Option configures a link service
type Option func(*linkService)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *linkService) {
		s.clock = now
	}
}

type linkService struct {
	repo  repository.LinkRepository
	cache *cache.LinkCache
	clock func() time.Time
}

// NewLinkService creates a new link service. linkCache may wrap a nil backend,
// in which case every read goes to the repository.
func NewLinkService(repo repository.LinkRepository, linkCache *cache.LinkCache, opts ...Option) LinkService {
	if linkCache == nil {
		linkCache = cache.NewLinkCache(nil, cache.DefaultConfig())
	}
	svc := &linkService{
		repo:  repo,
		cache: linkCache,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *linkService) now() time.Time {
	return s.clock().UTC()
}

func (s *linkService) validateExpiry(expiresAt *time.Time, now time.Time) error {
	if expiresAt != nil && expiresAt.Before(now.Add(-expiryGrace)) {
		return fmt.Errorf("%w: expiration time cannot be in the past", ErrValidation)
	}
	return nil
}

// Create stores a new link. Generated codes are derived from the URL, so
// shortening the same URL twice while the first link is live is a conflict.
func (s *linkService) Create(ctx context.Context, in CreateInput, callerID *string) (*entities.Link, error) {
	now := s.now()

	normalized := shortener.Normalize(in.URL)
	if normalized == "" {
		return nil, fmt.Errorf("%w: url is required", ErrValidation)
	}
	if err := s.validateExpiry(in.ExpiresAt, now); err != nil {
		return nil, err
	}

	shortCode := strings.TrimSpace(in.CustomAlias)
	if shortCode != "" {
		if err := shortener.ValidateAlias(shortCode); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	} else {
		shortCode = shortener.Generate(normalized)
	}

	if err := s.claim(ctx, shortCode, now); err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if in.ExpiresAt != nil {
		t := in.ExpiresAt.UTC()
		expiresAt = &t
	}

	link, err := s.repo.Create(ctx, &entities.Link{
		ShortCode:   shortCode,
		OriginalURL: normalized,
		Owner:       entities.OwnerFromCaller(callerID),
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	})
	if errors.Is(err, repository.ErrDuplicateCode) {
		return nil, fmt.Errorf("%w: %q", ErrConflict, shortCode)
	}
	if err != nil {
		return nil, err
	}

	s.cache.PutLink(ctx, link)
	s.cache.InvalidateSearch(ctx, normalized)

	log.Info().Str("short_code", shortCode).Bool("custom", in.CustomAlias != "").Msg("Link created")
	return link, nil
}

// claim checks the store for a live link holding shortCode and purges an
// expired one so its code can be reused. The unique index still decides
// races between concurrent creates.
func (s *linkService) claim(ctx context.Context, shortCode string, now time.Time) error {
	existing, err := s.repo.FindByShortCode(ctx, shortCode)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check short code availability: %w", err)
	}
	if !existing.IsExpired(now) {
		return fmt.Errorf("%w: %q", ErrConflict, shortCode)
	}

	if _, err := s.repo.DeleteIfExpired(ctx, shortCode, now); err != nil {
		return fmt.Errorf("failed to reclaim expired short code: %w", err)
	}
	s.cache.InvalidateLink(ctx, shortCode)
	s.cache.InvalidateSearch(ctx, existing.OriginalURL)
	return nil
}

// Resolve returns the redirect target and counts the click
func (s *linkService) Resolve(ctx context.Context, shortCode string) (string, error) {
	now := s.now()

	if cached, ok := s.cache.GetLink(ctx, shortCode); ok {
		if !cached.IsExpired(now) {
			return s.resolveCached(ctx, cached, now)
		}
		s.cache.InvalidateLink(ctx, shortCode)
	}

	// RecordAccess only matches live links, so a missing and an expired
	// code both come back as not found
	link, err := s.repo.RecordAccess(ctx, shortCode, now)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	s.cache.PutLink(ctx, link)
	return link.OriginalURL, nil
}

func (s *linkService) resolveCached(ctx context.Context, cached *entities.Link, now time.Time) (string, error) {
	_, err := s.repo.RecordAccess(ctx, cached.ShortCode, now)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// Removed or expired behind the cache, e.g. by the reaper
		s.cache.InvalidateLink(ctx, cached.ShortCode)
		return "", ErrNotFound
	case err != nil:
		log.Warn().Err(err).Str("short_code", cached.ShortCode).Msg("Failed to record access, serving cached link")
	}
	return cached.OriginalURL, nil
}

// authorize loads the live link and checks that callerID owns it
func (s *linkService) authorize(ctx context.Context, shortCode, callerID string) (*entities.Link, error) {
	link, err := s.repo.FindByShortCode(ctx, shortCode)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if link.IsExpired(s.now()) {
		return nil, ErrNotFound
	}
	if !link.Owner.Permits(callerID) {
		return nil, ErrForbidden
	}
	return link, nil
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Delete removes a link owned by callerID
func (s *linkService) Delete(ctx context.Context, shortCode, callerID string) error {
	link, err := s.authorize(ctx, shortCode, callerID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, shortCode); err != nil {
		return notFound(err)
	}

	s.cache.InvalidateLink(ctx, shortCode)
	s.cache.InvalidateSearch(ctx, link.OriginalURL)

	log.Info().Str("short_code", shortCode).Msg("Link deleted")
	return nil
}

// Update points a link owned by callerID at a new URL
func (s *linkService) Update(ctx context.Context, shortCode, newURL, callerID string) error {
	normalized := shortener.Normalize(newURL)
	if normalized == "" {
		return fmt.Errorf("%w: new_url is required", ErrValidation)
	}

	link, err := s.authorize(ctx, shortCode, callerID)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateOriginalURL(ctx, shortCode, normalized); err != nil {
		return notFound(err)
	}

	s.cache.InvalidateLink(ctx, shortCode)
	s.cache.InvalidateSearch(ctx, link.OriginalURL, normalized)
	return nil
}

// UpdateExpiration sets or, with nil, clears the expiration of a link owned
// by callerID and returns the stored value
func (s *linkService) UpdateExpiration(ctx context.Context, shortCode string, expiresAt *time.Time, callerID string) (*time.Time, error) {
	if err := s.validateExpiry(expiresAt, s.now()); err != nil {
		return nil, err
	}

	link, err := s.authorize(ctx, shortCode, callerID)
	if err != nil {
		return nil, err
	}

	var stored *time.Time
	if expiresAt != nil {
		t := expiresAt.UTC()
		stored = &t
	}
	if err := s.repo.UpdateExpiresAt(ctx, shortCode, stored); err != nil {
		return nil, notFound(err)
	}

	s.cache.InvalidateLink(ctx, shortCode)
	s.cache.InvalidateSearch(ctx, link.OriginalURL)
	return stored, nil
}

// Stats returns the statistics of a live link without counting a click
func (s *linkService) Stats(ctx context.Context, shortCode string) (entities.StatsSnapshot, error) {
	now := s.now()

	snapshot, err := s.cache.Stats(ctx, shortCode,
		func(ctx context.Context) (entities.StatsSnapshot, error) {
			link, err := s.repo.FindByShortCode(ctx, shortCode)
			if err != nil {
				return entities.StatsSnapshot{}, notFound(err)
			}
			if link.IsExpired(now) {
				return entities.StatsSnapshot{}, ErrNotFound
			}
			return link.Snapshot(), nil
		})
	if err != nil {
		return entities.StatsSnapshot{}, err
	}

	// A cached snapshot may have expired since it was stored
	if snapshot.ExpiresAt != nil && !snapshot.ExpiresAt.After(now) {
		s.cache.InvalidateStats(ctx, shortCode)
		return entities.StatsSnapshot{}, ErrNotFound
	}
	return snapshot, nil
}

// Search lists the live links pointing at rawURL after normalization
func (s *linkService) Search(ctx context.Context, rawURL string) ([]entities.StatsSnapshot, error) {
	normalized := shortener.Normalize(rawURL)
	if normalized == "" {
		return nil, fmt.Errorf("%w: url is required", ErrValidation)
	}
	now := s.now()

	results, err := s.cache.Search(ctx, normalized,
		func(ctx context.Context) ([]entities.StatsSnapshot, error) {
			links, err := s.repo.FindLiveByOriginalURL(ctx, normalized, now)
			if err != nil {
				return nil, err
			}
			// Empty results are not cached
			if len(links) == 0 {
				return nil, ErrNotFound
			}
			return snapshots(links), nil
		})
	if err != nil {
		return nil, err
	}

	live := make([]entities.StatsSnapshot, 0, len(results))
	for _, r := range results {
		if r.ExpiresAt == nil || r.ExpiresAt.After(now) {
			live = append(live, r)
		}
	}
	if len(live) == 0 {
		s.cache.InvalidateSearch(ctx, normalized)
		return nil, ErrNotFound
	}
	return live, nil
}

// ListOwned returns every link created by callerID, newest first
func (s *linkService) ListOwned(ctx context.Context, callerID string) ([]entities.StatsSnapshot, error) {
	if callerID == "" {
		return nil, ErrForbidden
	}

	links, err := s.repo.FindByOwner(ctx, callerID)
	if err != nil {
		return nil, err
	}
	return snapshots(links), nil
}

func snapshots(links []*entities.Link) []entities.StatsSnapshot {
	out := make([]entities.StatsSnapshot, len(links))
	for i, link := range links {
		out[i] = link.Snapshot()
	}
	return out
}
