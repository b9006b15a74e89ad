package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"shortlinks/internal/entities"
)

var _ LinkRepository = (*MemoryLinkRepository)(nil)

// MemoryLinkRepository keeps links in a map. It is used when no DATABASE_URL
// is configured and by tests. Returned links are copies, so callers cannot
// bypass the repository to change click counts.
type MemoryLinkRepository struct {
	mu    sync.RWMutex
	links map[string]*entities.Link // keyed by short code
}

// NewMemoryLinkRepository creates an empty in-memory repository
func NewMemoryLinkRepository() *MemoryLinkRepository {
	return &MemoryLinkRepository{
		links: make(map[string]*entities.Link),
	}
}

func copyLink(l *entities.Link) *entities.Link {
	c := *l
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		c.ExpiresAt = &t
	}
	if l.LastAccessedAt != nil {
		t := *l.LastAccessedAt
		c.LastAccessedAt = &t
	}
	return &c
}

func (m *MemoryLinkRepository) Create(ctx context.Context, link *entities.Link) (*entities.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[link.ShortCode]; exists {
		return nil, ErrDuplicateCode
	}

	stored := copyLink(link)
	stored.ID = uuid.NewString()
	stored.ClickCount = 0
	stored.LastAccessedAt = nil
	m.links[stored.ShortCode] = stored
	return copyLink(stored), nil
}

func (m *MemoryLinkRepository) FindByShortCode(ctx context.Context, shortCode string) (*entities.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.links[shortCode]
	if !exists {
		return nil, ErrNotFound
	}
	return copyLink(link), nil
}

func (m *MemoryLinkRepository) FindLiveByOriginalURL(ctx context.Context, originalURL string, now time.Time) ([]*entities.Link, error) {
	return m.filter(func(l *entities.Link) bool {
		return l.OriginalURL == originalURL && !l.IsExpired(now)
	}, func(a, b *entities.Link) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	}), nil
}

func (m *MemoryLinkRepository) FindByOwner(ctx context.Context, ownerID string) ([]*entities.Link, error) {
	return m.filter(func(l *entities.Link) bool {
		id, ok := l.Owner.ID()
		return ok && id == ownerID
	}, func(a, b *entities.Link) bool {
		return a.CreatedAt.After(b.CreatedAt)
	}), nil
}

func (m *MemoryLinkRepository) RecordAccess(ctx context.Context, shortCode string, at time.Time) (*entities.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[shortCode]
	if !exists || link.IsExpired(at) {
		return nil, ErrNotFound
	}

	link.ClickCount++
	if link.LastAccessedAt == nil || at.After(*link.LastAccessedAt) {
		t := at
		link.LastAccessedAt = &t
	}
	return copyLink(link), nil
}

func (m *MemoryLinkRepository) UpdateOriginalURL(ctx context.Context, shortCode, originalURL string) error {
	return m.update(shortCode, func(l *entities.Link) {
		l.OriginalURL = originalURL
	})
}

func (m *MemoryLinkRepository) UpdateExpiresAt(ctx context.Context, shortCode string, expiresAt *time.Time) error {
	return m.update(shortCode, func(l *entities.Link) {
		if expiresAt == nil {
			l.ExpiresAt = nil
			return
		}
		t := *expiresAt
		l.ExpiresAt = &t
	})
}

func (m *MemoryLinkRepository) Delete(ctx context.Context, shortCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[shortCode]; !exists {
		return ErrNotFound
	}
	delete(m.links, shortCode)
	return nil
}

func (m *MemoryLinkRepository) DeleteIfExpired(ctx context.Context, shortCode string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[shortCode]
	if !exists || !link.IsExpired(now) {
		return false, nil
	}
	delete(m.links, shortCode)
	return true, nil
}

func (m *MemoryLinkRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return m.deleteWhere(func(l *entities.Link) bool {
		return l.IsExpired(now)
	}), nil
}

func (m *MemoryLinkRepository) DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.deleteWhere(func(l *entities.Link) bool {
		if l.LastAccessedAt == nil {
			return l.CreatedAt.Before(cutoff)
		}
		return l.LastAccessedAt.Before(cutoff)
	}), nil
}

func (m *MemoryLinkRepository) update(shortCode string, apply func(*entities.Link)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[shortCode]
	if !exists {
		return ErrNotFound
	}
	apply(link)
	return nil
}

func (m *MemoryLinkRepository) filter(keep func(*entities.Link) bool, less func(a, b *entities.Link) bool) []*entities.Link {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*entities.Link
	for _, l := range m.links {
		if keep(l) {
			out = append(out, copyLink(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (m *MemoryLinkRepository) deleteWhere(match func(*entities.Link) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for code, l := range m.links {
		if match(l) {
			delete(m.links, code)
			n++
		}
	}
	return n
}
