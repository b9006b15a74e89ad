package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"shortlinks/internal/entities"
)

var (
	// ErrNotFound is returned when no matching link exists
	ErrNotFound = errors.New("link not found")
	// ErrDuplicateCode is returned when the short code is already taken
	ErrDuplicateCode = errors.New("short code already exists")
)

// PostgreSQL unique_violation
const uniqueViolation = "23505"

// LinkRepository defines the interface for link database operations.
// Every method commits on success.
type LinkRepository interface {
	Create(ctx context.Context, link *entities.Link) (*entities.Link, error)
	FindByShortCode(ctx context.Context, shortCode string) (*entities.Link, error)
	FindLiveByOriginalURL(ctx context.Context, originalURL string, now time.Time) ([]*entities.Link, error)
	FindByOwner(ctx context.Context, ownerID string) ([]*entities.Link, error)
	RecordAccess(ctx context.Context, shortCode string, at time.Time) (*entities.Link, error)
	UpdateOriginalURL(ctx context.Context, shortCode, originalURL string) error
	UpdateExpiresAt(ctx context.Context, shortCode string, expiresAt *time.Time) error
	Delete(ctx context.Context, shortCode string) error
	DeleteIfExpired(ctx context.Context, shortCode string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error)
}

const linkColumns = `id, short_code, original_url, owner_id, click_count, created_at, expires_at, last_accessed`

type linkRepository struct {
	db *sql.DB
}

// NewLinkRepository creates a PostgreSQL backed link repository
func NewLinkRepository(db *sql.DB) LinkRepository {
	return &linkRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*entities.Link, error) {
	var (
		link         entities.Link
		ownerID      sql.NullString
		expiresAt    sql.NullTime
		lastAccessed sql.NullTime
	)
	err := row.Scan(
		&link.ID,
		&link.ShortCode,
		&link.OriginalURL,
		&ownerID,
		&link.ClickCount,
		&link.CreatedAt,
		&expiresAt,
		&lastAccessed,
	)
	if err != nil {
		return nil, err
	}

	if ownerID.Valid {
		link.Owner = entities.OwnedBy(ownerID.String)
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		link.ExpiresAt = &t
	}
	if lastAccessed.Valid {
		t := lastAccessed.Time.UTC()
		link.LastAccessedAt = &t
	}
	link.CreatedAt = link.CreatedAt.UTC()
	return &link, nil
}

func scanLinks(rows *sql.Rows) ([]*entities.Link, error) {
	defer rows.Close()

	var links []*entities.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}
	return links, nil
}

// nullableTime stores times in UTC and maps nil to NULL
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// Create inserts a new link. The unique index on short_code is the final
// arbiter when two creates race for the same code.
func (r *linkRepository) Create(ctx context.Context, link *entities.Link) (*entities.Link, error) {
	query := `
		INSERT INTO links (id, short_code, original_url, owner_id, click_count, created_at, expires_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		RETURNING ` + linkColumns

	created, err := scanLink(r.db.QueryRowContext(ctx, query,
		uuid.NewString(),
		link.ShortCode,
		link.OriginalURL,
		link.Owner.Ptr(),
		link.CreatedAt.UTC(),
		nullableTime(link.ExpiresAt),
	))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrDuplicateCode
		}
		return nil, fmt.Errorf("failed to create link: %w", err)
	}
	return created, nil
}

// FindByShortCode returns the link regardless of expiration
func (r *linkRepository) FindByShortCode(ctx context.Context, shortCode string) (*entities.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1`

	link, err := scanLink(r.db.QueryRowContext(ctx, query, shortCode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find link: %w", err)
	}
	return link, nil
}

// FindLiveByOriginalURL returns every unexpired link pointing at originalURL
func (r *linkRepository) FindLiveByOriginalURL(ctx context.Context, originalURL string, now time.Time) ([]*entities.Link, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links
		WHERE original_url = $1
		AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, originalURL, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to search links: %w", err)
	}
	return scanLinks(rows)
}

// FindByOwner retrieves all links created by a caller, newest first
func (r *linkRepository) FindByOwner(ctx context.Context, ownerID string) ([]*entities.Link, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get links: %w", err)
	}
	return scanLinks(rows)
}

// RecordAccess counts one click on a live link and moves last_accessed
// forward. It is a single atomic UPDATE so concurrent redirects never lose
// a click. Missing and expired links both yield ErrNotFound.
func (r *linkRepository) RecordAccess(ctx context.Context, shortCode string, at time.Time) (*entities.Link, error) {
	query := `
		UPDATE links
		SET click_count = click_count + 1,
			last_accessed = GREATEST(last_accessed, $2)
		WHERE short_code = $1
		AND (expires_at IS NULL OR expires_at > $2)
		RETURNING ` + linkColumns

	link, err := scanLink(r.db.QueryRowContext(ctx, query, shortCode, at.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record access: %w", err)
	}
	return link, nil
}

// UpdateOriginalURL points an existing link at a new URL
func (r *linkRepository) UpdateOriginalURL(ctx context.Context, shortCode, originalURL string) error {
	return r.execOne(ctx, "update link",
		`UPDATE links SET original_url = $1 WHERE short_code = $2`,
		originalURL, shortCode,
	)
}

// UpdateExpiresAt sets or clears (nil) the expiration of a link
func (r *linkRepository) UpdateExpiresAt(ctx context.Context, shortCode string, expiresAt *time.Time) error {
	return r.execOne(ctx, "update expiration",
		`UPDATE links SET expires_at = $1 WHERE short_code = $2`,
		nullableTime(expiresAt), shortCode,
	)
}

// Delete removes a link by short code
func (r *linkRepository) Delete(ctx context.Context, shortCode string) error {
	return r.execOne(ctx, "delete link",
		`DELETE FROM links WHERE short_code = $1`,
		shortCode,
	)
}

// DeleteIfExpired removes the link only when it has already expired, which
// frees its short code for reuse
func (r *linkRepository) DeleteIfExpired(ctx context.Context, shortCode string, now time.Time) (bool, error) {
	n, err := r.exec(ctx, "delete expired link",
		`DELETE FROM links WHERE short_code = $1 AND expires_at IS NOT NULL AND expires_at <= $2`,
		shortCode, now.UTC(),
	)
	return n > 0, err
}

// DeleteExpired removes every link whose expiration has passed
func (r *linkRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, "delete expired links",
		`DELETE FROM links WHERE expires_at IS NOT NULL AND expires_at <= $1`,
		now.UTC(),
	)
}

// DeleteInactive removes links not accessed since cutoff, and never-accessed
// links created before cutoff
func (r *linkRepository) DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.exec(ctx, "delete inactive links", `
		DELETE FROM links
		WHERE last_accessed < $1
		OR (last_accessed IS NULL AND created_at < $1)
	`, cutoff.UTC())
}

func (r *linkRepository) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

func (r *linkRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	n, err := r.exec(ctx, op, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
