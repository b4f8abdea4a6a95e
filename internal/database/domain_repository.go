package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/torcrawl/internal/domain"
)

// ErrDomainNotFound is returned when a lookup misses. Check with errors.Is().
var ErrDomainNotFound = errors.New("domain not found")

// domainSelectColumns lists columns for SELECT queries on domains.
const domainSelectColumns = `id, address, title, description, active, crawl_status,
	crawl_count, first_seen, last_crawled, crawl_started_at, last_worker_id`

// DomainRepository handles database operations for discovered onion services.
type DomainRepository struct {
	db *sqlx.DB
}

// NewDomainRepository creates a new domain repository.
func NewDomainRepository(db *sqlx.DB) *DomainRepository {
	return &DomainRepository{db: db}
}

// UpsertResult is the slice of domain state returned by Upsert.
type UpsertResult struct {
	ID         int64  `db:"id"`
	Address    string `db:"address"`
	CrawlCount int    `db:"crawl_count"`
}

// upsertDomainQuery inserts or updates a domain by address. The crawl count
// increments only when a title is supplied: sightings without a title record
// the domain without counting as a crawl.
const upsertDomainQuery = `
	INSERT INTO domains (address, title, description, crawl_count, last_crawled)
	VALUES ($1, $2, $3,
		CASE WHEN $2::text IS NULL THEN 0 ELSE 1 END,
		CASE WHEN $2::text IS NULL THEN NULL ELSE NOW() END)
	ON CONFLICT (address) DO UPDATE SET
		title = COALESCE(EXCLUDED.title, domains.title),
		description = COALESCE(EXCLUDED.description, domains.description),
		crawl_count = domains.crawl_count + CASE WHEN EXCLUDED.title IS NULL THEN 0 ELSE 1 END,
		last_crawled = CASE WHEN EXCLUDED.title IS NULL THEN domains.last_crawled ELSE NOW() END
	RETURNING id, address, crawl_count
`

// Upsert inserts or updates a domain by address. Never fails on duplicates.
func (r *DomainRepository) Upsert(ctx context.Context, addr string, title, description *string) (*UpsertResult, error) {
	var res UpsertResult
	if err := r.db.GetContext(ctx, &res, upsertDomainQuery, addr, title, description); err != nil {
		return nil, fmt.Errorf("failed to upsert domain: %w", err)
	}
	return &res, nil
}

// upsertTx is the transactional variant of Upsert.
func upsertDomainTx(ctx context.Context, tx *sqlx.Tx, addr string, title, description *string) (*UpsertResult, error) {
	var res UpsertResult
	if err := tx.GetContext(ctx, &res, upsertDomainQuery, addr, title, description); err != nil {
		return nil, fmt.Errorf("failed to upsert domain: %w", err)
	}
	return &res, nil
}

// GetByAddress returns a domain by onion address.
func (r *DomainRepository) GetByAddress(ctx context.Context, addr string) (*domain.Domain, error) {
	query := `SELECT ` + domainSelectColumns + ` FROM domains WHERE address = $1`

	var d domain.Domain
	if err := r.db.GetContext(ctx, &d, query, addr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDomainNotFound
		}
		return nil, fmt.Errorf("failed to select domain: %w", err)
	}

	return &d, nil
}

// UpdateStatus sets the crawl status of a domain. A transition to crawling
// also stamps crawl_started_at and the worker id; a transition to completed
// stamps last_crawled.
func (r *DomainRepository) UpdateStatus(ctx context.Context, addr, status string, workerID *string) error {
	query := `
		UPDATE domains
		SET crawl_status = $2,
			last_worker_id = COALESCE($3, last_worker_id),
			crawl_started_at = CASE WHEN $2 = 'crawling' THEN NOW() ELSE crawl_started_at END,
			last_crawled = CASE WHEN $2 = 'completed' THEN NOW() ELSE last_crawled END
		WHERE address = $1
	`

	result, err := r.db.ExecContext(ctx, query, addr, status, workerID)
	return execRequireRows(result, err, fmt.Errorf("domain not found: %s", addr))
}

// ReleaseStaleCrawling reverts domains stuck in crawling longer than the
// given lease back to completed. Covers workers that died without cleanup.
// Returns the number of domains reverted.
func (r *DomainRepository) ReleaseStaleCrawling(ctx context.Context, leaseSeconds int) (int64, error) {
	query := `
		UPDATE domains
		SET crawl_status = 'completed'
		WHERE crawl_status = 'crawling'
		  AND crawl_started_at < NOW() - ($1 * INTERVAL '1 second')
	`

	result, err := r.db.ExecContext(ctx, query, leaseSeconds)
	if err != nil {
		return 0, fmt.Errorf("failed to release stale crawling domains: %w", err)
	}

	return rowsAffected(result), nil
}

// DomainStats contains aggregate domain counters for the stats snapshot.
type DomainStats struct {
	Total     int `db:"total"     json:"total"`
	Active    int `db:"active"    json:"active"`
	Crawled   int `db:"crawled"   json:"crawled"`
	WithTitle int `db:"with_title" json:"with_title"`
}

// Stats returns aggregate domain counters.
func (r *DomainRepository) Stats(ctx context.Context) (*DomainStats, error) {
	query := `
		SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE active) AS active,
			COUNT(*) FILTER (WHERE crawl_count > 0) AS crawled,
			COUNT(*) FILTER (WHERE title IS NOT NULL) AS with_title
		FROM domains
	`

	var stats DomainStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to query domain stats: %w", err)
	}

	return &stats, nil
}
