package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/torcrawl/internal/domain"
)

// ErrNoURLAvailable is returned when NextBatch finds no pending URLs.
// Callers should check with errors.Is().
var ErrNoURLAvailable = errors.New("no URL available in crawl queue")

// queueSelectColumns lists columns for SELECT queries on crawl_queue (aliased as q).
const queueSelectColumns = `q.id, q.url, q.domain, q.status, q.priority,
	q.attempts, q.worker_id, q.inserted_at`

// CrawlQueueRepository handles database operations for the crawl queue.
type CrawlQueueRepository struct {
	db *sqlx.DB
}

// NewCrawlQueueRepository creates a new crawl queue repository.
func NewCrawlQueueRepository(db *sqlx.DB) *CrawlQueueRepository {
	return &CrawlQueueRepository{db: db}
}

// Add bulk-inserts URLs at the given priority. Duplicate URLs are ignored so
// re-discovering a queued or finished URL never re-queues it.
func (r *CrawlQueueRepository) Add(ctx context.Context, urls []string, domains []string, priority int) error {
	if len(urls) == 0 {
		return nil
	}
	if len(urls) != len(domains) {
		return errors.New("urls and domains length mismatch")
	}

	query := `
		INSERT INTO crawl_queue (url, domain, priority)
		SELECT u, d, $3 FROM UNNEST($1::text[], $2::text[]) AS t(u, d)
		ON CONFLICT (url) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, pq.Array(urls), pq.Array(domains), priority); err != nil {
		return fmt.Errorf("failed to add urls to crawl queue: %w", err)
	}

	return nil
}

// NextBatch atomically claims up to n pending URLs ordered by (priority asc,
// inserted_at asc), marks them processing and stamps the worker id. SKIP
// LOCKED keeps concurrent callers on disjoint slices.
func (r *CrawlQueueRepository) NextBatch(ctx context.Context, workerID string, n int) ([]domain.QueueItem, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	selectQuery := `
		SELECT ` + queueSelectColumns + `
		FROM crawl_queue q
		WHERE q.status = 'pending'
		ORDER BY q.priority ASC, q.inserted_at ASC
		LIMIT $1
		FOR UPDATE OF q SKIP LOCKED
	`

	var items []domain.QueueItem
	if selectErr := tx.SelectContext(ctx, &items, selectQuery, n); selectErr != nil {
		return nil, fmt.Errorf("failed to select claimable urls: %w", selectErr)
	}

	if len(items) == 0 {
		return nil, ErrNoURLAvailable
	}

	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}

	updateQuery := `
		UPDATE crawl_queue
		SET status = 'processing', worker_id = $1, attempts = attempts + 1, claimed_at = NOW()
		WHERE id = ANY($2)
	`

	if _, updateErr := tx.ExecContext(ctx, updateQuery, workerID, pq.Array(ids)); updateErr != nil {
		return nil, fmt.Errorf("failed to mark claimed urls processing: %w", updateErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", commitErr)
	}

	for i := range items {
		items[i].Status = domain.QueueStatusProcessing
		items[i].WorkerID = &workerID
		items[i].Attempts++
	}

	return items, nil
}

// MarkCompleted sets a URL's terminal status. Terminal rows are retained
// for audit.
func (r *CrawlQueueRepository) MarkCompleted(ctx context.Context, url string, success bool, errMsg *string) error {
	status := domain.QueueStatusCompleted
	if !success {
		status = domain.QueueStatusFailed
	}

	query := `UPDATE crawl_queue SET status = $2, last_error = $3 WHERE url = $1`

	result, err := r.db.ExecContext(ctx, query, url, status, errMsg)
	return execRequireRows(result, err, fmt.Errorf("crawl queue url not found: %s", url))
}

// MarkDomainConnectionFailed fails every pending and in-flight URL of a
// domain after the transport layer determined the domain itself is down.
// Returns the number of rows failed.
func (r *CrawlQueueRepository) MarkDomainConnectionFailed(ctx context.Context, dom string, errMsg string) (int64, error) {
	query := `
		UPDATE crawl_queue
		SET status = 'failed', last_error = $2
		WHERE domain = $1 AND status IN ('pending', 'processing')
	`

	result, err := r.db.ExecContext(ctx, query, dom, errMsg)
	if err != nil {
		return 0, fmt.Errorf("failed to cascade domain connection failure: %w", err)
	}

	return rowsAffected(result), nil
}

// ReturnToPending reverts a claimed URL so another worker can pick it up.
// Used on lock contention; the attempt does not count.
func (r *CrawlQueueRepository) ReturnToPending(ctx context.Context, url string) error {
	query := `
		UPDATE crawl_queue
		SET status = 'pending', worker_id = NULL, claimed_at = NULL,
		    attempts = GREATEST(attempts - 1, 0)
		WHERE url = $1 AND status = 'processing'
	`

	result, err := r.db.ExecContext(ctx, query, url)
	return execRequireRows(result, err, fmt.Errorf("crawl queue url not processing: %s", url))
}

// ReleaseStaleProcessing reverts processing rows whose claim is older than
// the lease back to pending. Covers workers that died mid-batch. Staleness is
// measured from claimed_at, never from enqueue time: on a deep backlog a row
// can sit pending far longer than the lease before any worker touches it.
func (r *CrawlQueueRepository) ReleaseStaleProcessing(ctx context.Context, leaseSeconds int) (int64, error) {
	query := `
		UPDATE crawl_queue
		SET status = 'pending', worker_id = NULL, claimed_at = NULL
		WHERE status = 'processing'
		  AND claimed_at < NOW() - ($1 * INTERVAL '1 second')
	`

	result, err := r.db.ExecContext(ctx, query, leaseSeconds)
	if err != nil {
		return 0, fmt.Errorf("failed to release stale processing urls: %w", err)
	}

	return rowsAffected(result), nil
}

// QueueStats contains aggregate counts by status for the crawl queue.
type QueueStats struct {
	TotalPending    int `json:"total_pending"`
	TotalProcessing int `json:"total_processing"`
	TotalCompleted  int `json:"total_completed"`
	TotalFailed     int `json:"total_failed"`
}

// Stats returns aggregate counts of crawl queue rows grouped by status.
func (r *CrawlQueueRepository) Stats(ctx context.Context) (*QueueStats, error) {
	query := `SELECT status, COUNT(*) FROM crawl_queue GROUP BY status`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawl queue stats: %w", err)
	}
	defer rows.Close()

	stats := &QueueStats{}
	for rows.Next() {
		var status string
		var count int
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan crawl queue stats row: %w", scanErr)
		}
		switch status {
		case domain.QueueStatusPending:
			stats.TotalPending = count
		case domain.QueueStatusProcessing:
			stats.TotalProcessing = count
		case domain.QueueStatusCompleted:
			stats.TotalCompleted = count
		case domain.QueueStatusFailed:
			stats.TotalFailed = count
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate crawl queue stats: %w", rowsErr)
	}

	return stats, nil
}
