package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/torcrawl/internal/domain"
)

// CrawlLogRepository handles the append-only record of crawl attempts.
type CrawlLogRepository struct {
	db *sqlx.DB
}

// NewCrawlLogRepository creates a new crawl log repository.
func NewCrawlLogRepository(db *sqlx.DB) *CrawlLogRepository {
	return &CrawlLogRepository{db: db}
}

// InsertBatch appends a batch of crawl log rows with a single multi-values
// insert. The write buffer coalesces per-crawl calls into batches.
func (r *CrawlLogRepository) InsertBatch(ctx context.Context, logs []domain.CrawlLog) error {
	if len(logs) == 0 {
		return nil
	}

	const cols = 5
	placeholders := make([]string, 0, len(logs))
	args := make([]any, 0, len(logs)*cols)

	for i, entry := range logs {
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5))
		args = append(args, entry.URL, entry.Domain, entry.WorkerID, entry.Success, entry.Error)
	}

	query := `
		INSERT INTO crawl_logs (url, domain, worker_id, success, error)
		VALUES ` + strings.Join(placeholders, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert crawl logs: %w", err)
	}

	return nil
}
