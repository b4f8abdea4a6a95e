package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/torcrawl/internal/domain"
)

// DirScanRepository handles database operations for directory scan results.
type DirScanRepository struct {
	db *sqlx.DB
}

// NewDirScanRepository creates a new dir scan repository.
func NewDirScanRepository(db *sqlx.DB) *DirScanRepository {
	return &DirScanRepository{db: db}
}

// InsertResults writes one row per probe with a single multi-values insert.
func (r *DirScanRepository) InsertResults(ctx context.Context, results []domain.DirScanResult) error {
	if len(results) == 0 {
		return nil
	}

	const cols = 12
	placeholders := make([]string, 0, len(results))
	args := make([]any, 0, len(results)*cols)

	for i, res := range results {
		base := i * cols
		nums := make([]string, cols)
		for j := range nums {
			nums[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(nums, ", ")+")")
		args = append(args, res.Domain, res.Path, res.StatusCode, res.ContentLength,
			res.ContentType, res.ResponseTimeMs, res.ServerHeader, res.RedirectURL,
			res.BodySnippet, res.IsInteresting, res.InterestReason, res.Category)
	}

	query := `
		INSERT INTO dir_scan_results (domain, path, status_code, content_length,
			content_type, response_time_ms, server_header, redirect_url,
			body_snippet, is_interesting, interest_reason, category)
		VALUES ` + strings.Join(placeholders, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert dir scan results: %w", err)
	}

	return nil
}

// InterestingByDomain returns the flagged probe results for a domain.
func (r *DirScanRepository) InterestingByDomain(ctx context.Context, dom string) ([]domain.DirScanResult, error) {
	query := `
		SELECT id, domain, path, status_code, content_length, content_type,
			response_time_ms, server_header, redirect_url, body_snippet,
			is_interesting, interest_reason, category, scanned_at
		FROM dir_scan_results
		WHERE domain = $1 AND is_interesting
		ORDER BY scanned_at DESC
	`

	var results []domain.DirScanResult
	if err := r.db.SelectContext(ctx, &results, query, dom); err != nil {
		return nil, fmt.Errorf("failed to list interesting dir scan results: %w", err)
	}

	return results, nil
}

// DirScanStats contains aggregate dir scan counters for the stats snapshot.
type DirScanStats struct {
	TotalProbes int `db:"total_probes" json:"total_probes"`
	Interesting int `db:"interesting"  json:"interesting"`
}

// Stats returns aggregate dir scan counters.
func (r *DirScanRepository) Stats(ctx context.Context) (*DirScanStats, error) {
	query := `
		SELECT COUNT(*) AS total_probes,
			COUNT(*) FILTER (WHERE is_interesting) AS interesting
		FROM dir_scan_results
	`

	var stats DirScanStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to query dir scan stats: %w", err)
	}

	return &stats, nil
}
