package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/torcrawl/internal/domain"
)

// ErrNoJobAvailable is returned when NextJob finds no pending scan jobs.
// Callers should check with errors.Is().
var ErrNoJobAvailable = errors.New("no job available in scan queue")

// Scan queue table names. The port-scan and dir-scan queues share a shape,
// so one repository serves both.
const (
	ScanQueueTable    = "scan_queue"
	DirScanQueueTable = "dir_scan_queue"
)

// scanJobSelectColumns lists columns for SELECT queries on scan queues (aliased as s).
const scanJobSelectColumns = `s.id, s.domain, s.profile, s.status, s.priority,
	s.attempts, s.worker_id, s.inserted_at`

// ScanQueueRepository handles per-domain scan job dispatch for one queue table.
type ScanQueueRepository struct {
	db    *sqlx.DB
	table string
}

// NewScanQueueRepository creates a repository over the port-scan queue.
func NewScanQueueRepository(db *sqlx.DB) *ScanQueueRepository {
	return &ScanQueueRepository{db: db, table: ScanQueueTable}
}

// NewDirScanQueueRepository creates a repository over the dir-scan queue.
func NewDirScanQueueRepository(db *sqlx.DB) *ScanQueueRepository {
	return &ScanQueueRepository{db: db, table: DirScanQueueTable}
}

// Seed bulk-inserts per-domain jobs with a single multi-values insert.
// Conflicting domains keep the smaller priority number while still pending;
// jobs already picked up are left alone.
func (r *ScanQueueRepository) Seed(ctx context.Context, seeds []domain.ScanSeed) error {
	if len(seeds) == 0 {
		return nil
	}

	const cols = 3
	placeholders := make([]string, 0, len(seeds))
	args := make([]any, 0, len(seeds)*cols)

	for i, seed := range seeds {
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d)", base+1, base+2, base+3))
		args = append(args, seed.Domain, seed.Profile, seed.Priority)
	}

	query := `
		INSERT INTO ` + r.table + ` (domain, profile, priority)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (domain) DO UPDATE SET
			priority = LEAST(` + r.table + `.priority, EXCLUDED.priority)
		WHERE ` + r.table + `.status = 'pending'
	`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to seed %s: %w", r.table, err)
	}

	return nil
}

// NextJob atomically claims the next pending job by (priority asc,
// inserted_at asc), marks it processing and stamps the worker id.
func (r *ScanQueueRepository) NextJob(ctx context.Context, workerID string) (*domain.ScanJob, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	selectQuery := `
		SELECT ` + scanJobSelectColumns + `
		FROM ` + r.table + ` s
		WHERE s.status = 'pending'
		ORDER BY s.priority ASC, s.inserted_at ASC
		LIMIT 1
		FOR UPDATE OF s SKIP LOCKED
	`

	var job domain.ScanJob
	if selectErr := tx.GetContext(ctx, &job, selectQuery); selectErr != nil {
		if errors.Is(selectErr, sql.ErrNoRows) {
			return nil, ErrNoJobAvailable
		}
		return nil, fmt.Errorf("failed to select claimable job: %w", selectErr)
	}

	updateQuery := `
		UPDATE ` + r.table + `
		SET status = 'processing', worker_id = $1, attempts = attempts + 1
		WHERE id = $2
	`

	if _, updateErr := tx.ExecContext(ctx, updateQuery, workerID, job.ID); updateErr != nil {
		return nil, fmt.Errorf("failed to mark claimed job processing: %w", updateErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", commitErr)
	}

	job.Status = domain.QueueStatusProcessing
	job.WorkerID = &workerID
	job.Attempts++

	return &job, nil
}

// Complete marks a job completed.
func (r *ScanQueueRepository) Complete(ctx context.Context, id int64) error {
	query := `UPDATE ` + r.table + ` SET status = 'completed' WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	return execRequireRows(result, err, fmt.Errorf("%s job not found: %d", r.table, id))
}

// Fail marks a job failed with a reason.
func (r *ScanQueueRepository) Fail(ctx context.Context, id int64, reason string) error {
	query := `UPDATE ` + r.table + ` SET status = 'failed', last_error = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, reason)
	return execRequireRows(result, err, fmt.Errorf("%s job not found: %d", r.table, id))
}

// Return reverts a claimed job so another worker can pick it up. Used on
// lock contention; the attempt does not count.
func (r *ScanQueueRepository) Return(ctx context.Context, id int64) error {
	query := `
		UPDATE ` + r.table + `
		SET status = 'pending', worker_id = NULL, attempts = GREATEST(attempts - 1, 0)
		WHERE id = $1 AND status = 'processing'
	`

	result, err := r.db.ExecContext(ctx, query, id)
	return execRequireRows(result, err, fmt.Errorf("%s job not processing: %d", r.table, id))
}

// Stats returns aggregate counts of scan jobs grouped by status.
func (r *ScanQueueRepository) Stats(ctx context.Context) (*QueueStats, error) {
	query := `SELECT status, COUNT(*) FROM ` + r.table + ` GROUP BY status`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s stats: %w", r.table, err)
	}
	defer rows.Close()

	stats := &QueueStats{}
	for rows.Next() {
		var status string
		var count int
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan %s stats row: %w", r.table, scanErr)
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
		return nil, fmt.Errorf("failed to iterate %s stats: %w", r.table, rowsErr)
	}

	return stats, nil
}
