package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// LockRepository implements leased (subsystem, domain) locks on top of a
// single table. At most one live row exists per pair; expired leases are
// reclaimable by any worker.
type LockRepository struct {
	db *sqlx.DB
}

// NewLockRepository creates a new lock repository.
func NewLockRepository(db *sqlx.DB) *LockRepository {
	return &LockRepository{db: db}
}

// Acquire tries to take the lock for (subsystem, domain). Re-acquiring a
// lock the worker already holds refreshes the lease. Returns false when a
// live lock is held by another worker.
func (r *LockRepository) Acquire(ctx context.Context, subsystem, dom, workerID string, lease time.Duration) (bool, error) {
	query := `
		INSERT INTO domain_locks (subsystem, domain, worker_id, expires_at)
		VALUES ($1, $2, $3, NOW() + ($4 * INTERVAL '1 second'))
		ON CONFLICT (subsystem, domain) DO UPDATE SET
			worker_id = EXCLUDED.worker_id,
			expires_at = EXCLUDED.expires_at,
			created_at = NOW()
		WHERE domain_locks.expires_at < NOW()
		   OR domain_locks.worker_id = EXCLUDED.worker_id
	`

	result, err := r.db.ExecContext(ctx, query, subsystem, dom, workerID, int(lease.Seconds()))
	if err != nil {
		return false, fmt.Errorf("failed to acquire domain lock: %w", err)
	}

	return rowsAffected(result) > 0, nil
}

// Release drops the lock, conditional on owner match.
func (r *LockRepository) Release(ctx context.Context, subsystem, dom, workerID string) error {
	query := `DELETE FROM domain_locks WHERE subsystem = $1 AND domain = $2 AND worker_id = $3`

	result, err := r.db.ExecContext(ctx, query, subsystem, dom, workerID)
	return execRequireRows(result, err,
		fmt.Errorf("lock not held by %s: %s/%s", workerID, subsystem, dom))
}

// Extend pushes the lease out, conditional on owner match and a live lease.
func (r *LockRepository) Extend(ctx context.Context, subsystem, dom, workerID string, lease time.Duration) error {
	query := `
		UPDATE domain_locks
		SET expires_at = NOW() + ($4 * INTERVAL '1 second')
		WHERE subsystem = $1 AND domain = $2 AND worker_id = $3 AND expires_at >= NOW()
	`

	result, err := r.db.ExecContext(ctx, query, subsystem, dom, workerID, int(lease.Seconds()))
	return execRequireRows(result, err,
		fmt.Errorf("lock not held by %s: %s/%s", workerID, subsystem, dom))
}

// DeleteExpired removes lock rows whose lease ran out. Returns the number of
// rows removed. Live locks are untouched.
func (r *LockRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM domain_locks WHERE expires_at < NOW()`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired locks: %w", err)
	}

	return rowsAffected(result), nil
}
