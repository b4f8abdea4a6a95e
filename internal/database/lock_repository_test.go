package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/torcrawl/internal/database"
	"github.com/jonesrussell/torcrawl/internal/domain"
)

func newLockRepo(t *testing.T) (*database.LockRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewLockRepository(db)

	return repo, mock, func() { mockDB.Close() }
}

func TestLockRepository_Acquire_Success(t *testing.T) {
	repo, mock, cleanup := newLockRepo(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO domain_locks").
		WithArgs(domain.SubsystemCrawl, "aaa.onion", "worker-1", 600).
		WillReturnResult(sqlmock.NewResult(1, 1))

	acquired, err := repo.Acquire(context.Background(), domain.SubsystemCrawl, "aaa.onion", "worker-1", 10*time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !acquired {
		t.Error("Acquire() = false, want true")
	}

	expectationsMet(t, mock)
}

func TestLockRepository_Acquire_Contention(t *testing.T) {
	repo, mock, cleanup := newLockRepo(t)
	defer cleanup()

	// Live lock held by another worker: the conditional upsert touches no rows.
	mock.ExpectExec("INSERT INTO domain_locks").
		WithArgs(domain.SubsystemCrawl, "aaa.onion", "worker-2", 600).
		WillReturnResult(sqlmock.NewResult(0, 0))

	acquired, err := repo.Acquire(context.Background(), domain.SubsystemCrawl, "aaa.onion", "worker-2", 10*time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if acquired {
		t.Error("Acquire() = true, want false on contention")
	}

	expectationsMet(t, mock)
}

func TestLockRepository_Release_NotOwner(t *testing.T) {
	repo, mock, cleanup := newLockRepo(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM domain_locks").
		WithArgs(domain.SubsystemCrawl, "aaa.onion", "worker-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Release(context.Background(), domain.SubsystemCrawl, "aaa.onion", "worker-2"); err == nil {
		t.Error("Release() expected error when not owner")
	}

	expectationsMet(t, mock)
}

func TestLockRepository_Extend_ExpiredLease(t *testing.T) {
	repo, mock, cleanup := newLockRepo(t)
	defer cleanup()

	// An expired lease cannot be extended, only re-acquired.
	mock.ExpectExec("UPDATE domain_locks").
		WithArgs(domain.SubsystemDirScan, "aaa.onion", "worker-1", 600).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Extend(context.Background(), domain.SubsystemDirScan, "aaa.onion", "worker-1", 10*time.Minute); err == nil {
		t.Error("Extend() expected error on expired lease")
	}

	expectationsMet(t, mock)
}

func TestLockRepository_DeleteExpired(t *testing.T) {
	repo, mock, cleanup := newLockRepo(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM domain_locks").
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := repo.DeleteExpired(context.Background())
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if count != 3 {
		t.Errorf("DeleteExpired() count = %d, want 3", count)
	}

	expectationsMet(t, mock)
}
