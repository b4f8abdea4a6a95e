package maintain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/torcrawl/internal/logger"
)

type fakeLockJanitor struct {
	n     int64
	err   error
	calls int
}

func (f *fakeLockJanitor) DeleteExpired(context.Context) (int64, error) {
	f.calls++
	return f.n, f.err
}

type fakeQueueJanitor struct {
	n            int64
	err          error
	leaseSeconds int
}

func (f *fakeQueueJanitor) ReleaseStaleProcessing(_ context.Context, leaseSeconds int) (int64, error) {
	f.leaseSeconds = leaseSeconds
	return f.n, f.err
}

type fakeDomainJanitor struct {
	n     int64
	calls int
}

func (f *fakeDomainJanitor) ReleaseStaleCrawling(_ context.Context, _ int) (int64, error) {
	f.calls++
	return f.n, nil
}

func TestSweep_RunsAllPasses(t *testing.T) {
	locks := &fakeLockJanitor{n: 3}
	queue := &fakeQueueJanitor{n: 2}
	domains := &fakeDomainJanitor{n: 1}

	j := NewJanitor(locks, queue, domains, 10*time.Minute, logger.NewNoop())
	j.Sweep(context.Background())

	assert.Equal(t, 1, locks.calls)
	assert.Equal(t, 1, domains.calls)
	assert.Equal(t, 600, queue.leaseSeconds)
}

// A failing pass must not stop the remaining passes.
func TestSweep_ContinuesPastErrors(t *testing.T) {
	locks := &fakeLockJanitor{err: errors.New("db down")}
	queue := &fakeQueueJanitor{err: errors.New("db down")}
	domains := &fakeDomainJanitor{}

	j := NewJanitor(locks, queue, domains, time.Minute, logger.NewNoop())
	j.Sweep(context.Background())

	assert.Equal(t, 1, domains.calls)
}
