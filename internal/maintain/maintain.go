// Package maintain runs the periodic janitor that reclaims state left
// behind by crashed workers: expired domain locks, crawl queue rows stuck
// in processing and domains stuck in crawling.
package maintain

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/torcrawl/internal/logger"
)

// defaultSchedule runs the sweep every five minutes.
const defaultSchedule = "*/5 * * * *"

// LockJanitor deletes expired domain locks.
type LockJanitor interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// QueueJanitor reverts stale processing rows.
type QueueJanitor interface {
	ReleaseStaleProcessing(ctx context.Context, leaseSeconds int) (int64, error)
}

// DomainJanitor reverts domains stuck in crawling.
type DomainJanitor interface {
	ReleaseStaleCrawling(ctx context.Context, leaseSeconds int) (int64, error)
}

// Janitor periodically sweeps stale coordination state. Lock leases already
// bound how long a dead worker can block a domain; the janitor keeps the
// tables from accumulating the leftovers.
type Janitor struct {
	locks   LockJanitor
	queue   QueueJanitor
	domains DomainJanitor
	lease   time.Duration
	log     logger.Interface
	cron    *cron.Cron
}

// NewJanitor creates a janitor sweeping with the given lease horizon.
func NewJanitor(locks LockJanitor, queue QueueJanitor, domains DomainJanitor, lease time.Duration, log logger.Interface) *Janitor {
	return &Janitor{
		locks:   locks,
		queue:   queue,
		domains: domains,
		lease:   lease,
		log:     log,
	}
}

// Start schedules the sweep and blocks until the context is cancelled.
// One sweep runs immediately at startup.
func (j *Janitor) Start(ctx context.Context) error {
	j.Sweep(ctx)

	j.cron = cron.New()
	if _, err := j.cron.AddFunc(defaultSchedule, func() { j.Sweep(ctx) }); err != nil {
		return err
	}

	j.cron.Start()
	j.log.Info("janitor scheduled", "schedule", defaultSchedule, "lease", j.lease.String())

	<-ctx.Done()

	stopCtx := j.cron.Stop()
	<-stopCtx.Done()
	j.log.Info("janitor stopped")
	return nil
}

// Sweep runs one maintenance pass.
func (j *Janitor) Sweep(ctx context.Context) {
	leaseSeconds := int(j.lease.Seconds())

	if n, err := j.locks.DeleteExpired(ctx); err != nil {
		j.log.Error("failed to delete expired locks", "error", err.Error())
	} else if n > 0 {
		j.log.Info("deleted expired locks", "count", n)
	}

	if n, err := j.queue.ReleaseStaleProcessing(ctx, leaseSeconds); err != nil {
		j.log.Error("failed to release stale queue rows", "error", err.Error())
	} else if n > 0 {
		j.log.Info("released stale queue rows", "count", n)
	}

	if n, err := j.domains.ReleaseStaleCrawling(ctx, leaseSeconds); err != nil {
		j.log.Error("failed to release stale crawling domains", "error", err.Error())
	} else if n > 0 {
		j.log.Info("released stale crawling domains", "count", n)
	}
}
