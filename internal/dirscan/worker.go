// Package dirscan implements the directory-scan worker pool. Each worker
// claims one domain job at a time, captures a not-found baseline, probes a
// profile-specific path list through the SOCKS5 proxy and classifies every
// response against the baseline.
package dirscan

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonesrussell/torcrawl/internal/config"
	"github.com/jonesrussell/torcrawl/internal/database"
	"github.com/jonesrussell/torcrawl/internal/domain"
	"github.com/jonesrussell/torcrawl/internal/logger"
	"github.com/jonesrussell/torcrawl/internal/onion"
	"github.com/jonesrussell/torcrawl/internal/proxy"
)

// idlePoll is the sleep between queue polls when no job is pending.
const idlePoll = 5 * time.Second

// baselinePathLen is the length of the random nonexistent path.
const baselinePathLen = 24

// unreachableReason marks jobs failed on connection-level errors.
const unreachableReason = "Domain unreachable"

// JobQueue claims and finishes dir-scan jobs.
type JobQueue interface {
	NextJob(ctx context.Context, workerID string) (*domain.ScanJob, error)
	Complete(ctx context.Context, id int64) error
	Fail(ctx context.Context, id int64, reason string) error
	Return(ctx context.Context, id int64) error
}

// LockManager owns the per-(subsystem, domain) lock primitives.
type LockManager interface {
	Acquire(ctx context.Context, subsystem, dom, workerID string, lease time.Duration) (bool, error)
	Release(ctx context.Context, subsystem, dom, workerID string) error
	Extend(ctx context.Context, subsystem, dom, workerID string, lease time.Duration) error
}

// ResultStore persists classified probe rows.
type ResultStore interface {
	InsertResults(ctx context.Context, results []domain.DirScanResult) error
}

// Fetcher issues GET and HEAD requests through the proxy.
type Fetcher interface {
	Get(ctx context.Context, url string, opts proxy.RequestOptions) (*proxy.Response, error)
	Head(ctx context.Context, url string, opts proxy.RequestOptions) (*proxy.Response, error)
}

// Worker is one directory-scan worker.
type Worker struct {
	id      string
	cfg     config.DirScanConfig
	queue   JobQueue
	locks   LockManager
	store   ResultStore
	fetcher Fetcher
	log     logger.Interface
}

// NewWorker creates a directory-scan worker.
func NewWorker(id string, cfg config.DirScanConfig, queue JobQueue, locks LockManager, store ResultStore, fetcher Fetcher, log logger.Interface) *Worker {
	return &Worker{
		id:      id,
		cfg:     cfg,
		queue:   queue,
		locks:   locks,
		store:   store,
		fetcher: fetcher,
		log:     log.With("worker_id", id),
	}
}

// Run claims and scans jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("dir scan worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("dir scan worker stopping")
			return
		default:
		}

		job, err := w.queue.NextJob(ctx, w.id)
		if err != nil {
			if !errors.Is(err, database.ErrNoJobAvailable) {
				w.log.Error("failed to claim dir scan job", "error", err.Error())
			}
			select {
			case <-ctx.Done():
			case <-time.After(idlePoll):
			}
			continue
		}

		if scanErr := w.processJob(ctx, job); scanErr != nil {
			w.log.Error("dir scan job failed", "domain", job.Domain, "error", scanErr.Error())
		}
	}
}

// processJob scans one domain under the dir-scan lock.
func (w *Worker) processJob(ctx context.Context, job *domain.ScanJob) error {
	acquired, err := w.locks.Acquire(ctx, domain.SubsystemDirScan, job.Domain, w.id, config.DefaultLockLease)
	if err != nil {
		return fmt.Errorf("acquire dir scan lock: %w", err)
	}

	if !acquired {
		w.log.Debug("dir scan lock contention", "domain", job.Domain)
		if returnErr := w.queue.Return(ctx, job.ID); returnErr != nil {
			return fmt.Errorf("return contended job: %w", returnErr)
		}
		return nil
	}

	defer func() {
		if releaseErr := w.locks.Release(context.Background(), domain.SubsystemDirScan, job.Domain, w.id); releaseErr != nil {
			w.log.Error("failed to release dir scan lock", "domain", job.Domain, "error", releaseErr.Error())
		}
	}()

	baseline, baseErr := w.captureBaseline(ctx, job.Domain)
	if baseErr != nil {
		reason := unreachableReason
		if !proxy.IsConnectionFailure(baseErr) {
			reason = baseErr.Error()
		}
		if failErr := w.queue.Fail(ctx, job.ID, reason); failErr != nil {
			return fmt.Errorf("fail unreachable job: %w", failErr)
		}
		w.log.Info("dir scan baseline failed", "domain", job.Domain, "reason", reason)
		return nil
	}

	results, unreachable := w.probePaths(ctx, job.Domain, PathsForProfile(job.Profile), baseline)

	if len(results) > 0 {
		if insertErr := w.store.InsertResults(ctx, results); insertErr != nil {
			return fmt.Errorf("persist dir scan results: %w", insertErr)
		}
	}

	if unreachable {
		if failErr := w.queue.Fail(ctx, job.ID, unreachableReason); failErr != nil {
			return fmt.Errorf("fail unreachable job: %w", failErr)
		}
		w.log.Info("dir scan aborted", "domain", job.Domain, "probed", len(results))
		return nil
	}

	if completeErr := w.queue.Complete(ctx, job.ID); completeErr != nil {
		return fmt.Errorf("complete dir scan job: %w", completeErr)
	}

	w.log.Info("dir scanned domain", "domain", job.Domain, "profile", job.Profile,
		"probed", len(results), "interesting", countInteresting(results))
	return nil
}

// captureBaseline fetches a random path that should not exist. Any HTTP
// response, error statuses included, is a valid baseline.
func (w *Worker) captureBaseline(ctx context.Context, dom string) (Baseline, error) {
	url := onion.BaseURL(dom) + randomPath()

	resp, err := w.fetcher.Get(ctx, url, proxy.RequestOptions{
		Timeout:          w.cfg.RequestTimeout,
		MaxContentLength: w.cfg.BodyCap,
	})
	if err != nil {
		return Baseline{}, err
	}

	return Baseline{
		StatusCode:    resp.StatusCode,
		ContentLength: int64(len(resp.Body)),
		Body:          resp.Body,
	}, nil
}

// probePaths HEADs every path, following 200s with a capped GET for the
// classifier. Three consecutive connection failures abort the scan.
func (w *Worker) probePaths(ctx context.Context, dom string, paths []string, baseline Baseline) (results []domain.DirScanResult, unreachable bool) {
	base := onion.BaseURL(dom)
	consecutiveFailures := 0

	for i, path := range paths {
		if i > 0 {
			select {
			case <-ctx.Done():
				return results, false
			case <-time.After(w.cfg.PathDelay):
			}
		}

		if i > 0 && i%w.cfg.LockExtendEvery == 0 {
			if err := w.locks.Extend(ctx, domain.SubsystemDirScan, dom, w.id, config.DefaultLockLease); err != nil {
				w.log.Warn("failed to extend dir scan lock", "domain", dom, "error", err.Error())
			}
		}

		url := base + path

		head, headErr := w.fetcher.Head(ctx, url, proxy.RequestOptions{Timeout: w.cfg.RequestTimeout})
		if headErr != nil {
			if proxy.IsConnectionFailure(headErr) {
				consecutiveFailures++
				if consecutiveFailures >= w.cfg.MaxConsecFail {
					return results, true
				}
			}
			w.log.Debug("path probe failed", "domain", dom, "path", path, "error", headErr.Error())
			continue
		}
		consecutiveFailures = 0

		probe := Probe{
			Path:           path,
			StatusCode:     head.StatusCode,
			ContentLength:  headContentLength(head),
			ContentType:    head.ContentType,
			ResponseTimeMs: head.ResponseTime.Milliseconds(),
			ServerHeader:   head.Headers.Get("Server"),
			RedirectURL:    head.Headers.Get("Location"),
		}

		if head.StatusCode == 200 {
			body, bodyErr := w.fetcher.Get(ctx, url, proxy.RequestOptions{
				Timeout:          w.cfg.RequestTimeout,
				MaxContentLength: w.cfg.BodyCap,
			})
			if bodyErr == nil {
				probe.Body = body.Body
				probe.ContentLength = int64(len(body.Body))
				if probe.ContentType == "" {
					probe.ContentType = body.ContentType
				}
			} else {
				w.log.Debug("body fetch failed", "domain", dom, "path", path, "error", bodyErr.Error())
			}
		}

		results = append(results, Classify(dom, probe, baseline))
	}

	return results, false
}

// headContentLength prefers the declared Content-Length since HEAD bodies
// are empty.
func headContentLength(resp *proxy.Response) int64 {
	if cl := resp.Headers.Get("Content-Length"); cl != "" {
		var n int64
		if _, err := fmt.Sscanf(cl, "%d", &n); err == nil {
			return n
		}
	}
	return int64(len(resp.Body))
}

// randomPathAlphabet feeds randomPath.
const randomPathAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomPath generates a path very unlikely to exist on any server.
func randomPath() string {
	buf := make([]byte, baselinePathLen)
	for i := range buf {
		buf[i] = randomPathAlphabet[rand.Intn(len(randomPathAlphabet))]
	}
	return string(buf)
}

// countInteresting counts flagged results.
func countInteresting(results []domain.DirScanResult) int {
	n := 0
	for _, res := range results {
		if res.IsInteresting {
			n++
		}
	}
	return n
}

// Pool runs a set of directory-scan workers.
type Pool struct {
	workers []*Worker
	log     logger.Interface
}

// NewPool creates a directory-scan worker pool.
func NewPool(workers []*Worker, log logger.Interface) *Pool {
	return &Pool{workers: workers, log: log}
}

// Start launches every worker and blocks until the context is cancelled and
// all workers drained.
func (p *Pool) Start(ctx context.Context) error {
	p.log.Info("starting dir scan pool", "worker_count", len(p.workers))

	var wg sync.WaitGroup
	for _, worker := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(worker)
	}

	wg.Wait()
	p.log.Info("dir scan pool stopped")
	return nil
}
