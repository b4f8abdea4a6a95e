// Package scanner implements the port-scan worker pool. Each worker claims
// one domain job at a time, probes the profile's port list over raw TCP
// through the SOCKS5 proxy and records states, banners and matched services.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jonesrussell/torcrawl/internal/config"
	"github.com/jonesrussell/torcrawl/internal/database"
	"github.com/jonesrussell/torcrawl/internal/domain"
	"github.com/jonesrussell/torcrawl/internal/logger"
	"github.com/jonesrussell/torcrawl/internal/proxy"
)

// idlePoll is the sleep between queue polls when no job is pending.
const idlePoll = 5 * time.Second

// detectionThreshold is the minimum confidence for a detected_services row.
const detectionThreshold = 0.8

// JobQueue claims and finishes scan jobs.
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
}

// ResultStore persists probe results and confident detections.
type ResultStore interface {
	InsertResults(ctx context.Context, results []domain.PortScan) error
	UpsertDetectedService(ctx context.Context, svc domain.DetectedService) error
}

// Dialer opens raw TCP connections through the proxy.
type Dialer interface {
	TCPConnect(ctx context.Context, host string, port int, timeout time.Duration) (net.Conn, error)
}

// Worker is one port-scan worker.
type Worker struct {
	id     string
	cfg    config.ScannerConfig
	queue  JobQueue
	locks  LockManager
	store  ResultStore
	dialer Dialer
	log    logger.Interface
}

// NewWorker creates a port-scan worker.
func NewWorker(id string, cfg config.ScannerConfig, queue JobQueue, locks LockManager, store ResultStore, dialer Dialer, log logger.Interface) *Worker {
	return &Worker{
		id:     id,
		cfg:    cfg,
		queue:  queue,
		locks:  locks,
		store:  store,
		dialer: dialer,
		log:    log.With("worker_id", id),
	}
}

// Run claims and scans jobs until the context is cancelled. The in-flight
// domain always finishes before exit.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("port scan worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("port scan worker stopping")
			return
		default:
		}

		job, err := w.queue.NextJob(ctx, w.id)
		if err != nil {
			if !errors.Is(err, database.ErrNoJobAvailable) {
				w.log.Error("failed to claim scan job", "error", err.Error())
			}
			select {
			case <-ctx.Done():
			case <-time.After(idlePoll):
			}
			continue
		}

		if scanErr := w.processJob(ctx, job); scanErr != nil {
			w.log.Error("scan job failed", "domain", job.Domain, "error", scanErr.Error())
		}
	}
}

// processJob scans one domain under the port-scan lock.
func (w *Worker) processJob(ctx context.Context, job *domain.ScanJob) error {
	acquired, err := w.locks.Acquire(ctx, domain.SubsystemPortScan, job.Domain, w.id, config.DefaultLockLease)
	if err != nil {
		return fmt.Errorf("acquire port scan lock: %w", err)
	}

	if !acquired {
		w.log.Debug("port scan lock contention", "domain", job.Domain)
		if returnErr := w.queue.Return(ctx, job.ID); returnErr != nil {
			return fmt.Errorf("return contended job: %w", returnErr)
		}
		return nil
	}

	defer func() {
		if releaseErr := w.locks.Release(context.Background(), domain.SubsystemPortScan, job.Domain, w.id); releaseErr != nil {
			w.log.Error("failed to release port scan lock", "domain", job.Domain, "error", releaseErr.Error())
		}
	}()

	results := w.scanDomain(ctx, job.Domain, PortsForProfile(job.Profile))

	if len(results) > 0 {
		if insertErr := w.store.InsertResults(ctx, results); insertErr != nil {
			return fmt.Errorf("persist port scan results: %w", insertErr)
		}
		w.recordDetections(ctx, results)
	}

	if completeErr := w.queue.Complete(ctx, job.ID); completeErr != nil {
		return fmt.Errorf("complete scan job: %w", completeErr)
	}

	w.log.Info("scanned domain", "domain", job.Domain, "profile", job.Profile,
		"ports", len(results), "open", countOpen(results))
	return nil
}

// scanDomain probes every port of the profile. Probes run behind a
// concurrency limit with a fixed delay between launches on the same domain.
func (w *Worker) scanDomain(ctx context.Context, dom string, ports []int) []domain.PortScan {
	var (
		mu      sync.Mutex
		results []domain.PortScan
		wg      sync.WaitGroup
	)

	sem := make(chan struct{}, w.cfg.MaxConcurrent)

	for i, port := range ports {
		if i > 0 {
			select {
			case <-ctx.Done():
				wg.Wait()
				return results
			case <-time.After(w.cfg.ProbeDelay):
			}
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			defer func() { <-sem }()

			result, record := w.probePort(ctx, dom, p)
			if !record {
				return
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(port)
	}

	wg.Wait()
	return results
}

// probePort opens one TCP connection and grabs a banner. The second return
// is false when the outcome should not be recorded, as with transient proxy
// failures.
func (w *Worker) probePort(ctx context.Context, dom string, port int) (domain.PortScan, bool) {
	result := domain.PortScan{Domain: dom, Port: port}

	conn, err := w.dialer.TCPConnect(ctx, dom, port, w.cfg.ConnTimeout)
	if err != nil {
		state, record := classifyProbeError(err)
		if !record {
			w.log.Debug("transient probe failure", "domain", dom, "port", port, "error", err.Error())
			return result, false
		}
		result.State = state
		return result, true
	}
	defer conn.Close()

	result.State = domain.PortStateOpen

	banner := w.grabBanner(conn, port)
	if banner != "" {
		result.Banner = &banner
		if match, ok := MatchBanner(banner); ok {
			result.Service = &match.Service
			result.Confidence = &match.Confidence
			if match.Version != "" {
				result.Version = &match.Version
			}
		}
	}

	return result, true
}

// grabBanner reads up to BannerCap bytes within BannerTimeout. HTTP-style
// ports get a minimal request first, since those services wait for the
// client to speak.
func (w *Worker) grabBanner(conn net.Conn, port int) string {
	deadline := time.Now().Add(w.cfg.BannerTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return ""
	}

	if IsHTTPPort(port) {
		if _, err := conn.Write([]byte("HEAD / HTTP/1.0\r\n\r\n")); err != nil {
			return ""
		}
	}

	banner, err := io.ReadAll(io.LimitReader(conn, w.cfg.BannerCap))
	if err != nil && len(banner) == 0 {
		return ""
	}

	return strings.ToValidUTF8(string(banner), "")
}

// recordDetections upserts a detected_services row for every confident
// signature match.
func (w *Worker) recordDetections(ctx context.Context, results []domain.PortScan) {
	for _, res := range results {
		if res.Service == nil || res.Confidence == nil || *res.Confidence < detectionThreshold {
			continue
		}

		svc := domain.DetectedService{
			Domain:     res.Domain,
			Port:       res.Port,
			Service:    *res.Service,
			Version:    res.Version,
			Confidence: *res.Confidence,
		}
		if err := w.store.UpsertDetectedService(ctx, svc); err != nil {
			w.log.Error("failed to upsert detected service", "domain", res.Domain, "port", res.Port, "error", err.Error())
		}
	}
}

// classifyProbeError maps a connect error to a port state. The second
// return is false for transient proxy-side failures that should be skipped
// rather than recorded.
func classifyProbeError(err error) (state string, record bool) {
	if proxy.IsRetryableSocksFailure(err) {
		return "", false
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "econnrefused"):
		return domain.PortStateClosed, true
	case strings.Contains(msg, "i/o timeout") || strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded"):
		return domain.PortStateTimeout, true
	default:
		return domain.PortStateFiltered, true
	}
}

// countOpen counts open-state results.
func countOpen(results []domain.PortScan) int {
	open := 0
	for _, res := range results {
		if res.State == domain.PortStateOpen {
			open++
		}
	}
	return open
}

// Pool runs a set of port-scan workers.
type Pool struct {
	workers []*Worker
	log     logger.Interface
}

// NewPool creates a port-scan worker pool.
func NewPool(workers []*Worker, log logger.Interface) *Pool {
	return &Pool{workers: workers, log: log}
}

// Start launches every worker and blocks until the context is cancelled and
// all workers drained.
func (p *Pool) Start(ctx context.Context) error {
	p.log.Info("starting port scan pool", "worker_count", len(p.workers))

	var wg sync.WaitGroup
	for _, worker := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(worker)
	}

	wg.Wait()
	p.log.Info("port scan pool stopped")
	return nil
}
