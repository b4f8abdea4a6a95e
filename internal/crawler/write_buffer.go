package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/jonesrussell/torcrawl/internal/domain"
	"github.com/jonesrussell/torcrawl/internal/logger"
)

// LogSink receives batched crawl log rows.
type LogSink interface {
	InsertBatch(ctx context.Context, logs []domain.CrawlLog) error
}

// SeedSink receives batched scan queue seeds.
type SeedSink interface {
	Seed(ctx context.Context, seeds []domain.ScanSeed) error
}

// WriteBuffer coalesces the two append-heavy streams the crawler produces:
// crawl log rows and scan queue seed domains. Buffered entries flush on a
// period, or early when a buffer reaches its cap. At most one flush runs at
// a time, and a failed flush re-prepends its entries so none are lost.
type WriteBuffer struct {
	logs      LogSink
	seedSinks []SeedSink
	log       logger.Interface

	flushPeriod time.Duration
	maxBuffer   int

	mu         sync.Mutex
	logBuf     []domain.CrawlLog
	seedBuf    []domain.ScanSeed
	flushing   bool
}

// NewWriteBuffer creates a write buffer flushing logs to logSink and seeds
// to every sink in seedSinks.
func NewWriteBuffer(logSink LogSink, seedSinks []SeedSink, flushPeriod time.Duration, maxBuffer int, log logger.Interface) *WriteBuffer {
	return &WriteBuffer{
		logs:        logSink,
		seedSinks:   seedSinks,
		log:         log,
		flushPeriod: flushPeriod,
		maxBuffer:   maxBuffer,
	}
}

// Run flushes on the configured period until the context is cancelled, then
// performs a final flush.
func (w *WriteBuffer) Run(ctx context.Context) {
	ticker := time.NewTicker(w.flushPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Flush(context.Background())
			return
		case <-ticker.C:
			w.Flush(ctx)
		}
	}
}

// BufferLog enqueues one crawl log row. Non-blocking; a full buffer
// triggers an async flush.
func (w *WriteBuffer) BufferLog(entry domain.CrawlLog) {
	w.mu.Lock()
	w.logBuf = append(w.logBuf, entry)
	full := len(w.logBuf) >= w.maxBuffer
	w.mu.Unlock()

	if full {
		go w.Flush(context.Background())
	}
}

// BufferSeed enqueues one scan queue seed. Non-blocking; a full buffer
// triggers an async flush.
func (w *WriteBuffer) BufferSeed(seed domain.ScanSeed) {
	w.mu.Lock()
	w.seedBuf = append(w.seedBuf, seed)
	full := len(w.seedBuf) >= w.maxBuffer
	w.mu.Unlock()

	if full {
		go w.Flush(context.Background())
	}
}

// Flush writes both buffers. Only one flush runs at a time; concurrent
// callers return immediately. On failure the snapshot is re-prepended in
// original order so a later flush re-emits everything.
func (w *WriteBuffer) Flush(ctx context.Context) {
	w.mu.Lock()
	if w.flushing {
		w.mu.Unlock()
		return
	}
	w.flushing = true
	logs := w.logBuf
	seeds := w.seedBuf
	w.logBuf = nil
	w.seedBuf = nil
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.flushing = false
		w.mu.Unlock()
	}()

	if len(logs) > 0 {
		if err := w.logs.InsertBatch(ctx, logs); err != nil {
			w.log.Error("crawl log flush failed", "count", len(logs), "error", err.Error())
			w.requeueLogs(logs)
		}
	}

	if len(seeds) > 0 {
		if err := w.flushSeeds(ctx, seeds); err != nil {
			w.log.Error("scan seed flush failed", "count", len(seeds), "error", err.Error())
			w.requeueSeeds(seeds)
		}
	}
}

// flushSeeds deduplicates by domain, keeping the lowest priority number
// (highest priority) in first-appearance order, then writes one batch per
// sink.
func (w *WriteBuffer) flushSeeds(ctx context.Context, seeds []domain.ScanSeed) error {
	deduped := dedupeSeeds(seeds)

	for _, sink := range w.seedSinks {
		if err := sink.Seed(ctx, deduped); err != nil {
			return err
		}
	}

	return nil
}

// dedupeSeeds keeps one entry per domain with the smallest priority number,
// preserving first-appearance order.
func dedupeSeeds(seeds []domain.ScanSeed) []domain.ScanSeed {
	index := make(map[string]int, len(seeds))
	deduped := make([]domain.ScanSeed, 0, len(seeds))

	for _, seed := range seeds {
		if i, seen := index[seed.Domain]; seen {
			if seed.Priority < deduped[i].Priority {
				deduped[i].Priority = seed.Priority
			}
			continue
		}
		index[seed.Domain] = len(deduped)
		deduped = append(deduped, seed)
	}

	return deduped
}

// requeueLogs puts failed entries back at the front of the buffer.
func (w *WriteBuffer) requeueLogs(logs []domain.CrawlLog) {
	w.mu.Lock()
	w.logBuf = append(logs, w.logBuf...)
	w.mu.Unlock()
}

// requeueSeeds puts failed entries back at the front of the buffer.
func (w *WriteBuffer) requeueSeeds(seeds []domain.ScanSeed) {
	w.mu.Lock()
	w.seedBuf = append(seeds, w.seedBuf...)
	w.mu.Unlock()
}
