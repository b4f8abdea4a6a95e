package crawler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonesrussell/torcrawl/internal/database"
	"github.com/jonesrussell/torcrawl/internal/domain"
	"github.com/jonesrussell/torcrawl/internal/logger"
)

// QueueSource claims pending URLs from the store.
type QueueSource interface {
	NextBatch(ctx context.Context, workerID string, n int) ([]domain.QueueItem, error)
}

// Prefetcher is an in-memory pull-ahead buffer above the crawl queue.
// Items it hands out are already marked processing in the store, so workers
// only need to dispose of them via MarkCompleted or
// MarkDomainConnectionFailed. At most one refill is in flight at a time.
type Prefetcher struct {
	source   QueueSource
	workerID string
	log      logger.Interface

	batchSize int           // bulk claim size B
	lowWater  int           // refill threshold W
	period    time.Duration // periodic refill P

	mu       sync.Mutex
	items    []domain.QueueItem
	fetching bool
}

// NewPrefetcher creates a prefetcher claiming on behalf of workerID.
func NewPrefetcher(source QueueSource, workerID string, batchSize, lowWater int, period time.Duration, log logger.Interface) *Prefetcher {
	return &Prefetcher{
		source:    source,
		workerID:  workerID,
		log:       log,
		batchSize: batchSize,
		lowWater:  lowWater,
		period:    period,
	}
}

// Run refills on the configured period until the context is cancelled.
func (p *Prefetcher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refill(ctx)
		}
	}
}

// Take pops up to n buffered items. Draining the buffer below the low-water
// mark triggers an async refill.
func (p *Prefetcher) Take(ctx context.Context, n int) []domain.QueueItem {
	p.mu.Lock()

	if n > len(p.items) {
		n = len(p.items)
	}
	taken := make([]domain.QueueItem, n)
	copy(taken, p.items[:n])
	p.items = p.items[n:]
	needRefill := len(p.items) < p.lowWater

	p.mu.Unlock()

	if needRefill {
		go p.refill(ctx)
	}

	return taken
}

// Size returns the number of buffered items.
func (p *Prefetcher) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// refill issues one bulk claim unless a fetch is already in flight.
func (p *Prefetcher) refill(ctx context.Context) {
	p.mu.Lock()
	if p.fetching {
		p.mu.Unlock()
		return
	}
	p.fetching = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.fetching = false
		p.mu.Unlock()
	}()

	items, err := p.source.NextBatch(ctx, p.workerID, p.batchSize)
	if err != nil {
		if !errors.Is(err, database.ErrNoURLAvailable) {
			p.log.Error("prefetch refill failed", "error", err.Error())
		}
		return
	}

	p.mu.Lock()
	p.items = append(p.items, items...)
	p.mu.Unlock()

	p.log.Debug("prefetched urls", "count", len(items))
}
