// Package crawler implements the crawl worker pool and its supporting
// buffers. Workers pull claimed URLs from the prefetcher, fetch through the
// SOCKS5 proxy, persist the page graph in one transaction and feed both
// scan queues with every onion domain they discover.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jonesrussell/torcrawl/internal/config"
	"github.com/jonesrussell/torcrawl/internal/database"
	"github.com/jonesrussell/torcrawl/internal/domain"
	"github.com/jonesrussell/torcrawl/internal/extractor"
	"github.com/jonesrussell/torcrawl/internal/logger"
	"github.com/jonesrussell/torcrawl/internal/onion"
	"github.com/jonesrussell/torcrawl/internal/proxy"
)

// Pause bounds between URLs of one batch.
const (
	interURLDelayMin = 500 * time.Millisecond
	interURLDelayMax = 1500 * time.Millisecond
)

// scanSeedPriority is the priority newly discovered domains enter the scan
// queues with.
const scanSeedPriority = 100

// QueueDisposer finishes claimed queue rows.
type QueueDisposer interface {
	MarkCompleted(ctx context.Context, url string, success bool, errMsg *string) error
	MarkDomainConnectionFailed(ctx context.Context, dom string, errMsg string) (int64, error)
	ReturnToPending(ctx context.Context, url string) error
	Add(ctx context.Context, urls []string, domains []string, priority int) error
}

// LockManager owns the per-(subsystem, domain) lock primitives.
type LockManager interface {
	Acquire(ctx context.Context, subsystem, dom, workerID string, lease time.Duration) (bool, error)
	Release(ctx context.Context, subsystem, dom, workerID string) error
	Extend(ctx context.Context, subsystem, dom, workerID string, lease time.Duration) error
}

// DomainUpdater transitions domain crawl status.
type DomainUpdater interface {
	UpdateStatus(ctx context.Context, addr, status string, workerID *string) error
}

// CrawlStore persists one crawl atomically.
type CrawlStore interface {
	SaveCrawl(ctx context.Context, result database.CrawlResult) (domainID, pageID int64, err error)
}

// PageFetcher issues GETs through the proxy.
type PageFetcher interface {
	Get(ctx context.Context, url string, opts proxy.RequestOptions) (*proxy.Response, error)
}

// Buffer is the write buffer surface workers use.
type Buffer interface {
	BufferLog(entry domain.CrawlLog)
	BufferSeed(seed domain.ScanSeed)
}

// Taker hands out claimed queue items.
type Taker interface {
	Take(ctx context.Context, n int) []domain.QueueItem
}

// Worker is one crawl worker. Several workers share the prefetcher and
// write buffer; all cross-worker coordination lives in the store.
type Worker struct {
	id       string
	cfg      config.CrawlerConfig
	queue    QueueDisposer
	locks    LockManager
	domains  DomainUpdater
	store    CrawlStore
	fetcher  PageFetcher
	buffer   Buffer
	take     Taker
	log      logger.Interface
}

// NewWorker creates a crawl worker.
func NewWorker(
	id string,
	cfg config.CrawlerConfig,
	queue QueueDisposer,
	locks LockManager,
	domains DomainUpdater,
	store CrawlStore,
	fetcher PageFetcher,
	buffer Buffer,
	take Taker,
	log logger.Interface,
) *Worker {
	return &Worker{
		id:      id,
		cfg:     cfg,
		queue:   queue,
		locks:   locks,
		domains: domains,
		store:   store,
		fetcher: fetcher,
		buffer:  buffer,
		take:    take,
		log:     log.With("worker_id", id),
	}
}

// Run processes batches until the context is cancelled. The in-flight URL
// always finishes before exit.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("crawl worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("crawl worker stopping")
			return
		default:
		}

		delay := w.cfg.CrawlDelay
		if err := w.processBatch(ctx); err != nil {
			w.log.Error("batch failed", "error", err.Error())
			delay = 2 * w.cfg.CrawlDelay
		}

		select {
		case <-ctx.Done():
			w.log.Info("crawl worker stopping")
			return
		case <-time.After(delay):
		}
	}
}

// processBatch takes up to BatchSize URLs and crawls them sequentially with
// a random pause in between.
func (w *Worker) processBatch(ctx context.Context) error {
	items := w.take.Take(ctx, w.cfg.BatchSize)
	if len(items) == 0 {
		return nil
	}

	for i, item := range items {
		if i > 0 {
			jitter := interURLDelayMin + time.Duration(rand.Int63n(int64(interURLDelayMax-interURLDelayMin)))
			select {
			case <-ctx.Done():
				// Unprocessed claims go back so other workers can take them.
				w.returnRemaining(items[i:])
				return nil
			case <-time.After(jitter):
			}
		}

		if err := w.processURL(ctx, item); err != nil {
			return err
		}
	}

	return nil
}

// returnRemaining reverts claimed but unprocessed items to pending.
func (w *Worker) returnRemaining(items []domain.QueueItem) {
	ctx := context.Background()
	for _, item := range items {
		if err := w.queue.ReturnToPending(ctx, item.URL); err != nil {
			w.log.Error("failed to return url to queue", "url", item.URL, "error", err.Error())
		}
	}
}

// processURL crawls one claimed URL under the domain crawl lock.
func (w *Worker) processURL(ctx context.Context, item domain.QueueItem) error {
	acquired, err := w.locks.Acquire(ctx, domain.SubsystemCrawl, item.Domain, w.id, w.cfg.LockLease)
	if err != nil {
		return fmt.Errorf("acquire crawl lock: %w", err)
	}

	if !acquired {
		w.log.Debug("crawl lock contention", "domain", item.Domain, "url", item.URL)
		if returnErr := w.queue.ReturnToPending(ctx, item.URL); returnErr != nil {
			w.log.Error("failed to return url on contention", "url", item.URL, "error", returnErr.Error())
		}
		return nil
	}

	defer func() {
		if releaseErr := w.locks.Release(context.Background(), domain.SubsystemCrawl, item.Domain, w.id); releaseErr != nil {
			w.log.Error("failed to release crawl lock", "domain", item.Domain, "error", releaseErr.Error())
		}
		// The domain stays eligible for later re-crawl regardless of the
		// per-URL outcome.
		if statusErr := w.domains.UpdateStatus(context.Background(), item.Domain, domain.CrawlStatusCompleted, nil); statusErr != nil {
			w.log.Error("failed to complete domain status", "domain", item.Domain, "error", statusErr.Error())
		}
	}()

	if statusErr := w.domains.UpdateStatus(ctx, item.Domain, domain.CrawlStatusCrawling, &w.id); statusErr != nil {
		return fmt.Errorf("mark domain crawling: %w", statusErr)
	}

	return w.crawl(ctx, item)
}

// crawl fetches, extracts, persists and enqueues for one URL.
func (w *Worker) crawl(ctx context.Context, item domain.QueueItem) error {
	addr, addrErr := onion.ExtractAddress(item.URL)
	if addrErr != nil {
		msg := addrErr.Error()
		w.bufferLog(item, false, &msg)
		return w.queue.MarkCompleted(ctx, item.URL, false, &msg)
	}

	resp, fetchErr := w.fetcher.Get(ctx, item.URL, proxy.RequestOptions{})
	if fetchErr != nil {
		return w.handleFetchError(ctx, item, fetchErr)
	}

	result, discovered := w.buildResult(addr, item.URL, resp)

	if _, _, saveErr := w.store.SaveCrawl(ctx, result); saveErr != nil {
		return fmt.Errorf("persist crawl: %w", saveErr)
	}

	w.enqueueDiscovered(ctx, resp.StatusCode, discovered)
	w.bufferLog(item, true, nil)

	if markErr := w.queue.MarkCompleted(ctx, item.URL, true, nil); markErr != nil {
		return fmt.Errorf("mark url completed: %w", markErr)
	}

	w.log.Info("crawled url", "url", item.URL, "status", resp.StatusCode, "links", len(discovered.links))
	return nil
}

// handleFetchError classifies the failure. A connection-level failure
// cascades to every pending URL of the domain; anything else fails just
// this URL.
func (w *Worker) handleFetchError(ctx context.Context, item domain.QueueItem, fetchErr error) error {
	msg := fetchErr.Error()

	if proxy.IsConnectionFailure(fetchErr) {
		count, cascadeErr := w.queue.MarkDomainConnectionFailed(ctx, item.Domain, msg)
		if cascadeErr != nil {
			return fmt.Errorf("cascade connection failure: %w", cascadeErr)
		}
		w.bufferLog(item, false, &msg)
		w.log.Warn("domain unreachable", "domain", item.Domain, "failed_urls", count, "error", msg)
		return nil
	}

	w.bufferLog(item, false, &msg)
	if markErr := w.queue.MarkCompleted(ctx, item.URL, false, &msg); markErr != nil {
		return fmt.Errorf("mark url failed: %w", markErr)
	}

	w.log.Info("url fetch failed", "url", item.URL, "error", msg)
	return nil
}

// discoveredTargets groups what a crawl feeds back into the queues.
type discoveredTargets struct {
	links       []extractor.Link
	textDomains []string
	allDomains  []string
}

// buildResult converts a proxy response into the transactional crawl result
// plus the discovered queue targets.
func (w *Worker) buildResult(addr, pageURL string, resp *proxy.Response) (database.CrawlResult, discoveredTargets) {
	var discovered discoveredTargets

	page := database.PageData{
		URL:        pageURL,
		Path:       pathOf(pageURL),
		Accessible: resp.StatusCode < 400,
	}
	status := resp.StatusCode
	length := int64(len(resp.Body))
	page.StatusCode = &status
	page.ContentLength = &length
	if resp.ContentType != "" {
		ct := resp.ContentType
		page.ContentType = &ct
	}

	var title string

	if isHTML(resp.ContentType) {
		extracted, extractErr := extractor.Extract(pageURL, resp.Body)
		if extractErr != nil {
			// Treat unparseable pages as no-HTML; the fetch still counts.
			w.log.Warn("html extraction failed", "url", pageURL, "error", extractErr.Error())
		} else {
			title = extracted.Title
			page.ContentText = nonEmpty(extracted.ContentText)
			page.MetaDescription = nonEmpty(extracted.MetaDescription)
			page.Language = nonEmpty(extracted.Language)
			if len(extracted.H1s) > 0 {
				h1 := strings.Join(extracted.H1s, "\n")
				page.H1 = &h1
			}
			if int64(len(resp.Body)) < w.cfg.HTMLStoreCap && !resp.Truncated {
				html := string(resp.Body)
				page.ContentHTML = &html
			}
			discovered.links = extracted.Links
			discovered.textDomains = extracted.TextOnlyDomains
			discovered.allDomains = extracted.OnionDomains
		}
	}

	// Error pages still persist: their navigation is worth keeping.
	if resp.StatusCode >= 400 {
		title = fmt.Sprintf("[%d] %s", resp.StatusCode, title)
		title = strings.TrimSpace(title)
	}
	page.Title = nonEmpty(title)

	links := make([]database.LinkData, 0, len(discovered.links))
	for _, link := range discovered.links {
		links = append(links, database.LinkData{
			TargetURL:    link.URL,
			TargetDomain: nonEmpty(link.Domain),
			AnchorText:   nonEmpty(link.AnchorText),
			LinkType:     link.Type,
			SourceOfLink: link.Source,
			Position:     link.Position,
		})
	}

	headers := make(map[string]string, len(resp.Headers))
	for name := range resp.Headers {
		headers[name] = resp.Headers.Get(name)
	}

	result := database.CrawlResult{
		Address: addr,
		Title:   page.Title,
		Page:    page,
		Links:   links,
		Headers: headers,
	}
	result.Description = page.MetaDescription

	return result, discovered
}

// enqueueDiscovered feeds the crawl queue and both scan queues with what
// the page revealed.
func (w *Worker) enqueueDiscovered(ctx context.Context, parentStatus int, discovered discoveredTargets) {
	// Element-discovered onion URLs. Links extracted from an error page
	// rank lower; error-page navigation is mostly boilerplate.
	elementPriority := domain.PriorityElementDiscovered
	if parentStatus >= 400 {
		elementPriority = domain.PriorityErrorPageLink
	}

	var urls, domains []string
	for _, link := range discovered.links {
		if link.Domain == "" {
			continue
		}
		normalized, err := onion.NormalizeURL(link.URL)
		if err != nil {
			continue
		}
		urls = append(urls, normalized)
		domains = append(domains, link.Domain)
	}
	if len(urls) > 0 {
		if err := w.queue.Add(ctx, urls, domains, elementPriority); err != nil {
			w.log.Error("failed to enqueue element urls", "count", len(urls), "error", err.Error())
		}
	}

	// Domains referenced only in raw text enter at a higher priority: a
	// prose mention is a strong signal the service is worth reaching.
	var textURLs, textDomains []string
	for _, addr := range discovered.textDomains {
		textURLs = append(textURLs, onion.BaseURL(addr))
		textDomains = append(textDomains, addr)
	}
	if len(textURLs) > 0 {
		if err := w.queue.Add(ctx, textURLs, textDomains, domain.PriorityTextDiscovered); err != nil {
			w.log.Error("failed to enqueue text urls", "count", len(textURLs), "error", err.Error())
		}
	}

	// Every discovered domain is a recon candidate.
	for _, addr := range discovered.allDomains {
		w.buffer.BufferSeed(domain.ScanSeed{
			Domain:   addr,
			Profile:  domain.ProfileStandard,
			Priority: scanSeedPriority,
		})
	}
}

// bufferLog appends one crawl attempt to the write buffer.
func (w *Worker) bufferLog(item domain.QueueItem, success bool, errMsg *string) {
	w.buffer.BufferLog(domain.CrawlLog{
		URL:      item.URL,
		Domain:   item.Domain,
		WorkerID: w.id,
		Success:  success,
		Error:    errMsg,
	})
}

// isHTML reports whether a Content-Type denotes an HTML document.
func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// pathOf returns the path component of a URL, defaulting to "/".
func pathOf(rawURL string) string {
	if i := strings.Index(rawURL, "://"); i >= 0 {
		rest := rawURL[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			return rest[j:]
		}
	}
	return "/"
}

// nonEmpty returns a pointer to s, or nil when s is empty.
func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Pool runs a set of crawl workers over one shared prefetcher and write
// buffer.
type Pool struct {
	workers    []*Worker
	prefetcher *Prefetcher
	buffer     *WriteBuffer
	log        logger.Interface
}

// NewPool creates a crawl worker pool.
func NewPool(workers []*Worker, prefetcher *Prefetcher, buffer *WriteBuffer, log logger.Interface) *Pool {
	return &Pool{workers: workers, prefetcher: prefetcher, buffer: buffer, log: log}
}

// Start launches the prefetcher, the write buffer and every worker, then
// blocks until the context is cancelled and all workers drained.
func (p *Pool) Start(ctx context.Context) error {
	p.log.Info("starting crawl pool", "worker_count", len(p.workers))

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		p.prefetcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		p.buffer.Run(ctx)
	}()

	for _, worker := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(worker)
	}

	wg.Wait()
	p.log.Info("crawl pool stopped")

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
