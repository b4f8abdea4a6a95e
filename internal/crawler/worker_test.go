package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonesrussell/torcrawl/internal/config"
	"github.com/jonesrussell/torcrawl/internal/database"
	"github.com/jonesrussell/torcrawl/internal/domain"
	"github.com/jonesrussell/torcrawl/internal/logger"
	"github.com/jonesrussell/torcrawl/internal/proxy"
)

func onionAddr(c byte) string {
	return strings.Repeat(string(c), 56) + ".onion"
}

type fakeQueue struct {
	mu             sync.Mutex
	completed      map[string]bool
	failedMsgs     map[string]string
	cascaded       []string
	returned       []string
	added          map[int][]string // priority -> urls
	cascadeCount   int64
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		completed:  make(map[string]bool),
		failedMsgs: make(map[string]string),
		added:      make(map[int][]string),
	}
}

func (f *fakeQueue) MarkCompleted(_ context.Context, url string, success bool, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[url] = success
	if errMsg != nil {
		f.failedMsgs[url] = *errMsg
	}
	return nil
}

func (f *fakeQueue) MarkDomainConnectionFailed(_ context.Context, dom string, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cascaded = append(f.cascaded, dom)
	return f.cascadeCount, nil
}

func (f *fakeQueue) ReturnToPending(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.returned = append(f.returned, url)
	return nil
}

func (f *fakeQueue) Add(_ context.Context, urls []string, _ []string, priority int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added[priority] = append(f.added[priority], urls...)
	return nil
}

type fakeLocks struct {
	mu       sync.Mutex
	denied   bool
	acquired []string
	released []string
}

func (f *fakeLocks) Acquire(_ context.Context, subsystem, dom, _ string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied {
		return false, nil
	}
	f.acquired = append(f.acquired, subsystem+"/"+dom)
	return true, nil
}

func (f *fakeLocks) Release(_ context.Context, subsystem, dom, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, subsystem+"/"+dom)
	return nil
}

func (f *fakeLocks) Extend(context.Context, string, string, string, time.Duration) error {
	return nil
}

type fakeDomains struct {
	mu       sync.Mutex
	statuses []string
}

func (f *fakeDomains) UpdateStatus(_ context.Context, _, status string, _ *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	results []database.CrawlResult
}

func (f *fakeStore) SaveCrawl(_ context.Context, result database.CrawlResult) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return 1, 1, nil
}

type fakeFetcher struct {
	resp *proxy.Response
	err  error
}

func (f *fakeFetcher) Get(context.Context, string, proxy.RequestOptions) (*proxy.Response, error) {
	return f.resp, f.err
}

type fakeBuffer struct {
	mu    sync.Mutex
	logs  []domain.CrawlLog
	seeds []domain.ScanSeed
}

func (f *fakeBuffer) BufferLog(entry domain.CrawlLog) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, entry)
}

func (f *fakeBuffer) BufferSeed(seed domain.ScanSeed) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeds = append(f.seeds, seed)
}

type staticTaker struct{ items []domain.QueueItem }

func (s *staticTaker) Take(context.Context, int) []domain.QueueItem { return s.items }

type workerFixture struct {
	worker  *Worker
	queue   *fakeQueue
	locks   *fakeLocks
	domains *fakeDomains
	store   *fakeStore
	buffer  *fakeBuffer
}

func newWorkerFixture(fetcher PageFetcher) *workerFixture {
	f := &workerFixture{
		queue:   newFakeQueue(),
		locks:   &fakeLocks{},
		domains: &fakeDomains{},
		store:   &fakeStore{},
		buffer:  &fakeBuffer{},
	}

	cfg := config.CrawlerConfig{
		Workers:      1,
		CrawlDelay:   time.Millisecond,
		BatchSize:    3,
		HTMLStoreCap: 100 << 10,
		LockLease:    10 * time.Minute,
	}

	f.worker = NewWorker("worker-1", cfg, f.queue, f.locks, f.domains, f.store,
		fetcher, f.buffer, &staticTaker{}, logger.NewNoop())

	return f
}

func htmlResponse(status int, body string) *proxy.Response {
	return &proxy.Response{
		StatusCode:  status,
		Body:        []byte(body),
		ContentType: "text/html; charset=utf-8",
	}
}

func TestWorker_CrawlPersistsAndQueuesDiscoveries(t *testing.T) {
	target := onionAddr('b')
	textOnly := onionAddr('c')
	body := fmt.Sprintf(`<html><head><title>Market</title></head><body>
		<a href="http://%s/">friend</a>
		<p>Visit http://%s/forum in text but no anchor</p>
	</body></html>`, target, textOnly)

	f := newWorkerFixture(&fakeFetcher{resp: htmlResponse(200, body)})

	addr := onionAddr('a')
	item := domain.QueueItem{URL: "http://" + addr + "/", Domain: addr}

	if err := f.worker.processURL(context.Background(), item); err != nil {
		t.Fatalf("processURL() error = %v", err)
	}

	if len(f.store.results) != 1 {
		t.Fatalf("SaveCrawl calls = %d, want 1", len(f.store.results))
	}
	result := f.store.results[0]
	if result.Address != addr {
		t.Errorf("saved address = %s, want %s", result.Address, addr)
	}
	if result.Title == nil || *result.Title != "Market" {
		t.Errorf("saved title = %v, want Market", result.Title)
	}
	if len(result.Links) != 1 {
		t.Fatalf("saved links = %d, want 1", len(result.Links))
	}

	// Element-discovered link queues at standard priority.
	if got := f.queue.added[domain.PriorityElementDiscovered]; len(got) != 1 {
		t.Errorf("element urls at priority 100 = %v, want one", got)
	}
	// Text-only domain queues its base URL at text priority.
	textURLs := f.queue.added[domain.PriorityTextDiscovered]
	if len(textURLs) != 1 || textURLs[0] != "http://"+textOnly+"/" {
		t.Errorf("text urls at priority 50 = %v, want base url of %s", textURLs, textOnly)
	}

	// Both discovered domains become scan seeds.
	if len(f.buffer.seeds) != 2 {
		t.Errorf("buffered seeds = %d, want 2", len(f.buffer.seeds))
	}

	if success, ok := f.queue.completed[item.URL]; !ok || !success {
		t.Errorf("url not marked completed: %v", f.queue.completed)
	}
	if len(f.locks.released) != 1 {
		t.Errorf("lock releases = %d, want 1", len(f.locks.released))
	}
}

func TestWorker_ConnectionFailureCascades(t *testing.T) {
	f := newWorkerFixture(&fakeFetcher{err: errors.New("proxy GET: connection refused")})
	f.queue.cascadeCount = 5

	addr := onionAddr('d')
	item := domain.QueueItem{URL: "http://" + addr + "/", Domain: addr}

	if err := f.worker.processURL(context.Background(), item); err != nil {
		t.Fatalf("processURL() error = %v", err)
	}

	if len(f.queue.cascaded) != 1 || f.queue.cascaded[0] != addr {
		t.Fatalf("cascaded domains = %v, want [%s]", f.queue.cascaded, addr)
	}
	// The cascade already failed the row; no separate completion.
	if _, ok := f.queue.completed[item.URL]; ok {
		t.Error("url marked completed despite cascade")
	}
	if len(f.buffer.logs) != 1 || f.buffer.logs[0].Success {
		t.Errorf("crawl log = %+v, want one failed entry", f.buffer.logs)
	}
}

func TestWorker_NonConnectionErrorFailsSingleURL(t *testing.T) {
	f := newWorkerFixture(&fakeFetcher{err: errors.New("proxy GET: unexpected EOF")})

	addr := onionAddr('e')
	item := domain.QueueItem{URL: "http://" + addr + "/", Domain: addr}

	if err := f.worker.processURL(context.Background(), item); err != nil {
		t.Fatalf("processURL() error = %v", err)
	}

	if len(f.queue.cascaded) != 0 {
		t.Errorf("cascaded = %v, want none", f.queue.cascaded)
	}
	if success, ok := f.queue.completed[item.URL]; !ok || success {
		t.Errorf("url completion = %v, want failed", f.queue.completed)
	}
}

func TestWorker_LockContentionReturnsURL(t *testing.T) {
	f := newWorkerFixture(&fakeFetcher{resp: htmlResponse(200, "<html></html>")})
	f.locks.denied = true

	addr := onionAddr('f')
	item := domain.QueueItem{URL: "http://" + addr + "/", Domain: addr}

	if err := f.worker.processURL(context.Background(), item); err != nil {
		t.Fatalf("processURL() error = %v", err)
	}

	if len(f.queue.returned) != 1 || f.queue.returned[0] != item.URL {
		t.Fatalf("returned urls = %v, want [%s]", f.queue.returned, item.URL)
	}
	if len(f.store.results) != 0 {
		t.Error("SaveCrawl called despite lock contention")
	}
}

func TestWorker_ErrorPagePersistsWithStatusPrefix(t *testing.T) {
	target := onionAddr('b')
	body := fmt.Sprintf(`<html><head><title>Not Found</title></head><body>
		<a href="http://%s/">home</a></body></html>`, target)

	f := newWorkerFixture(&fakeFetcher{resp: htmlResponse(404, body)})

	addr := onionAddr('a')
	item := domain.QueueItem{URL: "http://" + addr + "/missing", Domain: addr}

	if err := f.worker.processURL(context.Background(), item); err != nil {
		t.Fatalf("processURL() error = %v", err)
	}

	if len(f.store.results) != 1 {
		t.Fatalf("SaveCrawl calls = %d, want 1", len(f.store.results))
	}
	title := f.store.results[0].Title
	if title == nil || *title != "[404] Not Found" {
		t.Errorf("saved title = %v, want [404] Not Found", title)
	}

	// Links extracted from error pages queue at reduced priority.
	if got := f.queue.added[domain.PriorityErrorPageLink]; len(got) != 1 {
		t.Errorf("error-page urls at priority 150 = %v, want one", got)
	}
	if got := f.queue.added[domain.PriorityElementDiscovered]; len(got) != 0 {
		t.Errorf("urls at priority 100 = %v, want none", got)
	}
}

func TestWorker_InvalidURLFailsWithExplicitError(t *testing.T) {
	f := newWorkerFixture(&fakeFetcher{resp: htmlResponse(200, "<html></html>")})

	item := domain.QueueItem{URL: "http://not-an-onion.example.com/", Domain: "not-an-onion.example.com"}

	if err := f.worker.processURL(context.Background(), item); err != nil {
		t.Fatalf("processURL() error = %v", err)
	}

	if success, ok := f.queue.completed[item.URL]; !ok || success {
		t.Errorf("url completion = %v, want failed", f.queue.completed)
	}
	if msg := f.queue.failedMsgs[item.URL]; msg == "" {
		t.Error("failed url has no error message")
	}
}
