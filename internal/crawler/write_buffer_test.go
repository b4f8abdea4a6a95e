package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonesrussell/torcrawl/internal/domain"
	"github.com/jonesrussell/torcrawl/internal/logger"
)

type fakeLogSink struct {
	mu      sync.Mutex
	batches [][]domain.CrawlLog
	failN   int
}

func (f *fakeLogSink) InsertBatch(_ context.Context, logs []domain.CrawlLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return errors.New("insert failed")
	}
	batch := make([]domain.CrawlLog, len(logs))
	copy(batch, logs)
	f.batches = append(f.batches, batch)
	return nil
}

type fakeSeedSink struct {
	mu      sync.Mutex
	batches [][]domain.ScanSeed
	failN   int
}

func (f *fakeSeedSink) Seed(_ context.Context, seeds []domain.ScanSeed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return errors.New("seed failed")
	}
	batch := make([]domain.ScanSeed, len(seeds))
	copy(batch, seeds)
	f.batches = append(f.batches, batch)
	return nil
}

func newTestBuffer(logSink *fakeLogSink, seedSinks ...SeedSink) *WriteBuffer {
	return NewWriteBuffer(logSink, seedSinks, time.Hour, 1000, logger.NewNoop())
}

func TestWriteBuffer_FlushWritesBufferedEntries(t *testing.T) {
	logSink := &fakeLogSink{}
	seedSink := &fakeSeedSink{}
	buf := newTestBuffer(logSink, seedSink)

	buf.BufferLog(domain.CrawlLog{URL: "http://aaa.onion/", Domain: "aaa.onion", Success: true})
	buf.BufferSeed(domain.ScanSeed{Domain: "aaa.onion", Profile: domain.ProfileStandard, Priority: 100})

	buf.Flush(context.Background())

	if len(logSink.batches) != 1 || len(logSink.batches[0]) != 1 {
		t.Fatalf("log batches = %v, want one batch of one", logSink.batches)
	}
	if len(seedSink.batches) != 1 || len(seedSink.batches[0]) != 1 {
		t.Fatalf("seed batches = %v, want one batch of one", seedSink.batches)
	}
}

// A failed flush re-emits all originally buffered entries in original order
// on the next flush.
func TestWriteBuffer_FailedFlushRetainsEntriesInOrder(t *testing.T) {
	logSink := &fakeLogSink{failN: 1}
	buf := newTestBuffer(logSink)

	buf.BufferLog(domain.CrawlLog{URL: "http://aaa.onion/1", Domain: "aaa.onion"})
	buf.BufferLog(domain.CrawlLog{URL: "http://aaa.onion/2", Domain: "aaa.onion"})

	buf.Flush(context.Background())
	if len(logSink.batches) != 0 {
		t.Fatalf("batches after failed flush = %d, want 0", len(logSink.batches))
	}

	buf.Flush(context.Background())
	if len(logSink.batches) != 1 {
		t.Fatalf("batches after retry = %d, want 1", len(logSink.batches))
	}

	got := logSink.batches[0]
	if len(got) != 2 || got[0].URL != "http://aaa.onion/1" || got[1].URL != "http://aaa.onion/2" {
		t.Errorf("retried batch = %+v, want original order", got)
	}
}

// The same domain buffered twice keeps the smallest priority number and
// flushes as exactly one row.
func TestWriteBuffer_SeedDedupKeepsHighestPriority(t *testing.T) {
	logSink := &fakeLogSink{}
	seedSink := &fakeSeedSink{}
	buf := newTestBuffer(logSink, seedSink)

	buf.BufferSeed(domain.ScanSeed{Domain: "aaa.onion", Profile: domain.ProfileStandard, Priority: 100})
	buf.BufferSeed(domain.ScanSeed{Domain: "aaa.onion", Profile: domain.ProfileStandard, Priority: 50})
	buf.BufferSeed(domain.ScanSeed{Domain: "bbb.onion", Profile: domain.ProfileStandard, Priority: 100})

	buf.Flush(context.Background())

	if len(seedSink.batches) != 1 {
		t.Fatalf("seed batches = %d, want 1", len(seedSink.batches))
	}

	batch := seedSink.batches[0]
	if len(batch) != 2 {
		t.Fatalf("deduped batch size = %d, want 2", len(batch))
	}
	if batch[0].Domain != "aaa.onion" || batch[0].Priority != 50 {
		t.Errorf("first seed = %+v, want aaa.onion at priority 50", batch[0])
	}
	if batch[1].Domain != "bbb.onion" {
		t.Errorf("second seed = %+v, want bbb.onion", batch[1])
	}
}

// A failed seed flush must not lose the pre-dedup entries.
func TestWriteBuffer_FailedSeedFlushKeepsDedupLossless(t *testing.T) {
	logSink := &fakeLogSink{}
	seedSink := &fakeSeedSink{failN: 1}
	buf := newTestBuffer(logSink, seedSink)

	buf.BufferSeed(domain.ScanSeed{Domain: "aaa.onion", Profile: domain.ProfileStandard, Priority: 100})
	buf.BufferSeed(domain.ScanSeed{Domain: "aaa.onion", Profile: domain.ProfileStandard, Priority: 50})

	buf.Flush(context.Background())
	buf.Flush(context.Background())

	if len(seedSink.batches) != 1 {
		t.Fatalf("seed batches = %d, want 1", len(seedSink.batches))
	}
	batch := seedSink.batches[0]
	if len(batch) != 1 || batch[0].Priority != 50 {
		t.Errorf("retried batch = %+v, want one aaa.onion row at priority 50", batch)
	}
}

// Every configured sink receives the deduped batch; the crawler feeds both
// the port-scan and dir-scan queues this way.
func TestWriteBuffer_SeedsFanOutToAllSinks(t *testing.T) {
	logSink := &fakeLogSink{}
	scanSink := &fakeSeedSink{}
	dirSink := &fakeSeedSink{}
	buf := newTestBuffer(logSink, scanSink, dirSink)

	buf.BufferSeed(domain.ScanSeed{Domain: "aaa.onion", Profile: domain.ProfileStandard, Priority: 100})
	buf.Flush(context.Background())

	if len(scanSink.batches) != 1 || len(dirSink.batches) != 1 {
		t.Fatalf("fan-out batches = %d/%d, want 1/1", len(scanSink.batches), len(dirSink.batches))
	}
}

func TestWriteBuffer_FullBufferTriggersAsyncFlush(t *testing.T) {
	logSink := &fakeLogSink{}
	buf := NewWriteBuffer(logSink, nil, time.Hour, 2, logger.NewNoop())

	buf.BufferLog(domain.CrawlLog{URL: "http://aaa.onion/1", Domain: "aaa.onion"})
	buf.BufferLog(domain.CrawlLog{URL: "http://aaa.onion/2", Domain: "aaa.onion"})

	deadline := time.After(2 * time.Second)
	for {
		logSink.mu.Lock()
		flushed := len(logSink.batches) > 0
		logSink.mu.Unlock()
		if flushed {
			return
		}
		select {
		case <-deadline:
			t.Fatal("full buffer never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
