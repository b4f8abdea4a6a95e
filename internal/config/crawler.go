package config

import (
	"time"

	"github.com/spf13/viper"
)

// Crawler defaults.
const (
	DefaultCrawlWorkers    = 3
	DefaultCrawlDelay      = 2 * time.Second
	DefaultBatchSize       = 3
	DefaultHTMLStoreCap    = 100 << 10 // 100 KB
	DefaultLockLease       = 10 * time.Minute
	DefaultPrefetchBatch   = 50
	DefaultPrefetchLow     = 10
	DefaultPrefetchPeriod  = 5 * time.Second
	DefaultFlushPeriod     = 2 * time.Second
	DefaultWriteBufferSize = 50
)

// CrawlerConfig holds crawler worker settings.
type CrawlerConfig struct {
	Workers         int
	CrawlDelay      time.Duration
	BatchSize       int
	HTMLStoreCap    int64
	LockLease       time.Duration
	PrefetchBatch   int
	PrefetchLow     int
	PrefetchPeriod  time.Duration
	FlushPeriod     time.Duration
	WriteBufferSize int
}

// LoadCrawler loads crawler configuration from viper and environment variables.
func LoadCrawler(v *viper.Viper) CrawlerConfig {
	return CrawlerConfig{
		Workers:         getInt("CRAWLER_WORKERS", "crawler.workers", DefaultCrawlWorkers, v),
		CrawlDelay:      getDuration("CRAWLER_DELAY", "crawler.delay", DefaultCrawlDelay, v),
		BatchSize:       getInt("CRAWLER_BATCH_SIZE", "crawler.batch_size", DefaultBatchSize, v),
		HTMLStoreCap:    int64(getInt("CRAWLER_HTML_CAP", "crawler.html_store_cap", DefaultHTMLStoreCap, v)),
		LockLease:       getDuration("CRAWLER_LOCK_LEASE", "crawler.lock_lease", DefaultLockLease, v),
		PrefetchBatch:   getInt("CRAWLER_PREFETCH_BATCH", "crawler.prefetch_batch", DefaultPrefetchBatch, v),
		PrefetchLow:     getInt("CRAWLER_PREFETCH_LOW", "crawler.prefetch_low", DefaultPrefetchLow, v),
		PrefetchPeriod:  getDuration("CRAWLER_PREFETCH_PERIOD", "crawler.prefetch_period", DefaultPrefetchPeriod, v),
		FlushPeriod:     getDuration("CRAWLER_FLUSH_PERIOD", "crawler.flush_period", DefaultFlushPeriod, v),
		WriteBufferSize: getInt("CRAWLER_WRITE_BUFFER", "crawler.write_buffer_size", DefaultWriteBufferSize, v),
	}
}
