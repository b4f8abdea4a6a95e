// Package domain defines the persisted value types shared by the crawler,
// the scanners and the read API.
package domain

import "time"

// Domain crawl status constants.
const (
	CrawlStatusPending   = "pending"
	CrawlStatusCrawling  = "crawling"
	CrawlStatusCompleted = "completed"
	CrawlStatusFailed    = "failed"
)

// Domain represents a discovered onion service.
type Domain struct {
	ID          int64   `db:"id"          json:"id"`
	Address     string  `db:"address"     json:"address"`
	Title       *string `db:"title"       json:"title,omitempty"`
	Description *string `db:"description" json:"description,omitempty"`

	Active      bool   `db:"active"       json:"active"`
	CrawlStatus string `db:"crawl_status" json:"crawl_status"`
	CrawlCount  int    `db:"crawl_count"  json:"crawl_count"`

	FirstSeen      time.Time  `db:"first_seen"       json:"first_seen"`
	LastCrawled    *time.Time `db:"last_crawled"     json:"last_crawled,omitempty"`
	CrawlStartedAt *time.Time `db:"crawl_started_at" json:"crawl_started_at,omitempty"`
	LastWorkerID   *string    `db:"last_worker_id"   json:"last_worker_id,omitempty"`
}

// Page represents one crawled URL of a domain. ContentHTML is only stored
// when the body is under the HTML retention cap.
type Page struct {
	ID       int64  `db:"id"        json:"id"`
	DomainID int64  `db:"domain_id" json:"domain_id"`
	URL      string `db:"url"       json:"url"`
	Path     string `db:"path"      json:"path"`

	Title           *string `db:"title"            json:"title,omitempty"`
	ContentText     *string `db:"content_text"     json:"content_text,omitempty"`
	ContentHTML     *string `db:"content_html"     json:"content_html,omitempty"`
	MetaDescription *string `db:"meta_description" json:"meta_description,omitempty"`
	H1              *string `db:"h1"               json:"h1,omitempty"`
	Language        *string `db:"language"         json:"language,omitempty"`

	StatusCode    *int    `db:"status_code"    json:"status_code,omitempty"`
	ContentLength *int64  `db:"content_length" json:"content_length,omitempty"`
	ContentType   *string `db:"content_type"   json:"content_type,omitempty"`
	Accessible    bool    `db:"accessible"     json:"accessible"`

	CrawlCount  int        `db:"crawl_count"  json:"crawl_count"`
	LastCrawled *time.Time `db:"last_crawled" json:"last_crawled,omitempty"`
}

// Link type constants.
const (
	LinkTypeOnionInternal = "onion-internal"
	LinkTypeOnionExternal = "onion-external"
	LinkTypeClearnet      = "clearnet"
	LinkTypeOther         = "other"
)

// Link source constants. Element links come from anchors and other HTML
// elements; text links are onion addresses spotted in raw page text.
const (
	LinkSourceElement = "element"
	LinkSourceText    = "text"
)
