package domain

import "time"

// Queue entry status constants, shared by the crawl queue and both scan queues.
const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusCompleted  = "completed"
	QueueStatusFailed     = "failed"
)

// Crawl queue priorities. Lower numbers dispatch first. Onion domains that
// only appear in raw page text outrank element-discovered links because they
// are typically referenced in prose and would otherwise never be reached.
const (
	PriorityTextDiscovered    = 50
	PriorityElementDiscovered = 100
	PriorityErrorPageLink     = 150
)

// QueueItem is one crawl queue row.
type QueueItem struct {
	ID         int64     `db:"id"          json:"id"`
	URL        string    `db:"url"         json:"url"`
	Domain     string    `db:"domain"      json:"domain"`
	Status     string    `db:"status"      json:"status"`
	Priority   int       `db:"priority"    json:"priority"`
	Attempts   int       `db:"attempts"    json:"attempts"`
	WorkerID   *string   `db:"worker_id"   json:"worker_id,omitempty"`
	InsertedAt time.Time `db:"inserted_at" json:"inserted_at"`
}

// Scan profile names, shared by the port-scan and dir-scan queues.
const (
	ProfileQuick    = "quick"
	ProfileStandard = "standard"
	ProfileFull     = "full"
)

// ScanJob is a per-domain job row from scan_queue or dir_scan_queue.
type ScanJob struct {
	ID         int64     `db:"id"          json:"id"`
	Domain     string    `db:"domain"      json:"domain"`
	Profile    string    `db:"profile"     json:"profile"`
	Status     string    `db:"status"      json:"status"`
	Priority   int       `db:"priority"    json:"priority"`
	Attempts   int       `db:"attempts"    json:"attempts"`
	WorkerID   *string   `db:"worker_id"   json:"worker_id,omitempty"`
	InsertedAt time.Time `db:"inserted_at" json:"inserted_at"`
}

// ScanSeed is a pending scan queue insert, coalesced by the write buffer
// before it reaches the database.
type ScanSeed struct {
	Domain   string
	Profile  string
	Priority int
}

// CrawlLog is one append-only crawl attempt record.
type CrawlLog struct {
	ID        int64     `db:"id"         json:"id"`
	URL       string    `db:"url"        json:"url"`
	Domain    string    `db:"domain"     json:"domain"`
	WorkerID  string    `db:"worker_id"  json:"worker_id"`
	Success   bool      `db:"success"    json:"success"`
	Error     *string   `db:"error"      json:"error,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Lock subsystem names. At most one live lock exists per (subsystem, domain).
const (
	SubsystemCrawl    = "crawl"
	SubsystemDirScan  = "dir-scan"
	SubsystemPortScan = "port-scan"
)
