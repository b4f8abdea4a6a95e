package domain

import "time"

// Port state constants.
const (
	PortStateOpen     = "open"
	PortStateClosed   = "closed"
	PortStateFiltered = "filtered"
	PortStateTimeout  = "timeout"
)

// PortScan is one probe result for a (domain, port) pair.
type PortScan struct {
	ID         int64     `db:"id"          json:"id"`
	Domain     string    `db:"domain"      json:"domain"`
	Port       int       `db:"port"        json:"port"`
	State      string    `db:"state"       json:"state"`
	Banner     *string   `db:"banner"      json:"banner,omitempty"`
	Service    *string   `db:"service"     json:"service,omitempty"`
	Version    *string   `db:"version"     json:"version,omitempty"`
	Confidence *float64  `db:"confidence"  json:"confidence,omitempty"`
	ScannedAt  time.Time `db:"scanned_at"  json:"scanned_at"`
}

// DetectedService is the per-(domain, port) summary row kept for port scans
// whose banner matched a service signature.
type DetectedService struct {
	ID         int64     `db:"id"         json:"id"`
	Domain     string    `db:"domain"     json:"domain"`
	Port       int       `db:"port"       json:"port"`
	Service    string    `db:"service"    json:"service"`
	Version    *string   `db:"version"    json:"version,omitempty"`
	Confidence float64   `db:"confidence" json:"confidence"`
	DetectedAt time.Time `db:"detected_at" json:"detected_at"`
}

// Interest categories assigned by the dir-scan classifier.
const (
	CategoryCredentialsFile    = "credentials-file"
	CategorySourceControl      = "source-control"
	CategoryAdminPanel         = "admin-panel"
	CategoryServerInfo         = "server-info"
	CategoryBackupFile         = "backup-file"
	CategoryLogFile            = "log-file"
	CategoryDatabaseFile       = "database-file"
	CategoryConfigurationFile  = "configuration-file"
	CategoryRobotsSitemap      = "robots-sitemap"
	CategorySensitiveDirectory = "sensitive-directory"
)

// DirScanResult is one path probe result.
type DirScanResult struct {
	ID             int64     `db:"id"               json:"id"`
	Domain         string    `db:"domain"           json:"domain"`
	Path           string    `db:"path"             json:"path"`
	StatusCode     int       `db:"status_code"      json:"status_code"`
	ContentLength  int64     `db:"content_length"   json:"content_length"`
	ContentType    *string   `db:"content_type"     json:"content_type,omitempty"`
	ResponseTimeMs int64     `db:"response_time_ms" json:"response_time_ms"`
	ServerHeader   *string   `db:"server_header"    json:"server_header,omitempty"`
	RedirectURL    *string   `db:"redirect_url"     json:"redirect_url,omitempty"`
	BodySnippet    *string   `db:"body_snippet"     json:"body_snippet,omitempty"`
	IsInteresting  bool      `db:"is_interesting"   json:"is_interesting"`
	InterestReason *string   `db:"interest_reason"  json:"interest_reason,omitempty"`
	Category       *string   `db:"category"         json:"category,omitempty"`
	ScannedAt      time.Time `db:"scanned_at"       json:"scanned_at"`
}
