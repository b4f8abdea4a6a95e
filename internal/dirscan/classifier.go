package dirscan

import (
	"bytes"
	"strings"

	"github.com/jonesrussell/torcrawl/internal/domain"
)

// snippetLen caps the stored body snippet.
const snippetLen = 512

// lengthDeltaRatio is the relative content-length difference from baseline
// beyond which a response counts as divergent.
const lengthDeltaRatio = 0.10

// Baseline is the not-found fingerprint captured from a random path before
// probing. HTTP error responses are valid baselines.
type Baseline struct {
	StatusCode    int
	ContentLength int64
	Body          []byte
}

// Probe carries everything observed for one path.
type Probe struct {
	Path           string
	StatusCode     int
	ContentLength  int64
	ContentType    string
	ResponseTimeMs int64
	ServerHeader   string
	RedirectURL    string
	Body           []byte
}

// categoryRule maps path substrings to an interest category. First hit wins,
// so more specific rules come first.
type categoryRule struct {
	substrings []string
	category   string
}

var categoryRules = []categoryRule{
	{[]string{".env", ".htpasswd", ".netrc", "id_rsa", ".ssh/"}, domain.CategoryCredentialsFile},
	{[]string{".git/", ".svn/", ".hg/", ".bzr/"}, domain.CategorySourceControl},
	{[]string{"phpinfo", "server-status", "server-info", "info.php", "actuator/", "debug/pprof"}, domain.CategoryServerInfo},
	{[]string{"phpmyadmin", "adminer", "admin", "wp-login", "cpanel", "manager/html", "console"}, domain.CategoryAdminPanel},
	{[]string{".bak", "backup", ".tar.gz", ".zip", "dump.sql"}, domain.CategoryBackupFile},
	{[]string{".log", ".bash_history"}, domain.CategoryLogFile},
	{[]string{".sql", ".sqlite", ".db", ".mdb"}, domain.CategoryDatabaseFile},
	{[]string{"wp-config", "web.config", "settings.py", "config.php", "configuration.php", ".htaccess", ".ini", ".conf"}, domain.CategoryConfigurationFile},
	{[]string{"robots.txt", "sitemap.xml"}, domain.CategoryRobotsSitemap},
	{[]string{".well-known", "swagger", "api-docs", "xmlrpc", ".ds_store", "wp-json"}, domain.CategorySensitiveDirectory},
}

// bodyMarkers are content fingerprints that confirm a category hit beyond
// the path alone.
var bodyMarkers = []struct {
	marker   string
	category string
}{
	{"ref: refs/", domain.CategorySourceControl},
	{"[core]", domain.CategorySourceControl},
	{"DB_PASSWORD", domain.CategoryCredentialsFile},
	{"DB_USERNAME", domain.CategoryCredentialsFile},
	{"APP_KEY", domain.CategoryCredentialsFile},
	{"BEGIN RSA PRIVATE KEY", domain.CategoryCredentialsFile},
	{"BEGIN OPENSSH PRIVATE KEY", domain.CategoryCredentialsFile},
	{"phpinfo()", domain.CategoryServerInfo},
	{"Apache Server Status", domain.CategoryServerInfo},
	{"INSERT INTO", domain.CategoryDatabaseFile},
	{"CREATE TABLE", domain.CategoryDatabaseFile},
}

// Classify scores one probe against the baseline and produces the stored row.
// A 200 whose body is byte-identical to the baseline body is a soft-404 and
// never interesting.
func Classify(dom string, probe Probe, baseline Baseline) domain.DirScanResult {
	result := domain.DirScanResult{
		Domain:         dom,
		Path:           probe.Path,
		StatusCode:     probe.StatusCode,
		ContentLength:  probe.ContentLength,
		ResponseTimeMs: probe.ResponseTimeMs,
	}
	if probe.ContentType != "" {
		ct := probe.ContentType
		result.ContentType = &ct
	}
	if probe.ServerHeader != "" {
		sh := probe.ServerHeader
		result.ServerHeader = &sh
	}
	if probe.RedirectURL != "" {
		ru := probe.RedirectURL
		result.RedirectURL = &ru
	}
	if len(probe.Body) > 0 {
		snippet := string(probe.Body)
		if len(snippet) > snippetLen {
			snippet = snippet[:snippetLen]
		}
		result.BodySnippet = &snippet
	}

	if probe.StatusCode == 200 && len(probe.Body) > 0 && bytes.Equal(probe.Body, baseline.Body) {
		reason := "soft-404"
		result.InterestReason = &reason
		return result
	}

	category, matched := matchCategory(probe)
	if !matched {
		return result
	}
	result.Category = &category

	reason, diverges := divergence(probe, baseline)
	if !diverges {
		return result
	}

	result.IsInteresting = true
	interest := category + ": " + reason
	result.InterestReason = &interest
	return result
}

// matchCategory assigns an interest category from body fingerprints first,
// then the path.
func matchCategory(probe Probe) (string, bool) {
	body := string(probe.Body)
	for _, marker := range bodyMarkers {
		if strings.Contains(body, marker.marker) {
			return marker.category, true
		}
	}

	path := strings.ToLower(probe.Path)
	for _, rule := range categoryRules {
		for _, sub := range rule.substrings {
			if strings.Contains(path, sub) {
				return rule.category, true
			}
		}
	}

	return "", false
}

// divergence reports whether the probe differs from the baseline on status
// class, content length or body content.
func divergence(probe Probe, baseline Baseline) (string, bool) {
	if probe.StatusCode/100 != baseline.StatusCode/100 {
		return "status class differs from baseline", true
	}

	if lengthDiverges(probe.ContentLength, baseline.ContentLength) {
		return "content length differs from baseline", true
	}

	if len(probe.Body) > 0 && !bytes.Equal(probe.Body, baseline.Body) {
		return "body differs from baseline", true
	}

	return "", false
}

// lengthDiverges reports a content-length difference above the threshold.
func lengthDiverges(length, baseline int64) bool {
	if baseline == 0 {
		return length > 0
	}

	delta := length - baseline
	if delta < 0 {
		delta = -delta
	}

	return float64(delta)/float64(baseline) > lengthDeltaRatio
}
