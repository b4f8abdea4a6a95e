package scanner

import (
	"regexp"
	"strings"
)

// Match is one signature hit against a banner.
type Match struct {
	Service    string
	Version    string
	Confidence float64
}

// signature pairs a banner pattern with the service it identifies. The first
// capture group, when present, is the version.
type signature struct {
	pattern    *regexp.Regexp
	service    string
	confidence float64
}

// signatures are ordered most-specific first; the first hit wins.
var signatures = []signature{
	{regexp.MustCompile(`(?i)SSH-2\.0-OpenSSH[_-]([\w.]+)`), "openssh", 0.95},
	{regexp.MustCompile(`(?i)SSH-[\d.]+-([\w.-]+)`), "ssh", 0.9},
	{regexp.MustCompile(`(?i)Server:\s*nginx/?([\d.]*)`), "nginx", 0.9},
	{regexp.MustCompile(`(?i)Server:\s*Apache/?([\d.]*)`), "apache", 0.9},
	{regexp.MustCompile(`(?i)Server:\s*lighttpd/?([\d.]*)`), "lighttpd", 0.9},
	{regexp.MustCompile(`(?i)Server:\s*Caddy`), "caddy", 0.85},
	{regexp.MustCompile(`(?i)^220[ -].*FTP`), "ftp", 0.85},
	{regexp.MustCompile(`(?i)^220[ -].*(?:SMTP|ESMTP|Postfix|Exim)`), "smtp", 0.85},
	{regexp.MustCompile(`(?i)^\+OK.*POP3`), "pop3", 0.85},
	{regexp.MustCompile(`(?i)^\* OK.*IMAP`), "imap", 0.85},
	{regexp.MustCompile(`-ERR unknown command|\$\d+\r\nredis_version:([\d.]+)`), "redis", 0.9},
	{regexp.MustCompile(`(?i)([\d.]+)-MariaDB`), "mariadb", 0.9},
	{regexp.MustCompile(`mysql_native_password|caching_sha2_password`), "mysql", 0.85},
	{regexp.MustCompile(`(?i)^HTTP/[\d.]+ \d{3}`), "http", 0.6},
}

// MatchBanner runs a banner through the signature set. The second return is
// false when nothing matched.
func MatchBanner(banner string) (Match, bool) {
	banner = strings.TrimSpace(banner)
	if banner == "" {
		return Match{}, false
	}

	for _, sig := range signatures {
		m := sig.pattern.FindStringSubmatch(banner)
		if m == nil {
			continue
		}

		match := Match{Service: sig.service, Confidence: sig.confidence}
		if len(m) > 1 {
			match.Version = m[1]
		}
		return match, true
	}

	return Match{}, false
}

// httpProbePorts are ports where the service expects the client to speak
// first. Probing them with a minimal request elicits the header banner.
var httpProbePorts = map[int]bool{
	80: true, 443: true, 3000: true, 3128: true, 5000: true,
	8000: true, 8080: true, 8081: true, 8443: true, 8888: true,
	9000: true, 9090: true,
}

// IsHTTPPort reports whether a port conventionally serves HTTP.
func IsHTTPPort(port int) bool {
	return httpProbePorts[port]
}
