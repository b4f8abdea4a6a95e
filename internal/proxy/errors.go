package proxy

import "strings"

// connectionFailurePatterns are the transport-level error markers that mean
// the domain itself is unreachable, not just one URL. Matching is
// case-insensitive substring. The crawler uses this to cascade a failure to
// every pending URL of the domain.
var connectionFailurePatterns = []string{
	"econnrefused",
	"enotfound",
	"etimedout",
	"econnreset",
	"ehostunreach",
	"enetunreach",
	"socket hang up",
	"socks5 proxy rejected",
	"general socks server failure",
	"host unreachable",
	"network is unreachable",
	"connection refused",
	"no such host",
	"i/o timeout",
	"connection reset by peer",
}

// IsConnectionFailure reports whether an error indicates the target domain
// is down at the transport level.
func IsConnectionFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range connectionFailurePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// IsRetryableSocksFailure reports whether an error is a transient SOCKS
// failure the port scanner should skip without recording a state.
func IsRetryableSocksFailure(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "general socks server failure")
}
