// Package onion provides onion address validation and extraction. Addresses
// are normalized before queue insertion so that the same service expressed
// differently maps to one domain row.
package onion

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// AddressLength is the length of a v3 onion address without the suffix.
const AddressLength = 56

var (
	// addressPattern matches a bare v3 onion address with suffix.
	addressPattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)

	// textAddressPattern finds onion addresses embedded in free text,
	// with or without a scheme and path.
	textAddressPattern = regexp.MustCompile(`(?:https?://)?([a-z2-7]{56}\.onion)(?:/[^\s"'<>]*)?`)
)

var (
	ErrEmptyInput     = errors.New("onion: empty input")
	ErrInvalidAddress = errors.New("onion: not a valid v3 onion address")
)

// ValidAddress reports whether addr is a syntactically valid v3 onion address.
func ValidAddress(addr string) bool {
	return addressPattern.MatchString(strings.ToLower(addr))
}

// ExtractAddress returns the onion address owning the given URL, lowercased.
// Fails when the URL does not target a valid v3 onion host.
func ExtractAddress(rawURL string) (string, error) {
	if rawURL == "" {
		return "", ErrEmptyInput
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("onion: parse url: %w", err)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		// Bare addresses parse with an empty host.
		host = strings.ToLower(strings.TrimSpace(rawURL))
	}

	if !addressPattern.MatchString(host) {
		return "", ErrInvalidAddress
	}

	return host, nil
}

// BaseURL returns the canonical root URL for an onion address.
func BaseURL(addr string) string {
	return "http://" + strings.ToLower(addr) + "/"
}

// NormalizeURL lowercases the host, forces the http scheme, strips fragments
// and defaults an empty path to "/". Returns an error when the host is not a
// valid onion address.
func NormalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("onion: parse url: %w", err)
	}

	host := strings.ToLower(parsed.Hostname())
	if !addressPattern.MatchString(host) {
		return "", ErrInvalidAddress
	}

	parsed.Scheme = "http"
	parsed.Host = host
	parsed.Fragment = ""
	if parsed.Path == "" {
		parsed.Path = "/"
	}

	return parsed.String(), nil
}

// FindAddresses returns the distinct onion addresses found in free text,
// in first-appearance order.
func FindAddresses(text string) []string {
	matches := textAddressPattern.FindAllStringSubmatch(strings.ToLower(text), -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	addrs := make([]string, 0, len(matches))

	for _, m := range matches {
		addr := m[1]
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}

	return addrs
}
