package api

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jonesrussell/torcrawl/internal/database"
)

// Tag patterns. Tag names are case-insensitive and whitespace is tolerated
// after the colon; each matched tag is removed from the expression before
// the next pass.
var (
	titleTagPattern = regexp.MustCompile(`(?i)title:\s*"([^"]*)"`)
	httpTagPattern  = regexp.MustCompile(`(?i)http:\s*"([^"]*)"`)
	portTagPattern  = regexp.MustCompile(`(?i)port:\s*(\d{1,5})`)
)

// ParseQuery parses a search expression into its tagged fields plus the
// free-text remainder. Empty fields stay empty and do not constrain.
func ParseQuery(expr string) database.SearchParams {
	var params database.SearchParams

	if m := titleTagPattern.FindStringSubmatchIndex(expr); m != nil {
		params.Title = strings.TrimSpace(expr[m[2]:m[3]])
		expr = expr[:m[0]] + expr[m[1]:]
	}

	if m := httpTagPattern.FindStringSubmatchIndex(expr); m != nil {
		header, value := splitHeaderTag(expr[m[2]:m[3]])
		params.Header = header
		params.HeaderValue = value
		expr = expr[:m[0]] + expr[m[1]:]
	}

	if m := portTagPattern.FindStringSubmatchIndex(expr); m != nil {
		if port, err := strconv.Atoi(expr[m[2]:m[3]]); err == nil && port >= 1 && port <= 65535 {
			params.Port = port
			expr = expr[:m[0]] + expr[m[1]:]
		}
	}

	params.Text = strings.TrimSpace(expr)
	return params
}

// splitHeaderTag splits the quoted http tag content on its first colon into
// a header name and optional value.
func splitHeaderTag(content string) (header, value string) {
	if i := strings.IndexByte(content, ':'); i >= 0 {
		return strings.ToLower(strings.TrimSpace(content[:i])), strings.TrimSpace(content[i+1:])
	}
	return strings.ToLower(strings.TrimSpace(content)), ""
}

// FormatQuery serializes search params back to the tag grammar. Parsing the
// result yields equivalent params.
func FormatQuery(params database.SearchParams) string {
	var parts []string

	if params.Title != "" {
		parts = append(parts, fmt.Sprintf(`title:"%s"`, params.Title))
	}
	if params.Header != "" {
		if params.HeaderValue != "" {
			parts = append(parts, fmt.Sprintf(`http:"%s: %s"`, params.Header, params.HeaderValue))
		} else {
			parts = append(parts, fmt.Sprintf(`http:"%s"`, params.Header))
		}
	}
	if params.Port > 0 {
		parts = append(parts, fmt.Sprintf("port:%d", params.Port))
	}
	if params.Text != "" {
		parts = append(parts, params.Text)
	}

	return strings.Join(parts, " ")
}
