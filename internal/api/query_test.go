package api

import (
	"testing"

	"github.com/jonesrussell/torcrawl/internal/database"
)

func TestParseQuery_AllTags(t *testing.T) {
	params := ParseQuery(`marketplace http:"server: nginx" port:80 title:"Home"`)

	want := database.SearchParams{
		Text:        "marketplace",
		Title:       "Home",
		Header:      "server",
		HeaderValue: "nginx",
		Port:        80,
	}
	if params != want {
		t.Errorf("ParseQuery() = %+v, want %+v", params, want)
	}
}

func TestParseQuery_FreeTextOnly(t *testing.T) {
	params := ParseQuery("  hidden wiki  ")
	if params.Text != "hidden wiki" {
		t.Errorf("Text = %q, want trimmed free text", params.Text)
	}
	if params.Title != "" || params.Header != "" || params.Port != 0 {
		t.Errorf("unexpected tag fields in %+v", params)
	}
}

func TestParseQuery_CaseInsensitiveTags(t *testing.T) {
	params := ParseQuery(`TITLE:"Login" HTTP:"Server" PORT:22`)

	if params.Title != "Login" {
		t.Errorf("Title = %q", params.Title)
	}
	if params.Header != "server" || params.HeaderValue != "" {
		t.Errorf("Header = %q %q, want lowercased server with no value", params.Header, params.HeaderValue)
	}
	if params.Port != 22 {
		t.Errorf("Port = %d", params.Port)
	}
}

func TestParseQuery_WhitespaceAfterColon(t *testing.T) {
	params := ParseQuery(`title: "Forum" port: 8080`)
	if params.Title != "Forum" || params.Port != 8080 {
		t.Errorf("ParseQuery() = %+v", params)
	}
}

func TestParseQuery_HeaderWithoutValue(t *testing.T) {
	params := ParseQuery(`http:"x-powered-by"`)
	if params.Header != "x-powered-by" || params.HeaderValue != "" {
		t.Errorf("ParseQuery() = %+v", params)
	}
}

// A port outside 1-65535 is not consumed as a tag and stays in the free text.
func TestParseQuery_InvalidPortStaysInText(t *testing.T) {
	params := ParseQuery("port:99999 market")
	if params.Port != 0 {
		t.Errorf("Port = %d, want 0", params.Port)
	}
	if params.Text != "port:99999 market" {
		t.Errorf("Text = %q, want the tag left in place", params.Text)
	}
}

func TestFormatQuery_RoundTrip(t *testing.T) {
	tests := []database.SearchParams{
		{Text: "marketplace", Title: "Home", Header: "server", HeaderValue: "nginx", Port: 80},
		{Title: "Login Page"},
		{Header: "x-powered-by"},
		{Port: 443, Text: "shop"},
		{Text: "just words"},
		{},
	}

	for _, params := range tests {
		got := ParseQuery(FormatQuery(params))
		if got != params {
			t.Errorf("round trip of %+v produced %+v (query %q)", params, got, FormatQuery(params))
		}
	}
}

func TestFormatQuery_Empty(t *testing.T) {
	if got := FormatQuery(database.SearchParams{}); got != "" {
		t.Errorf("FormatQuery(zero) = %q, want empty", got)
	}
}
