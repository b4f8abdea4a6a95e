package onion

import (
	"errors"
	"strings"
	"testing"
)

func addr(c byte) string {
	return strings.Repeat(string(c), 56) + ".onion"
}

func TestValidAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid v3", addr('a'), true},
		{"valid with digits", strings.Repeat("a2b7", 14) + ".onion", true},
		{"uppercase normalizes", strings.ToUpper(addr('a')), true},
		{"too short", "short.onion", false},
		{"invalid base32 chars", strings.Repeat("1", 56) + ".onion", false},
		{"clearnet", "example.com", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidAddress(tt.input); got != tt.want {
				t.Errorf("ValidAddress(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractAddress(t *testing.T) {
	a := addr('a')

	got, err := ExtractAddress("http://" + a + "/some/path?x=1")
	if err != nil {
		t.Fatalf("ExtractAddress() error = %v", err)
	}
	if got != a {
		t.Errorf("ExtractAddress() = %q, want %q", got, a)
	}

	if _, err := ExtractAddress("http://example.com/"); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("clearnet url error = %v, want ErrInvalidAddress", err)
	}
	if _, err := ExtractAddress(""); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("empty input error = %v, want ErrEmptyInput", err)
	}
}

func TestNormalizeURL(t *testing.T) {
	a := addr('a')

	tests := []struct {
		input string
		want  string
	}{
		{"http://" + strings.ToUpper(a) + "", "http://" + a + "/"},
		{"https://" + a + "/page#frag", "http://" + a + "/page"},
		{"http://" + a + "/a/b?q=1", "http://" + a + "/a/b?q=1"},
	}

	for _, tt := range tests {
		got, err := NormalizeURL(tt.input)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	if _, err := NormalizeURL("http://example.com/"); err == nil {
		t.Error("NormalizeURL() expected error for clearnet host")
	}
}

func TestFindAddresses_DedupFirstAppearance(t *testing.T) {
	a, b := addr('a'), addr('b')
	text := "see http://" + a + "/x then " + b + " and again http://" + a + "/"

	got := FindAddresses(text)
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("FindAddresses() = %v, want [%s %s]", got, a, b)
	}
}

func TestFindAddresses_None(t *testing.T) {
	if got := FindAddresses("no onions here, just example.com"); got != nil {
		t.Errorf("FindAddresses() = %v, want nil", got)
	}
}
