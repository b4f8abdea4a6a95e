package extractor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jonesrussell/torcrawl/internal/domain"
)

func onionAddr(c byte) string {
	return strings.Repeat(string(c), 56) + ".onion"
}

func TestExtract_Metadata(t *testing.T) {
	base := "http://" + onionAddr('a') + "/"
	body := `<html lang="en"><head>
		<title>Hidden Wiki</title>
		<meta name="description" content="A link directory">
	</head><body><h1>Welcome</h1><p>Some content here</p></body></html>`

	result, err := Extract(base, []byte(body))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if result.Title != "Hidden Wiki" {
		t.Errorf("Title = %q, want Hidden Wiki", result.Title)
	}
	if result.MetaDescription != "A link directory" {
		t.Errorf("MetaDescription = %q", result.MetaDescription)
	}
	if result.Language != "en" {
		t.Errorf("Language = %q, want en", result.Language)
	}
	if len(result.H1s) != 1 || result.H1s[0] != "Welcome" {
		t.Errorf("H1s = %v", result.H1s)
	}
	if !strings.Contains(result.ContentText, "Some content here") {
		t.Errorf("ContentText = %q", result.ContentText)
	}
}

func TestExtract_ClassifiesLinkTargets(t *testing.T) {
	self := onionAddr('a')
	other := onionAddr('b')
	base := "http://" + self + "/"

	body := fmt.Sprintf(`<html><body>
		<a href="/about">About</a>
		<a href="http://%s/">Friend</a>
		<a href="https://example.com/">Clearnet</a>
		<a href="#top">Anchor</a>
		<a href="mailto:x@example.com">Mail</a>
	</body></html>`, other)

	result, err := Extract(base, []byte(body))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(result.Links) != 3 {
		t.Fatalf("Links = %d, want 3 (fragment and mailto skipped)", len(result.Links))
	}

	if result.Links[0].Type != domain.LinkTypeOnionInternal || result.Links[0].Domain != self {
		t.Errorf("relative link = %+v, want internal to %s", result.Links[0], self)
	}
	if result.Links[0].URL != "http://"+self+"/about" {
		t.Errorf("relative link resolved to %q", result.Links[0].URL)
	}
	if result.Links[1].Type != domain.LinkTypeOnionExternal || result.Links[1].Domain != other {
		t.Errorf("onion link = %+v, want external to %s", result.Links[1], other)
	}
	if result.Links[2].Type != domain.LinkTypeClearnet || result.Links[2].Domain != "" {
		t.Errorf("clearnet link = %+v", result.Links[2])
	}
}

// Addresses mentioned only in prose must surface as text-only discoveries,
// distinct from element-discovered domains.
func TestExtract_TextOnlyDomains(t *testing.T) {
	self := onionAddr('a')
	linked := onionAddr('b')
	textOnly := onionAddr('c')

	body := fmt.Sprintf(`<html><body>
		<a href="http://%s/">friend</a>
		<p>Visit http://%s/forum in text but no anchor</p>
	</body></html>`, linked, textOnly)

	result, err := Extract("http://"+self+"/", []byte(body))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(result.OnionDomains) != 2 {
		t.Fatalf("OnionDomains = %v, want both addresses", result.OnionDomains)
	}
	if len(result.TextOnlyDomains) != 1 || result.TextOnlyDomains[0] != textOnly {
		t.Errorf("TextOnlyDomains = %v, want [%s]", result.TextOnlyDomains, textOnly)
	}
}

func TestExtract_FormAndIframeTargets(t *testing.T) {
	self := onionAddr('a')
	body := `<html><body>
		<form action="/login"><input type="text"></form>
		<iframe src="/embedded"></iframe>
	</body></html>`

	result, err := Extract("http://"+self+"/", []byte(body))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(result.Links) != 2 {
		t.Fatalf("Links = %d, want 2", len(result.Links))
	}
}

func TestExtract_InvalidOnionHostIsOther(t *testing.T) {
	self := onionAddr('a')
	body := `<html><body><a href="http://short.onion/">bad</a></body></html>`

	result, err := Extract("http://"+self+"/", []byte(body))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(result.Links) != 1 || result.Links[0].Type != domain.LinkTypeOther {
		t.Errorf("Links = %+v, want one link of type other", result.Links)
	}
	if len(result.OnionDomains) != 0 {
		t.Errorf("OnionDomains = %v, want none", result.OnionDomains)
	}
}
