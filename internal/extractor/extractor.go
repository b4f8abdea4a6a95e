// Package extractor parses crawled HTML into links, discovered onion
// domains and page metadata using goquery.
package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/torcrawl/internal/domain"
	"github.com/jonesrussell/torcrawl/internal/onion"
)

// maxAnchorTextLen caps stored anchor text.
const maxAnchorTextLen = 255

// Link is one element-discovered link, resolved against the base URL.
type Link struct {
	URL        string
	Domain     string // onion address when the target is an onion service
	AnchorText string
	Type       string
	Source     string
	Position   int
}

// Result is everything extracted from one HTML page.
type Result struct {
	Title           string
	MetaDescription string
	H1s             []string
	Language        string
	ContentText     string

	// Links are element-discovered edges in document order.
	Links []Link

	// OnionDomains are all distinct onion addresses seen anywhere on the page.
	OnionDomains []string

	// TextOnlyDomains are onion addresses that appear in raw page text but in
	// no HTML element. These are typically referenced in prose or comments.
	TextOnlyDomains []string
}

// Extract parses HTML fetched from baseURL. The base URL must target an
// onion service; relative links resolve against it.
func Extract(baseURL string, body []byte) (*Result, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("extract: parse base url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}

	baseAddr, _ := onion.ExtractAddress(baseURL)

	result := &Result{
		Title:           extractTitle(doc),
		MetaDescription: extractMetaDescription(doc),
		H1s:             extractH1s(doc),
		Language:        extractLanguage(doc),
		ContentText:     extractBodyText(doc),
	}

	result.Links = extractLinks(doc, base, baseAddr)

	elementDomains := make(map[string]struct{})
	for _, link := range result.Links {
		if link.Domain != "" {
			elementDomains[link.Domain] = struct{}{}
		}
	}

	// Raw-text pass over the whole body catches addresses mentioned in
	// prose, comments and scripts that no element references.
	for _, addr := range onion.FindAddresses(string(body)) {
		result.OnionDomains = append(result.OnionDomains, addr)
		if _, inElement := elementDomains[addr]; !inElement {
			result.TextOnlyDomains = append(result.TextOnlyDomains, addr)
		}
	}

	return result, nil
}

// extractTitle extracts the page title, preferring <title> then og:title.
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}

	if ogTitle, exists := doc.Find("meta[property='og:title']").Attr("content"); exists {
		return strings.TrimSpace(ogTitle)
	}

	return ""
}

// extractMetaDescription extracts the description from meta tags.
func extractMetaDescription(doc *goquery.Document) string {
	if desc, exists := doc.Find("meta[name='description']").Attr("content"); exists {
		return strings.TrimSpace(desc)
	}

	if ogDesc, exists := doc.Find("meta[property='og:description']").Attr("content"); exists {
		return strings.TrimSpace(ogDesc)
	}

	return ""
}

// extractH1s returns the trimmed text of every h1 element.
func extractH1s(doc *goquery.Document) []string {
	var h1s []string
	doc.Find("h1").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			h1s = append(h1s, text)
		}
	})
	return h1s
}

// extractLanguage returns the html lang attribute, if any.
func extractLanguage(doc *goquery.Document) string {
	if lang, exists := doc.Find("html").Attr("lang"); exists {
		return strings.TrimSpace(lang)
	}
	return ""
}

// nonContentSelectors lists elements stripped before extracting body text.
const nonContentSelectors = "script, style, nav, header, footer"

// extractBodyText extracts the visible body text with non-content
// elements stripped.
func extractBodyText(doc *goquery.Document) string {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return ""
	}

	body.Find(nonContentSelectors).Remove()
	return strings.Join(strings.Fields(body.Text()), " ")
}

// linkSelectors maps element queries to their href-like attribute.
var linkSelectors = []struct {
	query string
	attr  string
}{
	{"a[href]", "href"},
	{"iframe[src]", "src"},
	{"frame[src]", "src"},
	{"form[action]", "action"},
}

// extractLinks walks anchor-like elements in document order.
func extractLinks(doc *goquery.Document, base *url.URL, baseAddr string) []Link {
	var links []Link
	position := 0

	for _, sel := range linkSelectors {
		doc.Find(sel.query).Each(func(_ int, s *goquery.Selection) {
			raw, _ := s.Attr(sel.attr)
			raw = strings.TrimSpace(raw)
			if raw == "" || strings.HasPrefix(raw, "#") ||
				strings.HasPrefix(raw, "javascript:") || strings.HasPrefix(raw, "mailto:") {
				return
			}

			ref, err := url.Parse(raw)
			if err != nil {
				return
			}
			resolved := base.ResolveReference(ref)
			if resolved.Scheme != "http" && resolved.Scheme != "https" {
				return
			}

			anchor := strings.TrimSpace(s.Text())
			if len(anchor) > maxAnchorTextLen {
				anchor = anchor[:maxAnchorTextLen]
			}

			link := Link{
				URL:        resolved.String(),
				AnchorText: anchor,
				Source:     domain.LinkSourceElement,
				Position:   position,
			}
			link.Type, link.Domain = classifyTarget(resolved, baseAddr)

			links = append(links, link)
			position++
		})
	}

	return links
}

// classifyTarget assigns the link type and target onion address.
func classifyTarget(target *url.URL, baseAddr string) (linkType, onionAddr string) {
	host := strings.ToLower(target.Hostname())

	if strings.HasSuffix(host, ".onion") {
		if !onion.ValidAddress(host) {
			return domain.LinkTypeOther, ""
		}
		if host == baseAddr {
			return domain.LinkTypeOnionInternal, host
		}
		return domain.LinkTypeOnionExternal, host
	}

	if host != "" {
		return domain.LinkTypeClearnet, ""
	}

	return domain.LinkTypeOther, ""
}
