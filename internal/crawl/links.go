package crawl

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractLinks returns the absolute http(s) URLs of all anchors in body
// that fall within the allowed domain scope. Fragments are dropped so
// the visited set dedups anchor variants of the same page.
func ExtractLinks(pageURL string, body []byte, allowedDomains []string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if !DomainAllowed(abs.Hostname(), allowedDomains) {
			return
		}
		abs.Fragment = ""
		link := abs.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links, nil
}

// DomainAllowed reports whether host matches one of the allowed domains
// exactly or as a subdomain. An empty allow-list admits nothing.
func DomainAllowed(host string, allowedDomains []string) bool {
	host = strings.ToLower(host)
	for _, domain := range allowedDomains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
