package browser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Section pages worth ingesting beyond the landing page. Discovery matches
// anchor text and hrefs against these, the same sections the target sites
// use for culture/people/news content.
var DefaultSectionKeywords = []string{
	"career", "about", "people", "team", "our people",
	"news", "insight", "join", "culture", "life",
}

// Well-known paths probed even when the landing page links to none of them.
var DefaultStaticPaths = []string{
	"/careers", "/about-us", "/our-people", "/news",
	"/team", "/people", "/insights", "/join-us",
}

// sectionLinks extracts same-host anchors whose text or href matches a
// section keyword, preserving DOM order and deduplicating.
func sectionLinks(baseURL, html string, keywords []string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	doc.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		text := strings.ToLower(strings.TrimSpace(anchor.Text()))
		lowerHref := strings.ToLower(href)

		matched := false
		for _, keyword := range keywords {
			if strings.Contains(text, keyword) || strings.Contains(lowerHref, keyword) {
				matched = true
				break
			}
		}
		if !matched {
			return
		}

		normalized, ok := normalizeURL(baseURL, href)
		if !ok || seen[normalized] {
			return
		}
		seen[normalized] = true
		out = append(out, normalized)
	})
	return out
}

func staticLinks(baseURL string, paths []string) []string {
	var out []string
	for _, path := range paths {
		if normalized, ok := normalizeURL(baseURL, path); ok {
			out = append(out, normalized)
		}
	}
	return out
}

// normalizeURL resolves href against base and rejects links leaving the
// source's host; this is a closed crawl, not link discovery at large.
func normalizeURL(baseURL, href string) (string, bool) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}

	absolute := base.ResolveReference(ref)
	if absolute.Scheme != "http" && absolute.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(absolute.Host, base.Host) {
		return "", false
	}

	absolute.Fragment = ""
	return strings.TrimRight(absolute.String(), "/"), true
}

func mergeLinks(seen map[string]bool, groups ...[]string) []string {
	var out []string
	for _, group := range groups {
		for _, link := range group {
			if seen[link] {
				continue
			}
			seen[link] = true
			out = append(out, link)
		}
	}
	return out
}
