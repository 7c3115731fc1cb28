package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Snapshot holds what is read from a rendered page before it is probed.
type Snapshot struct {
	// Title is the text of the first <title> element.
	Title string

	// Links are the absolute outbound hyperlinks in document order,
	// without fragments and without duplicates.
	Links []string
}

// skippedSchemes are href prefixes that never point at a page.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:", "blob:", "about:"}

// ParseSnapshot extracts the title and outbound links from rendered HTML.
// Relative hrefs are resolved against pageURL, or against a <base href>
// when the document declares one.
func ParseSnapshot(content, pageURL string) (*Snapshot, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}
	doc := goquery.NewDocumentFromNode(root)

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	snap := &Snapshot{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Links: make([]string, 0),
	}

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		link := resolveHref(base, href)
		if link == "" || seen[link] {
			return
		}
		seen[link] = true
		snap.Links = append(snap.Links, link)
	})

	return snap, nil
}

// resolveHref resolves href against base and drops the fragment.
// It returns an empty string for hrefs that do not lead to a page.
func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String()
}
