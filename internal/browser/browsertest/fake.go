// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/sitewalk/internal/browser"
)

var _ browser.Page = (*Page)(nil)

// ErrNotFound is returned by Navigate for URLs the site does not serve.
var ErrNotFound = errors.New("page not found")

// ScreenshotPNG is the image returned by Screenshot: a PNG signature.
var ScreenshotPNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Page is a fake browser.Page over a fixed map of URL to HTML.
// Selectors are evaluated with goquery against the current document.
//
// URLs are matched after dropping the fragment and one trailing slash.
// Elements carrying the hidden attribute, an input type of hidden or an
// inline display:none or visibility:hidden style (their own or an
// ancestor's) are invisible: Exists ignores them, and Fill or Click on one
// blocks until the context ends, as a real browser waiting for visibility
// does.
type Page struct {
	// Pages maps URLs to the HTML they render.
	Pages map[string]string

	// Errors maps URLs to the error Navigate returns for them.
	Errors map[string]error

	// Slow lists URLs whose navigation blocks until the context ends.
	Slow map[string]bool

	// Redirects maps URLs to the URL the browser ends up at.
	Redirects map[string]string

	// ScreenshotErr, when set, is returned by every Screenshot call.
	ScreenshotErr error

	// OnClick runs after a successful click, with the page lock released.
	// It may call SetDocument to simulate a form submission.
	OnClick func(p *Page, selector string)

	mu       sync.Mutex
	location string
	document string
	visits   []string
	clicks   []string
	fills    map[string]string
}

// NewPage creates a fake page serving pages.
func NewPage(pages map[string]string) *Page {
	return &Page{
		Pages:     pages,
		Errors:    make(map[string]error),
		Slow:      make(map[string]bool),
		Redirects: make(map[string]string),
		fills:     make(map[string]string),
	}
}

func key(raw string) string {
	if i := strings.Index(raw, "#"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSuffix(raw, "/")
}

// Navigate loads url.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.visits = append(p.visits, url)
	k := key(url)
	slow := p.Slow[k]
	p.mu.Unlock()

	if slow {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.Errors[k]; ok {
		return err
	}
	target := url
	if to, ok := p.Redirects[k]; ok {
		target = to
		k = key(to)
	}
	doc, ok := p.Pages[k]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	p.location = target
	p.document = doc
	return nil
}

// Location returns the current URL.
func (p *Page) Location(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location, nil
}

// HTML returns the current document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.document, nil
}

// Screenshot returns ScreenshotPNG or ScreenshotErr.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	out := make([]byte, len(ScreenshotPNG))
	copy(out, ScreenshotPNG)
	return out, nil
}

// Exists reports whether selector matches a visible element in the current
// document.
func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	sel, err := p.find(ctx, selector)
	if err != nil {
		return false, err
	}
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return visible(s)
	}).Length() > 0, nil
}

// Text returns the trimmed text of the first match.
func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	sel, err := p.find(ctx, selector)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(sel.First().Text()), nil
}

// Fill records value for selector.
func (p *Page) Fill(ctx context.Context, selector, value string) error {
	sel, err := p.find(ctx, selector)
	if err != nil {
		return err
	}
	if err := actionable(ctx, sel, selector); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fills[selector] = value
	return nil
}

// Click records a click on selector and runs OnClick.
func (p *Page) Click(ctx context.Context, selector string) error {
	sel, err := p.find(ctx, selector)
	if err != nil {
		return err
	}
	if err := actionable(ctx, sel, selector); err != nil {
		return err
	}
	p.mu.Lock()
	p.clicks = append(p.clicks, selector)
	hook := p.OnClick
	p.mu.Unlock()

	if hook != nil {
		hook(p, selector)
	}
	return nil
}

// SetDocument replaces the current document and location.
func (p *Page) SetDocument(location, document string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.location = location
	p.document = document
}

// Visits returns every URL passed to Navigate, in order.
func (p *Page) Visits() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visits...)
}

// Clicks returns every clicked selector, in order.
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Filled returns the last value filled into selector.
func (p *Page) Filled(selector string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.fills[selector]
	return v, ok
}

func (p *Page) find(ctx context.Context, selector string) (*goquery.Selection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	document := p.document
	p.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, err
	}
	return doc.Find(selector), nil
}

// actionable checks the first match of sel. A hidden one blocks until ctx
// ends.
func actionable(ctx context.Context, sel *goquery.Selection, selector string) error {
	if sel.Length() == 0 {
		return fmt.Errorf("no element matches %q", selector)
	}
	if !visible(sel.First()) {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

// visible reports whether neither the element nor an ancestor is hidden.
func visible(sel *goquery.Selection) bool {
	hidden := false
	sel.Parents().AddBack().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if _, ok := s.Attr("hidden"); ok {
			hidden = true
		}
		if t, _ := s.Attr("type"); goquery.NodeName(s) == "input" && strings.EqualFold(t, "hidden") {
			hidden = true
		}
		style, _ := s.Attr("style")
		style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			hidden = true
		}
		return !hidden
	})
	return !hidden
}
