package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0 Safari/537.36 sitewalk"

// Default window size. Full-page screenshots extend the height as needed.
const (
	DefaultWindowWidth  = 1366
	DefaultWindowHeight = 900
)

// Browser owns one Chrome process started through chromedp.
// Tabs opened from it share cookies and storage, so a login performed in
// one tab is visible to the others.
type Browser struct {
	headless     bool
	userAgent    string
	userDataDir  string
	execPath     string
	windowWidth  int
	windowHeight int
	noSandbox    bool
	logger       *slog.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// Option configures a Browser.
type Option func(*Browser)

// WithHeadless toggles headless mode. Headful mode is useful when a login
// page needs a human to solve a challenge.
func WithHeadless(headless bool) Option {
	return func(b *Browser) {
		b.headless = headless
	}
}

// WithUserAgent sets a custom User-Agent.
func WithUserAgent(ua string) Option {
	return func(b *Browser) {
		if ua != "" {
			b.userAgent = ua
		}
	}
}

// WithUserDataDir keeps the browser profile in dir so cookies survive
// between runs.
func WithUserDataDir(dir string) Option {
	return func(b *Browser) {
		b.userDataDir = dir
	}
}

// WithExecPath sets the Chrome binary. Empty means chromedp's lookup.
func WithExecPath(path string) Option {
	return func(b *Browser) {
		b.execPath = path
	}
}

// WithWindowSize sets the viewport size.
func WithWindowSize(width, height int) Option {
	return func(b *Browser) {
		if width > 0 && height > 0 {
			b.windowWidth = width
			b.windowHeight = height
		}
	}
}

// WithNoSandbox disables the Chrome sandbox, which containers usually need.
func WithNoSandbox(noSandbox bool) Option {
	return func(b *Browser) {
		b.noSandbox = noSandbox
	}
}

// WithLogger sets the logger used for chromedp diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Browser) {
		b.logger = logger
	}
}

// New returns an unstarted Browser with the given options applied.
func New(opts ...Option) *Browser {
	b := &Browser{
		headless:     true,
		userAgent:    DefaultUserAgent,
		windowWidth:  DefaultWindowWidth,
		windowHeight: DefaultWindowHeight,
		noSandbox:    true,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// allocatorOptions builds the chromedp exec allocator flags.
func (b *Browser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", b.noSandbox),
		chromedp.WindowSize(b.windowWidth, b.windowHeight),
		chromedp.UserAgent(b.userAgent),
	)
	if b.userDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(b.userDataDir))
	}
	if b.execPath != "" {
		opts = append(opts, chromedp.ExecPath(b.execPath))
	}
	return opts
}

// Start launches Chrome. The browser lives until Close is called or ctx is
// cancelled.
func (b *Browser) Start(ctx context.Context) error {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, b.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(b.debugf),
		chromedp.WithLogf(b.debugf),
	)

	// Running with no actions starts the process and the first target.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	b.allocCancel = allocCancel
	b.browserCtx = browserCtx
	b.browserCancel = browserCancel

	b.logger.Debug("browser started",
		"headless", b.headless,
		"userDataDir", b.userDataDir,
	)
	return nil
}

// debugf forwards chromedp's printf-style diagnostics to the logger.
// cdproto reports unknown protocol events this way, which is noise at any
// level above debug.
func (b *Browser) debugf(format string, args ...any) {
	b.logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
}

// NewTab opens a new tab in the running browser.
func (b *Browser) NewTab() (*Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.browserCtx == nil {
		return nil, ErrBrowserClosed
	}

	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return &Tab{ctx: tabCtx, cancel: cancel}, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.browserCtx == nil {
		b.closed = true
		return nil
	}
	b.closed = true

	err := chromedp.Cancel(b.browserCtx)
	b.browserCancel()
	b.allocCancel()
	if err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

// Tab is a Page backed by one chromedp target.
type Tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

var _ Page = (*Tab)(nil)

// Close closes the tab.
func (t *Tab) Close() {
	t.cancel()
}

// run executes actions on the tab, bounded by the caller's ctx.
// chromedp actions must run on a context derived from the tab context,
// so the caller's deadline and cancellation are copied onto one.
// Cancelling the derived context aborts the actions but keeps the tab open.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	if deadline, ok := ctx.Deadline(); ok {
		cancel()
		runCtx, cancel = context.WithDeadline(t.ctx, deadline)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// Navigate implements Page.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return ErrEmptyURL
	}
	return t.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Location implements Page.
func (t *Tab) Location(ctx context.Context) (string, error) {
	var loc string
	if err := t.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// HTML implements Page.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	var html string
	if err := t.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Screenshot implements Page. A quality of 100 makes chromedp encode PNG.
func (t *Tab) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := t.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Exists implements Page. It queries with JavaScript so a missing element
// returns at once instead of waiting for it to appear. Only rendered
// elements count: one with no layout boxes, such as display:none or a
// hidden input, would make Fill and Click wait for it to become visible.
func (t *Tab) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	expr := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).some(function(el) {
		return el.getClientRects().length > 0 && getComputedStyle(el).visibility !== "hidden";
	})`, jsString(selector))
	if err := t.run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
		return false, err
	}
	return found, nil
}

// Text implements Page.
func (t *Tab) Text(ctx context.Context, selector string) (string, error) {
	var text string
	expr := fmt.Sprintf(`(function() {
		const el = document.querySelector(%s);
		return el ? (el.innerText || el.textContent || "") : "";
	})()`, jsString(selector))
	if err := t.run(ctx, chromedp.Evaluate(expr, &text)); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Fill implements Page.
func (t *Tab) Fill(ctx context.Context, selector, value string) error {
	return t.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

// Click implements Page.
func (t *Tab) Click(ctx context.Context, selector string) error {
	return t.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
