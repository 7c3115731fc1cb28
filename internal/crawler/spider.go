package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/sitewalk/internal/browser"
	"github.com/nao1215/sitewalk/internal/model"
)

// Default traversal limits.
const (
	DefaultMaxDepth = 3
	DefaultMaxPages = 50
)

// Spider is the bounded traversal engine.
// It keeps an explicit work list seeded with the start page, visits pages
// one at a time on a single browser tab, and expands the links of each
// successful visit until the work list is empty or the page cap is reached.
//
// Each Crawl call gets a fresh Registry, so one Spider can run several
// traversals in sequence without them affecting each other.
type Spider struct {
	visitor    *Visitor
	limits     Limits
	normalizer Normalizer
	onVisit    func(*model.VisitRecord)
	logger     *slog.Logger

	mu       sync.Mutex
	registry *Registry
	stats    SpiderStats
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the starting page, 1 = starting page plus linked pages, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.limits.MaxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages to visit. 0 removes the cap.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.limits.MaxPages = maxPages
	}
}

// WithScopePrefix restricts the traversal to URLs starting with prefix.
// Without it the scope is the seed's origin.
func WithScopePrefix(prefix string) SpiderOption {
	return func(s *Spider) {
		s.limits.ScopePrefix = prefix
	}
}

// WithOrder sets depth-first or breadth-first traversal.
func WithOrder(order Order) SpiderOption {
	return func(s *Spider) {
		s.limits.Order = order
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.limits.IgnorePatterns = patterns
	}
}

// WithFollowPatterns restricts crawling to paths matching at least one pattern.
// Empty slice means all URLs are allowed (default behavior).
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.limits.FollowPatterns = patterns
	}
}

// WithKeepQuery makes query strings part of the deduplication key.
func WithKeepQuery(keep bool) SpiderOption {
	return func(s *Spider) {
		s.normalizer.KeepQuery = keep
	}
}

// WithOnVisit registers a hook called after every visit, in visiting order.
func WithOnVisit(fn func(*model.VisitRecord)) SpiderOption {
	return func(s *Spider) {
		s.onVisit = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider that visits pages with visitor.
func NewSpider(visitor *Visitor, opts ...SpiderOption) *Spider {
	s := &Spider{
		visitor: visitor,
		limits: Limits{
			MaxDepth: DefaultMaxDepth,
			MaxPages: DefaultMaxPages,
			Order:    OrderDepthFirst,
		},
		registry: NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Limits returns the configured limits.
func (s *Spider) Limits() Limits {
	return s.limits
}

// queueItem is one entry of the work list.
type queueItem struct {
	url   string
	depth int
}

// frontier is the work list. Depth-first pops from the end,
// breadth-first from the front.
type frontier struct {
	order Order
	items []queueItem
}

func (f *frontier) push(item queueItem) {
	f.items = append(f.items, item)
}

func (f *frontier) pop() queueItem {
	if f.order == OrderBreadthFirst {
		item := f.items[0]
		f.items = f.items[1:]
		return item
	}
	last := len(f.items) - 1
	item := f.items[last]
	f.items = f.items[:last]
	return item
}

func (f *frontier) len() int {
	return len(f.items)
}

// pushLinks queues the links of one page at depth. Depth-first pushes them
// in reverse so they come off the stack in document order.
func (f *frontier) pushLinks(links []string, depth int, accept func(string) bool) int {
	pushed := 0
	if f.order == OrderBreadthFirst {
		for _, link := range links {
			if accept(link) {
				f.push(queueItem{url: link, depth: depth})
				pushed++
			}
		}
		return pushed
	}
	for i := len(links) - 1; i >= 0; i-- {
		if accept(links[i]) {
			f.push(queueItem{url: links[i], depth: depth})
			pushed++
		}
	}
	return pushed
}

// Crawl traverses from seed on page and returns the visit records in
// visiting order.
//
// When ctx is cancelled or its deadline passes, Crawl stops before the next
// visit and returns the records collected so far together with ctx.Err().
func (s *Spider) Crawl(ctx context.Context, page browser.Page, seed string) ([]*model.VisitRecord, error) {
	seed, err := NormalizeSeed(seed)
	if err != nil {
		return nil, err
	}

	limits := s.limits
	if limits.ScopePrefix == "" {
		limits.ScopePrefix = ScopePrefixFor(seed)
	} else {
		if limits.ScopePrefix, err = NormalizeScope(limits.ScopePrefix); err != nil {
			return nil, err
		}
		if !ScopeCovers(limits.ScopePrefix, seed) {
			return nil, fmt.Errorf("%w: %s not under %s", ErrSeedOutOfScope, seed, limits.ScopePrefix)
		}
	}
	scope := NewScope(limits, s.normalizer)
	reg := NewRegistry()

	s.mu.Lock()
	s.registry = reg
	s.stats = SpiderStats{}
	s.mu.Unlock()

	s.logger.Info("starting traversal",
		"seed", seed,
		"scope", scope.Prefix(),
		"maxDepth", limits.MaxDepth,
		"maxPages", limits.MaxPages,
		"order", limits.Order.String(),
	)

	records := make([]*model.VisitRecord, 0)
	work := &frontier{order: limits.Order}
	work.push(queueItem{url: seed, depth: 0})

	for work.len() > 0 && !scope.PageCapReached(reg) {
		select {
		case <-ctx.Done():
			s.logger.Warn("traversal stopped", "reason", ctx.Err(), "visited", len(records))
			return records, ctx.Err()
		default:
		}

		item := work.pop()
		s.setQueued(work.len())

		if !scope.IsEligible(item.url, item.depth, reg) {
			continue
		}
		if !reg.TryReserve(s.normalizer.Normalize(item.url)) {
			continue
		}

		outcome := s.visitor.Visit(ctx, page, item.url, item.depth)
		if err := ctx.Err(); err != nil && !outcome.Record.Succeeded() {
			// The page did not fail, the traversal was stopped under it.
			s.logger.Warn("traversal stopped", "reason", err, "interrupted", item.url, "visited", len(records))
			return records, err
		}
		records = append(records, outcome.Record)
		s.recordVisit(outcome.Record)
		if s.onVisit != nil {
			s.onVisit(outcome.Record)
		}

		if !outcome.Record.Succeeded() || item.depth >= limits.MaxDepth {
			continue
		}

		next := item.depth + 1
		work.pushLinks(outcome.Links, next, func(link string) bool {
			return scope.IsEligible(link, next, reg)
		})
		s.setQueued(work.len())
	}

	s.logger.Info("traversal finished",
		"seed", seed,
		"visited", len(records),
		"remaining", work.len(),
	)

	if err := ctx.Err(); err != nil {
		return records, err
	}
	return records, nil
}

// Reset clears the statistics of the last traversal.
func (s *Spider) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry = NewRegistry()
	s.stats = SpiderStats{}
}

// recordVisit updates statistics after a visit.
func (s *Spider) recordVisit(rec *model.VisitRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.PagesVisited++
	if rec.Succeeded() {
		s.stats.Successes++
	} else {
		s.stats.Failures++
	}
}

// setQueued records the current work list length.
func (s *Spider) setQueued(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Queued = n
}

// Stats returns statistics of the current or last traversal.
// It is safe to call from another goroutine while Crawl runs.
func (s *Spider) Stats() SpiderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.URLsReserved = s.registry.Len()
	return stats
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// PagesVisited is the number of visit records produced.
	PagesVisited int

	// Successes and Failures split PagesVisited by outcome.
	Successes int
	Failures  int

	// Queued is the number of entries waiting on the work list.
	// Entries may still be rejected when popped.
	Queued int

	// URLsReserved is the size of the visited registry.
	URLsReserved int
}
