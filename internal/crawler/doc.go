// Package crawler implements the bounded website traversal.
//
// # Architecture
//
// The package is built around the Spider type, which owns one traversal.
// It keeps an explicit work list of (URL, depth) entries seeded with the
// start page and consumes it on a single browser tab until the list is
// empty or the page cap is reached.
//
// # Components
//
//   - Normalizer: turns URLs into comparison keys
//   - Registry: the set of keys already reserved for a visit
//   - Scope: decides whether a discovered link may be visited
//   - Visitor: loads one page, captures it and runs the probe
//   - Prober: fills and clicks the page's form controls
//   - Spider: the traversal loop
//
// # Guarantees
//
// Every URL is visited at most once per traversal. Every visited URL has a
// key inside the scope prefix, was reached within the depth limit, and the
// number of visits never exceeds the page cap. A page that fails to load is
// recorded as a failure and the traversal continues with the next entry.
//
// # Usage
//
//	visitor := crawler.NewVisitor(store, crawler.WithNavTimeout(15*time.Second))
//	spider := crawler.NewSpider(visitor,
//		crawler.WithMaxDepth(2),
//		crawler.WithMaxPages(50),
//	)
//	records, err := spider.Crawl(ctx, tab, "https://example.com")
package crawler
