package crawler

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Order selects how the work list is consumed.
type Order int

const (
	// OrderDepthFirst follows each discovered link before its siblings.
	OrderDepthFirst Order = iota

	// OrderBreadthFirst visits all pages of one depth before the next depth.
	// Under a tight page cap it gives a more even sample of the site.
	OrderBreadthFirst
)

// String returns the flag spelling of the order.
func (o Order) String() string {
	switch o {
	case OrderDepthFirst:
		return "dfs"
	case OrderBreadthFirst:
		return "bfs"
	default:
		return "unknown"
	}
}

// ParseOrder parses "dfs" or "bfs" (case-insensitive). Empty means dfs.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dfs", "depth-first":
		return OrderDepthFirst, nil
	case "bfs", "breadth-first":
		return OrderBreadthFirst, nil
	default:
		return OrderDepthFirst, fmt.Errorf("%w: %q", ErrUnknownOrder, s)
	}
}

// Limits bound one traversal. They do not change during the run.
type Limits struct {
	// MaxDepth is the deepest link hop visited. 0 visits only the seed.
	MaxDepth int

	// MaxPages caps the number of visits. 0 means no cap.
	MaxPages int

	// ScopePrefix is the normalized URL prefix a page must start with.
	// Empty means the seed's origin.
	ScopePrefix string

	// Order is the work list discipline.
	Order Order

	// IgnorePatterns are path globs that are never visited.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
	IgnorePatterns []string

	// FollowPatterns, when set, restrict visits to paths matching one of them.
	FollowPatterns []string
}

// Scope decides whether a candidate link may be visited.
type Scope struct {
	limits     Limits
	prefix     string
	normalizer Normalizer
}

// NewScope creates a Scope. The prefix in limits is normalized so that
// "https://Example.test/docs/" and "https://example.test/docs" behave alike.
func NewScope(limits Limits, normalizer Normalizer) *Scope {
	prefix := limits.ScopePrefix
	if prefix != "" {
		prefix = Normalize(prefix)
	}
	return &Scope{
		limits:     limits,
		prefix:     prefix,
		normalizer: normalizer,
	}
}

// Prefix returns the normalized scope prefix.
func (s *Scope) Prefix() string {
	return s.prefix
}

// IsEligible reports whether candidate at depth may be visited now.
// It is true only when all of these hold:
//   - the candidate is an http(s) URL
//   - its key is not in reg
//   - depth is within MaxDepth
//   - the page cap has not been reached
//   - its key lies inside the scope prefix
//   - its path passes the ignore and follow patterns
//
// The registry changes while links are being discovered, so callers check
// both when queuing a link and again when taking it off the work list.
func (s *Scope) IsEligible(candidate string, depth int, reg *Registry) bool {
	u, err := url.Parse(strings.TrimSpace(candidate))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}

	key := s.normalizer.Normalize(candidate)
	if reg.Contains(key) {
		return false
	}
	if depth < 0 || depth > s.limits.MaxDepth {
		return false
	}
	if s.PageCapReached(reg) {
		return false
	}
	if !s.InScope(key) {
		return false
	}
	return s.shouldCrawl(u)
}

// PageCapReached reports whether reg holds MaxPages keys already.
func (s *Scope) PageCapReached(reg *Registry) bool {
	return s.limits.MaxPages > 0 && reg.Len() >= s.limits.MaxPages
}

// InScope reports whether key starts with the scope prefix at a path
// boundary. "https://example.test" covers "https://example.test/a" but not
// "https://example.test.evil/a".
func (s *Scope) InScope(key string) bool {
	if s.prefix == "" {
		return true
	}
	if !strings.HasPrefix(key, s.prefix) {
		return false
	}
	if len(key) == len(s.prefix) || strings.HasSuffix(s.prefix, "/") {
		return true
	}
	switch key[len(s.prefix)] {
	case '/', '?', '#':
		return true
	default:
		return false
	}
}

// ScopeCovers reports whether the scope prefix covers the URL raw, using
// the same boundary rule as Scope.InScope.
func ScopeCovers(prefix, raw string) bool {
	scope := NewScope(Limits{ScopePrefix: prefix}, Normalizer{})
	return scope.InScope(Normalize(raw))
}

// shouldCrawl applies the ignore and follow patterns to the URL path.
//
// Logic:
//  1. If the path matches any ignore pattern, skip it
//  2. If follow patterns are set and the path matches none, skip it
//  3. Otherwise, crawl it
func (s *Scope) shouldCrawl(u *url.URL) bool {
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.limits.IgnorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.limits.FollowPatterns) == 0 {
		return true
	}
	for _, pattern := range s.limits.FollowPatterns {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing /* to match a directory and everything below it
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users/edit"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a slash are also tried against the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
