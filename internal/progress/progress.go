// Package progress shows a terminal spinner while a seed is being walked.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"

	"github.com/nao1215/sitewalk/internal/model"
)

// maxURLWidth bounds the URL shown next to the spinner.
const maxURLWidth = 60

// Tracker counts visits and renders them on a spinner.
// All methods are safe for concurrent use.
type Tracker struct {
	spin     *spinner.Spinner
	seed     string
	maxPages int

	mu        sync.Mutex
	visited   int
	failures  int
	lastURL   string
	startedAt time.Time
}

// New creates a Tracker for seed that writes to w. The spinner only
// animates when w is a terminal.
func New(w io.Writer, seed string, maxPages int) *Tracker {
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(w))
	return &Tracker{
		spin:     s,
		seed:     seed,
		maxPages: maxPages,
	}
}

// Start begins animating.
func (t *Tracker) Start() {
	t.mu.Lock()
	t.startedAt = time.Now()
	t.mu.Unlock()

	t.setSuffix(t.Line())
	t.spin.Start()
}

// Observe records one finished visit. It has the signature of the
// traversal engine's visit hook.
func (t *Tracker) Observe(rec *model.VisitRecord) {
	t.mu.Lock()
	t.visited++
	if !rec.Succeeded() {
		t.failures++
	}
	t.lastURL = rec.URL
	t.mu.Unlock()

	t.setSuffix(t.Line())
}

// Stop halts the spinner.
func (t *Tracker) Stop() {
	t.spin.Stop()
}

// Line returns the current status line.
func (t *Tracker) Line() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := fmt.Sprintf("%d", t.visited)
	if t.maxPages > 0 {
		count = fmt.Sprintf("%d/%d", t.visited, t.maxPages)
	}
	line := fmt.Sprintf(" %s pages", count)
	if t.failures > 0 {
		line += fmt.Sprintf(", %d failed", t.failures)
	}
	if t.lastURL != "" {
		line += " " + shorten(t.lastURL, maxURLWidth)
	} else {
		line += " " + shorten(t.seed, maxURLWidth)
	}
	return line
}

// Counts returns the number of visits and failures observed so far.
func (t *Tracker) Counts() (visited, failures int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visited, t.failures
}

func (t *Tracker) setSuffix(s string) {
	t.spin.Lock()
	t.spin.Suffix = s
	t.spin.Unlock()
}

// shorten trims s to max runes with a leading ellipsis, keeping the
// end of a URL, which is the part that changes.
func shorten(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return "..." + string(r[len(r)-maxLen+3:])
}
