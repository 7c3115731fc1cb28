package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitewalk/internal/browser"
	"github.com/nao1215/sitewalk/internal/browser/browsertest"
	"github.com/nao1215/sitewalk/internal/model"
)

// tabCounter opens fake tabs and counts how many are open.
type tabCounter struct {
	open    atomic.Int32
	peak    atomic.Int32
	opened  atomic.Int32
	failFor string
}

func (tc *tabCounter) opener(pages map[string]string) TabOpener {
	return func(context.Context) (browser.Page, func(), error) {
		if tc.failFor != "" && tc.opened.Load() == 0 {
			tc.opened.Add(1)
			return nil, nil, errors.New("browser gone")
		}
		tc.opened.Add(1)
		n := tc.open.Add(1)
		for {
			peak := tc.peak.Load()
			if n <= peak || tc.peak.CompareAndSwap(peak, n) {
				break
			}
		}
		return browsertest.NewPage(pages), func() { tc.open.Add(-1) }, nil
	}
}

var batchPages = map[string]string{
	"https://a.test":   `<html><body><a href="/x">x</a></body></html>`,
	"https://a.test/x": `<html><body></body></html>`,
	"https://b.test":   `<html><body></body></html>`,
	"https://c.test":   `<html><body></body></html>`,
}

func crawlOnly(delay time.Duration) Factory {
	return func(page browser.Page, _ string) *Pipeline {
		p := New(WithLogger(discardLogger()))
		if delay > 0 {
			p.AddStep(&mockStep{name: "wait", doFunc: func(context.Context, *model.Run) error {
				time.Sleep(delay)
				return nil
			}})
		}
		p.AddStep(NewCrawlStep(newTestSpider(), page, WithCrawlLogger(discardLogger())))
		return p
	}
}

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	tc := &tabCounter{}

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(tc.opener(nil), crawlOnly(0))
		if bp.concurrency != 1 {
			t.Errorf("expected default concurrency 1, got %d", bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(tc.opener(nil), crawlOnly(0), WithConcurrency(5))
		if bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(tc.opener(nil), crawlOnly(0), WithConcurrency(0))
		if bp.concurrency != 1 {
			t.Errorf("expected concurrency 1, got %d", bp.concurrency)
		}
	})
}

// TestBatchProcessorProcessBatch tests batch processing.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("returns runs in seed order", func(t *testing.T) {
		t.Parallel()

		tc := &tabCounter{}
		bp := NewBatchProcessor(tc.opener(batchPages), crawlOnly(0),
			WithConcurrency(3), WithBatchLogger(discardLogger()))

		seeds := []string{"https://a.test", "https://b.test", "https://c.test"}
		runs, err := bp.ProcessBatch(context.Background(), seeds)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != len(seeds) {
			t.Fatalf("expected %d runs, got %d", len(seeds), len(runs))
		}
		for i, seed := range seeds {
			if runs[i].Seed != seed {
				t.Errorf("run %d: expected seed %s, got %s", i, seed, runs[i].Seed)
			}
		}
		if len(runs[0].Records) != 2 {
			t.Errorf("expected 2 records for a.test, got %d", len(runs[0].Records))
		}
		if tc.open.Load() != 0 {
			t.Errorf("expected every tab to be released, %d still open", tc.open.Load())
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		tc := &tabCounter{}
		bp := NewBatchProcessor(tc.opener(batchPages), crawlOnly(20*time.Millisecond),
			WithConcurrency(2), WithBatchLogger(discardLogger()))

		seeds := []string{"https://a.test", "https://b.test", "https://c.test", "https://b.test"}
		if _, err := bp.ProcessBatch(context.Background(), seeds); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak := tc.peak.Load(); peak > 2 {
			t.Errorf("expected at most 2 tabs at once, got %d", peak)
		}
	})

	t.Run("a failing tab does not stop other seeds", func(t *testing.T) {
		t.Parallel()

		tc := &tabCounter{failFor: "first"}
		bp := NewBatchProcessor(tc.opener(batchPages), crawlOnly(0), WithBatchLogger(discardLogger()))

		var mu sync.Mutex
		failed := 0
		err := bp.ProcessBatchWithCallback(context.Background(),
			[]string{"https://b.test", "https://c.test"},
			func(run *model.Run, err error, _ int) {
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failed++
					if run.Error == "" {
						t.Error("expected run error to be recorded")
					}
				}
			})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if failed != 1 {
			t.Errorf("expected exactly 1 failed seed, got %d", failed)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		tc := &tabCounter{}
		bp := NewBatchProcessor(tc.opener(batchPages), crawlOnly(0), WithBatchLogger(discardLogger()))
		_, err := bp.ProcessBatch(ctx, []string{"https://a.test"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
