package model

import (
	"errors"
	"testing"
)

// TestOutcomeString tests the String method of Outcome.
func TestOutcomeString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		outcome  Outcome
		expected string
	}{
		{OutcomeSuccess, "success"},
		{OutcomeFailure, "failure"},
		{Outcome(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if tc.outcome.String() != tc.expected {
				t.Errorf("got %q, expected %q", tc.outcome.String(), tc.expected)
			}
		})
	}
}

// TestOutcomeUnmarshalText tests parsing outcomes from their text form.
func TestOutcomeUnmarshalText(t *testing.T) {
	t.Parallel()

	t.Run("parses failure", func(t *testing.T) {
		t.Parallel()
		var o Outcome
		if err := o.UnmarshalText([]byte("failure")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o != OutcomeFailure {
			t.Errorf("expected failure, got %s", o)
		}
	})

	t.Run("rejects unknown text", func(t *testing.T) {
		t.Parallel()
		var o Outcome
		if err := o.UnmarshalText([]byte("maybe")); err == nil {
			t.Error("expected error for unknown outcome")
		}
	})
}

// TestNewFailureRecord tests failure record construction.
func TestNewFailureRecord(t *testing.T) {
	t.Parallel()

	t.Run("keeps the error message", func(t *testing.T) {
		t.Parallel()
		rec := NewFailureRecord("https://example.test/a", 2, errors.New("net::ERR_NAME_NOT_RESOLVED"))
		if rec.Succeeded() {
			t.Error("expected failure record")
		}
		if rec.Error != "net::ERR_NAME_NOT_RESOLVED" {
			t.Errorf("unexpected error text %q", rec.Error)
		}
		if rec.Depth != 2 {
			t.Errorf("expected depth 2, got %d", rec.Depth)
		}
	})

	t.Run("never leaves the message empty", func(t *testing.T) {
		t.Parallel()
		rec := NewFailureRecord("https://example.test/a", 0, nil)
		if rec.Error == "" {
			t.Error("expected non-empty error message")
		}
	})
}

// TestComputeContentHash tests content hashing.
func TestComputeContentHash(t *testing.T) {
	t.Parallel()

	a := NewSuccessRecord("https://example.test/", 0)
	b := NewSuccessRecord("https://example.test/", 0)
	a.ComputeContentHash("<html>one</html>")
	b.ComputeContentHash("<html>one</html>")

	if a.ContentHash == "" {
		t.Fatal("expected hash to be set")
	}
	if len(a.ContentHash) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(a.ContentHash))
	}
	if a.ContentHash != b.ContentHash {
		t.Error("expected identical content to hash identically")
	}

	b.ComputeContentHash("<html>two</html>")
	if a.ContentHash == b.ContentHash {
		t.Error("expected different content to hash differently")
	}

	b.ComputeContentHash("")
	if b.ContentHash != "" {
		t.Error("expected empty hash for empty content")
	}
}

// TestNewSummary tests summary computation from a run.
func TestNewSummary(t *testing.T) {
	t.Parallel()

	run := NewRun("https://example.test/")
	ok := NewSuccessRecord("https://example.test/", 0)
	ok.HasForm = true
	ok.ClickedButton = true
	noShot := NewSuccessRecord("https://example.test/b", 1)
	noShot.CaptureError = "disk full"
	failed := NewFailureRecord("https://example.test/c", 2, errors.New("timeout"))
	run.Records = append(run.Records, ok, noShot, failed)
	run.Finish()

	s := NewSummary(run)

	if s.PagesVisited != 3 {
		t.Errorf("expected 3 pages, got %d", s.PagesVisited)
	}
	if s.SuccessCount != 2 || s.FailureCount != 1 {
		t.Errorf("expected 2 successes and 1 failure, got %d and %d", s.SuccessCount, s.FailureCount)
	}
	if s.FormCount != 1 || s.ClickCount != 1 {
		t.Errorf("expected 1 form and 1 click, got %d and %d", s.FormCount, s.ClickCount)
	}
	if s.CaptureErrorCount != 1 {
		t.Errorf("expected 1 capture error, got %d", s.CaptureErrorCount)
	}
	if s.MaxDepthReached != 2 {
		t.Errorf("expected max depth 2, got %d", s.MaxDepthReached)
	}
	if len(s.Failures) != 1 || s.Failures[0].URL != "https://example.test/c" {
		t.Errorf("unexpected failures: %v", s.Failures)
	}
	if !s.HasFailures() {
		t.Error("expected HasFailures to be true")
	}
	if run.Successes() != 2 || run.Failures() != 1 {
		t.Errorf("run counters disagree with summary: %d/%d", run.Successes(), run.Failures())
	}
}

// TestNewRun tests run construction.
func TestNewRun(t *testing.T) {
	t.Parallel()

	a := NewRun("https://example.test/")
	b := NewRun("https://example.test/")
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected unique non-empty IDs, got %q and %q", a.ID, b.ID)
	}
	if a.Records == nil {
		t.Error("expected records slice to be initialized")
	}
	if NewSummary(a).FailureRatio() != 0 {
		t.Error("expected zero failure ratio for empty run")
	}
}
