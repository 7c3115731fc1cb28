package model

import "time"

// Summary is a condensed view of a Run for terminal and Markdown output.
// It is computed once from the records so that writers do not each
// recount them.
type Summary struct {
	// Seed is the URL the run started from.
	Seed string `json:"seed"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// Elapsed is the run duration.
	Elapsed time.Duration `json:"elapsed"`

	// PagesVisited is the total number of visit records.
	PagesVisited int `json:"pages_visited"`

	// SuccessCount and FailureCount split PagesVisited by outcome.
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`

	// FormCount is the number of pages that contained a form.
	FormCount int `json:"form_count"`

	// ClickCount is the number of pages where the probe clicked a button.
	ClickCount int `json:"click_count"`

	// CaptureErrorCount is the number of successful visits without a screenshot.
	CaptureErrorCount int `json:"capture_error_count"`

	// MaxDepthReached is the deepest depth among the records.
	MaxDepthReached int `json:"max_depth_reached"`

	// Failures lists the failed visits in visiting order.
	Failures []*VisitRecord `json:"failures,omitempty"`

	// TimedOut indicates the run was stopped before the work list was exhausted.
	TimedOut bool `json:"timed_out"`

	// Error contains a run-level error message.
	Error string `json:"error,omitempty"`
}

// NewSummary computes a Summary from a Run.
func NewSummary(run *Run) *Summary {
	s := &Summary{
		Seed:         run.Seed,
		StartedAt:    run.StartedAt,
		Elapsed:      run.Elapsed(),
		PagesVisited: len(run.Records),
		TimedOut:     run.TimedOut,
		Error:        run.Error,
	}

	for _, rec := range run.Records {
		if rec.Depth > s.MaxDepthReached {
			s.MaxDepthReached = rec.Depth
		}
		if !rec.Succeeded() {
			s.FailureCount++
			s.Failures = append(s.Failures, rec)
			continue
		}
		s.SuccessCount++
		if rec.HasForm {
			s.FormCount++
		}
		if rec.ClickedButton {
			s.ClickCount++
		}
		if rec.CaptureError != "" {
			s.CaptureErrorCount++
		}
	}

	return s
}

// HasFailures reports whether any visit failed.
func (s *Summary) HasFailures() bool {
	return s.FailureCount > 0
}

// FailureRatio returns the share of failed visits, 0 for an empty run.
func (s *Summary) FailureRatio() float64 {
	if s.PagesVisited == 0 {
		return 0
	}
	return float64(s.FailureCount) / float64(s.PagesVisited)
}
