package model

import (
	"time"

	"github.com/google/uuid"
)

// Run is the result of one traversal from one seed.
// It groups the visit records with the information needed to report and
// store them.
type Run struct {
	// ID uniquely identifies the run in the history database.
	ID string `json:"id"`

	// Seed is the URL the traversal started from.
	Seed string `json:"seed"`

	// ScopePrefix is the normalized prefix that bounded the traversal.
	ScopePrefix string `json:"scope_prefix"`

	// MaxDepth and MaxPages are the limits the run used.
	MaxDepth int `json:"max_depth"`
	MaxPages int `json:"max_pages"`

	// Authenticated is true when a login step succeeded before traversal.
	Authenticated bool `json:"authenticated"`

	// StartedAt and FinishedAt bound the run in time.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Records holds the visit records in visiting order.
	Records []*VisitRecord `json:"records"`

	// TimedOut is true when the run deadline or a cancellation stopped the
	// traversal early. Records then hold the partial result.
	TimedOut bool `json:"timed_out"`

	// Error is the message of a run-level error, such as a failed login.
	Error string `json:"error,omitempty"`

	// Steps lists the pipeline steps that were performed.
	Steps []string `json:"steps,omitempty"`
}

// NewRun creates a Run for the given seed with a fresh ID.
func NewRun(seed string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Seed:      seed,
		StartedAt: time.Now(),
		Records:   make([]*VisitRecord, 0),
	}
}

// Finish stamps the end time.
func (r *Run) Finish() {
	r.FinishedAt = time.Now()
}

// Elapsed returns the run duration, or the time since start for an unfinished run.
func (r *Run) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Successes returns the number of successful visits.
func (r *Run) Successes() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Succeeded() {
			n++
		}
	}
	return n
}

// Failures returns the number of failed visits.
func (r *Run) Failures() int {
	return len(r.Records) - r.Successes()
}
