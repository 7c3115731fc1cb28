package model

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"
)

// VisitRecord is the structured result of visiting one page.
// Exactly one record exists per URL the traversal actually visited.
// Records are appended by the traversal engine and not modified afterwards.
type VisitRecord struct {
	// URL is the URL as it was queued, before any redirect.
	URL string `json:"url"`

	// Depth is the number of link hops from the seed page.
	Depth int `json:"depth"`

	// Outcome tells whether the visit succeeded.
	Outcome Outcome `json:"outcome"`

	// FinalURL is where the browser ended up after redirects.
	// Empty for failures.
	FinalURL string `json:"final_url,omitempty"`

	// Title is the document title of the rendered page.
	Title string `json:"title,omitempty"`

	// HasForm is true when the page contained at least one form element.
	HasForm bool `json:"has_form"`

	// ClickedButton is true when the probe clicked a button on the page.
	ClickedButton bool `json:"clicked_button"`

	// ArtifactPath is the path of the full-page screenshot.
	// Empty when capture failed.
	ArtifactPath string `json:"artifact_path,omitempty"`

	// CaptureError describes a screenshot failure on an otherwise successful visit.
	CaptureError string `json:"capture_error,omitempty"`

	// ContentHash is the SHA3-256 of the rendered HTML.
	// Used to detect content changes between runs.
	ContentHash string `json:"content_hash,omitempty"`

	// LinkCount is the number of distinct outbound links found on the page.
	LinkCount int `json:"link_count"`

	// Error is the navigation error description for failures.
	Error string `json:"error,omitempty"`

	// VisitedAt is when the visit started.
	VisitedAt time.Time `json:"visited_at"`

	// Duration is how long the visit took, probing and capture included.
	Duration time.Duration `json:"duration"`
}

// NewSuccessRecord creates a successful visit record.
func NewSuccessRecord(url string, depth int) *VisitRecord {
	return &VisitRecord{
		URL:       url,
		Depth:     depth,
		Outcome:   OutcomeSuccess,
		VisitedAt: time.Now(),
	}
}

// NewFailureRecord creates a failed visit record carrying the error description.
func NewFailureRecord(url string, depth int, err error) *VisitRecord {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &VisitRecord{
		URL:       url,
		Depth:     depth,
		Outcome:   OutcomeFailure,
		Error:     msg,
		VisitedAt: time.Now(),
	}
}

// Succeeded reports whether the visit succeeded.
func (r *VisitRecord) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// ComputeContentHash sets ContentHash from the rendered HTML.
func (r *VisitRecord) ComputeContentHash(html string) {
	if html == "" {
		r.ContentHash = ""
		return
	}
	sum := sha3.Sum256([]byte(html))
	r.ContentHash = hex.EncodeToString(sum[:])
}
