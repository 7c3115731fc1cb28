package model

import (
	"net/url"
	"sort"
	"strings"
)

// ChangeKind classifies one difference between two runs of the same seed.
type ChangeKind string

const (
	// ChangeNew is a URL visited only by the newer run.
	ChangeNew ChangeKind = "new"

	// ChangeGone is a URL visited only by the older run.
	ChangeGone ChangeKind = "gone"

	// ChangeOutcome is a URL whose visit outcome flipped.
	ChangeOutcome ChangeKind = "outcome"

	// ChangeContent is a URL that succeeded in both runs with different HTML.
	ChangeContent ChangeKind = "content"

	// ChangeForm is a URL whose form or click result changed.
	ChangeForm ChangeKind = "form"
)

// Change is one per-URL difference.
type Change struct {
	Kind   ChangeKind   `json:"kind"`
	URL    string       `json:"url"`
	Before *VisitRecord `json:"before,omitempty"`
	After  *VisitRecord `json:"after,omitempty"`
}

// RunDiff lists what changed between an older and a newer run.
type RunDiff struct {
	OlderID string   `json:"older_id"`
	NewerID string   `json:"newer_id"`
	Seed    string   `json:"seed"`
	Changes []Change `json:"changes"`

	// Unchanged counts URLs present in both runs with no detected change.
	Unchanged int `json:"unchanged"`
}

// HasChanges reports whether any change was found.
func (d *RunDiff) HasChanges() bool {
	return len(d.Changes) > 0
}

// Count returns the number of changes of kind.
func (d *RunDiff) Count(kind ChangeKind) int {
	n := 0
	for _, c := range d.Changes {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// Compare diffs two runs by record URL. URLs that differ only in the case
// of scheme or host, a default port, a fragment or a trailing slash are the
// same page. Changes are sorted by kind order (new, gone, outcome, content,
// form) and then by URL.
func Compare(older, newer *Run) *RunDiff {
	diff := &RunDiff{
		OlderID: older.ID,
		NewerID: newer.ID,
		Seed:    newer.Seed,
		Changes: make([]Change, 0),
	}

	before := indexRecords(older.Records)
	after := indexRecords(newer.Records)

	for key, rec := range after {
		prev, ok := before[key]
		if !ok {
			diff.Changes = append(diff.Changes, Change{Kind: ChangeNew, URL: rec.URL, After: rec})
			continue
		}
		if kind, changed := compareRecords(prev, rec); changed {
			diff.Changes = append(diff.Changes, Change{Kind: kind, URL: rec.URL, Before: prev, After: rec})
		} else {
			diff.Unchanged++
		}
	}
	for key, rec := range before {
		if _, ok := after[key]; !ok {
			diff.Changes = append(diff.Changes, Change{Kind: ChangeGone, URL: rec.URL, Before: rec})
		}
	}

	sort.Slice(diff.Changes, func(i, j int) bool {
		a, b := diff.Changes[i], diff.Changes[j]
		if a.Kind != b.Kind {
			return kindRank[a.Kind] < kindRank[b.Kind]
		}
		return a.URL < b.URL
	})
	return diff
}

var kindRank = map[ChangeKind]int{
	ChangeNew:     0,
	ChangeGone:    1,
	ChangeOutcome: 2,
	ChangeContent: 3,
	ChangeForm:    4,
}

func indexRecords(records []*VisitRecord) map[string]*VisitRecord {
	idx := make(map[string]*VisitRecord, len(records))
	for _, rec := range records {
		key := pageKey(rec.URL)
		if _, ok := idx[key]; !ok {
			idx[key] = rec
		}
	}
	return idx
}

// pageKey reduces a record URL to the form two runs are matched on. The
// query is kept. A URL that does not parse is its own key.
func pageKey(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if port := u.Port(); (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		host = strings.TrimSuffix(host, ":"+port)
	}
	key := scheme + "://" + host + strings.TrimSuffix(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

// compareRecords returns the most significant change between two records
// of the same URL.
func compareRecords(prev, cur *VisitRecord) (ChangeKind, bool) {
	if prev.Outcome != cur.Outcome {
		return ChangeOutcome, true
	}
	if !cur.Succeeded() {
		return "", false
	}
	if prev.ContentHash != "" && cur.ContentHash != "" && prev.ContentHash != cur.ContentHash {
		return ChangeContent, true
	}
	if prev.HasForm != cur.HasForm || prev.ClickedButton != cur.ClickedButton {
		return ChangeForm, true
	}
	return "", false
}
