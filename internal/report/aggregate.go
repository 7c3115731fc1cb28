package report

import (
	"fmt"
	"strings"

	"github.com/nao1215/sitewalk/internal/model"
)

// Entry is one element of the persisted report.
// Failures carry only URL and Error. Successes carry URL, HasForm and
// ClickedButton, plus the screenshot path and depth when known.
type Entry struct {
	URL           string `json:"url"`
	HasForm       *bool  `json:"hasForm,omitempty"`
	ClickedButton *bool  `json:"clickedButton,omitempty"`
	Error         string `json:"error,omitempty"`
	Screenshot    string `json:"screenshot,omitempty"`
	Depth         *int   `json:"depth,omitempty"`
}

// Failed reports whether the entry describes a failed visit.
func (e Entry) Failed() bool {
	return e.HasForm == nil
}

// Payload is the persistence-ready form of a traversal's records.
type Payload struct {
	// Entries are in visiting order.
	Entries []Entry `json:"entries"`

	Total     int `json:"total"`
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
	Forms     int `json:"forms"`
	Clicks    int `json:"clicks"`
}

// Finalize converts records into a Payload. It keeps the records' order
// and neither filters nor sorts them.
func Finalize(records []*model.VisitRecord) *Payload {
	p := &Payload{
		Entries: make([]Entry, 0, len(records)),
		Total:   len(records),
	}

	for _, rec := range records {
		if !rec.Succeeded() {
			p.Failures++
			p.Entries = append(p.Entries, Entry{URL: rec.URL, Error: rec.Error})
			continue
		}

		hasForm := rec.HasForm
		clicked := rec.ClickedButton
		depth := rec.Depth
		p.Entries = append(p.Entries, Entry{
			URL:           rec.URL,
			HasForm:       &hasForm,
			ClickedButton: &clicked,
			Screenshot:    rec.ArtifactPath,
			Depth:         &depth,
		})

		p.Successes++
		if hasForm {
			p.Forms++
		}
		if clicked {
			p.Clicks++
		}
	}

	return p
}

// Format is a report file format.
type Format int

const (
	// FormatJSON writes report.json, an array of entries.
	FormatJSON Format = iota

	// FormatCSV writes report.csv.
	FormatCSV

	// FormatMarkdown writes report.md.
	FormatMarkdown

	// FormatText writes report.txt, the terminal summary.
	FormatText
)

// String returns the flag spelling of the format.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	case FormatMarkdown:
		return "markdown"
	case FormatText:
		return "text"
	default:
		return "unknown"
	}
}

// FileName returns the report file name for the format.
func (f Format) FileName() string {
	switch f {
	case FormatJSON:
		return "report.json"
	case FormatCSV:
		return "report.csv"
	case FormatMarkdown:
		return "report.md"
	default:
		return "report.txt"
	}
}

// ParseFormat parses a format name (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return FormatJSON, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ParseFormats parses a list of format names, dropping duplicates.
func ParseFormats(names []string) ([]Format, error) {
	seen := make(map[Format]bool)
	formats := make([]Format, 0, len(names))
	for _, name := range names {
		f, err := ParseFormat(name)
		if err != nil {
			return nil, err
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		formats = append(formats, f)
	}
	return formats, nil
}
