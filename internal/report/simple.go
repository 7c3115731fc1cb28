package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitewalk/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section formatting.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections without entries are shown.
	showEmpty bool

	// verbose lists every visited page, not only failures.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run in human-readable format.
func (w *SimpleWriter) Write(run *model.Run) (int, error) {
	var sb strings.Builder
	summary := model.NewSummary(run)

	w.writeHeader(&sb, summary)
	w.writeSummary(&sb, summary)
	w.writeFailures(&sb, summary)
	if w.verbose {
		w.writePages(&sb, run.Records)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeSummary(&sb, summary)
	w.writeFailures(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          SITEWALK REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Seed:           %s\n", summary.Seed))
	sb.WriteString(fmt.Sprintf("Started:        %s\n", summary.StartedAt.Format(timeLayout)))
	sb.WriteString(fmt.Sprintf("Elapsed:        %s\n", summary.Elapsed.Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Pages Visited:  %d\n", summary.PagesVisited))

	switch {
	case summary.Error != "":
		sb.WriteString(fmt.Sprintf("Status:         ERROR - %s\n", summary.Error))
	case summary.TimedOut:
		sb.WriteString("Status:         STOPPED EARLY (partial results)\n")
	default:
		sb.WriteString("Status:         Complete\n")
	}

	sb.WriteString("\n")
}

// writeSummary writes the outcome counts.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, summary *model.Summary) {
	section(sb, "SUMMARY")

	sb.WriteString(fmt.Sprintf("  SUCCESS:        %d\n", summary.SuccessCount))
	sb.WriteString(fmt.Sprintf("  FAILURE:        %d\n", summary.FailureCount))
	sb.WriteString(fmt.Sprintf("  FORMS:          %d\n", summary.FormCount))
	sb.WriteString(fmt.Sprintf("  CLICKED:        %d\n", summary.ClickCount))
	sb.WriteString(fmt.Sprintf("  CAPTURE ERRORS: %d\n", summary.CaptureErrorCount))
	sb.WriteString(fmt.Sprintf("  MAX DEPTH:      %d\n", summary.MaxDepthReached))
	sb.WriteString("\n")
}

// writeFailures lists failed visits.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, summary *model.Summary) {
	if !summary.HasFailures() && !w.showEmpty {
		return
	}

	section(sb, "FAILURES")

	if !summary.HasFailures() {
		sb.WriteString("  No failed visits\n\n")
		return
	}
	for _, rec := range summary.Failures {
		sb.WriteString(fmt.Sprintf("  [!] %s\n", rec.URL))
		sb.WriteString(fmt.Sprintf("      %s\n", rec.Error))
	}
	sb.WriteString("\n")
}

// writePages lists successful visits with their probe results.
func (w *SimpleWriter) writePages(sb *strings.Builder, records []*model.VisitRecord) {
	section(sb, "VISITED PAGES")

	listed := 0
	for _, rec := range records {
		if !rec.Succeeded() {
			continue
		}
		listed++
		sb.WriteString(fmt.Sprintf("  [+] %s (depth %d)\n", rec.URL, rec.Depth))
		if rec.Title != "" {
			sb.WriteString(fmt.Sprintf("      Title: %s\n", rec.Title))
		}
		sb.WriteString(fmt.Sprintf("      Form: %s  Clicked: %s\n", yesNo(rec.HasForm), yesNo(rec.ClickedButton)))
		if rec.CaptureError != "" {
			sb.WriteString(fmt.Sprintf("      Capture error: %s\n", rec.CaptureError))
		}
	}
	if listed == 0 {
		sb.WriteString("  No pages were visited successfully\n")
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sitewalk\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
