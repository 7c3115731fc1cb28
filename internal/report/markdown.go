package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitewalk/internal/model"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter

	version string
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, version string) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		version:    version,
	}
}

// Write outputs the full report in Markdown format, including a table of
// every visited page.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	summary := model.NewSummary(run)
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary, run)
	w.writeSummary(md, summary)
	w.writeFailures(md, summary)
	w.writePages(md, run.Records)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary, nil)
	w.writeSummary(md, summary)
	w.writeFailures(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.Summary, run *model.Run) {
	md.H1("Sitewalk Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed", "`" + summary.Seed + "`"},
	}
	if run != nil {
		rows = append(rows,
			[]string{"Run ID", "`" + run.ID + "`"},
			[]string{"Scope", "`" + orDash(run.ScopePrefix) + "`"},
			[]string{"Limits", "depth " + strconv.Itoa(run.MaxDepth) + ", pages " + pageCap(run.MaxPages)},
			[]string{"Logged In", yesNo(run.Authenticated)},
		)
	}
	rows = append(rows,
		[]string{"Started", summary.StartedAt.Format(timeLayout)},
		[]string{"Elapsed", summary.Elapsed.Round(time.Millisecond).String()},
		[]string{"Pages Visited", strconv.Itoa(summary.PagesVisited)},
		[]string{"Status", statusText(summary)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// pageCap renders MaxPages, where 0 means no cap.
func pageCap(n int) string {
	if n <= 0 {
		return "unbounded"
	}
	return strconv.Itoa(n)
}

// statusText returns the status text based on run state.
func statusText(summary *model.Summary) string {
	if summary.Error != "" {
		return "❌ Error - " + summary.Error
	}
	if summary.TimedOut {
		return "⚠️ Stopped early (partial results)"
	}
	return "✅ Complete"
}

// writeSummary writes the outcome summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Outcome Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{label(model.OutcomeSuccess.String()), strconv.Itoa(summary.SuccessCount)},
			{label(model.OutcomeFailure.String()), strconv.Itoa(summary.FailureCount)},
			{label("pages with forms"), strconv.Itoa(summary.FormCount)},
			{label("buttons clicked"), strconv.Itoa(summary.ClickCount)},
			{label("capture errors"), strconv.Itoa(summary.CaptureErrorCount)},
			{"**Total**", "**" + strconv.Itoa(summary.PagesVisited) + "**"},
		},
	})
	md.PlainText("")

	if summary.PagesVisited > 0 {
		w.writePieChart(md, summary)
	}

	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart of visit outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Visit Outcomes"),
		piechart.WithShowData(true),
	)

	if summary.SuccessCount > 0 {
		chart.LabelAndIntValue(label(model.OutcomeSuccess.String()), uint64(summary.SuccessCount))
	}
	if summary.FailureCount > 0 {
		chart.LabelAndIntValue(label(model.OutcomeFailure.String()), uint64(summary.FailureCount))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert chosen by the share of failed visits.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.Summary) {
	ratio := summary.FailureRatio()
	switch {
	case summary.Error != "":
		md.Cautionf("The run failed: %s", summary.Error)
	case ratio >= 0.5:
		md.Cautionf("%d of %d visits failed. The site may be unreachable or blocking automation.",
			summary.FailureCount, summary.PagesVisited)
	case summary.FailureCount > 0:
		md.Warningf("%d visit(s) failed. See the failures table below.", summary.FailureCount)
	case summary.CaptureErrorCount > 0:
		md.Importantf("%d page(s) were visited without a screenshot.", summary.CaptureErrorCount)
	case summary.TimedOut:
		md.Note("The run stopped before the work list was exhausted.")
	default:
		md.Tip("Every visited page loaded successfully.")
	}
	md.PlainText("")
}

// writeFailures writes the failed visits.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Failures")
	md.PlainText("")

	if !summary.HasFailures() {
		md.PlainText("No failed visits.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Failures))
	for i, rec := range summary.Failures {
		rows[i] = []string{
			truncateString(rec.URL, 80),
			strconv.Itoa(rec.Depth),
			truncateString(rec.Error, 80),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writePages writes every successful visit.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, records []*model.VisitRecord) {
	md.H2("Visited Pages")
	md.PlainText("")

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		if !rec.Succeeded() {
			continue
		}
		rows = append(rows, []string{
			truncateString(rec.URL, 80),
			strconv.Itoa(rec.Depth),
			truncateString(orDash(rec.Title), 40),
			yesNo(rec.HasForm),
			yesNo(rec.ClickedButton),
			orDash(rec.ArtifactPath),
		})
	}

	if len(rows) == 0 {
		md.PlainText("No pages were visited successfully.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Title", "Form", "Clicked", "Screenshot"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	if w.version != "" {
		md.PlainTextf("*Report generated by sitewalk %s*", w.version)
		return
	}
	md.PlainText("*Report generated by sitewalk*")
}
