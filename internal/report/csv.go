package report

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/nao1215/sitewalk/internal/model"
)

// csvHeader is the header row of report.csv.
var csvHeader = []string{"URL", "Has Form", "Clicked Button", "Error"}

// CSVWriter outputs one row per visit.
// Failed visits leave both boolean columns empty.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs every entry of the run.
func (w *CSVWriter) Write(run *model.Run) (int, error) {
	return w.writeEntries(Finalize(run.Records).Entries)
}

// WriteSummary outputs only the failed visits.
func (w *CSVWriter) WriteSummary(summary *model.Summary) (int, error) {
	return w.writeEntries(Finalize(summary.Failures).Entries)
}

func (w *CSVWriter) writeEntries(entries []Entry) (int, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := cw.Write(csvRow(e)); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}

	return w.output.Write(buf.Bytes())
}

func csvRow(e Entry) []string {
	if e.Failed() {
		return []string{e.URL, "", "", e.Error}
	}
	return []string{
		e.URL,
		strconv.FormatBool(*e.HasForm),
		strconv.FormatBool(*e.ClickedButton),
		"",
	}
}
