package report

import (
	"io"

	"github.com/nao1215/sitewalk/internal/model"
)

// Writer defines the interface for report output.
// Implementations write traversal results in various formats.
type Writer interface {
	// Write outputs the report of a run to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(run *model.Run) (int, error)

	// WriteSummary outputs only the summary portion.
	// This is useful for quick overviews without per-page details.
	WriteSummary(summary *model.Summary) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(run *model.Run) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(summary *model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// NewWriter returns the Writer for format. version is embedded where the
// format carries metadata.
func NewWriter(format Format, output io.Writer, version string) Writer {
	switch format {
	case FormatCSV:
		return NewCSVWriter(output)
	case FormatMarkdown:
		return NewMarkdownWriter(output, version)
	case FormatText:
		return NewSimpleWriter(output, WithVerbose(true))
	default:
		return NewJSONWriter(output, WithPrettyPrint())
	}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
