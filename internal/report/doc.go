// Package report turns traversal results into report files.
//
// Finalize converts visit records into the flat entry list that report.json
// and report.csv hold: failures carry only the URL and the error, successes
// carry the URL and the probe results. Order is preserved.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output:
//   - JSONWriter: the entry array, for tool integration
//   - FullJSONWriter: the complete run with version and summary
//   - CSVWriter: one row per visit
//   - MarkdownWriter: tables, an outcome pie chart and alerts
//   - SimpleWriter: human-readable text output for terminal display
package report
