// Package model defines the data structures shared by the crawler, the
// report writers and the history database.
//
// This package contains the following main types:
//   - VisitRecord: The result of visiting one page
//   - Run: One traversal from one seed with its records
//   - Summary: Counts and failures derived from a Run
//   - RunDiff: The differences between two runs of the same seed
//
// The models are serializable to JSON for report output and database
// storage.
package model
