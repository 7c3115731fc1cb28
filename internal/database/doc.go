// Package database stores run history in SQLite.
//
// Every completed run is saved with its visit records so that later runs of
// the same seed can be compared against it. The database lives in the XDG
// data directory unless configured otherwise.
//
// The driver is modernc.org/sqlite, a pure Go port, so no cgo toolchain is
// needed.
package database
