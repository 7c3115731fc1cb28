package config

import (
	"errors"

	"github.com/nao1215/sitewalk/internal/crawler"
)

// Configuration validation errors.
// These errors are returned by Config.Validate() and checked by callers
// with errors.Is().
var (
	// ErrNoSeed is returned when no seed URL is given and none can be prompted for.
	ErrNoSeed = errors.New("no seed specified: provide a URL argument")

	// ErrInvalidSeed is returned when a seed or login URL is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("invalid seed URL")

	// ErrInvalidScope is returned when the scope prefix is not an http(s)
	// URL or host.
	ErrInvalidScope = crawler.ErrInvalidScope

	// ErrSeedOutOfScope is returned when a seed is not under the scope prefix.
	ErrSeedOutOfScope = crawler.ErrSeedOutOfScope

	// ErrInvalidDepth is returned when the maximum depth is negative.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the page cap is negative.
	// Use 0 for no cap.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidTimeout is returned when the navigation timeout is not
	// positive or the run timeout is negative.
	ErrInvalidTimeout = errors.New("invalid timeout: navigation timeout must be positive and run timeout non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrUnknownFormat is returned for an unsupported report format.
	ErrUnknownFormat = errors.New("unknown report format: use json, csv, markdown or text")

	// ErrUnknownOrder is returned for a traversal order other than dfs or bfs.
	ErrUnknownOrder = errors.New("unknown traversal order: use dfs or bfs")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
