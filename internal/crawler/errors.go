package crawler

import "errors"

var (
	// ErrInvalidSeed is returned when the seed is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("invalid seed URL")

	// ErrInvalidScope is returned when the scope prefix is not an http(s)
	// URL prefix with a host.
	ErrInvalidScope = errors.New("invalid scope prefix")

	// ErrSeedOutOfScope is returned when the seed lies outside the scope
	// prefix, which would leave nothing to visit.
	ErrSeedOutOfScope = errors.New("seed is outside the scope prefix")

	// ErrUnknownOrder is returned by ParseOrder for an unknown traversal order.
	ErrUnknownOrder = errors.New("unknown traversal order: use dfs or bfs")
)
