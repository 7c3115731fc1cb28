package browser

import "errors"

var (
	// ErrBrowserClosed is returned when a tab is requested from a closed browser.
	ErrBrowserClosed = errors.New("browser is closed")

	// ErrEmptyURL is returned when Navigate is called without a URL.
	ErrEmptyURL = errors.New("navigation target is empty")
)
