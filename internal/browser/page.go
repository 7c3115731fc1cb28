package browser

import "context"

// Page is one browsing context: a tab that navigates, renders and exposes
// its DOM.
//
// A Page is not safe for concurrent use. Navigation and DOM interaction on
// one tab happen strictly one after another; callers that want parallelism
// open one Page per worker.
//
// Every method takes a context. Its deadline bounds the single operation;
// it does not close the tab.
type Page interface {
	// Navigate loads url and waits until the document body is ready.
	Navigate(ctx context.Context, url string) error

	// Location returns the current document URL, after redirects.
	Location(ctx context.Context) (string, error)

	// HTML returns the outer HTML of the rendered document.
	HTML(ctx context.Context) (string, error)

	// Screenshot renders the full page as a PNG image.
	Screenshot(ctx context.Context) ([]byte, error)

	// Exists reports whether selector matches at least one visible element.
	// A missing or hidden element is not an error.
	Exists(ctx context.Context, selector string) (bool, error)

	// Text returns the visible text of the first element matching selector,
	// or an empty string when nothing matches.
	Text(ctx context.Context, selector string) (string, error)

	// Fill replaces the value of the first input matching selector.
	Fill(ctx context.Context, selector, value string) error

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
}
