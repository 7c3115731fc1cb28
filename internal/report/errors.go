package report

import "errors"

// ErrUnknownFormat is returned by ParseFormat for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")
