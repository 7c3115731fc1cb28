package model

import "fmt"

// Outcome is the result of attempting to visit one URL.
type Outcome int

const (
	// OutcomeSuccess means the page was navigated to and inspected.
	// Capture and probe problems do not turn a visit into a failure.
	OutcomeSuccess Outcome = iota

	// OutcomeFailure means navigation failed or timed out.
	// The record carries the error description and nothing else.
	OutcomeFailure
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so outcomes are stored
// as words in JSON and in the history database.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "success":
		*o = OutcomeSuccess
	case "failure":
		*o = OutcomeFailure
	default:
		return fmt.Errorf("unknown outcome %q", string(text))
	}
	return nil
}
