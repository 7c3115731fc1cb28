package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRejected is returned when the login page shows an error indicator.
	ErrAuthRejected = errors.New("credentials rejected")

	// ErrAuthTimeout is returned when neither the error indicator nor the
	// success marker appears in time.
	ErrAuthTimeout = errors.New("timed out waiting for login result")

	// ErrMissingCredentials is returned when a provider cannot supply a
	// username and a password.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrNoTerminal is returned by the prompt provider when stdin is not a terminal.
	ErrNoTerminal = errors.New("password prompt requires a terminal")
)

// Stage names the step of the login flow that failed.
type Stage string

// Login flow stages.
const (
	StageCredentials Stage = "credentials"
	StageNavigate    Stage = "navigate"
	StageForm        Stage = "form"
	StageSubmit      Stage = "submit"
	StageVerify      Stage = "verify"
)

// Error is returned by Authenticate. Any Error aborts the run.
type Error struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("authentication failed at %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, err error) error {
	return &Error{Stage: stage, Err: err}
}
