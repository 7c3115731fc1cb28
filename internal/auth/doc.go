// Package auth performs the optional login that precedes a traversal.
//
// An Authenticator fills a login form on the same page the traversal will
// use, so the session cookies it earns stay in effect for every visit.
// Credentials come from a CredentialsProvider: fixed values, environment
// variables, or an interactive prompt that reads the password without echo.
//
// A failed login is fatal. Authenticate returns an *Error naming the stage
// that failed, wrapping ErrAuthRejected, ErrAuthTimeout,
// ErrMissingCredentials or the navigation error.
package auth
