// Package log builds the slog loggers of sitewalk. Every logger is wrapped
// in a SecureHandler that masks secrets before a record is written.
//
// Masked are:
//   - attributes named after a secret (password, cookie, token, session)
//   - values shaped like one (JWTs, bearer and basic credentials, PEM keys)
//   - the userinfo password and secret query parameters of logged URLs
//
// Credentials resolve through slog.LogValuer, so a grouped password is
// masked like a top-level one. Verbose mode lowers the level to Debug but
// never turns masking off.
//
// On a terminal NewLogger renders through charmbracelet/log; otherwise it
// writes slog text lines.
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
